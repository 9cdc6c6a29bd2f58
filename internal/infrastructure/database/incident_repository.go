package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/domain/repository"
)

var _ repository.IncidentRepository = (*PostgresIncidentRepository)(nil)

// PostgresIncidentRepository implements repository.IncidentRepository using
// PostgreSQL.
type PostgresIncidentRepository struct {
	db *sqlx.DB
}

// NewPostgresIncidentRepository creates a new PostgreSQL incident repository.
func NewPostgresIncidentRepository(db *PostgresDB) *PostgresIncidentRepository {
	return &PostgresIncidentRepository{db: db.DB}
}

// GetActiveByAlert returns the single Active incident for an alert, if any.
// The "at most one Active per alerts_id" invariant is enforced by callers
// serialising ticks of the same alert, not by a database constraint.
func (r *PostgresIncidentRepository) GetActiveByAlert(ctx context.Context, alertsID entity.ID) (*entity.Incident, error) {
	var incident entity.Incident
	query := `
		SELECT id, alerts_id, host_uuid, hostname, started_at, updated_at,
			   resolved_at, status, severity, result,
			   alert_name, lookup, warn, crit, info
		FROM incidents
		WHERE alerts_id = $1 AND status = $2
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &incident, query, alertsID, entity.IncidentActive)
	if err != nil {
		return nil, TranslateError(err)
	}
	return &incident, nil
}

// Create inserts a newly opened incident.
func (r *PostgresIncidentRepository) Create(ctx context.Context, incident *entity.Incident) error {
	query := `
		INSERT INTO incidents (
			id, alerts_id, host_uuid, hostname, started_at, updated_at,
			resolved_at, status, severity, result,
			alert_name, lookup, warn, crit, info
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		incident.ID, incident.AlertsID, incident.HostUUID, incident.Hostname,
		incident.StartedAt, incident.UpdatedAt, incident.ResolvedAt,
		incident.Status, incident.Severity, incident.Result,
		incident.AlertName, incident.Lookup, incident.Warn, incident.Crit, incident.Info,
	)
	return TranslateError(err)
}

// Update persists changes to an existing incident: a severity/result
// refresh, or a resolution.
func (r *PostgresIncidentRepository) Update(ctx context.Context, incident *entity.Incident) error {
	query := `
		UPDATE incidents
		SET updated_at = $2, resolved_at = $3, status = $4, severity = $5, result = $6
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		incident.ID, incident.UpdatedAt, incident.ResolvedAt,
		incident.Status, incident.Severity, incident.Result,
	)
	return TranslateError(err)
}

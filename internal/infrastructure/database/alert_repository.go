package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/domain/repository"
)

var _ repository.AlertRepository = (*PostgresAlertRepository)(nil)

// PostgresAlertRepository implements repository.AlertRepository using
// PostgreSQL/TimescaleDB.
type PostgresAlertRepository struct {
	db *sqlx.DB
}

// NewPostgresAlertRepository creates a new PostgreSQL alert repository.
func NewPostgresAlertRepository(db *PostgresDB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db.DB}
}

// Upsert inserts a new alert row, or replaces it when the id already exists
// (CDC update path replaces in place rather than diffing columns).
func (r *PostgresAlertRepository) Upsert(ctx context.Context, alert *entity.Alert) error {
	query := `
		INSERT INTO alerts (
			id, name, host_uuid, hostname, table_name, lookup, where_clause,
			warn, crit, timing, active, info
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			host_uuid = EXCLUDED.host_uuid,
			hostname = EXCLUDED.hostname,
			table_name = EXCLUDED.table_name,
			lookup = EXCLUDED.lookup,
			where_clause = EXCLUDED.where_clause,
			warn = EXCLUDED.warn,
			crit = EXCLUDED.crit,
			timing = EXCLUDED.timing,
			active = EXCLUDED.active,
			info = EXCLUDED.info
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Name, alert.HostUUID, alert.Hostname, alert.Table,
		alert.Lookup, alert.WhereClause, alert.Warn, alert.Crit, alert.Timing,
		alert.Active, alert.Info,
	)
	return TranslateError(err)
}

// Delete removes an alert row. Safe to call with no matching entry.
func (r *PostgresAlertRepository) Delete(ctx context.Context, id entity.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	return TranslateError(err)
}

// DeleteByHost removes every alert row targeting the given host.
func (r *PostgresAlertRepository) DeleteByHost(ctx context.Context, hostUUID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE host_uuid = $1`, hostUUID)
	return TranslateError(err)
}

// DeleteAll truncates the alerts table, used before re-inserting a
// file-sourced expansion at startup.
func (r *PostgresAlertRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts`)
	return TranslateError(err)
}

// List returns every alert row.
func (r *PostgresAlertRepository) List(ctx context.Context) ([]*entity.Alert, error) {
	var alerts []*entity.Alert
	query := `
		SELECT id, name, host_uuid, hostname, table_name, lookup, where_clause,
			   warn, crit, timing, active, info
		FROM alerts
	`
	if err := r.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, TranslateError(err)
	}
	return alerts, nil
}

// GetByID finds a single alert.
func (r *PostgresAlertRepository) GetByID(ctx context.Context, id entity.ID) (*entity.Alert, error) {
	var alert entity.Alert
	query := `
		SELECT id, name, host_uuid, hostname, table_name, lookup, where_clause,
			   warn, crit, timing, active, info
		FROM alerts
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, TranslateError(err)
	}
	return &alert, nil
}

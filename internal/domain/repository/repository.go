package repository

import (
	"context"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
)

// AlertRepository persists the authoritative set of alerts.
type AlertRepository interface {
	// Upsert inserts or replaces an alert row keyed by its id.
	Upsert(ctx context.Context, alert *entity.Alert) error

	// Delete removes an alert row. Safe to call when no row exists.
	Delete(ctx context.Context, id entity.ID) error

	// DeleteByHost removes every alert row targeting the given host.
	DeleteByHost(ctx context.Context, hostUUID string) error

	// DeleteAll truncates the alerts table. Used by the file-sourced
	// bootstrap policy before re-inserting the expansion.
	DeleteAll(ctx context.Context) error

	// List returns every alert row, used to prime the scheduler at startup.
	List(ctx context.Context) ([]*entity.Alert, error)

	// GetByID finds a single alert. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id entity.ID) (*entity.Alert, error)
}

// IncidentRepository persists incident history and live status.
type IncidentRepository interface {
	// GetActiveByAlert returns the single Active incident for an alert, if
	// any. Returns ErrNotFound if there is none.
	GetActiveByAlert(ctx context.Context, alertsID entity.ID) (*entity.Incident, error)

	// Create inserts a newly opened incident.
	Create(ctx context.Context, incident *entity.Incident) error

	// Update persists changes to an existing incident (severity, result,
	// updated_at, or a resolution).
	Update(ctx context.Context, incident *entity.Incident) error
}

// HostRepository reads the current host fleet. The daemon never writes
// hosts; they are owned by the metrics platform.
type HostRepository interface {
	// List returns one page of known hosts.
	List(ctx context.Context, page, perPage int) ([]*entity.Host, error)

	// GetByUUID finds a single host. Returns ErrNotFound if absent.
	GetByUUID(ctx context.Context, uuid string) (*entity.Host, error)
}

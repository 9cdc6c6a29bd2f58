package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
	"github.com/speculare-cloud/alertsd/internal/domain/repository"
)

var _ repository.HostRepository = (*PostgresHostRepository)(nil)

// PostgresHostRepository implements repository.HostRepository using
// PostgreSQL. The daemon never writes hosts; they belong to the metrics
// platform.
type PostgresHostRepository struct {
	db *sqlx.DB
}

// NewPostgresHostRepository creates a new PostgreSQL host repository.
func NewPostgresHostRepository(db *PostgresDB) *PostgresHostRepository {
	return &PostgresHostRepository{db: db.DB}
}

// List returns one page of known hosts, ordered for stable pagination.
func (r *PostgresHostRepository) List(ctx context.Context, page, perPage int) ([]*entity.Host, error) {
	offset := (page - 1) * perPage
	if offset < 0 {
		offset = 0
	}
	var hosts []*entity.Host
	query := `SELECT uuid, hostname FROM hosts ORDER BY uuid LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &hosts, query, perPage, offset); err != nil {
		return nil, TranslateError(err)
	}
	return hosts, nil
}

// GetByUUID finds a single host.
func (r *PostgresHostRepository) GetByUUID(ctx context.Context, uuid string) (*entity.Host, error) {
	var host entity.Host
	query := `SELECT uuid, hostname FROM hosts WHERE uuid = $1`
	if err := r.db.GetContext(ctx, &host, query, uuid); err != nil {
		return nil, TranslateError(err)
	}
	return &host, nil
}

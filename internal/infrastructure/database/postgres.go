// Package database implements the domain repositories on top of Postgres /
// TimescaleDB via pgx and sqlx.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"

	"github.com/speculare-cloud/alertsd/internal/infrastructure/config"
)

// PostgresDB wraps the sqlx.DB connection with additional functionality.
type PostgresDB struct {
	*sqlx.DB
}

// NewPostgresDB opens a connection pool to the relational store holding
// alerts/incidents, configures pool sizing and verifies connectivity.
func NewPostgresDB(cfg *config.DatabaseConfig) (*PostgresDB, error) {
	db, err := sqlx.Connect("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	maxConn := cfg.MaxConnection
	if maxConn < 1 {
		maxConn = 1
	}
	minIdle := maxConn / 10
	if minIdle < 1 {
		minIdle = 1
	}
	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(minIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

// Health checks if the database connection is healthy.
func (p *PostgresDB) Health(ctx context.Context) error {
	return p.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresDB) Close() error {
	return p.DB.Close()
}

package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/speculare-cloud/alertsd/internal/domain/repository"
)

// PostgreSQL error codes.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation = "23505"
)

// TranslateError converts PostgreSQL-specific errors to domain errors,
// keeping the domain layer independent of the database driver.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgErrUniqueViolation {
			return repository.ErrAlreadyExists
		}
	}

	if isConnectionError(err) {
		return repository.ErrConnection
	}

	return err
}

func isConnectionError(err error) bool {
	errMsg := strings.ToLower(err.Error())
	connectionKeywords := []string{
		"connection refused",
		"connection reset",
		"no connection",
		"connection timed out",
		"network is unreachable",
	}
	for _, keyword := range connectionKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

package executor_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speculare-cloud/alertsd/internal/domain/compiler"
	"github.com/speculare-cloud/alertsd/internal/infrastructure/executor"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestExecute_Abs_ReturnsMostRecentBucket(t *testing.T) {
	db, mock := newMockDB(t)
	compiled := &compiler.Compiled{SQL: "SELECT 1", Kind: compiler.Abs}

	rows := sqlmock.NewRows([]string{"value"}).AddRow(95.5).AddRow(10.0)
	mock.ExpectQuery("SELECT 1").WithArgs("host-1").WillReturnRows(rows)

	result, err := executor.Execute(context.Background(), db, compiled, "host-1")

	require.NoError(t, err)
	assert.Equal(t, "95.5", result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_Abs_NoRowsIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	compiled := &compiler.Compiled{SQL: "SELECT 1", Kind: compiler.Abs}

	mock.ExpectQuery("SELECT 1").WithArgs("host-1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := executor.Execute(context.Background(), db, compiled, "host-1")

	assert.ErrorIs(t, err, executor.ErrNotFound)
}

func TestExecute_Pct_ComputesPercentage(t *testing.T) {
	db, mock := newMockDB(t)
	compiled := &compiler.Compiled{SQL: "SELECT 2", Kind: compiler.Pct}

	rows := sqlmock.NewRows([]string{"numerator", "divisor"}).AddRow(25.0, 100.0)
	mock.ExpectQuery("SELECT 2").WithArgs("host-1").WillReturnRows(rows)

	result, err := executor.Execute(context.Background(), db, compiled, "host-1")

	require.NoError(t, err)
	assert.Equal(t, "25", result)
}

func TestExecute_Pct_ZeroDivisorYieldsInf(t *testing.T) {
	db, mock := newMockDB(t)
	compiled := &compiler.Compiled{SQL: "SELECT 2", Kind: compiler.Pct}

	rows := sqlmock.NewRows([]string{"numerator", "divisor"}).AddRow(25.0, 0.0)
	mock.ExpectQuery("SELECT 2").WithArgs("host-1").WillReturnRows(rows)

	result, err := executor.Execute(context.Background(), db, compiled, "host-1")

	require.NoError(t, err)
	assert.Equal(t, "+Inf", result)
}

func TestExecute_QueryError_IsPropagated(t *testing.T) {
	db, mock := newMockDB(t)
	compiled := &compiler.Compiled{SQL: "SELECT 1", Kind: compiler.Abs}

	mock.ExpectQuery("SELECT 1").WithArgs("host-1").WillReturnError(assert.AnError)

	_, err := executor.Execute(context.Background(), db, compiled, "host-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, executor.ErrNotFound)
}

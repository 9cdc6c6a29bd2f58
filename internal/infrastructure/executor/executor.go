// Package executor binds an alert's host and runs its compiled query,
// reducing the result rows to the single scalar string the evaluator needs.
package executor

import (
	"context"
	"errors"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/speculare-cloud/alertsd/internal/domain/compiler"
)

// ErrNotFound is returned when the query yields zero rows: the tick must be
// skipped silently, not treated as a failure.
var ErrNotFound = errors.New("executor: query returned no rows")

type absRow struct {
	Value float64 `db:"value"`
}

type pctRow struct {
	Numerator float64 `db:"numerator"`
	Divisor   float64 `db:"divisor"`
}

// Execute binds hostUUID as $1, runs the compiled query, and reduces the
// result to a single scalar rendered as text.
//
// Abs expects a value column and returns the most recent bucket's value.
// Pct expects numerator/divisor columns and returns numerator/divisor*100
// for the most recent bucket; a zero divisor yields +Inf/NaN per IEEE-754,
// which the threshold evaluator will typically read as non-firing.
func Execute(ctx context.Context, db *sqlx.DB, compiled *compiler.Compiled, hostUUID string) (string, error) {
	switch compiled.Kind {
	case compiler.Pct:
		var rows []pctRow
		if err := db.SelectContext(ctx, &rows, compiled.SQL, hostUUID); err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "", ErrNotFound
		}
		pct := rows[0].Numerator / rows[0].Divisor * 100
		return formatFloat(pct), nil
	default:
		var rows []absRow
		if err := db.SelectContext(ctx, &rows, compiled.SQL, hostUUID); err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "", ErrNotFound
		}
		return formatFloat(rows[0].Value), nil
	}
}

// formatFloat renders a float without locale-specific separators or
// scientific notation, so it can be interpolated directly into a $this
// expression.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

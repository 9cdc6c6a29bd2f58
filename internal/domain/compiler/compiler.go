// Package compiler turns an Alert's lookup DSL into a parameterised SQL
// query plus a result-shape tag, the way query.rs's AlertsQuery trait does
// in the original daemon.
package compiler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/speculare-cloud/alertsd/internal/domain/entity"
)

// ResultKind describes the shape of rows the compiled query produces.
type ResultKind int

// Result kinds.
const (
	Abs ResultKind = iota
	Pct
)

func (k ResultKind) String() string {
	if k == Pct {
		return "Pct"
	}
	return "Abs"
}

// CompileError is a descriptive compile failure. In the bootstrap path it is
// fatal; on the CDC path the caller logs it and drops the offending change.
type CompileError struct {
	Reason string
}

func (e *CompileError) Error() string { return e.Reason }

func compileErrorf(format string, args ...any) error {
	return &CompileError{Reason: fmt.Sprintf(format, args...)}
}

// intervalRegexp mirrors the original's validation regex for the lookup's
// interval token: an integer followed by a unit letter/word, or a bare unit
// keyword.
var intervalRegexp = regexp.MustCompile(`(\d+)([a-zA-Z ])|([mhd]|minutes|hours|days|minute|hour|day)`)

// disallowedStatements is the fixed deny-list checked, as uppercase
// substrings, against the generated SQL. CREATE is deliberately absent:
// excluding it is what avoids rejecting every query, since each one selects
// the created_at column. Preserving this exact behaviour (substring, not word-boundary,
// matching) is intentional.
var disallowedStatements = []string{
	"DELETE", "UPDATE", "INSERT", "ALTER", "DROP", "TRUNCATE",
	"GRANT", "REVOKE", "BEGIN", "COMMIT", "SAVEPOINT", "ROLLBACK",
}

var validAggr = map[string]bool{"avg": true, "sum": true, "min": true, "max": true, "count": true}

// Compiled is the result of compiling an Alert's lookup.
type Compiled struct {
	SQL  string
	Kind ResultKind
}

// Compile parses alert.Lookup and alert.WhereClause into a ready-to-bind SQL
// template, enforcing the safety filter before returning.
func Compile(alert *entity.Alert) (*Compiled, error) {
	parts := strings.Split(alert.Lookup, " ")
	if len(parts) < 5 {
		return nil, compileErrorf("lookup is invalid, define as follow: [aggr] [mode] [timeframe] of [col_list] {{over [col_list2]}}")
	}

	aggr := parts[0]
	if !validAggr[aggr] {
		return nil, compileErrorf("aggr %q is invalid. Valid are: avg, sum, min, max, count", aggr)
	}

	var kind ResultKind
	switch parts[1] {
	case "pct":
		kind = Pct
	case "abs":
		kind = Abs
	default:
		return nil, compileErrorf("mode %q is invalid. Valid are: pct, abs", parts[1])
	}

	if kind == Pct && len(parts) != 7 {
		return nil, compileErrorf("lookup defined as mode pct but missing values, check usage")
	}

	interval := parts[2]
	if !intervalRegexp.MatchString(interval) {
		return nil, compileErrorf("interval %q is not correctly formatted", interval)
	}

	firstCols := parts[4]
	selectList, err := buildAdditiveCast(aggr, firstCols)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Pct:
		secondCols := parts[6]
		divisorList, err := buildAdditiveCast(aggr, secondCols)
		if err != nil {
			return nil, err
		}
		selectList = selectList + " as numerator, " + divisorList + " as divisor"
	case Abs:
		selectList = selectList + " as value"
	}

	whereClause := ""
	if alert.WhereClause != "" {
		whereClause = " AND " + alert.WhereClause
	}

	sql := fmt.Sprintf(
		"SELECT time_bucket('%s', created_at) as time, %s FROM %s WHERE host_uuid=$1 AND created_at > now() at time zone 'utc' - INTERVAL '%s'%s GROUP BY time ORDER BY time DESC",
		interval, selectList, alert.Table, interval, whereClause,
	)

	if err := checkDisallowed(sql, alert); err != nil {
		return nil, err
	}

	return &Compiled{SQL: sql, Kind: kind}, nil
}

// buildAdditiveCast renders "aggr(c1)::float8 + aggr(c2)::float8 + ..." for
// a comma-separated column list.
func buildAdditiveCast(aggr, cols string) (string, error) {
	colList := strings.Split(cols, ",")
	if len(colList) == 0 || (len(colList) == 1 && colList[0] == "") {
		return "", errors.New("lookup column list is empty")
	}
	terms := make([]string, 0, len(colList))
	for _, col := range colList {
		terms = append(terms, fmt.Sprintf("%s(%s)::float8", aggr, col))
	}
	return strings.Join(terms, " + "), nil
}

func checkDisallowed(sql string, alert *entity.Alert) error {
	upper := strings.ToUpper(sql)
	for _, statement := range disallowedStatements {
		if strings.Contains(upper, statement) {
			return compileErrorf(
				"alert %s for host_uuid %s contains disallowed statement %q",
				alert.Name, alert.HostUUID, statement,
			)
		}
	}
	return nil
}

// Package evaluator substitutes a tick's scalar result into an alert's
// warn/crit boolean expressions and evaluates them, mirroring the
// eval_boolean step of the original analysis pass.
package evaluator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// thisPlaceholder is the literal token alerts use to refer to the tick's
// scalar result inside their warn/crit expressions.
const thisPlaceholder = "$this"

// Evaluate substitutes result into expr (replacing every occurrence of
// $this) and evaluates it as a boolean expression. A finite numeric result
// is first rewritten in plain decimal form, so exponent notation such as
// "1.5e7" is accepted. A parse or evaluation failure, or a non-boolean
// result, is a hard error for the current tick.
func Evaluate(expr, result string) (bool, error) {
	if f, err := strconv.ParseFloat(result, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		result = strconv.FormatFloat(f, 'f', -1, 64)
	}
	substituted := strings.ReplaceAll(expr, thisPlaceholder, result)

	parsed, err := govaluate.NewEvaluableExpression(substituted)
	if err != nil {
		return false, fmt.Errorf("failed to parse expression %q: %w", substituted, err)
	}

	value, err := parsed.Evaluate(nil)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", substituted, err)
	}

	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %v", substituted, value)
	}
	return b, nil
}

// Thresholds holds the result of evaluating both of an alert's boolean
// expressions for one tick.
type Thresholds struct {
	ShouldWarn bool
	ShouldCrit bool
}

// EvaluateThresholds evaluates both warn and crit against the same result.
func EvaluateThresholds(warn, crit, result string) (Thresholds, error) {
	shouldWarn, err := Evaluate(warn, result)
	if err != nil {
		return Thresholds{}, fmt.Errorf("warn: %w", err)
	}
	shouldCrit, err := Evaluate(crit, result)
	if err != nil {
		return Thresholds{}, fmt.Errorf("crit: %w", err)
	}
	return Thresholds{ShouldWarn: shouldWarn, ShouldCrit: shouldCrit}, nil
}

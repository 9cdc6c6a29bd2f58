package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speculare-cloud/alertsd/internal/domain/evaluator"
)

func TestEvaluate_SimpleComparison(t *testing.T) {
	ok, err := evaluator.Evaluate("$this > 80", "95.5")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_Negative(t *testing.T) {
	ok, err := evaluator.Evaluate("$this > 80", "10")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_ScientificNotation(t *testing.T) {
	// A result written in exponent notation must still evaluate as the
	// number it denotes.
	ok, err := evaluator.Evaluate("$this > 1000000", "1.5e7")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_MultipleOccurrencesOfThis(t *testing.T) {
	ok, err := evaluator.Evaluate("$this > 0 && $this < 100", "50")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_NonBooleanResultIsError(t *testing.T) {
	_, err := evaluator.Evaluate("$this + 1", "10")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not evaluate to a boolean")
}

func TestEvaluate_MalformedExpression(t *testing.T) {
	_, err := evaluator.Evaluate("$this >", "10")

	require.Error(t, err)
}

func TestEvaluateThresholds(t *testing.T) {
	tests := []struct {
		name     string
		warn     string
		crit     string
		result   string
		wantWarn bool
		wantCrit bool
		wantErr  bool
	}{
		{"neither fires", "$this > 80", "$this > 95", "10", false, false, false},
		{"warn only", "$this > 80", "$this > 95", "85", true, false, false},
		{"both fire", "$this > 80", "$this > 95", "99", true, true, false},
		{"malformed crit", "$this > 80", "$this >", "85", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := evaluator.EvaluateThresholds(tt.warn, tt.crit, tt.result)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWarn, thresholds.ShouldWarn)
			assert.Equal(t, tt.wantCrit, thresholds.ShouldCrit)
		})
	}
}

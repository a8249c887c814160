package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountant_Import_Array(t *testing.T) {
	acc := newTestAccountant(t, 6.0)

	history := `[
		{"round": 2, "accuracy": 0.86, "epsilon": 0.3, "delta": 1e-5},
		{"round": 1, "accuracy": 0.82, "epsilon": 1.5, "delta": 1e-5, "participants": 4}
	]`
	result, err := acc.Import(strings.NewReader(history))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	assert.Empty(t, result.Skipped)

	left, err := acc.Remaining()
	require.NoError(t, err)
	assert.InDelta(t, 4.2, left, 1e-9)

	latest, err := acc.rounds.GetLatest()
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Round)
	assert.InDelta(t, 4.2, latest.RemainingBudget, 1e-9)
}

func TestAccountant_Import_Lines(t *testing.T) {
	acc := newTestAccountant(t, 2.0)

	history := `{"round": 1, "accuracy": 0.8, "epsilon": 1.0, "delta": 1e-5}
{"round": 1, "accuracy": 0.8, "epsilon": 1.0, "delta": 1e-5}
{"round": 2, "accuracy": 0.8, "epsilon": 1.5, "delta": 1e-5}
{"round": 3, "accuracy": 2.0, "epsilon": 0.1, "delta": 1e-5}
{"round": 4, "accuracy": 0.9, "epsilon": 0.5, "delta": 1e-5}
`
	result, err := acc.Import(strings.NewReader(history))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	require.Len(t, result.Skipped, 3)
	assert.ErrorIs(t, result.Skipped[1], ErrBudgetExhausted)
	assert.ErrorIs(t, result.Skipped[2], ErrInvalidReport)

	left, err := acc.Remaining()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, left, 1e-9)
}

func TestAccountant_Import_Malformed(t *testing.T) {
	acc := newTestAccountant(t, 6.0)

	_, err := acc.Import(strings.NewReader(`{"round": 1, "epsilon": 0.5}
{"round": `))
	require.Error(t, err)

	left, err := acc.Remaining()
	require.NoError(t, err)
	assert.InDelta(t, 6.0, left, 1e-9)
}

package privacy

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/dto"
	"sentinel/internal/logger"
	"sentinel/internal/repository"
	"sentinel/internal/repository/sqlite"
)

func newTestAccountant(t *testing.T, ceiling float64) *Accountant {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "privacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewAccountant(ceiling, sqlite.NewRoundRepository(db), logger.NewConsoleLogger(io.Discard))
}

func TestAccountant_RecordRound(t *testing.T) {
	acc := newTestAccountant(t, 6.0)

	round, err := acc.RecordRound(dto.RoundReport{Round: 1, Accuracy: 0.82, Epsilon: 1.5, Delta: 1e-5, Participants: 4})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, round.RemainingBudget, 1e-9)

	round, err = acc.RecordRound(dto.RoundReport{Round: 2, Accuracy: 0.86, Epsilon: 0.3, Delta: 1e-5})
	require.NoError(t, err)
	assert.InDelta(t, 4.2, round.RemainingBudget, 1e-9)

	left, err := acc.Remaining()
	require.NoError(t, err)
	assert.InDelta(t, 4.2, left, 1e-9)
	assert.Equal(t, 6.0, acc.Ceiling())
}

func TestAccountant_RecordRound_Exhausted(t *testing.T) {
	acc := newTestAccountant(t, 1.0)

	_, err := acc.RecordRound(dto.RoundReport{Round: 1, Epsilon: 0.7, Delta: 1e-5})
	require.NoError(t, err)

	_, err = acc.RecordRound(dto.RoundReport{Round: 2, Epsilon: 0.5, Delta: 1e-5})
	assert.ErrorIs(t, err, ErrBudgetExhausted)

	// Spending exactly the remainder is allowed and leaves zero.
	round, err := acc.RecordRound(dto.RoundReport{Round: 2, Epsilon: 0.3, Delta: 1e-5})
	require.NoError(t, err)
	assert.InDelta(t, 0, round.RemainingBudget, 1e-9)
}

func TestAccountant_RecordRound_OutOfOrder(t *testing.T) {
	acc := newTestAccountant(t, 6.0)

	_, err := acc.RecordRound(dto.RoundReport{Round: 5, Epsilon: 1.0, Delta: 1e-5})
	require.NoError(t, err)

	_, err = acc.RecordRound(dto.RoundReport{Round: 3, Epsilon: 1.0, Delta: 1e-5})
	assert.ErrorIs(t, err, ErrStaleRound)

	_, err = acc.RecordRound(dto.RoundReport{Round: 6, Epsilon: 1.0, Delta: 1e-5})
	require.NoError(t, err)

	rounds, err := acc.rounds.GetAll(0)
	require.NoError(t, err)
	require.Len(t, rounds, 2)

	left, err := acc.Remaining()
	require.NoError(t, err)
	assert.Equal(t, 6, rounds[0].Round)
	assert.InDelta(t, left, rounds[0].RemainingBudget, 1e-9)
	assert.InDelta(t, 4.0, left, 1e-9)
}

func TestAccountant_RecordRound_Duplicate(t *testing.T) {
	acc := newTestAccountant(t, 6.0)

	_, err := acc.RecordRound(dto.RoundReport{Round: 1, Epsilon: 0.1})
	require.NoError(t, err)

	_, err = acc.RecordRound(dto.RoundReport{Round: 1, Epsilon: 0.1})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestAccountant_RecordRound_Invalid(t *testing.T) {
	acc := newTestAccountant(t, 6.0)

	reports := []dto.RoundReport{
		{Round: 0, Epsilon: 0.1},
		{Round: 1, Epsilon: -0.1},
		{Round: 1, Epsilon: 0.1, Delta: 1},
		{Round: 1, Epsilon: 0.1, Accuracy: 1.2},
		{Round: 1, Epsilon: 0.1, Participants: -3},
	}
	for _, report := range reports {
		_, err := acc.RecordRound(report)
		assert.ErrorIs(t, err, ErrInvalidReport, "%+v", report)
	}
}

package privacy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"sentinel/internal/dto"
	"sentinel/internal/logger"
	"sentinel/internal/model"
	"sentinel/internal/repository"
)

var (
	// ErrBudgetExhausted is returned when a round would spend more epsilon than remains.
	ErrBudgetExhausted = errors.New("privacy budget exhausted")
	// ErrInvalidReport is returned for out-of-range round reports.
	ErrInvalidReport = errors.New("invalid round report")
	// ErrStaleRound is returned for a round numbered below the latest recorded round.
	ErrStaleRound = errors.New("round is older than the latest recorded round")
)

// Accountant tracks the differential-privacy budget spent across FL rounds
// using basic sequential composition: remaining = ceiling - sum(epsilon).
type Accountant struct {
	ceiling float64
	rounds  repository.RoundRepository
	logger  *logger.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewAccountant creates an Accountant with the given total epsilon budget.
func NewAccountant(ceiling float64, rounds repository.RoundRepository, logger *logger.Logger) *Accountant {
	return &Accountant{
		ceiling: ceiling,
		rounds:  rounds,
		logger:  logger,
		now:     time.Now,
	}
}

// Ceiling returns the total epsilon budget.
func (a *Accountant) Ceiling() float64 {
	return a.ceiling
}

// Remaining returns the epsilon budget still available.
func (a *Accountant) Remaining() (float64, error) {
	spent, err := a.rounds.SumEpsilon()
	if err != nil {
		return 0, err
	}
	return remaining(a.ceiling, spent), nil
}

// RecordRound validates a round report, charges its epsilon and stores it.
func (a *Accountant) RecordRound(report dto.RoundReport) (*model.Round, error) {
	if err := validateReport(report); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Rounds are recorded in order so the newest round carries the current remaining budget.
	latest, err := a.rounds.GetLatest()
	if err != nil {
		return nil, err
	}
	if latest != nil && report.Round < latest.Round {
		a.logger.Warning("Round %d rejected: round %d already recorded", report.Round, latest.Round)
		return nil, fmt.Errorf("round %d: %w", report.Round, ErrStaleRound)
	}

	spent, err := a.rounds.SumEpsilon()
	if err != nil {
		return nil, err
	}

	left := a.ceiling - spent - report.Epsilon
	// Tolerate float rounding when a round spends exactly the rest of the budget.
	if left < -1e-9 {
		a.logger.Warning("Round %d rejected: epsilon %.4f exceeds remaining budget %.4f",
			report.Round, report.Epsilon, remaining(a.ceiling, spent))
		return nil, fmt.Errorf("round %d: %w", report.Round, ErrBudgetExhausted)
	}

	round := &model.Round{
		Round:           report.Round,
		Accuracy:        report.Accuracy,
		Participants:    report.Participants,
		Epsilon:         report.Epsilon,
		Delta:           report.Delta,
		RemainingBudget: remaining(left, 0),
		RecordedAt:      a.now().UTC(),
	}
	if err := a.rounds.Insert(round); err != nil {
		return nil, err
	}

	a.logger.Info("Recorded FL round %d: accuracy=%.3f epsilon=%.4f remaining=%.4f",
		round.Round, round.Accuracy, round.Epsilon, round.RemainingBudget)
	return round, nil
}

func validateReport(report dto.RoundReport) error {
	switch {
	case report.Round <= 0:
		return fmt.Errorf("round must be positive: %w", ErrInvalidReport)
	case report.Epsilon < 0:
		return fmt.Errorf("epsilon must not be negative: %w", ErrInvalidReport)
	case report.Delta < 0 || report.Delta >= 1:
		return fmt.Errorf("delta must be in [0, 1): %w", ErrInvalidReport)
	case report.Accuracy < 0 || report.Accuracy > 1:
		return fmt.Errorf("accuracy must be in [0, 1]: %w", ErrInvalidReport)
	case report.Participants < 0:
		return fmt.Errorf("participants must not be negative: %w", ErrInvalidReport)
	}
	return nil
}

func remaining(ceiling, spent float64) float64 {
	if left := ceiling - spent; left > 0 {
		return left
	}
	return 0
}

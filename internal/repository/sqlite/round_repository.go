package sqlite

import (
	"database/sql"
	"fmt"

	"sentinel/internal/model"
	"sentinel/internal/repository"
)

// RoundRepository implements repository.RoundRepository for SQLite.
type RoundRepository struct {
	db *DB
}

// NewRoundRepository creates a new SQLite FL round repository.
func NewRoundRepository(db *DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// Insert stores a round report. Round numbers are unique.
func (r *RoundRepository) Insert(round *model.Round) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO fl_rounds (round, accuracy, participants, epsilon, delta, remaining_budget, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, round.Round, round.Accuracy, round.Participants, round.Epsilon, round.Delta, round.RemainingBudget, round.RecordedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("round %d: %w", round.Round, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

// GetLatest returns the round with the highest number, or nil when none are recorded.
func (r *RoundRepository) GetLatest() (*model.Round, error) {
	rounds, err := r.GetAll(1)
	if err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, nil
	}
	return &rounds[0], nil
}

// GetAll returns rounds newest first. A limit <= 0 returns every round.
func (r *RoundRepository) GetAll(limit int) ([]model.Round, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT round, accuracy, participants, epsilon, delta, remaining_budget, recorded_at
		FROM fl_rounds ORDER BY round DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []model.Round{}
	for rows.Next() {
		var round model.Round
		if err := rows.Scan(&round.Round, &round.Accuracy, &round.Participants, &round.Epsilon, &round.Delta,
			&round.RemainingBudget, &round.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// SumEpsilon returns the total epsilon spent across all recorded rounds.
func (r *RoundRepository) SumEpsilon() (float64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var total sql.NullFloat64
	if err := r.db.Conn().QueryRow(`SELECT SUM(epsilon) FROM fl_rounds`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum epsilon: %w", err)
	}
	return total.Float64, nil
}

package sqlite

import (
	"fmt"
	"time"

	"sentinel/internal/model"
	"sentinel/internal/repository"
)

// AnomalyRepository implements repository.AnomalyRepository for SQLite.
type AnomalyRepository struct {
	db *DB
}

// NewAnomalyRepository creates a new SQLite anomaly repository.
func NewAnomalyRepository(db *DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// Insert adds a new anomaly record.
func (r *AnomalyRepository) Insert(a *model.Anomaly) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO anomalies (id, type, confidence, severity, device_id, description, image_url, upload_id, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Type, a.Confidence, a.Severity, a.DeviceID, a.Description, a.ImageURL, a.UploadID, a.DetectedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("anomaly %s: %w", a.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}
	return nil
}

// GetRecent returns the most recent anomalies, newest first.
func (r *AnomalyRepository) GetRecent(limit int) ([]model.Anomaly, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, type, confidence, severity, device_id, description, image_url, upload_id, detected_at
		FROM anomalies ORDER BY detected_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	anomalies := []model.Anomaly{}
	for rows.Next() {
		var a model.Anomaly
		if err := rows.Scan(&a.ID, &a.Type, &a.Confidence, &a.Severity, &a.DeviceID, &a.Description,
			&a.ImageURL, &a.UploadID, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// CountSince counts anomalies detected at or after since.
func (r *AnomalyRepository) CountSince(since time.Time) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM anomalies WHERE detected_at >= ?`, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}
	return count, nil
}

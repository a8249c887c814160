package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"sentinel/internal/model"
	"sentinel/internal/repository"
)

// UploadRepository implements repository.UploadRepository for SQLite.
type UploadRepository struct {
	db *DB
}

// NewUploadRepository creates a new SQLite upload repository.
func NewUploadRepository(db *DB) *UploadRepository {
	return &UploadRepository{db: db}
}

const uploadColumns = `id, filename, original_name, mime_type, size, status, analysis_results, error, uploaded_by, image_url, uploaded_at`

// Insert adds a new upload record to the database.
func (r *UploadRepository) Insert(upload *model.UploadedFile) error {
	results, err := encodeResults(upload.AnalysisResults)
	if err != nil {
		return err
	}

	r.db.Lock()
	defer r.db.Unlock()

	_, err = r.db.Conn().Exec(`
		INSERT INTO uploads (`+uploadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, upload.ID, upload.Filename, upload.OriginalName, upload.MimeType, upload.Size, string(upload.Status),
		results, upload.Error, upload.UploadedBy, upload.ImageURL, upload.UploadedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("upload %s: %w", upload.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

// GetByID retrieves an upload by its ID.
func (r *UploadRepository) GetByID(id string) (*model.UploadedFile, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+uploadColumns+` FROM uploads WHERE id = ?`, id)
	upload, err := scanUpload(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

// GetAll retrieves uploads, newest first. A limit <= 0 returns every record.
func (r *UploadRepository) GetAll(limit int) ([]model.UploadedFile, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT ` + uploadColumns + ` FROM uploads ORDER BY uploaded_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	uploads := []model.UploadedFile{}
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, *upload)
	}
	return uploads, rows.Err()
}

// UpdateStatus moves an upload to a new status, storing results or an error message.
func (r *UploadRepository) UpdateStatus(id string, status model.UploadStatus, results *model.AnomalyResult, errMsg string) error {
	encoded, err := encodeResults(results)
	if err != nil {
		return err
	}

	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().Exec(`
		UPDATE uploads SET status = ?, analysis_results = COALESCE(?, analysis_results), error = ?
		WHERE id = ?
	`, string(status), encoded, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update upload status: %w", err)
	}
	return requireAffected(res, id)
}

// Delete removes an upload record.
func (r *UploadRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().Exec(`DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return requireAffected(res, id)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUpload(s scanner) (*model.UploadedFile, error) {
	var (
		upload  model.UploadedFile
		status  string
		results sql.NullString
	)
	err := s.Scan(&upload.ID, &upload.Filename, &upload.OriginalName, &upload.MimeType, &upload.Size, &status,
		&results, &upload.Error, &upload.UploadedBy, &upload.ImageURL, &upload.UploadedAt)
	if err != nil {
		return nil, err
	}
	upload.Status = model.UploadStatus(status)

	if results.Valid && results.String != "" {
		var decoded model.AnomalyResult
		if err := json.Unmarshal([]byte(results.String), &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode analysis results: %w", err)
		}
		upload.AnalysisResults = &decoded
	}
	return &upload, nil
}

func encodeResults(results *model.AnomalyResult) (interface{}, error) {
	if results == nil {
		return nil, nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis results: %w", err)
	}
	return string(data), nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, repository.ErrNotFound)
	}
	return nil
}

package repository

import (
	"errors"
	"time"

	"sentinel/internal/model"
)

// ErrNotFound is returned by update and delete operations on a missing record.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when inserting a record whose key already exists.
var ErrDuplicate = errors.New("record already exists")

// UploadRepository defines the interface for uploaded file records.
type UploadRepository interface {
	// Create operations
	Insert(upload *model.UploadedFile) error

	// Read operations
	GetByID(id string) (*model.UploadedFile, error)
	GetAll(limit int) ([]model.UploadedFile, error)

	// Update operations
	UpdateStatus(id string, status model.UploadStatus, results *model.AnomalyResult, errMsg string) error

	// Delete operations
	Delete(id string) error
}

// AnomalyRepository defines the interface for anomaly events.
type AnomalyRepository interface {
	Insert(anomaly *model.Anomaly) error
	GetRecent(limit int) ([]model.Anomaly, error)
	CountSince(since time.Time) (int, error)
}

// RoundRepository defines the interface for federated-learning round reports.
type RoundRepository interface {
	Insert(round *model.Round) error
	GetLatest() (*model.Round, error)
	GetAll(limit int) ([]model.Round, error)
	SumEpsilon() (float64, error)
}

// DeviceRepository defines the interface for edge device presence.
type DeviceRepository interface {
	Upsert(device *model.Device) error
	GetAll() ([]model.Device, error)
	Count() (int, error)
	CountSeenSince(since time.Time) (int, error)
}

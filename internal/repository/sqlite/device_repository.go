package sqlite

import (
	"fmt"
	"time"

	"sentinel/internal/model"
)

// DeviceRepository implements repository.DeviceRepository for SQLite.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new SQLite device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert records a device, refreshing its last-seen time. An empty name keeps the stored one.
func (r *DeviceRepository) Upsert(d *model.Device) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO devices (id, name, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_seen = excluded.last_seen,
			name = CASE WHEN excluded.name = '' THEN devices.name ELSE excluded.name END
	`, d.ID, d.Name, d.LastSeen.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// GetAll returns all devices ordered by id.
func (r *DeviceRepository) GetAll() ([]model.Device, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT id, name, last_seen FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []model.Device{}
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.Name, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Count returns the number of known devices.
func (r *DeviceRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// CountSeenSince counts devices with a heartbeat at or after since.
func (r *DeviceRepository) CountSeenSince(since time.Time) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM devices WHERE last_seen >= ?`, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count online devices: %w", err)
	}
	return count, nil
}

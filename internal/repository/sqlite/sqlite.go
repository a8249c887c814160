package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		original_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		analysis_results TEXT,
		error TEXT DEFAULT '',
		uploaded_by TEXT DEFAULT '',
		image_url TEXT DEFAULT '',
		uploaded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS anomalies (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		severity TEXT NOT NULL,
		device_id TEXT DEFAULT '',
		description TEXT DEFAULT '',
		image_url TEXT DEFAULT '',
		upload_id TEXT DEFAULT '',
		detected_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fl_rounds (
		round INTEGER PRIMARY KEY,
		accuracy REAL DEFAULT 0,
		participants INTEGER DEFAULT 0,
		epsilon REAL NOT NULL,
		delta REAL NOT NULL,
		remaining_budget REAL NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		last_seen DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_anomalies_detected_at ON anomalies(detected_at);
	CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices(last_seen);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

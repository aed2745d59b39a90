// Package store is the persistence gateway: a typed, tenant-scoped API
// over the monitor's SQLite database. Every query that touches an
// owner-scoped table takes the tenant as its first argument after the
// context; sample tables are scoped through their sensor instead.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or belongs to another
// tenant.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness rule
// (duplicate name, duplicate device IP, device already monitored).
var ErrConflict = errors.New("already exists")

// ErrProfileInUse is returned when deleting a VPN profile that a device
// still references.
var ErrProfileInUse = errors.New("vpn profile in use")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Foreign keys are enforced on every connection; the busy
// timeout keeps concurrent workers from tripping on SQLITE_BUSY.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// isConstraintViolation matches SQLite constraint errors without binding to
// driver-internal error types.
func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS vpn_profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	config_data TEXT NOT NULL,
	check_ip TEXT NOT NULL DEFAULT '',
	is_default INTEGER NOT NULL DEFAULT 0,
	UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	client_name TEXT NOT NULL,
	ip_address TEXT NOT NULL UNIQUE,
	mac_address TEXT NOT NULL DEFAULT '',
	node TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	credential_id INTEGER REFERENCES credentials (id) ON DELETE SET NULL,
	is_maestro INTEGER NOT NULL DEFAULT 0,
	maestro_id TEXT REFERENCES devices (id) ON DELETE SET NULL,
	vpn_profile_id INTEGER REFERENCES vpn_profiles (id)
);

CREATE TABLE IF NOT EXISTS monitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	device_id TEXT NOT NULL UNIQUE REFERENCES devices (id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS sensors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	monitor_id INTEGER NOT NULL REFERENCES monitors (id) ON DELETE CASCADE,
	sensor_type TEXT NOT NULL,
	name TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS ping_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_id INTEGER NOT NULL REFERENCES sensors (id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	status TEXT NOT NULL,
	latency_ms REAL
);

CREATE TABLE IF NOT EXISTS ethernet_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_id INTEGER NOT NULL REFERENCES sensors (id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	status TEXT NOT NULL,
	speed TEXT NOT NULL DEFAULT '',
	rx_bitrate TEXT NOT NULL DEFAULT '0',
	tx_bitrate TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS notification_channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT '{}',
	UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS alert_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_id INTEGER NOT NULL REFERENCES sensors (id) ON DELETE CASCADE,
	channel_id INTEGER NOT NULL REFERENCES notification_channels (id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ping_results_sensor ON ping_results (sensor_id, id);
CREATE INDEX IF NOT EXISTS idx_ethernet_results_sensor ON ethernet_results (sensor_id, id);
CREATE INDEX IF NOT EXISTS idx_sensors_monitor ON sensors (monitor_id);
`

// Package registry persists discovered devices and scan history in
// SQLite, so the hub can answer device queries between rescans and
// across restarts.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS devices (
  uuid TEXT PRIMARY KEY,
  ip TEXT NOT NULL,
  name TEXT NOT NULL,
  coordinator_uuid TEXT NOT NULL,
  model_name TEXT NOT NULL DEFAULT '',
  model_number TEXT NOT NULL DEFAULT '',
  serial_number TEXT NOT NULL DEFAULT '',
  software_version TEXT NOT NULL DEFAULT '',
  first_seen_at TEXT NOT NULL DEFAULT (datetime('now')),
  last_seen_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_devices_coordinator ON devices(coordinator_uuid);

CREATE TABLE IF NOT EXISTS scans (
  scan_id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  device_count INTEGER NOT NULL,
  group_count INTEGER NOT NULL
);
`

// Record is one persisted device row.
type Record struct {
	UUID            string
	IP              string
	Name            string
	CoordinatorUUID string
	ModelName       string
	ModelNumber     string
	SerialNumber    string
	SoftwareVersion string
	FirstSeenAt     string
	LastSeenAt      string
}

// Scan summarizes one completed discovery pass.
type Scan struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	DeviceCount int
	GroupCount  int
}

// ErrNotFound is returned when a device UUID is not in the registry.
var ErrNotFound = errors.New("device not found in registry")

// Store is the SQLite-backed registry. A single pooled connection in WAL
// mode is enough; writes happen once per scan.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the registry database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("registry path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertDevice inserts or refreshes one device row.
func (s *Store) UpsertDevice(rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO devices (uuid, ip, name, coordinator_uuid, model_name, model_number, serial_number, software_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
		  ip = excluded.ip,
		  name = excluded.name,
		  coordinator_uuid = excluded.coordinator_uuid,
		  model_name = CASE WHEN excluded.model_name != '' THEN excluded.model_name ELSE devices.model_name END,
		  model_number = CASE WHEN excluded.model_number != '' THEN excluded.model_number ELSE devices.model_number END,
		  serial_number = CASE WHEN excluded.serial_number != '' THEN excluded.serial_number ELSE devices.serial_number END,
		  software_version = CASE WHEN excluded.software_version != '' THEN excluded.software_version ELSE devices.software_version END,
		  last_seen_at = datetime('now')
	`, rec.UUID, rec.IP, rec.Name, rec.CoordinatorUUID, rec.ModelName, rec.ModelNumber, rec.SerialNumber, rec.SoftwareVersion)
	return err
}

// GetDevice fetches one device by UUID.
func (s *Store) GetDevice(uuid string) (Record, error) {
	row := s.db.QueryRow(`
		SELECT uuid, ip, name, coordinator_uuid, model_name, model_number, serial_number, software_version, first_seen_at, last_seen_at
		FROM devices WHERE uuid = ?
	`, uuid)
	var rec Record
	err := row.Scan(&rec.UUID, &rec.IP, &rec.Name, &rec.CoordinatorUUID,
		&rec.ModelName, &rec.ModelNumber, &rec.SerialNumber, &rec.SoftwareVersion,
		&rec.FirstSeenAt, &rec.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListDevices returns all known devices ordered by name.
func (s *Store) ListDevices() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT uuid, ip, name, coordinator_uuid, model_name, model_number, serial_number, software_version, first_seen_at, last_seen_at
		FROM devices ORDER BY name, uuid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UUID, &rec.IP, &rec.Name, &rec.CoordinatorUUID,
			&rec.ModelName, &rec.ModelNumber, &rec.SerialNumber, &rec.SoftwareVersion,
			&rec.FirstSeenAt, &rec.LastSeenAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneNotSeenSince removes devices whose last sighting predates cutoff.
func (s *Store) PruneNotSeenSince(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM devices WHERE last_seen_at < ?`, cutoff.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordScan stores a scan summary and returns its generated ID.
func (s *Store) RecordScan(started, finished time.Time, deviceCount, groupCount int) (Scan, error) {
	scan := Scan{
		ID:          uuid.New().String(),
		StartedAt:   started,
		FinishedAt:  finished,
		DeviceCount: deviceCount,
		GroupCount:  groupCount,
	}
	_, err := s.db.Exec(`
		INSERT INTO scans (scan_id, started_at, finished_at, device_count, group_count)
		VALUES (?, ?, ?, ?, ?)
	`, scan.ID, scan.StartedAt.UTC().Format(time.RFC3339), scan.FinishedAt.UTC().Format(time.RFC3339), deviceCount, groupCount)
	if err != nil {
		return Scan{}, err
	}
	return scan, nil
}

// LastScan returns the most recent scan summary, or ErrNotFound when no
// scan has completed yet.
func (s *Store) LastScan() (Scan, error) {
	row := s.db.QueryRow(`
		SELECT scan_id, started_at, finished_at, device_count, group_count
		FROM scans ORDER BY finished_at DESC LIMIT 1
	`)
	var scan Scan
	var started, finished string
	err := row.Scan(&scan.ID, &started, &finished, &scan.DeviceCount, &scan.GroupCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, ErrNotFound
	}
	if err != nil {
		return Scan{}, err
	}
	scan.StartedAt, _ = time.Parse(time.RFC3339, started)
	scan.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	return scan, nil
}

// Package store persists particle snapshots to SQLite so downstream tooling
// can replay or analyse a localization run after the fact.
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/position.report/internal/mcl"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the snapshot database.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the SQLite database at path and applies any pending
// schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	s := &Store{DB: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies the embedded migrations up to the latest version.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: m is not closed here because that would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// CreateRun registers a new localization run and returns its identifier.
func (s *Store) CreateRun(startedAt time.Time) (string, error) {
	runID := uuid.NewString()
	_, err := s.Exec(
		`INSERT INTO runs (run_id, started_unix_nanos) VALUES (?, ?)`,
		runID, startedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// RecordSnapshot persists one particle snapshot (pose + weight, original
// order) for a run.
func (s *Store) RecordSnapshot(runID string, takenAt time.Time, scansProcessed int64, particles []mcl.Particle) error {
	blob, err := json.Marshal(particles)
	if err != nil {
		return fmt.Errorf("marshal particles: %w", err)
	}
	_, err = s.Exec(
		`INSERT INTO particle_snapshots (run_id, taken_unix_nanos, scans_processed, particles_json)
		 VALUES (?, ?, ?, ?)`,
		runID, takenAt.UnixNano(), scansProcessed, string(blob),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent particle snapshot of a run, or
// (nil, nil) when the run has no snapshots yet.
func (s *Store) LatestSnapshot(runID string) ([]mcl.Particle, error) {
	var blob string
	err := s.QueryRow(
		`SELECT particles_json FROM particle_snapshots
		 WHERE run_id = ? ORDER BY taken_unix_nanos DESC, snapshot_id DESC LIMIT 1`,
		runID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	var particles []mcl.Particle
	if err := json.Unmarshal([]byte(blob), &particles); err != nil {
		return nil, fmt.Errorf("unmarshal particles: %w", err)
	}
	return particles, nil
}

// SnapshotCount returns the number of snapshots recorded for a run.
func (s *Store) SnapshotCount(runID string) (int, error) {
	var n int
	err := s.QueryRow(
		`SELECT COUNT(*) FROM particle_snapshots WHERE run_id = ?`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

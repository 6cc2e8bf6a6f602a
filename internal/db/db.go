package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/reel/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/reel.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.reel.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Catalog and trajectory exports land here by default
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "reel.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS content (
		  id             TEXT PRIMARY KEY,
		  title          TEXT NOT NULL,
		  year           INTEGER,
		  runtime        INTEGER,
		  language       TEXT NOT NULL,
		  genres_json    TEXT NOT NULL,
		  overview       TEXT,
		  director       TEXT,
		  kind           TEXT,
		  poster_url     TEXT,
		  streaming_url  TEXT,
		  tmdb_id        TEXT,
		  regions_json   TEXT,
		  energy         REAL NOT NULL,
		  valence        REAL NOT NULL,
		  arousal        REAL NOT NULL,
		  cognitive_load REAL,
		  created_at     INTEGER NOT NULL,
		  updated_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_content_language
		ON content(language);

		CREATE TABLE IF NOT EXISTS trajectories (
		  id                TEXT PRIMARY KEY,
		  request_id        TEXT NOT NULL UNIQUE,
		  session_id        TEXT NOT NULL,
		  user_id           TEXT,
		  mood              TEXT NOT NULL,
		  goal              TEXT NOT NULL,
		  status            TEXT NOT NULL,
		  error_code        TEXT,
		  top_content_id    TEXT,
		  over_budget       INTEGER NOT NULL DEFAULT 0,
		  parent_request_id TEXT,
		  refinement_count  INTEGER NOT NULL DEFAULT 0,
		  latency_ms        INTEGER NOT NULL,
		  data_json         TEXT NOT NULL,
		  created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_trajectories_created
		ON trajectories(created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_trajectories_session
		ON trajectories(session_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_trajectories_status
		ON trajectories(status, created_at DESC);

		CREATE TABLE IF NOT EXISTS feedback (
		  id           TEXT PRIMARY KEY,
		  request_id   TEXT NOT NULL REFERENCES trajectories(request_id) ON DELETE CASCADE,
		  content_id   TEXT,
		  interaction  TEXT NOT NULL,
		  satisfaction REAL NOT NULL,
		  data_json    TEXT NOT NULL,
		  created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_feedback_request
		ON feedback(request_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_feedback_content
		ON feedback(content_id)
		WHERE content_id IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// Package db provides SQLite database access for the local search index.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/quartzchat/feedline/internal/logging"
)

// Options configures a database connection.
type Options struct {
	// MaxConnections is the maximum number of open connections.
	MaxConnections int

	// BusyTimeout is how long SQLite waits for a locked database.
	BusyTimeout time.Duration
}

// DefaultOptions returns the default connection options.
func DefaultOptions() Options {
	return Options{
		MaxConnections: 10,
		BusyTimeout:    5 * time.Second,
	}
}

// DB wraps a SQLite connection pool.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// Open opens the database at the given path, creating it if needed.
func Open(path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return open("file:"+path, opts)
}

// OpenInMemory opens an in-memory database, used in tests.
func OpenInMemory() (*DB, error) {
	return open("file::memory:?cache=shared", DefaultOptions())
}

func open(dsn string, opts Options) (*DB, error) {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = DefaultOptions().MaxConnections
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(opts.MaxConnections)

	db := &DB{
		DB:     sqlDB,
		logger: logging.Component("db"),
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// migrations are applied in order; user_version tracks progress.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS room_events (
		event_id   TEXT PRIMARY KEY,
		room_id    TEXT NOT NULL,
		sender     TEXT NOT NULL,
		type       TEXT NOT NULL,
		origin_ts  INTEGER NOT NULL,
		content_json TEXT,
		decrypted  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_room_events_room_ts
		ON room_events (room_id, origin_ts, event_id)`,
}

// MigrateUp applies pending schema migrations.
// Returns the number of migrations applied.
func (db *DB) MigrateUp(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	applied := 0
	for i := version; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return applied, fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return applied, fmt.Errorf("failed to bump schema version: %w", err)
		}
		applied++
	}

	if applied > 0 {
		db.logger.Debug().Int("applied", applied).Msg("schema migrations applied")
	}
	return applied, nil
}

// Transaction runs fn inside a transaction, committing on nil error.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Warn().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

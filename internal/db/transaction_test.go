package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestWriteTxRetriesOnLockedDatabase(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	attempts := 0

	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWriteTxStopsOnNonRetryableError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	attempts := 0

	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWriteTxGivesUpAfterMaxAttempts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	attempts := 0

	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		attempts++
		return errors.New("database is busy")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != writeRetryAttempts {
		t.Fatalf("expected %d attempts, got %d", writeRetryAttempts, attempts)
	}
}

func TestWriteTxHonorsCancelledContext(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		t.Fatal("fn should not run with a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	applied, err := database.MigrateUp(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if applied == 0 {
		t.Fatal("expected migrations to apply on fresh database")
	}

	applied, err = database.MigrateUp(ctx)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no migrations on second run, got %d", applied)
	}
}

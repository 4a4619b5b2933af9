package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Under WAL, writes contend only with other writers. Concurrent batch
// imports occasionally hit SQLITE_BUSY; a short doubling backoff absorbs
// that without surfacing errors to the ingest path.
const (
	writeRetryAttempts = 3
	writeRetryBackoff  = 50 * time.Millisecond
)

// WriteTx runs fn inside a transaction, retrying when another writer holds
// the database locked. Context cancellation stops the retries; all other
// errors are returned as-is on the first occurrence.
func (db *DB) WriteTx(ctx context.Context, fn func(*sql.Tx) error) error {
	backoff := writeRetryBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := db.Transaction(ctx, fn)
		if err == nil || attempt >= writeRetryAttempts || !retryableWriteError(err) {
			return err
		}

		db.logger.Debug().Err(err).Int("attempt", attempt).Msg("database locked, retrying write")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

// retryableWriteError reports whether the error is a transient lock that a
// later attempt can succeed past.
func retryableWriteError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}

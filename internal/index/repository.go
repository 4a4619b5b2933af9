// Package index implements the local search index backing encrypted-room
// feeds: a store of locally decrypted events served without network fetch.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quartzchat/feedline/internal/db"
	"github.com/quartzchat/feedline/internal/models"
)

// Event repository errors.
var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
)

// EventRepository handles persistence of locally decrypted room events.
type EventRepository struct {
	db *db.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(database *db.DB) *EventRepository {
	return &EventRepository{db: database}
}

// Append stores a decrypted event. Appending an already-stored event ID is
// a no-op, so re-decryption passes stay idempotent.
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	if event == nil || event.ID == "" || event.RoomID == "" || event.Type == "" {
		return ErrInvalidEvent
	}

	event.Normalize()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
		event.OriginServerTS = event.Timestamp.UnixMilli()
	}

	var contentJSON *string
	if len(event.Content) > 0 {
		s := string(event.Content)
		contentJSON = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO room_events (
			event_id, room_id, sender, type, origin_ts, content_json, decrypted
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.RoomID,
		event.Sender,
		string(event.Type),
		event.OriginServerTS,
		contentJSON,
		boolToInt(event.Decrypted),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// AppendBatch stores a batch of decrypted events in one transaction.
func (r *EventRepository) AppendBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.WriteTx(ctx, func(tx *sql.Tx) error {
		for i := range events {
			event := events[i]
			if event.ID == "" || event.RoomID == "" || event.Type == "" {
				return ErrInvalidEvent
			}
			event.Normalize()

			var contentJSON *string
			if len(event.Content) > 0 {
				s := string(event.Content)
				contentJSON = &s
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO room_events (
					event_id, room_id, sender, type, origin_ts, content_json, decrypted
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				event.ID,
				event.RoomID,
				event.Sender,
				string(event.Type),
				event.OriginServerTS,
				contentJSON,
				boolToInt(event.Decrypted),
			); err != nil {
				return fmt.Errorf("failed to insert event %s: %w", event.ID, err)
			}
		}
		return nil
	})
}

// Get retrieves an event by ID.
func (r *EventRepository) Get(ctx context.Context, id string) (*models.Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT event_id, room_id, sender, type, origin_ts, content_json, decrypted
		FROM room_events WHERE event_id = ?
	`, id)

	return scanEvent(row)
}

// ListNewest retrieves the newest events for a room in ascending timeline
// order, up to limit. Used to populate the initial feed page.
func (r *EventRepository) ListNewest(ctx context.Context, roomID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, room_id, sender, type, origin_ts, content_json, decrypted
		FROM room_events
		WHERE room_id = ?
		ORDER BY origin_ts DESC, event_id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query newest events: %w", err)
	}
	defer rows.Close()

	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	reverseEvents(events)
	return events, nil
}

// ListBefore retrieves up to limit events strictly older than the
// (originTS, eventID) cursor, in ascending timeline order.
func (r *EventRepository) ListBefore(ctx context.Context, roomID string, originTS int64, eventID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, room_id, sender, type, origin_ts, content_json, decrypted
		FROM room_events
		WHERE room_id = ? AND (origin_ts, event_id) < (?, ?)
		ORDER BY origin_ts DESC, event_id DESC
		LIMIT ?
	`, roomID, originTS, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query older events: %w", err)
	}
	defer rows.Close()

	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	reverseEvents(events)
	return events, nil
}

// ListAfter retrieves up to limit events strictly newer than the
// (originTS, eventID) cursor, in ascending timeline order.
func (r *EventRepository) ListAfter(ctx context.Context, roomID string, originTS int64, eventID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, room_id, sender, type, origin_ts, content_json, decrypted
		FROM room_events
		WHERE room_id = ? AND (origin_ts, event_id) > (?, ?)
		ORDER BY origin_ts, event_id
		LIMIT ?
	`, roomID, originTS, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query newer events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// CountByRoom returns the number of indexed events for a room.
func (r *EventRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM room_events WHERE room_id = ?`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// DeleteByRoom removes all indexed events for a room (e.g. after leaving).
// Returns the number of events deleted.
func (r *EventRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM room_events WHERE room_id = ?`, roomID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete room events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var event models.Event
	var eventType string
	var contentJSON sql.NullString
	var decrypted int

	err := row.Scan(
		&event.ID,
		&event.RoomID,
		&event.Sender,
		&eventType,
		&event.OriginServerTS,
		&contentJSON,
		&decrypted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Type = models.EventType(eventType)
	event.Decrypted = decrypted != 0
	if contentJSON.Valid {
		event.Content = json.RawMessage(contentJSON.String)
	}
	event.Normalize()

	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func reverseEvents(events []models.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

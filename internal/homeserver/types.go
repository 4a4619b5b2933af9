package homeserver

import (
	"fmt"

	"github.com/quartzchat/feedline/internal/models"
)

// APIError is an error response from the client-server API.
type APIError struct {
	StatusCode int
	Code       string `json:"errcode"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("homeserver returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

// NotFound reports whether the error is an M_NOT_FOUND response.
func (e *APIError) NotFound() bool {
	return e.Code == "M_NOT_FOUND" || e.StatusCode == 404
}

// Forbidden reports whether the error is an M_FORBIDDEN response.
func (e *APIError) Forbidden() bool {
	return e.Code == "M_FORBIDDEN" || e.StatusCode == 403
}

type whoamiResponse struct {
	UserID string `json:"user_id"`
}

type filterResponse struct {
	FilterID string `json:"filter_id"`
}

type memberContent struct {
	Membership models.Membership `json:"membership"`
}

// MessagesPage is one window of a room's filtered history.
type MessagesPage struct {
	// Start is the token corresponding to the start of the chunk.
	Start string `json:"start"`

	// End is the token to pass as from on the next call. Absent when the
	// history is exhausted in the requested direction.
	End string `json:"end"`

	// Chunk holds the events, in the order the server returned them
	// (reverse-chronological for backwards pagination).
	Chunk []models.Event `json:"chunk"`
}

// SyncResponse is the subset of the /sync response the feed layer consumes.
type SyncResponse struct {
	NextBatch string    `json:"next_batch"`
	Rooms     SyncRooms `json:"rooms"`
}

// SyncRooms groups per-room sync data by membership bucket.
type SyncRooms struct {
	Join map[string]SyncJoinedRoom `json:"join"`
}

// SyncJoinedRoom is the timeline delta for one joined room.
type SyncJoinedRoom struct {
	Timeline SyncTimeline `json:"timeline"`
}

// SyncTimeline holds new timeline events and the token to fetch history
// preceding them.
type SyncTimeline struct {
	Events    []models.Event `json:"events"`
	Limited   bool           `json:"limited"`
	PrevBatch string         `json:"prev_batch"`
}

package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quartzchat/feedline/internal/events"
	"github.com/quartzchat/feedline/internal/models"
)

// TimelineSet is a live, filtered view of a room's timeline. Events are held
// in ascending timestamp order; live updates append at the newest edge and
// backwards pagination extends the oldest edge. A set is safe for concurrent
// use, but only one pagination may be in flight at a time.
type TimelineSet struct {
	room    models.Room
	purpose models.FilterPurpose
	def     models.FilterDefinition
	source  source
	pub     events.Publisher
	logger  zerolog.Logger

	mu         sync.Mutex
	events     []models.Event
	known      map[string]struct{}
	paginating bool
	closed     bool
}

func newTimelineSet(room models.Room, purpose models.FilterPurpose, def models.FilterDefinition, src source, pub events.Publisher, logger zerolog.Logger) *TimelineSet {
	return &TimelineSet{
		room:    room,
		purpose: purpose,
		def:     def,
		source:  src,
		pub:     pub,
		logger:  logger,
		known:   make(map[string]struct{}),
	}
}

// Room returns the room this feed was acquired for.
func (t *TimelineSet) Room() models.Room {
	return t.room
}

// Purpose returns the filter purpose the feed was acquired with.
func (t *TimelineSet) Purpose() models.FilterPurpose {
	return t.purpose
}

// Events returns a copy of the current timeline, oldest first.
func (t *TimelineSet) Events() []models.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.CloneEvents(t.events)
}

// Len returns the number of events currently in the timeline.
func (t *TimelineSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Closed reports whether the feed has been torn down.
func (t *TimelineSet) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Paginate fetches one more page of history in the given direction and
// reports whether any events were appended to the timeline. Overlapping
// calls fail with ErrAlreadyPaginating; a fetch that completes after Close
// is discarded without touching the timeline.
func (t *TimelineSet) Paginate(ctx context.Context, dir models.Direction, limit int) (bool, error) {
	if !dir.Valid() {
		return false, fmt.Errorf("invalid pagination direction %q", dir)
	}
	if limit <= 0 {
		return false, fmt.Errorf("pagination limit must be positive, got %d", limit)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, ErrFeedClosed
	}
	if t.paginating {
		t.mu.Unlock()
		return false, ErrAlreadyPaginating
	}
	t.paginating = true
	t.mu.Unlock()

	// The in-flight flag serializes source access, so the fetch runs
	// without holding the timeline lock.
	fetched, err := t.source.paginate(ctx, dir, limit)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.paginating = false

	if t.closed {
		// Torn down while the fetch was in flight. Drop the result.
		t.logger.Debug().
			Str("room_id", t.room.ID).
			Str("direction", string(dir)).
			Msg("Discarding pagination result for closed feed")
		return false, ErrFeedClosed
	}
	if err != nil {
		return false, err
	}

	appended := t.mergeLocked(fetched, dir)
	t.logger.Debug().
		Str("room_id", t.room.ID).
		Str("direction", string(dir)).
		Int("fetched", len(fetched)).
		Bool("appended", appended).
		Msg("Paginated feed")
	return appended, nil
}

// ApplyLiveEvents folds freshly synced events into the live edge of the
// timeline. Events that do not match the feed's filter or belong to another
// room are ignored, as are duplicates. Returns the number of events added.
func (t *TimelineSet) ApplyLiveEvents(incoming []models.Event) int {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}

	var added []models.Event
	for i := range incoming {
		event := incoming[i]
		if event.RoomID != t.room.ID {
			continue
		}
		if !t.def.Matches(&event) {
			continue
		}
		if _, seen := t.known[event.ID]; seen {
			continue
		}
		t.known[event.ID] = struct{}{}
		t.events = append(t.events, event)
		added = append(added, event)
	}
	t.mu.Unlock()

	if t.pub != nil {
		for i := range added {
			t.pub.Publish(&added[i])
		}
	}
	return len(added)
}

// Close tears the feed down. In-flight pagination results arriving after
// Close are discarded; further calls fail with ErrFeedClosed. Close is
// idempotent.
func (t *TimelineSet) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.logger.Debug().Str("room_id", t.room.ID).Msg("Closed feed")
}

// seed installs the initial page. Called by the controller before the set
// is handed out.
func (t *TimelineSet) seed(initial []models.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range initial {
		if _, seen := t.known[initial[i].ID]; seen {
			continue
		}
		t.known[initial[i].ID] = struct{}{}
		t.events = append(t.events, initial[i])
	}
}

// mergeLocked splices a fetched page into the timeline. Backwards pages
// extend the oldest edge, forward pages the newest. Duplicates are dropped.
// Caller holds t.mu.
func (t *TimelineSet) mergeLocked(fetched []models.Event, dir models.Direction) bool {
	var fresh []models.Event
	for i := range fetched {
		if _, seen := t.known[fetched[i].ID]; seen {
			continue
		}
		t.known[fetched[i].ID] = struct{}{}
		fresh = append(fresh, fetched[i])
	}
	if len(fresh) == 0 {
		return false
	}

	if dir == models.DirectionBackwards {
		t.events = append(fresh, t.events...)
		return true
	}

	// A forward page can race live events delivered while the fetch was in
	// flight, so it is spliced in at its chronological position instead of
	// blindly appended. Already-delivered events keep their relative order.
	at := len(t.events)
	last := fresh[len(fresh)-1]
	for at > 0 {
		prev := t.events[at-1]
		if prev.OriginServerTS < last.OriginServerTS ||
			(prev.OriginServerTS == last.OriginServerTS && prev.ID <= last.ID) {
			break
		}
		at--
	}
	merged := make([]models.Event, 0, len(t.events)+len(fresh))
	merged = append(merged, t.events[:at]...)
	merged = append(merged, fresh...)
	merged = append(merged, t.events[at:]...)
	t.events = merged
	return true
}

package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quartzchat/feedline/internal/db"
	"github.com/quartzchat/feedline/internal/logging"
	"github.com/quartzchat/feedline/internal/models"
)

// scanBatchSize is how many stored events one pagination step inspects
// while filtering for matches.
const scanBatchSize = 200

// Window is a cursor-bounded view over a room's indexed history. Both edges
// name the (origin_ts, event_id) keyset position of the outermost event the
// caller has already seen.
type Window struct {
	OldestTS int64
	OldestID string
	NewestTS int64
	NewestID string
}

// Empty reports whether the window has no edges yet.
func (w Window) Empty() bool {
	return w.OldestID == "" && w.NewestID == ""
}

// SearchIndex serves feed population and pagination from locally stored
// decrypted events, so encrypted rooms render without waiting on paginated
// network decryption.
type SearchIndex struct {
	repo   *EventRepository
	logger zerolog.Logger
}

// NewSearchIndex creates a search index over the given database.
func NewSearchIndex(database *db.DB) *SearchIndex {
	return &SearchIndex{
		repo:   NewEventRepository(database),
		logger: logging.Component("index"),
	}
}

// Repository exposes the underlying event repository for ingest paths.
func (s *SearchIndex) Repository() *EventRepository {
	return s.repo
}

// PopulateFileTimeline returns the newest pageSize events in the room that
// satisfy the filter, in ascending timeline order, together with the window
// spanning the stored positions it scanned. Only locally stored (already
// decrypted) events are consulted.
func (s *SearchIndex) PopulateFileTimeline(ctx context.Context, roomID string, filter models.FilterDefinition, pageSize int) ([]models.Event, Window, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	var window Window
	var matched []models.Event

	// Walk backwards from the newest stored event, keeping filter matches
	// until a full page is collected or history is exhausted.
	batch, err := s.repo.ListNewest(ctx, roomID, scanBatchSize)
	if err != nil {
		return nil, window, fmt.Errorf("failed to populate timeline: %w", err)
	}

	for {
		if len(batch) == 0 {
			break
		}

		if window.NewestID == "" {
			newest := batch[len(batch)-1]
			window.NewestTS = newest.OriginServerTS
			window.NewestID = newest.ID
		}

		// batch is ascending; scan newest-first and advance the window edge
		// only past events actually scanned, so an early page break never
		// skips unscanned matches.
		full := false
		for i := len(batch) - 1; i >= 0; i-- {
			window.OldestTS = batch[i].OriginServerTS
			window.OldestID = batch[i].ID
			if filter.Matches(&batch[i]) {
				matched = append(matched, batch[i])
				if len(matched) >= pageSize {
					full = true
					break
				}
			}
		}
		if full {
			break
		}

		batch, err = s.repo.ListBefore(ctx, roomID, window.OldestTS, window.OldestID, scanBatchSize)
		if err != nil {
			return nil, window, fmt.Errorf("failed to populate timeline: %w", err)
		}
	}

	reverseEvents(matched)
	s.logger.Debug().
		Str("room_id", roomID).
		Int("events", len(matched)).
		Msg("populated timeline from index")
	return matched, window, nil
}

// PaginateTimelineWindow extends the window in the given direction and
// returns up to limit additional filter matches in ascending timeline order,
// along with the advanced window. An empty result with a nil error means the
// stored history is exhausted in that direction.
func (s *SearchIndex) PaginateTimelineWindow(ctx context.Context, roomID string, filter models.FilterDefinition, window Window, dir models.Direction, limit int) ([]models.Event, Window, error) {
	if !dir.Valid() {
		return nil, window, fmt.Errorf("invalid pagination direction %q", dir)
	}
	if limit <= 0 {
		limit = 20
	}

	if window.Empty() {
		events, populated, err := s.PopulateFileTimeline(ctx, roomID, filter, limit)
		return events, populated, err
	}

	var matched []models.Event
	for len(matched) < limit {
		var batch []models.Event
		var err error

		if dir == models.DirectionBackwards {
			batch, err = s.repo.ListBefore(ctx, roomID, window.OldestTS, window.OldestID, scanBatchSize)
		} else {
			batch, err = s.repo.ListAfter(ctx, roomID, window.NewestTS, window.NewestID, scanBatchSize)
		}
		if err != nil {
			return nil, window, fmt.Errorf("failed to paginate window: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		if dir == models.DirectionBackwards {
			// Scan newest-first; the window edge tracks the scan position so
			// an early page break never skips unscanned matches.
			for i := len(batch) - 1; i >= 0; i-- {
				window.OldestTS = batch[i].OriginServerTS
				window.OldestID = batch[i].ID
				if filter.Matches(&batch[i]) {
					matched = append(matched, batch[i])
					if len(matched) >= limit {
						break
					}
				}
			}
		} else {
			for i := range batch {
				window.NewestTS = batch[i].OriginServerTS
				window.NewestID = batch[i].ID
				if filter.Matches(&batch[i]) {
					matched = append(matched, batch[i])
					if len(matched) >= limit {
						break
					}
				}
			}
		}
	}

	if dir == models.DirectionBackwards {
		reverseEvents(matched)
	}
	return matched, window, nil
}

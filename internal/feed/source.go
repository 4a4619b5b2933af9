package feed

import (
	"context"
	"fmt"

	"github.com/quartzchat/feedline/internal/homeserver"
	"github.com/quartzchat/feedline/internal/index"
	"github.com/quartzchat/feedline/internal/models"
)

// MessageFetcher fetches a page of room history from the homeserver.
// Satisfied by homeserver.Client.
type MessageFetcher interface {
	Messages(ctx context.Context, roomID, from string, dir models.Direction, limit int, filterID string) (*homeserver.MessagesPage, error)
}

// source backs a timeline set with history. It is chosen once when the feed
// is acquired and never swapped afterwards. Sources are not safe for
// concurrent use; the timeline set serializes access with its in-flight flag.
type source interface {
	// populate fetches the initial page of the feed, oldest first.
	populate(ctx context.Context, pageSize int) ([]models.Event, error)
	// paginate fetches the next page in the given direction, oldest
	// first. An empty slice with a nil error means history is exhausted
	// in that direction.
	paginate(ctx context.Context, dir models.Direction, limit int) ([]models.Event, error)
}

// directSource pages through /messages on the homeserver with a server-side
// filter. It keeps one token per direction and latches when the server
// reports no further history, so exhausted directions stop issuing requests.
type directSource struct {
	fetcher  MessageFetcher
	roomID   string
	filterID string

	backToken     string
	forwardToken  string
	backExhausted bool
	fwdExhausted  bool
	populated     bool
}

func newDirectSource(fetcher MessageFetcher, roomID, filterID string) *directSource {
	return &directSource{fetcher: fetcher, roomID: roomID, filterID: filterID}
}

func (s *directSource) populate(ctx context.Context, pageSize int) ([]models.Event, error) {
	page, err := s.fetcher.Messages(ctx, s.roomID, "", models.DirectionBackwards, pageSize, s.filterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch initial timeline: %w", err)
	}

	// Backwards chunks arrive newest first; end points further into the
	// past and start marks the live edge for later forward pagination.
	s.backToken = page.End
	s.forwardToken = page.Start
	s.backExhausted = page.End == ""
	s.populated = true

	return reverseChronological(page.Chunk), nil
}

func (s *directSource) paginate(ctx context.Context, dir models.Direction, limit int) ([]models.Event, error) {
	if !s.populated {
		return nil, fmt.Errorf("timeline not populated")
	}

	switch dir {
	case models.DirectionBackwards:
		if s.backExhausted {
			return nil, nil
		}
		page, err := s.fetcher.Messages(ctx, s.roomID, s.backToken, dir, limit, s.filterID)
		if err != nil {
			return nil, fmt.Errorf("failed to paginate backwards: %w", err)
		}
		s.backToken = page.End
		if page.End == "" {
			s.backExhausted = true
		}
		return reverseChronological(page.Chunk), nil

	case models.DirectionForwards:
		if s.fwdExhausted {
			return nil, nil
		}
		page, err := s.fetcher.Messages(ctx, s.roomID, s.forwardToken, dir, limit, s.filterID)
		if err != nil {
			return nil, fmt.Errorf("failed to paginate forwards: %w", err)
		}
		s.forwardToken = page.End
		if page.End == "" {
			s.fwdExhausted = true
		}
		return models.CloneEvents(page.Chunk), nil

	default:
		return nil, fmt.Errorf("invalid pagination direction %q", dir)
	}
}

// indexSource pages through the local search index. Used for encrypted rooms,
// where server-side filters cannot see into event content. It does not latch
// on exhaustion: events decrypted after the last call show up on the next
// one, and the query is local anyway.
type indexSource struct {
	idx    *index.SearchIndex
	roomID string
	filter models.FilterDefinition
	window index.Window
}

func newIndexSource(idx *index.SearchIndex, roomID string, filter models.FilterDefinition) *indexSource {
	return &indexSource{idx: idx, roomID: roomID, filter: filter}
}

func (s *indexSource) populate(ctx context.Context, pageSize int) ([]models.Event, error) {
	events, window, err := s.idx.PopulateFileTimeline(ctx, s.roomID, s.filter, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to populate timeline from index: %w", err)
	}
	s.window = window
	return events, nil
}

func (s *indexSource) paginate(ctx context.Context, dir models.Direction, limit int) ([]models.Event, error) {
	events, window, err := s.idx.PaginateTimelineWindow(ctx, s.roomID, s.filter, s.window, dir, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to paginate index timeline: %w", err)
	}
	s.window = window
	return events, nil
}

// reverseChronological flips a newest-first chunk into ascending order.
func reverseChronological(chunk []models.Event) []models.Event {
	out := make([]models.Event, len(chunk))
	for i, e := range chunk {
		out[len(chunk)-1-i] = e
	}
	return out
}

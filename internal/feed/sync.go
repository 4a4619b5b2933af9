package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quartzchat/feedline/internal/homeserver"
	"github.com/quartzchat/feedline/internal/logging"
)

// SyncSource long-polls the homeserver for timeline deltas. Satisfied by
// homeserver.Client.
type SyncSource interface {
	Sync(ctx context.Context, since, filterID string, timeout time.Duration) (*homeserver.SyncResponse, error)
}

// Syncer pumps /sync timeline deltas into attached feeds. The sync stream
// owns the forward direction of every live timeline; feeds never paginate
// past the live edge themselves.
type Syncer struct {
	source   SyncSource
	filterID string
	timeout  time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	feeds map[*TimelineSet]struct{}
	since string
}

func NewSyncer(source SyncSource, filterID string, timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Syncer{
		source:   source,
		filterID: filterID,
		timeout:  timeout,
		logger:   logging.Component("syncer"),
		feeds:    make(map[*TimelineSet]struct{}),
	}
}

// Attach registers a feed to receive live events. Closed feeds are detached
// automatically on the next delivery.
func (s *Syncer) Attach(ts *TimelineSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[ts] = struct{}{}
}

// Detach removes a feed from live delivery.
func (s *Syncer) Detach(ts *TimelineSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.feeds, ts)
}

// Run long-polls /sync until the context is cancelled. A sync failure stops
// the loop and is returned to the caller; there are no automatic retries.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		since := s.since
		s.mu.Unlock()

		resp, err := s.source.Sync(ctx, since, s.filterID, s.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("sync failed: %w", err)
		}

		s.apply(resp)
	}
}

func (s *Syncer) apply(resp *homeserver.SyncResponse) {
	s.mu.Lock()
	s.since = resp.NextBatch
	feeds := make([]*TimelineSet, 0, len(s.feeds))
	for ts := range s.feeds {
		if ts.Closed() {
			delete(s.feeds, ts)
			continue
		}
		feeds = append(feeds, ts)
	}
	s.mu.Unlock()

	for roomID, room := range resp.Rooms.Join {
		if len(room.Timeline.Events) == 0 {
			continue
		}
		for _, ts := range feeds {
			if ts.Room().ID != roomID {
				continue
			}
			if added := ts.ApplyLiveEvents(room.Timeline.Events); added > 0 {
				s.logger.Debug().
					Str("room_id", roomID).
					Int("added", added).
					Msg("Applied live events to feed")
			}
		}
	}
}

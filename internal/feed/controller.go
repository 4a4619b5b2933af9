package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quartzchat/feedline/internal/events"
	"github.com/quartzchat/feedline/internal/index"
	"github.com/quartzchat/feedline/internal/logging"
	"github.com/quartzchat/feedline/internal/models"
)

const defaultPageSize = 20

// SessionStore is the slice of the homeserver session a controller needs.
// Satisfied by homeserver.Client; tests provide fakes.
type SessionStore interface {
	FilterCreator
	MessageFetcher

	// Whoami returns the user ID the access token belongs to.
	Whoami(ctx context.Context) (string, error)
	// Room returns the room's membership and encryption state as seen by
	// the given user.
	Room(ctx context.Context, roomID, userID string) (*models.Room, error)
}

// Options configures a Controller. Session is required; Index and Publisher
// are optional capabilities.
type Options struct {
	Session SessionStore

	// Index backs feeds for encrypted rooms, where server-side filters
	// cannot match event content. Without it encrypted rooms fall back to
	// direct pagination and will miss attachments in encrypted payloads.
	Index *index.SearchIndex

	// Publisher, when set, receives events appended to any live timeline.
	Publisher events.Publisher

	// PageSize is the initial population size and the filter's timeline
	// limit. Defaults to 20.
	PageSize int
}

// Controller acquires filtered feeds over rooms. It caches the session's
// user ID and the server filter IDs it creates, so repeated acquisitions
// for the same purpose reuse one filter.
type Controller struct {
	session  SessionStore
	index    *index.SearchIndex
	pub      events.Publisher
	pageSize int
	logger   zerolog.Logger

	mu      sync.Mutex
	userID  string
	filters *FilterCache
}

func NewController(opts Options) (*Controller, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("session store is required")
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Controller{
		session:  opts.Session,
		index:    opts.Index,
		pub:      opts.Publisher,
		pageSize: pageSize,
		logger:   logging.Component("feed"),
	}, nil
}

// AcquireFeed builds a filtered timeline set for the room's file events.
//
// Membership is checked first: an unjoined room fails with ErrNotJoined
// before any filter or history request is made. Filter creation and the
// initial history fetch failures are wrapped in ErrFeedUnavailable. For
// encrypted rooms with a local index configured, the feed is populated from
// the index instead of the homeserver; the source choice is fixed for the
// lifetime of the returned set.
func (c *Controller) AcquireFeed(ctx context.Context, roomID string) (*TimelineSet, error) {
	if err := models.ValidateRoomID(roomID); err != nil {
		return nil, err
	}

	userID, err := c.resolveUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	room, err := c.session.Room(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	if !room.Joined() {
		return nil, fmt.Errorf("%w: %s", ErrNotJoined, roomID)
	}

	def := models.FileEventsFilter(c.pageSize)

	var src source
	if room.Encrypted && c.index != nil {
		src = newIndexSource(c.index, roomID, def)
	} else {
		filterID, err := c.filterCache(userID).GetOrCreate(ctx, models.FilterPurposeFileEvents, def)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
		}
		src = newDirectSource(c.session, roomID, filterID)
	}

	ts := newTimelineSet(*room, models.FilterPurposeFileEvents, def, src, c.pub,
		logging.WithFeed(roomID, string(models.FilterPurposeFileEvents)))

	initial, err := src.populate(ctx, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	ts.seed(initial)

	c.logger.Info().
		Str("room_id", roomID).
		Bool("encrypted", room.Encrypted).
		Bool("indexed", room.Encrypted && c.index != nil).
		Int("initial_events", len(initial)).
		Msg("Acquired filtered feed")
	return ts, nil
}

// FilterID resolves the server-side filter ID used for file-event feeds,
// creating it on first use. Useful for passing to the sync stream so live
// deltas are filtered server-side too.
func (c *Controller) FilterID(ctx context.Context) (string, error) {
	userID, err := c.resolveUser(ctx)
	if err != nil {
		return "", err
	}
	return c.filterCache(userID).GetOrCreate(ctx, models.FilterPurposeFileEvents, models.FileEventsFilter(c.pageSize))
}

// resolveUser fetches and caches the session's user ID.
func (c *Controller) resolveUser(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != "" {
		return c.userID, nil
	}
	userID, err := c.session.Whoami(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve session user: %w", err)
	}
	c.userID = userID
	c.filters = NewFilterCache(c.session, userID)
	return userID, nil
}

// filterCache returns the per-user filter cache. resolveUser has always run
// first, so the cache exists.
func (c *Controller) filterCache(userID string) *FilterCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filters == nil {
		c.filters = NewFilterCache(c.session, userID)
	}
	return c.filters
}

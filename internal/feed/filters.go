package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/quartzchat/feedline/internal/models"
)

// FilterCreator uploads a filter definition and returns its server-side ID.
// Satisfied by homeserver.Client.
type FilterCreator interface {
	CreateFilter(ctx context.Context, userID string, def models.FilterDefinition) (string, error)
}

type filterEntry struct {
	mu sync.Mutex
	id string
}

// FilterCache holds one server filter ID per purpose for a single user.
// Concurrent callers for the same purpose serialize on the entry so only
// one creation request is in flight; everyone gets the same ID back.
type FilterCache struct {
	creator FilterCreator
	userID  string

	mu      sync.Mutex
	entries map[models.FilterPurpose]*filterEntry
}

func NewFilterCache(creator FilterCreator, userID string) *FilterCache {
	return &FilterCache{
		creator: creator,
		userID:  userID,
		entries: make(map[models.FilterPurpose]*filterEntry),
	}
}

// GetOrCreate returns the cached filter ID for purpose, creating it on the
// server on first use. A failed creation is not cached, so the next explicit
// call attempts again; there is no automatic retry.
func (c *FilterCache) GetOrCreate(ctx context.Context, purpose models.FilterPurpose, def models.FilterDefinition) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[purpose]
	if !ok {
		entry = &filterEntry{}
		c.entries[purpose] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.id != "" {
		return entry.id, nil
	}

	id, err := c.creator.CreateFilter(ctx, c.userID, def)
	if err != nil {
		return "", fmt.Errorf("failed to create %s filter: %w", purpose, err)
	}
	entry.id = id
	return id, nil
}

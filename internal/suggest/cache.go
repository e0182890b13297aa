// Package suggest keeps a small per-entity cache of routing suggestions,
// refreshed in the background.
package suggest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/raido/internal/routing"
)

// FetchFunc computes fresh suggestions for one entity.
type FetchFunc func(ctx context.Context, ownerID, entityID string) ([]routing.Suggestion, error)

type entry struct {
	ownerID     string
	suggestions []routing.Suggestion
	fetchedAt   time.Time
}

// Cache is a bounded suggestion cache keyed by entity id. When the bound is
// exceeded the oldest entry is evicted.
type Cache struct {
	fetch  FetchFunc
	max    int
	maxAge time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewCache creates a cache holding at most max entries, each refreshed in the
// background once older than maxAge.
func NewCache(fetch FetchFunc, max int, maxAge time.Duration, logger *slog.Logger) *Cache {
	if max <= 0 {
		max = 32
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &Cache{
		fetch:   fetch,
		max:     max,
		maxAge:  maxAge,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Get returns cached suggestions for an entity, if present. Entries are
// owner-scoped: a hit under a different owner is a miss.
func (c *Cache) Get(ownerID, entityID string) ([]routing.Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[entityID]
	if !ok || e.ownerID != ownerID {
		return nil, false
	}
	return e.suggestions, true
}

// Put stores suggestions for an entity, evicting the oldest entry when the
// bound is exceeded.
func (c *Cache) Put(ownerID, entityID string, suggestions []routing.Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entityID] = &entry{ownerID: ownerID, suggestions: suggestions, fetchedAt: time.Now()}
	for len(c.entries) > c.max {
		oldestID := ""
		var oldest time.Time
		for id, e := range c.entries {
			if oldestID == "" || e.fetchedAt.Before(oldest) {
				oldestID = id
				oldest = e.fetchedAt
			}
		}
		delete(c.entries, oldestID)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run refreshes stale entries on a ticker until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.refreshStale(ctx)
		}
	}
}

func (c *Cache) refreshStale(ctx context.Context) {
	type stale struct {
		ownerID, entityID string
	}
	cutoff := time.Now().Add(-c.maxAge)

	c.mu.Lock()
	var due []stale
	for id, e := range c.entries {
		if e.fetchedAt.Before(cutoff) {
			due = append(due, stale{ownerID: e.ownerID, entityID: id})
		}
	}
	c.mu.Unlock()

	for _, s := range due {
		suggestions, err := c.fetch(ctx, s.ownerID, s.entityID)
		if err != nil {
			c.logger.Warn("suggest: refresh failed",
				slog.String("entity", s.entityID), slog.String("error", err.Error()))
			continue
		}
		c.Put(s.ownerID, s.entityID, suggestions)
	}
}

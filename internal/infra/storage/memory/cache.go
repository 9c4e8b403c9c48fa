package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"catmatch/internal/app/policies"
)

// Loader fetches fresh data for a stale key, routed by key family.
type Loader func(ctx context.Context, key string) (any, error)

type entry struct {
	value    any
	storedAt time.Time
	stale    bool
	// gen counts invalidations. A refetch captures it before loading and
	// applies its result only if no invalidation arrived meanwhile; otherwise
	// the loaded value may predate the mutation and the refetch goes again.
	gen uint64
}

// Cache stores fetched results with a staleness window and refetch-on-stale.
// Invalidation only marks keys stale; the value stays readable until the
// background refetch lands, so a burst of invalidations never blanks the UI.
// Concurrent refetches for the same key collapse into one.
type Cache struct {
	ttl     time.Duration
	loader  Loader
	logger  *slog.Logger
	timeout time.Duration

	// OnInvalidate, when set, observes every invalidated prefix. Wired to the
	// websocket hub so open UI tabs know to re-read.
	OnInvalidate func(keyPrefix string)

	mu       sync.RWMutex
	entries  map[string]*entry
	inflight map[string]struct{}
}

// NewCache builds a cache whose entries go stale after ttl.
func NewCache(ttl time.Duration, loader Loader, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		ttl:      ttl,
		loader:   loader,
		logger:   logger,
		timeout:  10 * time.Second,
		entries:  make(map[string]*entry),
		inflight: make(map[string]struct{}),
	}
}

// Read returns the cached value for key. A stale or aged-out entry is still
// returned (stale-but-present) while a background refetch runs; a missing
// entry reports !ok and the caller fetches through the gateway itself.
func (c *Cache) Read(ctx context.Context, key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	var value any
	var needsRefresh bool
	if ok {
		value = e.value
		needsRefresh = e.stale || time.Since(e.storedAt) > c.ttl
	}
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if needsRefresh {
		c.refresh(key)
	}
	return value, true
}

// Write sets key directly; used by successful fetches and mutation seeds.
func (c *Cache) Write(ctx context.Context, key string, value any) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = time.Now()
		e.stale = false
	} else {
		c.entries[key] = &entry{value: value, storedAt: time.Now()}
	}
	c.mu.Unlock()
}

// Invalidate marks every key under keyPrefix stale and schedules their
// refetch. It never removes or overwrites values.
func (c *Cache) Invalidate(ctx context.Context, keyPrefix string) {
	var matched []string
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, keyPrefix) {
			e.stale = true
			e.gen++
			matched = append(matched, key)
		}
	}
	c.mu.Unlock()
	for _, key := range matched {
		c.refresh(key)
	}
	if c.OnInvalidate != nil {
		c.OnInvalidate(keyPrefix)
	}
}

// refresh reloads one key in the background, deduplicating concurrent
// requests. A failed load keeps the stale value in place.
func (c *Cache) refresh(key string) {
	if c.loader == nil {
		return
	}
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		}()
		for {
			c.mu.RLock()
			var startGen uint64
			if e, ok := c.entries[key]; ok {
				startGen = e.gen
			}
			c.mu.RUnlock()

			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			value, err := c.loader(ctx, key)
			cancel()
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("cache refetch failed", "key", key, "error", err)
				}
				return
			}

			c.mu.Lock()
			if e, ok := c.entries[key]; ok && e.gen != startGen {
				// invalidated while the load was in flight; the value we
				// hold may predate that mutation, so load once more
				c.mu.Unlock()
				continue
			}
			c.entries[key] = &entry{value: value, storedAt: time.Now(), gen: startGen}
			c.mu.Unlock()
			return
		}
	}()
}

var _ policies.Cache = (*Cache)(nil)

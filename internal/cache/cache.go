// Package cache provides a TTL cache with lazy expiry and write-through
// persistence of the full snapshot after every mutation.
package cache

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const persistTimeout = 5 * time.Second

// Lookup outcomes reported to the observer.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupExpired = "expired"
)

// Entry is the unit of storage: the cached value and when it was written.
type Entry struct {
	Value     any       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists a complete cache snapshot. Save replaces whatever was
// stored before; it must never leave a half-written snapshot behind.
type Store interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Save(ctx context.Context, entries map[string]Entry) error
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	store   Store
	now     func() time.Time
	logger  *slog.Logger
	observe func(outcome string)
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock overrides the wall clock (tests simulate elapsed time).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithObserver registers a hook called with the outcome of every Get.
func WithObserver(fn func(outcome string)) Option {
	return func(c *Cache) { c.observe = fn }
}

// New creates a cache and loads the persisted snapshot from store. A nil
// store keeps the cache in memory only. An unreadable or corrupt snapshot
// yields an empty cache.
func New(ttl time.Duration, store Store, opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		store:   store,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	c.load()
	return c
}

func (c *Cache) load() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("cache snapshot unreadable, starting empty", "err", err)
		return
	}
	for k, e := range entries {
		c.entries[k] = e
	}
	c.logger.Debug("cache loaded", "entries", len(c.entries))
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the value for key. An entry older than the TTL is treated as
// absent and evicted.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.report(LookupMiss)
		return nil, false
	}
	if c.now().Sub(e.CreatedAt) > c.ttl {
		delete(c.entries, key)
		c.persistLocked()
		c.report(LookupExpired)
		return nil, false
	}
	c.report(LookupHit)
	return e.Value, true
}

// Set stores value under key, replacing any previous entry, and persists
// the whole cache before returning. Persistence failures are logged only.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Value: value, CreatedAt: c.now()}
	c.persistLocked()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of every stored entry.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Clear drops every entry and persists the empty cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	c.persistLocked()
}

func (c *Cache) copyLocked() map[string]Entry {
	out := make(map[string]Entry, len(c.entries))
	for k, e := range c.entries {
		out[k] = e
	}
	return out
}

// persistLocked writes the full state. Callers hold c.mu so snapshots reach
// the store in mutation order.
func (c *Cache) persistLocked() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.Save(ctx, c.copyLocked()); err != nil {
		c.logger.Warn("cache persist failed", "err", err)
	}
}

func (c *Cache) report(outcome string) {
	if c.observe != nil {
		c.observe(outcome)
	}
}

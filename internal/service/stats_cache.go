package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
)

// StatsCacheOptions tunes the in-memory campaign statistics cache.
type StatsCacheOptions struct {
	TTL      time.Duration
	Capacity int
}

type statsEntry struct {
	value      models.CampaignStats
	insertedAt time.Time
	expiresAt  time.Time
}

// StatsCache memoizes Acelle campaign statistics for a bounded time so
// dashboard refreshes do not hammer the upstream API. Entries expire after a
// fixed TTL; when the table is full the oldest entry by insertion time is
// evicted. Guarded by a mutex since handlers run concurrently.
type StatsCache struct {
	mu      sync.Mutex
	entries map[string]statsEntry

	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewStatsCache constructs a cache with sane defaults (30m TTL, 100 entries).
func NewStatsCache(opts StatsCacheOptions) *StatsCache {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	return &StatsCache{
		entries:  make(map[string]statsEntry, opts.Capacity),
		ttl:      opts.TTL,
		capacity: opts.Capacity,
		now:      time.Now,
	}
}

// Put inserts or overwrites the entry for key. Inserting a new key at
// capacity first evicts the single oldest entry by insertion time.
func (c *StatsCache) Put(key string, value models.CampaignStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = statsEntry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(c.ttl),
	}
}

// Get returns the cached value when present and fresh. A present-but-expired
// entry is evicted on the spot and reported as a miss; a stale value is never
// returned.
func (c *StatsCache) Get(key string) (models.CampaignStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return models.CampaignStats{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return models.CampaignStats{}, false
	}
	return entry.value, true
}

// Invalidate removes the entry for key, e.g. after an external mutation made
// the snapshot stale.
func (c *StatsCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes every expired entry and returns how many were dropped. It
// bounds memory for keys that are written but never re-read.
func (c *StatsCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, fresh or not.
func (c *StatsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper runs Sweep on the given interval until ctx is done.
func (c *StatsCache) StartSweeper(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.Sweep(); removed > 0 {
					logger.Debug("stats cache sweep", zap.Int("evicted", removed))
				}
			}
		}
	}()
}

func (c *StatsCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.insertedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

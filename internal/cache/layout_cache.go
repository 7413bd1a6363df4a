// Package cache provides an in-memory cache of computed panel layouts.
//
// A layout depends only on the mosaic configuration, the field of view and the
// view center, so those three values form the cache key. Entries are never
// stale on their own: whoever changes the configuration or equipment calls
// Invalidate. The cache is bounded and evicts the oldest entry when full.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/star/mosaicplanner/internal/metrics"
	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/transform"
)

// DefaultMaxEntries is used when Config.MaxEntries is not positive.
const DefaultMaxEntries = 64

// Config holds cache configuration loaded from environment variables.
type Config struct {
	MaxEntries int // Max layouts kept (default: 64).
}

// Key identifies one layout. All fields are comparable values.
type Key struct {
	Config mosaic.Config
	FOV    mosaic.FOV
	Center transform.Direction
}

type cacheEntry struct {
	panels []mosaic.Panel
	seq    uint64
}

// LayoutCache is an in-memory cache of panel layouts.
// Safe for concurrent use by multiple goroutines.
type LayoutCache struct {
	mu      sync.RWMutex
	entries map[Key]*cacheEntry
	seq     uint64

	maxEntries int
	logger     *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLayoutCache creates an empty layout cache.
func NewLayoutCache(config Config, logger *slog.Logger) *LayoutCache {
	max := config.MaxEntries
	if max <= 0 {
		max = DefaultMaxEntries
	}
	logger.Info("layout cache initialized", "max_entries", max)

	return &LayoutCache{
		entries:    make(map[Key]*cacheEntry),
		maxEntries: max,
		logger:     logger,
	}
}

// Get returns a copy of the cached layout for key.
func (c *LayoutCache) Get(key Key) ([]mosaic.Panel, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	var out []mosaic.Panel
	if ok {
		out = clonePanels(entry.panels)
	}
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return out, true
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil, false
}

// Put stores a copy of panels under key, evicting the oldest entry when the
// cache is full.
func (c *LayoutCache) Put(key Key, panels []mosaic.Panel) {
	entry := &cacheEntry{panels: clonePanels(panels)}

	var evicted int
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
		evicted = 1
	}
	c.seq++
	entry.seq = c.seq
	c.entries[key] = entry
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.AddCacheEvictions(evicted)
	}
	c.updateMetrics()
}

// GetOrCompute returns the cached layout for key, calling compute and storing
// its result on a miss.
func (c *LayoutCache) GetOrCompute(key Key, compute func() []mosaic.Panel) []mosaic.Panel {
	if panels, ok := c.Get(key); ok {
		return panels
	}
	panels := compute()
	c.Put(key, panels)
	return panels
}

// evictOldestLocked removes the entry with the lowest sequence number.
// Caller must hold mu.
func (c *LayoutCache) evictOldestLocked() {
	var (
		oldestKey Key
		oldestSeq uint64
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.seq < oldestSeq {
			oldestKey, oldestSeq, found = k, e.seq, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Invalidate drops every cached layout and returns how many were removed.
func (c *LayoutCache) Invalidate() int {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[Key]*cacheEntry)
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.logger.Debug("layout cache invalidated", "entries_removed", removed)
	}
	c.updateMetrics()
	return removed
}

// Stats returns current cache statistics.
func (c *LayoutCache) Stats() CacheStats {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Entries:    count,
		MaxEntries: c.maxEntries,
		SizeBytes:  c.estimateSizeBytes(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"max_entries"`
	SizeBytes  int64 `json:"size_bytes"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func (c *LayoutCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	panelSize := int64(unsafe.Sizeof(mosaic.Panel{}))
	keySize := int64(unsafe.Sizeof(Key{}))
	var total int64
	for _, entry := range c.entries {
		// Slice header(24) + seq(8) + entry pointer(8).
		total += int64(len(entry.panels))*panelSize + keySize + 40
	}
	return total
}

// updateMetrics publishes current cache size to Prometheus.
func (c *LayoutCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
}

func clonePanels(in []mosaic.Panel) []mosaic.Panel {
	if in == nil {
		return nil
	}
	return append(make([]mosaic.Panel, 0, len(in)), in...)
}

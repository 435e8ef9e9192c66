// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collect

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"golang.org/x/sync/singleflight"
)

// SnapshotCache provides LRU caching for per-source collection snapshots.
//
// # Description
//
// Caches the data points returned by a successful fetch so that repeated
// assessment runs inside a source's cache window reuse the snapshot instead
// of spending the source's request budget again. Entries carry their own
// TTL because each source declares its own cache lifetime.
//
// # Cache Key Format
//
// Keys are computed as: SHA256(source + ":" + params). The params string
// encodes the query a collector issued, so the same source queried with
// different keywords occupies separate entries.
//
// # Thread Safety
//
// Safe for concurrent use. Uses sync.RWMutex for the entry map and
// singleflight.Group to coalesce concurrent fetches of the same key.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]*snapshotEntry
	lru     *list.List
	flight  singleflight.Group
	options CacheOptions

	// Stats
	hits       int64
	misses     int64
	evictions  int64
	fetches    int64
	errorCount int64
}

// snapshotEntry represents one cached source snapshot.
type snapshotEntry struct {
	// Key is the cache key.
	Key string

	// Points is the cached snapshot.
	Points []model.DataPoint

	// Source is the collector the snapshot came from.
	Source string

	// TTL is the lifetime declared by the source at store time.
	TTL time.Duration

	// StoredAtMilli is when the snapshot was stored.
	StoredAtMilli int64

	// LastAccessMilli is when the entry was last accessed.
	LastAccessMilli int64

	// lruElement is the position in the LRU list.
	lruElement *list.Element
}

// CacheOptions configures SnapshotCache.
type CacheOptions struct {
	// MaxEntries is the maximum number of cached snapshots.
	// Default: 256
	MaxEntries int

	// DefaultTTL is used when a store does not declare a lifetime.
	// Default: 1 hour
	DefaultTTL time.Duration
}

// DefaultCacheOptions returns sensible defaults.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		MaxEntries: 256,
		DefaultTTL: time.Hour,
	}
}

// CacheOption is a functional option for configuring SnapshotCache.
type CacheOption func(*CacheOptions)

// WithMaxEntries sets the maximum number of cached snapshots.
func WithMaxEntries(n int) CacheOption {
	return func(o *CacheOptions) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithDefaultTTL sets the fallback snapshot lifetime.
func WithDefaultTTL(d time.Duration) CacheOption {
	return func(o *CacheOptions) {
		if d > 0 {
			o.DefaultTTL = d
		}
	}
}

// NewSnapshotCache creates a new SnapshotCache.
func NewSnapshotCache(opts ...CacheOption) *SnapshotCache {
	options := DefaultCacheOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &SnapshotCache{
		entries: make(map[string]*snapshotEntry),
		lru:     list.New(),
		options: options,
	}
}

// FetchFunc is the function signature for fetching a source snapshot.
type FetchFunc func(ctx context.Context) ([]model.DataPoint, error)

// Get retrieves a cached snapshot.
//
// # Inputs
//
//   - source: The collector's source name.
//   - params: The query parameter string for this fetch.
//
// # Outputs
//
//   - []model.DataPoint: The cached snapshot, or nil if not found.
//   - bool: True if the entry was found and still live.
func (c *SnapshotCache) Get(source, params string) ([]model.DataPoint, bool) {
	key := c.computeKey(source, params)

	c.mu.RLock()
	entry, ok := c.entries[key]
	if !ok {
		c.mu.RUnlock()
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	if c.isExpired(entry) {
		c.mu.RUnlock()
		c.remove(key)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	points := entry.Points
	c.mu.RUnlock()

	// Update LRU and access time
	c.touch(entry)

	atomic.AddInt64(&c.hits, 1)
	return points, true
}

// GetOrFetch retrieves a cached snapshot or fetches a new one.
//
// # Description
//
// Uses singleflight to coalesce concurrent fetches for the same key. If
// multiple goroutines request the same source and params simultaneously,
// only one fetch runs and all waiters receive the result. A snapshot is
// stored only when fetch returns without error; failures leave any prior
// entry untouched.
//
// # Inputs
//
//   - ctx: Context for cancellation. Per-call timeouts belong to fetch.
//   - source: The collector's source name.
//   - params: The query parameter string for this fetch.
//   - ttl: Lifetime for the stored snapshot; <= 0 uses the default.
//   - fetch: Function that performs the actual collection.
//
// # Outputs
//
//   - []model.DataPoint: The snapshot (cached or newly fetched).
//   - error: Non-nil if the fetch failed.
func (c *SnapshotCache) GetOrFetch(
	ctx context.Context,
	source, params string,
	ttl time.Duration,
	fetch FetchFunc,
) ([]model.DataPoint, error) {
	// Fast path: check cache
	if points, ok := c.Get(source, params); ok {
		return points, nil
	}

	key := c.computeKey(source, params)

	// Singleflight: coalesce concurrent fetches
	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// Double-check cache (might have been populated while waiting)
		if points, ok := c.Get(source, params); ok {
			return points, nil
		}

		points, err := fetch(ctx)
		if err != nil {
			atomic.AddInt64(&c.errorCount, 1)
			return nil, err
		}

		c.put(key, source, ttl, points)
		atomic.AddInt64(&c.fetches, 1)

		return points, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]model.DataPoint), nil
}

// put stores a snapshot. Per-key writes serialize on the cache lock;
// the last writer wins.
func (c *SnapshotCache) put(key, source string, ttl time.Duration, points []model.DataPoint) {
	if ttl <= 0 {
		ttl = c.options.DefaultTTL
	}

	now := time.Now().UnixMilli()
	entry := &snapshotEntry{
		Key:             key,
		Points:          points,
		Source:          source,
		TTL:             ttl,
		StoredAtMilli:   now,
		LastAccessMilli: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replace an existing entry in place
	if old, exists := c.entries[key]; exists {
		entry.lruElement = old.lruElement
		c.entries[key] = entry
		c.lru.MoveToFront(entry.lruElement)
		return
	}

	// Evict if needed
	c.evictIfNeededLocked()

	entry.lruElement = c.lru.PushFront(key)
	c.entries[key] = entry
}

// computeKey generates a cache key from source name and query params.
func (c *SnapshotCache) computeKey(source, params string) string {
	h := sha256.Sum256([]byte(source + ":" + params))
	return hex.EncodeToString(h[:16]) // 32-char key (first 16 bytes)
}

// isExpired checks if an entry has exceeded its TTL.
func (c *SnapshotCache) isExpired(entry *snapshotEntry) bool {
	if entry.TTL == 0 {
		return false
	}
	age := time.Since(time.UnixMilli(entry.StoredAtMilli))
	return age > entry.TTL
}

// touch moves an entry to the front of the LRU list and stamps access time.
func (c *SnapshotCache) touch(entry *snapshotEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.LastAccessMilli = time.Now().UnixMilli()
	if entry.lruElement != nil {
		c.lru.MoveToFront(entry.lruElement)
	}
}

// remove removes an entry from the cache.
func (c *SnapshotCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return
	}

	if entry.lruElement != nil {
		c.lru.Remove(entry.lruElement)
	}
	delete(c.entries, key)
}

// evictIfNeededLocked evicts LRU entries if at capacity (must hold lock).
func (c *SnapshotCache) evictIfNeededLocked() {
	for len(c.entries) >= c.options.MaxEntries {
		if !c.evictLRULocked() {
			break
		}
	}
}

// evictLRULocked evicts the least recently used entry (must hold lock).
func (c *SnapshotCache) evictLRULocked() bool {
	elem := c.lru.Back()
	if elem == nil {
		return false
	}

	key := elem.Value.(string)
	entry := c.entries[key]
	if entry != nil {
		c.lru.Remove(entry.lruElement)
		delete(c.entries, key)
		atomic.AddInt64(&c.evictions, 1)
		return true
	}
	return false
}

// Invalidate removes the entry for one source and params pair.
func (c *SnapshotCache) Invalidate(source, params string) {
	c.remove(c.computeKey(source, params))
}

// InvalidateSource removes all entries for a source (any params).
func (c *SnapshotCache) InvalidateSource(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	toRemove := make([]string, 0)
	for key, entry := range c.entries {
		if entry.Source == source {
			toRemove = append(toRemove, key)
		}
	}

	for _, key := range toRemove {
		entry := c.entries[key]
		if entry != nil && entry.lruElement != nil {
			c.lru.Remove(entry.lruElement)
		}
		delete(c.entries, key)
	}
}

// Clear removes all entries from the cache.
func (c *SnapshotCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*snapshotEntry)
	c.lru.Init()
}

// CacheStats contains statistics about the cache.
type CacheStats struct {
	EntryCount int
	Hits       int64
	Misses     int64
	Evictions  int64
	Fetches    int64
	ErrorCount int64
	MaxEntries int
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stats returns current cache statistics.
func (c *SnapshotCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		EntryCount: len(c.entries),
		Hits:       atomic.LoadInt64(&c.hits),
		Misses:     atomic.LoadInt64(&c.misses),
		Evictions:  atomic.LoadInt64(&c.evictions),
		Fetches:    atomic.LoadInt64(&c.fetches),
		ErrorCount: atomic.LoadInt64(&c.errorCount),
		MaxEntries: c.options.MaxEntries,
	}
}

// Len returns the number of entries in the cache.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package svr

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sells-group/saturn/internal/model"
	"github.com/sells-group/saturn/internal/scoring"
)

// CacheKey identifies one memoized missing-score multiplier.
type CacheKey struct {
	BrandID  string
	Kind     scoring.Kind
	EntityID string
	Output   model.Output
}

func (k CacheKey) flight() string {
	return fmt.Sprintf("%q/%q/%q/%q", k.BrandID, k.Kind, k.EntityID, k.Output)
}

// Entry is a cached value pair. LBA is reserved and never populated.
type Entry struct {
	NonLBA float64
	LBA    *float64
}

// Cache memoizes missing-score multipliers for the lifetime of an engine.
// Concurrent callers for the same key share a single computation. Pacing is
// not part of the key: the first request's pacing is baked into the entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[CacheKey]Entry
	group   singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]Entry)}
}

// Lookup returns the entry for key.
func (c *Cache) Lookup(key CacheKey) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrCompute returns the cached non-LBA value for key, running fn to fill
// it on first use. hit reports whether the value was already cached. Errors
// from fn are returned and not cached. Keys carry the brand, so fn runs once
// per (brand, adgroup) pair rather than once per adgroup.
func (c *Cache) GetOrCompute(key CacheKey, fn func() (float64, error)) (v float64, hit bool, err error) {
	if e, ok := c.Lookup(key); ok {
		return e.NonLBA, true, nil
	}

	res, err, _ := c.group.Do(key.flight(), func() (any, error) {
		if e, ok := c.Lookup(key); ok {
			return e.NonLBA, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = Entry{NonLBA: v}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return 0, false, err
	}
	return res.(float64), false, nil
}

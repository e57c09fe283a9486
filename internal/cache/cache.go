package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/cars-recognizer/internal/classifier"
)

// DefaultCapacity matches the reference deployment.
const DefaultCapacity = 128

// ResultCache is a bounded, in-memory LRU of classification results keyed by
// content fingerprint. It lives for the process lifetime only; once the map
// exceeds capacity the least-recently-used entry is evicted. The underlying
// lru.Cache is internally synchronized, so the cache is safe for concurrent
// requests.
type ResultCache struct {
	entries *lru.Cache[string, []classifier.Prediction]
}

// New creates a result cache with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) (*ResultCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, err := lru.New[string, []classifier.Prediction](capacity)
	if err != nil {
		return nil, err
	}
	return &ResultCache{entries: entries}, nil
}

// Get returns the cached predictions for a fingerprint and marks the entry
// most-recently-used.
func (c *ResultCache) Get(fingerprint string) ([]classifier.Prediction, bool) {
	return c.entries.Get(fingerprint)
}

// Put stores predictions under a fingerprint, evicting the least-recently-used
// entry when the cache is full.
func (c *ResultCache) Put(fingerprint string, predictions []classifier.Prediction) {
	c.entries.Add(fingerprint, predictions)
}

// Clear drops every entry. Operational reset only, not part of the
// classification path.
func (c *ResultCache) Clear() {
	c.entries.Purge()
}

// Len reports the current number of entries.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

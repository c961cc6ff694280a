package directory

import (
	"context"
	"sync"
	"time"
)

// Lister is the part of Client the cache needs.
type Lister interface {
	List(ctx context.Context) ([]Artwork, error)
}

// Cache keeps the last successful listing. A failed fetch returns the
// previous list together with the error, so a transient outage never blanks
// the overlay.
type Cache struct {
	mu      sync.Mutex
	src     Lister
	last    []Artwork
	fetched time.Time
	ok      bool
}

// NewCache wraps src.
func NewCache(src Lister) *Cache {
	return &Cache{src: src}
}

// List fetches a fresh listing. On failure it returns the last good one (nil
// before any success) and the fetch error.
func (c *Cache) List(ctx context.Context) ([]Artwork, error) {
	list, err := c.src.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return c.last, err
	}
	c.last = list
	c.fetched = time.Now()
	c.ok = true
	return list, nil
}

// Last returns the cached listing without fetching, and whether any fetch
// has succeeded yet.
func (c *Cache) Last() ([]Artwork, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.ok
}

// FetchedAt returns the time of the last successful fetch.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched
}

// Set replaces the cached listing, e.g. after a local create or delete.
func (c *Cache) Set(list []Artwork) {
	c.mu.Lock()
	c.last = list
	c.ok = true
	c.fetched = time.Now()
	c.mu.Unlock()
}

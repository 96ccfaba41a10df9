package cache

import (
	"context"
	"sync"
	"time"

	"github.com/adlibrary/ads-spy/internal/models"
	"github.com/sirupsen/logrus"
)

// MemoryCache keeps entries in process memory. Expired entries are ignored
// on read and stay in place until the key is written again or the cache is
// cleared.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an in-process cache. A zero ttl uses DefaultTTL and
// a nil clock uses time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]models.Ad, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if !e.fresh(c.now(), c.ttl) {
		logrus.Debugf("Cache entry expired: %s", key)
		return nil, false, nil
	}

	return e.Ads, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, ads []models.Ad) error {
	c.mu.Lock()
	c.entries[key] = entry{StoredAt: c.now(), Ads: ads}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

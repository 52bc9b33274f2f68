package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"retailpulse/backend/internal/domain"
)

type lruEntry struct {
	key       string
	value     *domain.ForecastResponse
	expiresAt time.Time
}

// LRUForecastCache is a bounded in-process cache. Entries expire after ttl
// and the least recently used entry is evicted once size is reached.
type LRUForecastCache struct {
	mu    sync.Mutex
	size  int
	ttl   time.Duration
	order *list.List
	items map[string]*list.Element
	now   func() time.Time
}

func NewLRUForecastCache(size int, ttl time.Duration) *LRUForecastCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LRUForecastCache{
		size:  size,
		ttl:   ttl,
		order: list.New(),
		items: make(map[string]*list.Element, size),
		now:   time.Now,
	}
}

func (c *LRUForecastCache) Get(_ context.Context, key string) (*domain.ForecastResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	entry := elem.Value.(*lruEntry)
	if !c.now().Before(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false, nil
	}
	c.order.MoveToFront(elem)
	return entry.value, true, nil
}

// Set stores value. A non-positive ttl uses the cache default.
func (c *LRUForecastCache) Set(_ context.Context, key string, value *domain.ForecastResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.order.PushFront(&lruEntry{key: key, value: value, expiresAt: expiresAt})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
	return nil
}

func (c *LRUForecastCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

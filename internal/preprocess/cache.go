package preprocess

import (
	"container/list"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "xrayd",
		Subsystem: "preprocess",
		Name:      "cache_hits_total",
		Help:      "Preprocessing cache hits",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "xrayd",
		Subsystem: "preprocess",
		Name:      "cache_misses_total",
		Help:      "Preprocessing cache misses",
	})
	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "xrayd",
		Subsystem: "preprocess",
		Name:      "cache_evictions_total",
		Help:      "Preprocessing cache LRU evictions",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheEvictions)
}

type cacheEntry struct {
	key string
	img *Image
}

// Cache is a bounded content-addressed store with least-recently-used
// eviction. Safe for concurrent use; insert and evict are atomic under one
// lock, so no cross-request coordination is needed beyond calling it.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

// NewCache builds a cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached image for key, marking it most recently used.
func (c *Cache) Get(key string) (*Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).img, true
}

// Put inserts or refreshes an entry, evicting the least recently used entry
// when at capacity.
func (c *Cache) Put(key string, img *Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).img = img
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*cacheEntry).key)
		cacheEvictions.Inc()
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, img: img})
}

// Len reports current occupancy.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity reports the configured maximum.
func (c *Cache) Capacity() int { return c.capacity }

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"lexrag/internal/domain"
)

// Key identifies a query together with everything that shapes its answer.
type Key struct {
	Query   string         `json:"q"`
	TopK    int            `json:"top_k"`
	FinalK  int            `json:"final_k"`
	Filters domain.Filters `json:"filters"`
}

func (k Key) hash() string {
	data, _ := json.Marshal(k)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// QueryCache is an LRU of pipeline responses. Entries expire after ttl and
// are dropped wholesale when the index generation moves on.
type QueryCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	response  domain.Response
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *QueryCache) Get(key Key) (domain.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := key.hash()
	entry, exists := c.entries[h]
	if !exists {
		return domain.Response{}, false
	}
	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, h)
		c.removeFromOrder(h)
		return domain.Response{}, false
	}

	c.moveToEnd(h)
	return entry.response, true
}

// Put stores a response. Degraded responses are not cached so a recovered
// leg or scorer is picked up by the next identical query.
func (c *QueryCache) Put(key Key, resp domain.Response) {
	if resp.Degraded || resp.Status == domain.ResponseDegraded {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h := key.hash()
	if _, exists := c.entries[h]; exists {
		c.moveToEnd(h)
	} else {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.order = append(c.order, h)
	}
	c.entries[h] = &cacheEntry{
		response:  resp,
		timestamp: c.now(),
		indexGen:  c.indexGen,
	}
}

// Invalidate drops every entry; called after the index changes.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

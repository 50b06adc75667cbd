package indicator

import (
	"container/list"
	"sync"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
)

// Cache memoizes Set computations keyed by a series' content fingerprint:
// bounded capacity, per-entry TTL, LRU eviction once full. Safe for
// concurrent use by the StrategyRunner's worker pool — many readers,
// occasional writer on a miss.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	window   int
	periods  Periods

	ll    *list.List // front = most recently used
	items map[string]*list.Element
}

type entry struct {
	key     string
	set     Set
	expires time.Time
}

// NewCache builds a Cache with the given capacity (entries), TTL, and
// fingerprint window (number of trailing bars hashed per lookup).
// capacity<=0 defaults to 50, a per-symbol working-set size sized for a
// handful of concurrently tracked instruments.
func NewCache(capacity int, ttl time.Duration, window int, periods Periods) *Cache {
	if capacity <= 0 {
		capacity = 50
	}
	if window <= 0 {
		window = 64
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		window:   window,
		periods:  periods,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the indicator Set for series, computing and caching it on a
// miss. A cached entry is reused only while unexpired; an expired entry is
// recomputed and its TTL restarted, same as a fresh miss.
func (c *Cache) Get(series bar.Series) Set {
	key := series.Fingerprint(c.window)

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if time.Now().Before(e.expires) {
			c.ll.MoveToFront(el)
			set := e.set
			c.mu.Unlock()
			return set
		}
		c.ll.Remove(el)
		delete(c.items, key)
	}
	c.mu.Unlock()

	set := ComputeWithMACD(series, c.periods)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).set = set
		el.Value.(*entry).expires = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return set
	}

	el := c.ll.PushFront(&entry{key: key, set: set, expires: time.Now().Add(c.ttl)})
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}

	return set
}

// Len reports the current number of cached entries (test/diagnostic use).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

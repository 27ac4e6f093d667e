package cache

import (
	"sync"
	"time"
)

// Value is what the cache holds: a downloadable page that knows when its
// content was committed.
type Value interface {
	FetchedAt() time.Time
}

// entry holds a live instance with its creation timestamp.
type entry[T Value] struct {
	value     T
	createdAt time.Time
}

// since returns the time the entry's freshness is measured from: the
// content commit, or creation while there is no content.
func (e *entry[T]) since() time.Time {
	if at := e.value.FetchedAt(); !at.IsZero() {
		return at
	}
	return e.createdAt
}

// Cache hands out one shared instance per URL until its content is older
// than the TTL, after which a fresh instance takes its place. Sharing the
// instance is what lets the scheduler deduplicate downloads of the same URL,
// so an instance that is in use is never replaced or evicted.
// It is safe for concurrent use.
type Cache[T Value] struct {
	mu         sync.Mutex
	store      map[string]*entry[T]
	ttl        time.Duration
	maxEntries int
	inUse      func(T) bool
	now        func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Cache.
type Option[T Value] func(*Cache[T])

// WithInUse tells the cache which instances a download still refers to.
// fn is called with the cache locked and must not call back into it.
func WithInUse[T Value](fn func(T) bool) Option[T] {
	return func(c *Cache[T]) { c.inUse = fn }
}

// New creates a Cache. ttl <= 0 keeps instances forever; maxEntries <= 0
// means no bound. A background goroutine evicts expired entries.
func New[T Value](ttl time.Duration, maxEntries int, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		store:      make(map[string]*entry[T]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	if ttl > 0 {
		go c.cleanupLoop(min(ttl, 5*time.Minute))
	}
	return c
}

// Get returns the live instance for url, creating it with newFn when absent
// or expired.
func (c *Cache[T]) Get(url string, newFn func(url string) T) T {
	return c.Use(url, newFn, nil)
}

// Use is Get followed by fn on the returned instance, with the cache still
// locked: nothing can replace or evict the instance before fn registered it
// with a download. fn must not block.
func (c *Cache[T]) Use(url string, newFn func(url string) T, fn func(T)) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.store[url]
	if !ok || c.expired(e, now) {
		if !ok && c.maxEntries > 0 && len(c.store) >= c.maxEntries {
			c.evictOne(now)
		}
		e = &entry[T]{value: newFn(url), createdAt: now}
		c.store[url] = e
	}
	if fn != nil {
		fn(e.value)
	}
	return e.value
}

// Peek returns the live instance for url without creating one.
func (c *Cache[T]) Peek(url string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store[url]
	if !ok || c.expired(e, c.now()) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// Stop ends the cleanup goroutine.
func (c *Cache[T]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// The methods below must be called with c.mu held.

func (c *Cache[T]) busy(e *entry[T]) bool {
	return c.inUse != nil && c.inUse(e.value)
}

func (c *Cache[T]) expired(e *entry[T], now time.Time) bool {
	return c.ttl > 0 && !c.busy(e) && now.Sub(e.since()) >= c.ttl
}

// evictOne drops an expired entry, else the stalest one not in use. When
// every entry is in use the cache grows past maxEntries until they settle.
func (c *Cache[T]) evictOne(now time.Time) {
	victim, found := "", false
	var oldest time.Time
	for k, e := range c.store {
		if c.busy(e) {
			continue
		}
		if c.expired(e, now) {
			delete(c.store, k)
			return
		}
		if at := e.since(); !found || at.Before(oldest) {
			victim, oldest, found = k, at, true
		}
	}
	if found {
		delete(c.store, victim)
	}
}

func (c *Cache[T]) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for k, e := range c.store {
				if c.expired(e, now) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

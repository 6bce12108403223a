// Package cache is a small in-memory TTL cache with LRU eviction.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"
)

// Cache is safe for concurrent use. The zero value is not usable; call New.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]*entry[V]
	order    *list.List // MRU at front, LRU at back
	maxItems int        // 0 = unlimited
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type entry[V any] struct {
	key string
	v   V
	exp time.Time // zero = no expiry
	el  *list.Element
}

// New returns a cache holding at most maxItems entries (0 = unlimited).
func New[V any](maxItems int) *Cache[V] {
	if maxItems < 0 {
		maxItems = 0
	}
	return &Cache[V]{
		items:    make(map[string]*entry[V]),
		order:    list.New(),
		maxItems: maxItems,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Get returns the value and whether it exists and has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(e) {
		c.removeNoLock(key)
		return zero, false
	}
	c.order.MoveToFront(e.el)
	return e.v, true
}

// Set stores v under key. ttl<=0 means no expiry.
func (c *Cache[V]) Set(key string, v V, ttl time.Duration) {
	if c == nil {
		return
	}
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		e.v, e.exp = v, exp
		c.order.MoveToFront(e.el)
		return
	}
	e := &entry[V]{key: key, v: v, exp: exp}
	e.el = c.order.PushFront(e)
	c.items[key] = e
	for c.maxItems > 0 && c.order.Len() > c.maxItems {
		c.evictLRUNoLock()
	}
}

// Delete removes a key.
func (c *Cache[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.removeNoLock(key)
	c.mu.Unlock()
}

// Len reports the number of entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// StartJanitor sweeps expired entries every interval until Stop is called.
func (c *Cache[V]) StartJanitor(interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				c.sweep()
			}
		}
	}()
}

// Stop ends the janitor. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache[V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if c.expired(e) {
			c.removeNoLock(k)
		}
	}
}

// KeyFromStrings creates a compact stable key from parts.
func KeyFromStrings(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(p))
	}
	return string(h.Sum(nil))
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return !e.exp.IsZero() && c.now().After(e.exp)
}

// caller must hold c.mu
func (c *Cache[V]) removeNoLock(key string) {
	if e, ok := c.items[key]; ok {
		c.order.Remove(e.el)
		delete(c.items, key)
	}
}

// caller must hold c.mu
func (c *Cache[V]) evictLRUNoLock() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry[V])
	c.order.Remove(back)
	delete(c.items, e.key)
}

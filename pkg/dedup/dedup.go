// Package dedup provides a small TTL cache used to drop duplicate bus
// deliveries: QoS redeliveries and copies produced by overlapping
// subscription filters carry the same topic+payload, so a content key
// seen twice inside the TTL window is a duplicate.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type Cache struct {
	mu   sync.Mutex
	ttl  time.Duration
	cap  int
	seen map[string]time.Time
}

func New(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if capacity <= 0 {
		capacity = 10000
	}
	return &Cache{ttl: ttl, cap: capacity, seen: make(map[string]time.Time, capacity)}
}

// Key builds a content key from a topic and payload.
func Key(topic string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(topic))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Seen records key and reports whether it was already present and still
// inside the TTL window. An empty key is never deduplicated.
func (c *Cache) Seen(key string) bool {
	if key == "" {
		return false
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.seen[key]; ok && now.Before(exp) {
		return true
	}
	c.seen[key] = now.Add(c.ttl)
	if len(c.seen) > c.cap {
		c.evict(now)
	}
	return false
}

// evict drops expired entries; caller holds the lock.
func (c *Cache) evict(now time.Time) {
	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
		if len(c.seen) <= c.cap {
			return
		}
	}
}

package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-discovery/services/discovery/internal/metrics"
)

// InvalidateSubject carries cache keys to drop; "ALL" or an empty body clears
// the whole cache.
const InvalidateSubject = "discovery.cache.invalidate"

// Cache is the minimal read/write interface for the shelf response cache.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (MovieList, bool)
	Set(key string, v MovieList)
}

type cacheItem struct {
	val       MovieList
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry and optional NATS invalidation.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time
	sub   *nats.Subscription
}

// NewTTLCache creates a TTLCache and wires up NATS key-level invalidation when nc is non-nil.
func NewTTLCache(ttl time.Duration, nc *nats.Conn, subj string, log *zap.Logger) *TTLCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	c := &TTLCache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
	if nc != nil && subj != "" {
		sub, err := nc.Subscribe(subj, func(m *nats.Msg) {
			c.Invalidate(string(m.Data))
		})
		if err != nil && log != nil {
			log.Warn("cache invalidation subscribe failed", zap.String("subject", subj), zap.Error(err))
		}
		c.sub = sub
	}
	return c
}

func (c *TTLCache) Get(key string) (MovieList, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		metrics.ShelfCache.WithLabelValues("miss").Inc()
		return MovieList{}, false
	}
	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && c.now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		metrics.ShelfCache.WithLabelValues("miss").Inc()
		return MovieList{}, false
	}
	metrics.ShelfCache.WithLabelValues("hit").Inc()
	return it.val, true
}

func (c *TTLCache) Set(key string, v MovieList) {
	c.mu.Lock()
	c.items[key] = cacheItem{val: v, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops one key, or everything for "" and "ALL".
func (c *TTLCache) Invalidate(key string) {
	key = strings.TrimSpace(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" || strings.EqualFold(key, "ALL") {
		c.items = make(map[string]cacheItem)
		return
	}
	delete(c.items, key)
}

// Close stops listening for invalidations.
func (c *TTLCache) Close() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe()
}

// Package cache provides a TTL'd in-process cache for search responses,
// standing in for the external cache the original deployment used.
package cache

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/knakagawa/retrieval/internal/service"
)

// Stats reports cache effectiveness
type Stats struct {
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// ResponseCache caches complete search responses keyed by the request
// parameters that affect the result set.
type ResponseCache struct {
	lru    *expirable.LRU[string, *service.SearchResponse]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a response cache holding up to size entries for at most ttl.
func New(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 {
		size = 1024
	}
	return &ResponseCache{
		lru: expirable.NewLRU[string, *service.SearchResponse](size, nil, ttl),
	}
}

// Key derives the cache key for a search request
func Key(req service.SearchRequest) string {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteByte('|')
	b.WriteString(req.Strategy)
	b.WriteByte('|')
	b.WriteString(strings.Join(req.KnowledgeBaseIDs, ","))
	return b.String()
}

// Get returns the cached response for the key, if present
func (c *ResponseCache) Get(key string) (*service.SearchResponse, bool) {
	resp, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return resp, ok
}

// Set stores a response under the key
func (c *ResponseCache) Set(key string, resp *service.SearchResponse) {
	c.lru.Add(key, resp)
}

// Purge drops all cached entries
func (c *ResponseCache) Purge() {
	c.lru.Purge()
}

// Stats returns current cache statistics
func (c *ResponseCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := Stats{
		Entries: c.lru.Len(),
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

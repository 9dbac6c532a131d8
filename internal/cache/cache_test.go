package cache

import (
	"testing"
	"time"

	"github.com/knakagawa/retrieval/internal/service"
)

func TestResponseCache_HitAndMiss(t *testing.T) {
	c := New(8, time.Minute)

	req := service.SearchRequest{Query: "deploy", Strategy: "hybrid"}
	key := Key(req)

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	resp := &service.SearchResponse{Query: "deploy", StrategyUsed: "hybrid"}
	c.Set(key, resp)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.StrategyUsed != "hybrid" {
		t.Errorf("cached response = %+v", got)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 entry", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.HitRate)
	}
}

func TestResponseCache_Purge(t *testing.T) {
	c := New(8, time.Minute)
	c.Set("k", &service.SearchResponse{})

	c.Purge()

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after purge")
	}
	if c.Stats().Entries != 0 {
		t.Errorf("entries = %d after purge", c.Stats().Entries)
	}
}

func TestKey_DistinguishesRequests(t *testing.T) {
	base := service.SearchRequest{Query: "deploy", Strategy: "hybrid", KnowledgeBaseIDs: []string{"a", "b"}}

	variants := []service.SearchRequest{
		{Query: "deploy now", Strategy: "hybrid", KnowledgeBaseIDs: []string{"a", "b"}},
		{Query: "deploy", Strategy: "semantic", KnowledgeBaseIDs: []string{"a", "b"}},
		{Query: "deploy", Strategy: "hybrid", KnowledgeBaseIDs: []string{"a"}},
	}
	for _, v := range variants {
		if Key(base) == Key(v) {
			t.Errorf("key collision between %+v and %+v", base, v)
		}
	}

	same := service.SearchRequest{Query: "deploy", Strategy: "hybrid", KnowledgeBaseIDs: []string{"a", "b"}}
	if Key(base) != Key(same) {
		t.Error("identical requests should share a key")
	}
}

package cache

import (
	"testing"
	"time"

	"lexrag/internal/domain"
)

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	k := Key{Query: "prazo de recurso", TopK: 50, FinalK: 5}

	if _, ok := c.Get(k); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(k, domain.Response{QueryID: "q1", Status: domain.ResponseOK})

	resp, ok := c.Get(k)
	if !ok || resp.QueryID != "q1" {
		t.Fatalf("expected hit, got %v %+v", ok, resp)
	}

	other := k
	other.Filters.IncludeRevoked = true
	if _, ok := c.Get(other); ok {
		t.Error("filters must be part of the key")
	}
}

func TestQueryCache_EvictsLeastRecent(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	a, b, d := Key{Query: "a"}, Key{Query: "b"}, Key{Query: "d"}
	c.Put(a, domain.Response{})
	c.Put(b, domain.Response{})
	c.Get(a)
	c.Put(d, domain.Response{})

	if _, ok := c.Get(b); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("expected a to survive")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestQueryCache_Expiry(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	k := Key{Query: "x"}
	c.Put(k, domain.Response{})
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(k); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestQueryCache_InvalidateAndDegraded(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	k := Key{Query: "x"}
	c.Put(k, domain.Response{})
	c.Invalidate()
	if _, ok := c.Get(k); ok {
		t.Error("expected miss after invalidate")
	}

	c.Put(k, domain.Response{Degraded: true})
	if _, ok := c.Get(k); ok {
		t.Error("degraded responses must not be cached")
	}

	c.Put(k, domain.Response{Status: domain.ResponseDegraded, Reranked: false})
	if _, ok := c.Get(k); ok {
		t.Error("responses from an unavailable scorer must not be cached")
	}
}

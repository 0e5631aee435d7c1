package rules

import (
	"testing"
	"time"
)

func TestInMemoryRulesCache(t *testing.T) {
	cache := NewInMemoryRulesCache(DefaultCacheConfig())

	if cache.IsValid() {
		t.Error("new cache should not be valid")
	}
	if got := cache.Get(EntityClient); got != nil {
		t.Errorf("Get() on a cold cache = %v, want nil", got)
	}

	project := coldClientRule()
	project.ID = "rule-project"
	project.Entity = EntityProject
	cache.Set([]*Rule{coldClientRule(), project})

	if !cache.IsValid() {
		t.Error("cache should be valid after Set()")
	}
	if got := cache.Get(EntityClient); len(got) != 1 || got[0].ID != "rule-cold" {
		t.Errorf("Get(client) = %v", got)
	}
	got := cache.Get(EntityCandidate)
	if got == nil || len(got) != 0 {
		t.Errorf("Get(candidate) = %v, want an empty non-nil slice", got)
	}

	cache.Invalidate()
	if cache.IsValid() || cache.Get(EntityClient) != nil {
		t.Error("cache should miss after Invalidate()")
	}
}

func TestInMemoryRulesCacheTTL(t *testing.T) {
	cache := NewInMemoryRulesCache(CacheConfig{TTL: 10 * time.Millisecond})
	cache.Set([]*Rule{coldClientRule()})
	if !cache.IsValid() {
		t.Fatal("cache should be valid right after Set()")
	}

	time.Sleep(20 * time.Millisecond)
	if cache.IsValid() {
		t.Error("cache should expire after its TTL")
	}
	if cache.Get(EntityClient) != nil {
		t.Error("Get() should miss after expiry")
	}
}

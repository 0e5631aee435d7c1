package rules

import (
	"sync"
	"time"
)

// RulesCache holds the active rule list between mutations so evaluation does
// not hit the store for every record.
type RulesCache interface {
	// Get returns the cached rules for entity, or nil on a miss or expiry
	Get(entity Entity) []*Rule

	// Set replaces the cache with rules, grouped by entity
	Set(rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	IsValid() bool
}

type CacheConfig struct {
	// TTL of 0 means entries live until Invalidate
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryRulesCache is a RulesCache safe for concurrent use.
type InMemoryRulesCache struct {
	byEntity map[Entity][]*Rule
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
}

func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{config: config}
}

func (c *InMemoryRulesCache) Get(entity Entity) []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}

	// Non-nil on a hit, even when the entity has no rules.
	rules := c.byEntity[entity]
	out := make([]*Rule, len(rules))
	copy(out, rules)
	return out
}

func (c *InMemoryRulesCache) Set(rules []*Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byEntity = make(map[Entity][]*Rule, len(Entities))
	for _, r := range rules {
		c.byEntity[r.Entity] = append(c.byEntity[r.Entity], r)
	}
	c.cachedAt = time.Now()
	c.isValid = true
}

func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.byEntity = nil
}

func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh()
}

// fresh must be called with mu held.
func (c *InMemoryRulesCache) fresh() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}

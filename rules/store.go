package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RuleStore manages rule persistence and retrieval.
type RuleStore interface {
	// Add a new rule
	Add(ctx context.Context, rule *Rule) error

	// Get a rule by ID
	Get(ctx context.Context, id string) (*Rule, error)

	// List all rules, active or not, ordered by name
	List(ctx context.Context) ([]*Rule, error)

	// List all active rules
	ListActive(ctx context.Context) ([]*Rule, error)

	// Update an existing rule
	Update(ctx context.Context, rule *Rule) error

	// Delete a rule
	Delete(ctx context.Context, id string) error
}

// InMemoryRuleStore implements RuleStore using an in-memory map.
type InMemoryRuleStore struct {
	rules map[string]*Rule
	mu    sync.RWMutex
}

func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*Rule),
	}
}

// Add enforces unique IDs and names and stamps both timestamps.
func (s *InMemoryRuleStore) Add(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleExists)
	}
	for _, r := range s.rules {
		if r.Name == rule.Name {
			return fmt.Errorf("rule named %q: %w", rule.Name, ErrRuleExists)
		}
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	stored := *rule
	s.rules[rule.ID] = &stored
	return nil
}

func (s *InMemoryRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	out := *rule
	return &out, nil
}

func (s *InMemoryRuleStore) List(ctx context.Context) ([]*Rule, error) {
	return s.list(false), nil
}

func (s *InMemoryRuleStore) ListActive(ctx context.Context) ([]*Rule, error) {
	return s.list(true), nil
}

func (s *InMemoryRuleStore) list(activeOnly bool) []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for _, rule := range s.rules {
		if activeOnly && !rule.Active {
			continue
		}
		r := *rule
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update replaces a rule, preserving CreatedAt.
func (s *InMemoryRuleStore) Update(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleNotFound)
	}
	for id, r := range s.rules {
		if id != rule.ID && r.Name == rule.Name {
			return fmt.Errorf("rule named %q: %w", rule.Name, ErrRuleExists)
		}
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	stored := *rule
	s.rules[rule.ID] = &stored
	return nil
}

func (s *InMemoryRuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}

	delete(s.rules, id)
	return nil
}

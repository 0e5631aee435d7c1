package nudge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no nudge has the requested ID.
	ErrNotFound = errors.New("nudge not found")

	// ErrOpenTitleExists is returned by Create when an open nudge with the same
	// title is already stored.
	ErrOpenTitleExists = errors.New("an open nudge with this title already exists")
)

// Store persists nudges. Implementations must keep at most one open nudge per
// title and report a violation from Create as ErrOpenTitleExists.
type Store interface {
	// FindOpenByTitle returns open nudges with exactly this title, oldest first.
	FindOpenByTitle(ctx context.Context, title string) ([]*Nudge, error)

	// Create inserts a new nudge.
	Create(ctx context.Context, n *Nudge) error

	// UpdateContent refreshes the mutable content of an open nudge. An
	// actioned or unknown nudge is ErrNotFound.
	UpdateContent(ctx context.Context, id string, c Content) error

	// Get returns a nudge by ID.
	Get(ctx context.Context, id string) (*Nudge, error)

	// ListActive returns open nudges, priority descending then newest first.
	ListActive(ctx context.Context) ([]*Nudge, error)

	// MarkActioned closes a nudge so the title can be raised again later.
	MarkActioned(ctx context.Context, id string) error
}

// Content is the part of a nudge that an evaluation run may refresh.
type Content struct {
	Description   string
	Priority      Priority
	ActionPayload ActionPayload
	UpdatedAt     time.Time
}

// InMemoryStore implements Store with a map. It is safe for concurrent use.
type InMemoryStore struct {
	nudges map[string]*Nudge
	mu     sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nudges: make(map[string]*Nudge),
	}
}

func (s *InMemoryStore) FindOpenByTitle(ctx context.Context, title string) ([]*Nudge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []*Nudge
	for _, n := range s.nudges {
		if !n.IsActioned && n.Title == title {
			found = append(found, clone(n))
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].CreatedAt.Before(found[j].CreatedAt)
	})
	return found, nil
}

func (s *InMemoryStore) Create(ctx context.Context, n *Nudge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nudges[n.ID]; exists {
		return fmt.Errorf("nudge with ID %s already exists", n.ID)
	}
	if !n.IsActioned {
		for _, existing := range s.nudges {
			if !existing.IsActioned && existing.Title == n.Title {
				return ErrOpenTitleExists
			}
		}
	}

	s.nudges[n.ID] = clone(n)
	return nil
}

func (s *InMemoryStore) UpdateContent(ctx context.Context, id string, c Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nudges[id]
	if !exists || n.IsActioned {
		return fmt.Errorf("nudge %s: %w", id, ErrNotFound)
	}
	n.Description = c.Description
	n.Priority = c.Priority
	n.ActionPayload = copyPayload(c.ActionPayload)
	n.UpdatedAt = c.UpdatedAt
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Nudge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.nudges[id]
	if !exists {
		return nil, fmt.Errorf("nudge %s: %w", id, ErrNotFound)
	}
	return clone(n), nil
}

func (s *InMemoryStore) ListActive(ctx context.Context) ([]*Nudge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*Nudge, 0, len(s.nudges))
	for _, n := range s.nudges {
		if !n.IsActioned {
			active = append(active, clone(n))
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return Less(active[i], active[j])
	})
	return active, nil
}

func (s *InMemoryStore) MarkActioned(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nudges[id]
	if !exists {
		return fmt.Errorf("nudge %s: %w", id, ErrNotFound)
	}
	n.IsActioned = true
	n.UpdatedAt = time.Now()
	return nil
}

// All returns every stored nudge including actioned ones, oldest first.
func (s *InMemoryStore) All() []*Nudge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Nudge, 0, len(s.nudges))
	for _, n := range s.nudges {
		all = append(all, clone(n))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

// clone copies n so callers never share the stored instance.
func clone(n *Nudge) *Nudge {
	c := *n
	c.ActionPayload = copyPayload(n.ActionPayload)
	return &c
}

func copyPayload(p ActionPayload) ActionPayload {
	if p == nil {
		return nil
	}
	c := make(ActionPayload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

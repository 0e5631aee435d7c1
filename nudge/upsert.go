package nudge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Upserter writes generator results into a Store while keeping at most one
// open nudge per title. Re-running with unchanged results performs no writes.
type Upserter struct {
	store Store
	now   func() time.Time
	newID func() string
}

// UpserterOption customises an Upserter.
type UpserterOption func(*Upserter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) UpserterOption {
	return func(u *Upserter) { u.now = now }
}

// WithIDGenerator overrides how new nudge IDs are minted.
func WithIDGenerator(newID func() string) UpserterOption {
	return func(u *Upserter) { u.newID = newID }
}

// NewUpserter creates an Upserter over store.
func NewUpserter(store Store, opts ...UpserterOption) *Upserter {
	u := &Upserter{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upsert creates a nudge for r when no open nudge has its title, refreshes the
// open one when its description or priority changed, and otherwise does
// nothing. It reports whether a write happened.
func (u *Upserter) Upsert(ctx context.Context, r Result) (bool, error) {
	if r.Title == "" {
		return false, fmt.Errorf("result has no title")
	}

	existing, err := u.store.FindOpenByTitle(ctx, r.Title)
	if err != nil {
		return false, fmt.Errorf("failed to look up open nudges: %w", err)
	}

	if len(existing) == 0 {
		err := u.create(ctx, r)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrOpenTitleExists) {
			return false, err
		}

		// Another writer created the same title between lookup and insert.
		existing, err = u.store.FindOpenByTitle(ctx, r.Title)
		if err != nil {
			return false, fmt.Errorf("failed to look up open nudges: %w", err)
		}
		if len(existing) == 0 {
			return false, fmt.Errorf("open nudge %q vanished after conflict", r.Title)
		}
	}

	current := existing[0]
	if current.Description == r.Description && current.Priority == r.Priority {
		return false, nil
	}

	err = u.store.UpdateContent(ctx, current.ID, Content{
		Description:   r.Description,
		Priority:      r.Priority,
		ActionPayload: r.ActionPayload,
		UpdatedAt:     u.now(),
	})
	if errors.Is(err, ErrNotFound) {
		// Actioned since the lookup; the result opens a fresh nudge.
		err := u.create(ctx, r)
		if errors.Is(err, ErrOpenTitleExists) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update nudge %s: %w", current.ID, err)
	}
	return true, nil
}

func (u *Upserter) create(ctx context.Context, r Result) error {
	now := u.now()
	n := &Nudge{
		ID:                 u.newID(),
		Type:               r.Type,
		Priority:           r.Priority,
		Title:              r.Title,
		Description:        r.Description,
		ActionPayload:      r.ActionPayload,
		RelatedCandidateID: r.RelatedCandidateID,
		RelatedProjectID:   r.RelatedProjectID,
		RelatedClientID:    r.RelatedClientID,
		IsActioned:         false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := u.store.Create(ctx, n); err != nil {
		if errors.Is(err, ErrOpenTitleExists) {
			return err
		}
		return fmt.Errorf("failed to create nudge: %w", err)
	}
	return nil
}

package snapshot

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sitecrew/nudges/internal/logger"
)

// Source reads the records for one evaluation pass. Implementations return
// records already normalized; a record that cannot be normalized is skipped
// and logged rather than failing the whole read.
type Source interface {
	Candidates(ctx context.Context) ([]Candidate, error)
	Projects(ctx context.Context) ([]Project, error)
	Clients(ctx context.Context) ([]Client, error)
}

// Load reads candidates, projects and clients concurrently. The three reads
// are independent; any failure cancels the others and fails the load.
func Load(ctx context.Context, src Source) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		candidates, err := src.Candidates(gctx)
		if err != nil {
			return fmt.Errorf("failed to load candidates: %w", err)
		}
		snap.Candidates = candidates
		return nil
	})
	g.Go(func() error {
		projects, err := src.Projects(gctx)
		if err != nil {
			return fmt.Errorf("failed to load projects: %w", err)
		}
		snap.Projects = projects
		return nil
	})
	g.Go(func() error {
		clients, err := src.Clients(gctx)
		if err != nil {
			return fmt.Errorf("failed to load clients: %w", err)
		}
		snap.Clients = clients
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Static serves a fixed snapshot. Useful for tests and one-off evaluations.
func Static(s Snapshot) Source {
	return staticSource{snap: s}
}

type staticSource struct {
	snap Snapshot
}

func (s staticSource) Candidates(ctx context.Context) ([]Candidate, error) {
	return append([]Candidate(nil), s.snap.Candidates...), nil
}

func (s staticSource) Projects(ctx context.Context) ([]Project, error) {
	return append([]Project(nil), s.snap.Projects...), nil
}

func (s staticSource) Clients(ctx context.Context) ([]Client, error) {
	return append([]Client(nil), s.snap.Clients...), nil
}

// normalizeAll applies fn to every raw record, dropping those that fail.
func normalizeAll[T any](kind string, raws []map[string]any, fn func(map[string]any) (T, error)) []T {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		rec, err := fn(raw)
		if err != nil {
			logger.RecordsSkipped.Add(1)
			logger.Warn("skipping record", "kind", kind, "index", i, "id", raw["id"], "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

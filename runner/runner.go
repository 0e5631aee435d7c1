// Package runner drives one nudge evaluation pass: load a snapshot, run every
// generator over it, then upsert what they produced.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sitecrew/nudges/generators"
	"github.com/sitecrew/nudges/internal/logger"
	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

// ErrRunInProgress is returned when Execute is called while another run on
// the same Runner has not finished.
var ErrRunInProgress = errors.New("a nudge run is already in progress")

// Upserter persists one generator result. *nudge.Upserter satisfies it.
type Upserter interface {
	Upsert(ctx context.Context, r nudge.Result) (bool, error)
}

type Options struct {
	// UpsertTimeout bounds each individual upsert. Zero means no limit.
	UpsertTimeout time.Duration

	// Clock supplies the "now" generators evaluate against.
	Clock func() time.Time
}

func DefaultOptions() Options {
	return Options{
		UpsertTimeout: 5 * time.Second,
		Clock:         time.Now,
	}
}

// Report summarises one run.
type Report struct {
	Success       bool          `json:"success"`
	DryRun        bool          `json:"dryRun"`
	Partial       bool          `json:"partial"`
	Generated     int           `json:"generated"`
	NewNudgeCount int           `json:"newNudgeCount"`
	Logs          []string      `json:"logs"`
	Errors        []string      `json:"errors,omitempty"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
}

func (r *Report) logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

type Runner struct {
	source     snapshot.Source
	generators []generators.Generator
	upserter   Upserter
	opts       Options
	mu         sync.Mutex
}

func New(source snapshot.Source, gens []generators.Generator, upserter Upserter, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		source:     source,
		generators: gens,
		upserter:   upserter,
		opts:       opts,
	}
}

// Execute performs one run. The returned error is non-nil only when the run
// could not start or the snapshot failed to load; generator and storage
// failures are reported in Report.Errors and leave Success true.
func (r *Runner) Execute(ctx context.Context, dryRun bool) (*Report, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := time.Now()
	now := r.opts.Clock()
	report := &Report{DryRun: dryRun, StartedAt: now, Logs: []string{}}
	defer func() { report.Duration = time.Since(started) }()

	logger.Info("nudge run started", "dry_run", dryRun, "generators", len(r.generators))

	snap, err := snapshot.Load(ctx, r.source)
	if err != nil {
		logger.RunsFailed.Add(1)
		logger.Error("nudge run failed", "error", err)
		report.Error = err.Error()
		return report, fmt.Errorf("failed to load snapshot: %w", err)
	}
	report.logf("loaded %d candidates, %d projects, %d clients",
		len(snap.Candidates), len(snap.Projects), len(snap.Clients))

	results := uniqueTitles(r.generate(ctx, snap, now, report), report)
	report.Generated = len(results)
	report.logf("generated %d nudges", len(results))

	if dryRun {
		for _, res := range results {
			report.logf("[dry run] %s %s: %s", res.Priority, res.Title, res.Description)
			logger.Debug("dry run nudge", "title", res.Title, "priority", res.Priority.String(), "type", string(res.Type))
		}
	} else {
		r.upsertAll(ctx, results, report)
		report.logf("wrote %d nudges", report.NewNudgeCount)
	}

	report.Success = true
	report.Partial = len(report.Errors) > 0
	logger.RunsCompleted.Add(1)
	logger.Info("nudge run finished",
		"dry_run", dryRun,
		"generated", report.Generated,
		"written", report.NewNudgeCount,
		"errors", len(report.Errors),
		"duration", time.Since(started))
	return report, nil
}

// generate runs every generator concurrently. Output keeps generator order.
// A generator that errors or panics is recorded and the rest carry on;
// results returned alongside an error are kept.
func (r *Runner) generate(ctx context.Context, snap snapshot.Snapshot, now time.Time, report *Report) []nudge.Result {
	outs := make([][]nudge.Result, len(r.generators))
	errs := make([]error, len(r.generators))

	var g errgroup.Group
	for i, gen := range r.generators {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					errs[i] = fmt.Errorf("panic: %v", p)
				}
			}()
			outs[i], errs[i] = gen.Generate(ctx, snap, now)
			return nil
		})
	}
	_ = g.Wait()

	var results []nudge.Result
	for i, gen := range r.generators {
		if errs[i] != nil {
			logger.GeneratorFailures.Add(1)
			logger.Error("generator failed", "generator", gen.Name(), "error", errs[i])
			report.errorf("generator %s: %v", gen.Name(), errs[i])
		}
		report.logf("%s: %d nudges", gen.Name(), len(outs[i]))
		results = append(results, outs[i]...)
	}
	return results
}

// upsertAll writes results one at a time. A failed write is recorded and
// the batch continues; cancellation of ctx stops it.
func (r *Runner) upsertAll(ctx context.Context, results []nudge.Result, report *Report) {
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			report.errorf("run cancelled before all nudges were written: %v", err)
			return
		}

		written, err := r.upsertOne(ctx, res)
		if err != nil {
			logger.UpsertFailures.Add(1)
			logger.Error("failed to upsert nudge", "title", res.Title, "error", err)
			report.errorf("upsert %q: %v", res.Title, err)
			continue
		}
		if written {
			logger.NudgesWritten.Add(1)
			report.NewNudgeCount++
		}
	}
}

func (r *Runner) upsertOne(ctx context.Context, res nudge.Result) (bool, error) {
	if r.opts.UpsertTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.UpsertTimeout)
		defer cancel()
	}
	return r.upserter.Upsert(ctx, res)
}

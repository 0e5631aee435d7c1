package main

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sitecrew/nudges/internal/logger"
	"github.com/sitecrew/nudges/runner"
)

// runTimeout bounds a scheduled run.
const runTimeout = 30 * time.Minute

// scheduler triggers nudge runs on a cron expression.
type scheduler struct {
	cron *cron.Cron
}

func newScheduler(spec string, s *Server, dryRun bool) (*scheduler, error) {
	log := cronLogger{}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		report, err := s.execute(ctx, dryRun)
		switch {
		case errors.Is(err, runner.ErrRunInProgress):
			logger.Warn("scheduled run skipped, another run is in progress")
		case err != nil:
			logger.Error("scheduled run failed", "error", err)
		default:
			logger.Info("scheduled run complete", "written", report.NewNudgeCount, "partial", report.Partial)
		}
	})
	if err != nil {
		return nil, err
	}
	return &scheduler{cron: c}, nil
}

func (s *scheduler) Start() {
	s.cron.Start()
}

// Stop stops new runs and waits for a running one until ctx is done.
func (s *scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logger.Warn("scheduled run still in progress at shutdown")
	}
}

// cronLogger routes cron's own logging through the service logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

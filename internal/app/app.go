// Package app assembles the nudge service from its configuration. The HTTP
// server and the CLI share it.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sitecrew/nudges/generators"
	"github.com/sitecrew/nudges/internal/config"
	"github.com/sitecrew/nudges/internal/database"
	"github.com/sitecrew/nudges/internal/logger"
	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/rules"
	"github.com/sitecrew/nudges/runner"
	"github.com/sitecrew/nudges/snapshot"
)

type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Nudges nudge.Store
	Rules  *rules.Engine
	Runner *runner.Runner
}

// New connects to the database, migrates it, loads custom rules and builds
// the runner.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Log.Level != "" {
		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, cfg.Database.Driver); err != nil {
		db.Close()
		return nil, err
	}

	a, err := build(ctx, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*App, error) {
	engine, err := rules.NewEngine(ctx, rules.NewSQLRuleStore(db))
	if err != nil {
		return nil, err
	}

	if cfg.Rules.File != "" {
		defs, err := rules.LoadFile(cfg.Rules.File)
		if err != nil {
			return nil, err
		}
		added, updated, err := engine.Import(ctx, defs)
		if err != nil {
			return nil, fmt.Errorf("failed to import rules: %w", err)
		}
		logger.Info("custom rules imported", "file", cfg.Rules.File, "added", added, "updated", updated)
	}

	var source snapshot.Source
	switch cfg.Snapshot.Source {
	case "file":
		source = snapshot.NewFileSource(cfg.Snapshot.File)
	default:
		source = snapshot.NewSQLSource(db)
	}

	store := nudge.NewSQLStore(db)
	gens := append(generators.Builtin(cfg.Thresholds), generators.NewExpression(engine))

	opts := runner.DefaultOptions()
	opts.UpsertTimeout = cfg.Runner.UpsertTimeout

	return &App{
		Config: cfg,
		DB:     db,
		Nudges: store,
		Rules:  engine,
		Runner: runner.New(source, gens, nudge.NewUpserter(store), opts),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Package database opens the nudge database and applies its migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sitecrew/nudges/internal/logger"
	"github.com/sitecrew/nudges/migrations"
)

// Open connects to driver ("postgres" or "sqlite") and pings it.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case "postgres":
		db, err = sqlx.Open("postgres", url)
	case "sqlite":
		db, err = sqlx.Open("sqlite", sqliteDSN(url))
		if err == nil {
			// One writer at a time; also keeps ":memory:" databases on a
			// single connection.
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// sqliteDSN adds the connection options the stores rely on: a sortable time
// format and a busy timeout for the cron and HTTP triggers sharing a file.
func sqliteDSN(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_time_format=sqlite&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Migrate applies every pending up migration for driver. It is a no-op when
// the schema is current.
func Migrate(db *sqlx.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("database schema is up to date", "driver", driver)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("database migrated", "driver", driver, "version", version)
	return nil
}

// NewMigrate returns a migrate instance over the embedded migrations for
// callers that need down, version or force.
func NewMigrate(db *sqlx.DB, driver string) (*migrate.Migrate, error) {
	return newMigrate(db, driver)
}

func newMigrate(db *sqlx.DB, driver string) (*migrate.Migrate, error) {
	files, err := migrations.For(driver)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var target database.Driver
	switch driver {
	case "postgres":
		target, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case "sqlite":
		target, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

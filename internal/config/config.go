// Package config loads service settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/sitecrew/nudges/generators"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "nudges.yaml"

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres or sqlite
	URL    string `mapstructure:"url"`
}

type HTTPConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

type RunnerConfig struct {
	UpsertTimeout time.Duration `mapstructure:"upsert_timeout"`
	DryRun        bool          `mapstructure:"dry_run"`
}

type RulesConfig struct {
	// File seeds custom rules at startup. Optional.
	File string `mapstructure:"file"`
}

type SnapshotConfig struct {
	Source string `mapstructure:"source"` // database or file
	File   string `mapstructure:"file"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Database   DatabaseConfig        `mapstructure:"database"`
	HTTP       HTTPConfig            `mapstructure:"http"`
	Schedule   ScheduleConfig        `mapstructure:"schedule"`
	Runner     RunnerConfig          `mapstructure:"runner"`
	Rules      RulesConfig           `mapstructure:"rules"`
	Snapshot   SnapshotConfig        `mapstructure:"snapshot"`
	Log        LogConfig             `mapstructure:"log"`
	Thresholds generators.Thresholds `mapstructure:"thresholds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("runner.upsert_timeout", 5*time.Second)
	v.SetDefault("runner.dry_run", false)
	v.SetDefault("rules.file", "")
	v.SetDefault("snapshot.source", "database")
	v.SetDefault("snapshot.file", "")
	v.SetDefault("log.level", "INFO")

	t := generators.DefaultThresholds()
	v.SetDefault("thresholds.start_reminder_days", t.StartReminderDays)
	v.SetDefault("thresholds.visa_window_days", t.VisaWindowDays)
	v.SetDefault("thresholds.visa_critical_days", t.VisaCriticalDays)
	v.SetDefault("thresholds.site_safety_window_days", t.SiteSafetyWindowDays)
	v.SetDefault("thresholds.site_safety_high_days", t.SiteSafetyHighDays)
	v.SetDefault("thresholds.expiry_lookback_days", t.ExpiryLookbackDays)
	v.SetDefault("thresholds.unstaffed_window_days", t.UnstaffedWindowDays)
	v.SetDefault("thresholds.cold_client_days", t.ColdClientDays)
}

// Load reads path, or nudges.yaml in the working directory when path is
// empty, then applies NUDGE_* environment overrides. DATABASE_URL and PORT
// are honoured as well. A missing default file is not an error; a missing
// explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NUDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", "NUDGE_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("binding DATABASE_URL: %w", err)
	}
	if err := v.BindEnv("http.port", "NUDGE_HTTP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("binding PORT: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", DefaultFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required (or set DATABASE_URL)")
	}

	switch c.Snapshot.Source {
	case "database":
	case "file":
		if c.Snapshot.File == "" {
			return errors.New("snapshot.file is required when snapshot.source is file")
		}
	default:
		return fmt.Errorf("snapshot.source must be database or file, got %q", c.Snapshot.Source)
	}

	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err)
		}
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.Runner.UpsertTimeout < 0 {
		return errors.New("runner.upsert_timeout cannot be negative")
	}
	return nil
}

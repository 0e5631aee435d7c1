// Package generators holds the rules that turn a snapshot into nudge results.
// Generators are pure: they read the snapshot and the supplied "now" and never
// touch storage or the wall clock.
package generators

import (
	"context"
	"time"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

// Generator inspects a snapshot and emits zero or more nudge results. A
// generator may return results together with an error when only part of its
// work failed; callers keep the results.
type Generator interface {
	Name() string
	Generate(ctx context.Context, snap snapshot.Snapshot, now time.Time) ([]nudge.Result, error)
}

// Thresholds are the day windows the built-in rules use.
type Thresholds struct {
	StartReminderDays    int `mapstructure:"start_reminder_days"`
	VisaWindowDays       int `mapstructure:"visa_window_days"`
	VisaCriticalDays     int `mapstructure:"visa_critical_days"`
	SiteSafetyWindowDays int `mapstructure:"site_safety_window_days"`
	SiteSafetyHighDays   int `mapstructure:"site_safety_high_days"`
	ExpiryLookbackDays   int `mapstructure:"expiry_lookback_days"`
	UnstaffedWindowDays  int `mapstructure:"unstaffed_window_days"`
	ColdClientDays       int `mapstructure:"cold_client_days"`
}

// DefaultThresholds returns the windows the operations team agreed on.
// ExpiryLookbackDays stops year-old expiries from being raised again.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StartReminderDays:    3,
		VisaWindowDays:       45,
		VisaCriticalDays:     14,
		SiteSafetyWindowDays: 30,
		SiteSafetyHighDays:   7,
		ExpiryLookbackDays:   365,
		UnstaffedWindowDays:  7,
		ColdClientDays:       45,
	}
}

// Builtin returns the candidate, project and client generators.
func Builtin(t Thresholds) []Generator {
	return []Generator{
		NewCandidateRisk(t),
		NewProjectRisk(t),
		NewClientEngagement(t),
	}
}

const dateFormat = "Mon 2 Jan 2006"

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

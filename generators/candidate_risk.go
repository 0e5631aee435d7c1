package generators

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

// CandidateRisk raises start reminders and visa / site safety expiries.
type CandidateRisk struct {
	t Thresholds
}

func NewCandidateRisk(t Thresholds) *CandidateRisk {
	return &CandidateRisk{t: t}
}

func (g *CandidateRisk) Name() string { return "candidate_risk" }

func (g *CandidateRisk) Generate(ctx context.Context, snap snapshot.Snapshot, now time.Time) ([]nudge.Result, error) {
	var results []nudge.Result
	for _, c := range snap.Candidates {
		results = append(results, g.Evaluate(c, now)...)
	}
	return results, nil
}

// Evaluate applies each candidate rule independently.
func (g *CandidateRisk) Evaluate(c snapshot.Candidate, now time.Time) []nudge.Result {
	var results []nudge.Result
	if r, ok := g.startReminder(c, now); ok {
		results = append(results, r)
	}
	if r, ok := g.visaExpiry(c, now); ok {
		results = append(results, r)
	}
	if r, ok := g.siteSafetyExpiry(c, now); ok {
		results = append(results, r)
	}
	return results
}

// startReminder fires on exactly the reminder day, not within a window.
func (g *CandidateRisk) startReminder(c snapshot.Candidate, now time.Time) (nudge.Result, bool) {
	days := snapshot.DaysUntil(c.StartDate, now)
	if days != g.t.StartReminderDays {
		return nudge.Result{}, false
	}

	name := c.FullName()
	where := orDefault(c.CurrentProject, "site")
	if c.SiteAddress != "" {
		where = fmt.Sprintf("%s (%s)", where, c.SiteAddress)
	}
	message := fmt.Sprintf("Hi %s, just confirming you start on %s at %s. Reply YES to confirm or call us if anything has changed.",
		orDefault(c.FirstName, "there"), formatDate(c.StartDate), where)

	return nudge.Result{
		Type:               nudge.TypeTask,
		Priority:           nudge.PriorityHigh,
		Title:              "Start Reminder: " + name,
		Description:        fmt.Sprintf("%s starts in %d days at %s", name, days, where),
		ActionPayload:      nudge.SMS(c.Phone, name, message),
		RelatedCandidateID: nudge.Ref(c.ID),
	}, true
}

func (g *CandidateRisk) visaExpiry(c snapshot.Candidate, now time.Time) (nudge.Result, bool) {
	days := snapshot.DaysUntil(c.VisaExpiry, now)
	if !g.inExpiryWindow(days, g.t.VisaWindowDays) {
		return nudge.Result{}, false
	}

	priority := nudge.PriorityHigh
	if days < g.t.VisaCriticalDays || days <= 0 {
		priority = nudge.PriorityCritical
	}

	name := c.FullName()
	var description, message string
	if days <= 0 {
		description = fmt.Sprintf("%s's visa EXPIRED %d days ago", name, -days)
		message = fmt.Sprintf("Hi %s, our records show your visa expired on %s. Please send through your new visa before your next shift.",
			orDefault(c.FirstName, "there"), formatDate(c.VisaExpiry))
	} else {
		description = fmt.Sprintf("%s's visa expires in %d days", name, days)
		message = fmt.Sprintf("Hi %s, our records show your visa expires on %s. Please send through your renewed visa when you have it.",
			orDefault(c.FirstName, "there"), formatDate(c.VisaExpiry))
	}

	return nudge.Result{
		Type:               nudge.TypeComplianceRisk,
		Priority:           priority,
		Title:              "Visa Expiry: " + name,
		Description:        description,
		ActionPayload:      nudge.SMS(c.Phone, name, message),
		RelatedCandidateID: nudge.Ref(c.ID),
	}, true
}

func (g *CandidateRisk) siteSafetyExpiry(c snapshot.Candidate, now time.Time) (nudge.Result, bool) {
	if c.Compliance.SiteSafetyExpiry.IsZero() {
		return nudge.Result{}, false
	}
	days := snapshot.DaysUntil(c.Compliance.SiteSafetyExpiry, now)
	if !g.inExpiryWindow(days, g.t.SiteSafetyWindowDays) {
		return nudge.Result{}, false
	}

	priority := nudge.PriorityMedium
	switch {
	case days <= 0:
		priority = nudge.PriorityCritical
	case days <= g.t.SiteSafetyHighDays:
		priority = nudge.PriorityHigh
	}

	name := c.FullName()
	var description, message string
	if days <= 0 {
		description = fmt.Sprintf("%s's site safety certificate EXPIRED %d days ago", name, -days)
		message = fmt.Sprintf("Hi %s, your site safety certificate expired on %s. You will need to renew it before going back on site.",
			orDefault(c.FirstName, "there"), formatDate(c.Compliance.SiteSafetyExpiry))
	} else {
		description = fmt.Sprintf("%s's site safety certificate expires in %d days", name, days)
		message = fmt.Sprintf("Hi %s, your site safety certificate expires on %s. Can you book a renewal course and send us the new card?",
			orDefault(c.FirstName, "there"), formatDate(c.Compliance.SiteSafetyExpiry))
	}

	return nudge.Result{
		Type:               nudge.TypeComplianceRisk,
		Priority:           priority,
		Title:              "Site Safety Expiry: " + name,
		Description:        description,
		ActionPayload:      nudge.SMS(c.Phone, name, message),
		RelatedCandidateID: nudge.Ref(c.ID),
	}, true
}

// inExpiryWindow is true for -lookback < days <= window.
func (g *CandidateRisk) inExpiryWindow(days, window int) bool {
	return days > -g.t.ExpiryLookbackDays && days <= window
}

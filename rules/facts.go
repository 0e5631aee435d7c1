package rules

import (
	"time"

	"github.com/sitecrew/nudges/snapshot"
)

// Facts are the CEL activations for one record. Dates are present only when
// known, so expressions can test them with has(). Day counts are always set
// and follow snapshot.DaysUntil / DaysSince, so a missing date reads as
// snapshot.FarFuture days away.

// CandidateFacts builds the activation for a candidate rule.
func CandidateFacts(c snapshot.Candidate, now time.Time) map[string]any {
	fields := map[string]any{
		"id":                        c.ID,
		"firstName":                 c.FirstName,
		"lastName":                  c.LastName,
		"fullName":                  c.FullName(),
		"phone":                     c.Phone,
		"email":                     c.Email,
		"projectId":                 c.ProjectID,
		"currentProject":            c.CurrentProject,
		"siteAddress":               c.SiteAddress,
		"daysUntilStart":            snapshot.DaysUntil(c.StartDate, now),
		"daysUntilVisaExpiry":       snapshot.DaysUntil(c.VisaExpiry, now),
		"daysUntilSiteSafetyExpiry": snapshot.DaysUntil(c.Compliance.SiteSafetyExpiry, now),
	}
	putDate(fields, "startDate", c.StartDate)
	putDate(fields, "visaExpiry", c.VisaExpiry)
	putDate(fields, "siteSafetyExpiry", c.Compliance.SiteSafetyExpiry)

	return activation(EntityCandidate, fields, now)
}

// ProjectFacts builds the activation for a project rule. assigned is the
// number of candidates on the project.
func ProjectFacts(p snapshot.Project, assigned int, now time.Time) map[string]any {
	fields := map[string]any{
		"id":             p.ID,
		"name":           p.Name,
		"clientId":       p.ClientID,
		"ssaStatus":      p.SSAStatus,
		"siteAddress":    p.SiteAddress,
		"status":         p.Status,
		"contactName":    p.ContactName,
		"contactPhone":   p.ContactPhone,
		"assignedCount":  assigned,
		"daysUntilStart": snapshot.DaysUntil(p.StartDate, now),
	}
	putDate(fields, "startDate", p.StartDate)

	return activation(EntityProject, fields, now)
}

// ClientFacts builds the activation for a client rule.
func ClientFacts(c snapshot.Client, now time.Time) map[string]any {
	fields := map[string]any{
		"id":                   c.ID,
		"name":                 c.Name,
		"contactName":          c.ContactName,
		"phone":                c.Phone,
		"email":                c.Email,
		"daysSinceLastContact": snapshot.DaysSince(c.LastContact, now),
	}
	putDate(fields, "lastContact", c.LastContact)

	return activation(EntityClient, fields, now)
}

func activation(entity Entity, fields map[string]any, now time.Time) map[string]any {
	return map[string]any{
		string(entity): fields,
		"today":        now,
	}
}

func putDate(fields map[string]any, key string, t time.Time) {
	if !t.IsZero() {
		fields[key] = t
	}
}

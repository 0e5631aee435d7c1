package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sitecrew/nudges/snapshot"
)

func TestCandidateFacts(t *testing.T) {
	c := snapshot.Candidate{
		ID:         "cand-1",
		FirstName:  "Aroha",
		LastName:   "Ngata",
		StartDate:  today.AddDate(0, 0, 3),
		VisaExpiry: today.AddDate(0, 0, -2),
	}

	facts := CandidateFacts(c, today)
	assert.Equal(t, today, facts["today"])

	fields := facts["candidate"].(map[string]any)
	assert.Equal(t, "Aroha Ngata", fields["fullName"])
	assert.Equal(t, 3, fields["daysUntilStart"])
	assert.Equal(t, -2, fields["daysUntilVisaExpiry"])
	assert.Equal(t, snapshot.FarFuture, fields["daysUntilSiteSafetyExpiry"])
	assert.Contains(t, fields, "startDate")
	assert.NotContains(t, fields, "siteSafetyExpiry", "unknown dates are left out")
}

func TestProjectFacts(t *testing.T) {
	p := snapshot.Project{ID: "proj-1", Name: "Harbour Tower", SSAStatus: "Pending"}

	fields := ProjectFacts(p, 2, today)["project"].(map[string]any)
	assert.Equal(t, 2, fields["assignedCount"])
	assert.Equal(t, "Pending", fields["ssaStatus"])
	assert.Equal(t, snapshot.FarFuture, fields["daysUntilStart"])
	assert.NotContains(t, fields, "startDate")
}

func TestClientFacts(t *testing.T) {
	c := snapshot.Client{ID: "client-1", Name: "Fletcher", LastContact: today.Add(-40 * 24 * time.Hour)}

	fields := ClientFacts(c, today)["client"].(map[string]any)
	assert.Equal(t, 40, fields["daysSinceLastContact"])
	assert.Contains(t, fields, "lastContact")

	c.LastContact = time.Time{}
	fields = ClientFacts(c, today)["client"].(map[string]any)
	assert.Equal(t, 0, fields["daysSinceLastContact"])
	assert.NotContains(t, fields, "lastContact")
}

// Facts must be usable from CEL with has() and the day counters.
func TestFactsInExpressions(t *testing.T) {
	engine := newTestEngine(t)
	r := coldClientRule()
	r.Entity = EntityCandidate
	r.Condition = `!has(candidate.siteSafetyExpiry) && candidate.daysUntilStart == 3`
	r.Title = `"Missing card: " + candidate.fullName`
	r.Description = `"start " + string(candidate.startDate)`

	if err := engine.AddRule(t.Context(), r); err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}

	c := snapshot.Candidate{FirstName: "Aroha", StartDate: time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)}
	result, err := engine.Evaluate(t.Context(), r.ID, CandidateFacts(c, today))
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected a match")
	}
	if result.Title != "Missing card: Aroha" {
		t.Errorf("Title = %q", result.Title)
	}
	if result.Description != "start 2025-03-13T00:00:00Z" {
		t.Errorf("Description = %q", result.Description)
	}
}

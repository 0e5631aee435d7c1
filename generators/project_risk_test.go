package generators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

func harbourTower(offset int) snapshot.Project {
	return snapshot.Project{
		ID:           "proj-1",
		Name:         "Harbour Tower",
		StartDate:    day(offset),
		SSAStatus:    "Complete",
		ContactName:  "Jo Bloggs",
		ContactPhone: "095551234",
	}
}

func generateProjects(t *testing.T, snap snapshot.Snapshot) []nudge.Result {
	t.Helper()
	results, err := NewProjectRisk(DefaultThresholds()).Generate(context.Background(), snap, now)
	require.NoError(t, err)
	return results
}

func TestGhostTown(t *testing.T) {
	results := generateProjects(t, snapshot.Snapshot{Projects: []snapshot.Project{harbourTower(5)}})
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, nudge.TypeStaffingRisk, r.Type)
	assert.Equal(t, nudge.PriorityCritical, r.Priority)
	assert.Equal(t, "GHOST TOWN: Harbour Tower", r.Title)
	assert.Equal(t, "Harbour Tower starts in 5 days and has no crew assigned", r.Description)
	assert.Equal(t, nudge.MethodInternal, r.ActionPayload["method"])
	require.NotNil(t, r.RelatedProjectID)
	assert.Equal(t, "proj-1", *r.RelatedProjectID)
}

func TestGhostTownClearedByAssignment(t *testing.T) {
	byID := snapshot.Snapshot{
		Projects:   []snapshot.Project{harbourTower(5)},
		Candidates: []snapshot.Candidate{{ID: "cand-1", ProjectID: "proj-1"}},
	}
	assert.Empty(t, generateProjects(t, byID))

	byName := snapshot.Snapshot{
		Projects:   []snapshot.Project{harbourTower(5)},
		Candidates: []snapshot.Candidate{{ID: "cand-1", CurrentProject: "harbour tower"}},
	}
	assert.Empty(t, generateProjects(t, byName))
}

func TestProjectWindow(t *testing.T) {
	for _, offset := range []int{0, 7} {
		assert.Len(t, generateProjects(t, snapshot.Snapshot{Projects: []snapshot.Project{harbourTower(offset)}}), 1,
			"start in %d days", offset)
	}
	for _, offset := range []int{-1, 8, 30} {
		assert.Empty(t, generateProjects(t, snapshot.Snapshot{Projects: []snapshot.Project{harbourTower(offset)}}),
			"start in %d days", offset)
	}

	assert.Empty(t, generateProjects(t, snapshot.Snapshot{Projects: []snapshot.Project{{ID: "proj-2", Name: "No Date"}}}),
		"no start date")
}

func TestMissingSSA(t *testing.T) {
	p := harbourTower(4)
	p.SSAStatus = "Pending"
	snap := snapshot.Snapshot{
		Projects:   []snapshot.Project{p},
		Candidates: []snapshot.Candidate{{ID: "cand-1", ProjectID: "proj-1"}},
	}

	results := generateProjects(t, snap)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, nudge.TypeComplianceRisk, r.Type)
	assert.Equal(t, nudge.PriorityCritical, r.Priority)
	assert.Equal(t, "Missing SSA: Harbour Tower", r.Title)
	assert.Equal(t, "Harbour Tower starts in 4 days and the site safety agreement is Pending", r.Description)

	action, err := nudge.DecodeAction(r.ActionPayload)
	require.NoError(t, err)
	assert.Equal(t, "095551234", action.Recipient)
	assert.Contains(t, action.Message, "Hi Jo Bloggs")
}

func TestSSAStatusComparison(t *testing.T) {
	for _, status := range []string{"Complete", "complete", " COMPLETE "} {
		p := harbourTower(2)
		p.SSAStatus = status
		snap := snapshot.Snapshot{
			Projects:   []snapshot.Project{p},
			Candidates: []snapshot.Candidate{{ProjectID: "proj-1"}},
		}
		assert.Empty(t, generateProjects(t, snap), "status %q", status)
	}

	p := harbourTower(2)
	p.SSAStatus = ""
	results := generateProjects(t, snapshot.Snapshot{
		Projects:   []snapshot.Project{p},
		Candidates: []snapshot.Candidate{{ProjectID: "proj-1"}},
	})
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Description, "is not started")
}

func TestGhostTownAndMissingSSATogether(t *testing.T) {
	p := harbourTower(1)
	p.SSAStatus = "Draft"

	results := generateProjects(t, snapshot.Snapshot{Projects: []snapshot.Project{p}})
	require.Len(t, results, 2)
	assert.Equal(t, "GHOST TOWN: Harbour Tower", results[0].Title)
	assert.Equal(t, "Missing SSA: Harbour Tower", results[1].Title)
}

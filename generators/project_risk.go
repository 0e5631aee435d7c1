package generators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

// ssaComplete is the SSA status that clears the missing-agreement rule.
const ssaComplete = "Complete"

// ProjectRisk flags projects starting soon with no crew or no signed site
// specific safety agreement (SSA).
type ProjectRisk struct {
	t Thresholds
}

func NewProjectRisk(t Thresholds) *ProjectRisk {
	return &ProjectRisk{t: t}
}

func (g *ProjectRisk) Name() string { return "project_risk" }

func (g *ProjectRisk) Generate(ctx context.Context, snap snapshot.Snapshot, now time.Time) ([]nudge.Result, error) {
	var results []nudge.Result
	for _, p := range snap.Projects {
		days := snapshot.DaysUntil(p.StartDate, now)
		if days < 0 || days > g.t.UnstaffedWindowDays {
			continue
		}

		if len(snap.AssignedTo(p)) == 0 {
			results = append(results, g.ghostTown(p, days))
		}
		if !strings.EqualFold(strings.TrimSpace(p.SSAStatus), ssaComplete) {
			results = append(results, g.missingSSA(p, days))
		}
	}
	return results, nil
}

func (g *ProjectRisk) ghostTown(p snapshot.Project, days int) nudge.Result {
	return nudge.Result{
		Type:        nudge.TypeStaffingRisk,
		Priority:    nudge.PriorityCritical,
		Title:       "GHOST TOWN: " + p.Name,
		Description: fmt.Sprintf("%s starts in %d days and has no crew assigned", p.Name, days),
		ActionPayload: nudge.Internal(fmt.Sprintf("%s starts on %s with nobody assigned. Staff it now or confirm the start date with the client.",
			p.Name, formatDate(p.StartDate))),
		RelatedProjectID: nudge.Ref(p.ID),
	}
}

func (g *ProjectRisk) missingSSA(p snapshot.Project, days int) nudge.Result {
	status := orDefault(strings.TrimSpace(p.SSAStatus), "not started")
	message := fmt.Sprintf("Hi %s, ahead of the %s start on %s could you send through the signed site specific safety agreement? Thanks.",
		orDefault(p.ContactName, "there"), p.Name, formatDate(p.StartDate))

	return nudge.Result{
		Type:             nudge.TypeComplianceRisk,
		Priority:         nudge.PriorityCritical,
		Title:            "Missing SSA: " + p.Name,
		Description:      fmt.Sprintf("%s starts in %d days and the site safety agreement is %s", p.Name, days, status),
		ActionPayload:    nudge.SMS(p.ContactPhone, p.ContactName, message),
		RelatedProjectID: nudge.Ref(p.ID),
	}
}

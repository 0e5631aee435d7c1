package generators

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

// ClientEngagement flags clients nobody has talked to for a while. A client
// with no recorded contact date is left alone.
type ClientEngagement struct {
	t Thresholds
}

func NewClientEngagement(t Thresholds) *ClientEngagement {
	return &ClientEngagement{t: t}
}

func (g *ClientEngagement) Name() string { return "client_engagement" }

func (g *ClientEngagement) Generate(ctx context.Context, snap snapshot.Snapshot, now time.Time) ([]nudge.Result, error) {
	var results []nudge.Result
	for _, c := range snap.Clients {
		days := snapshot.DaysSince(c.LastContact, now)
		if days <= g.t.ColdClientDays {
			continue
		}

		contact := orDefault(c.ContactName, "there")
		message := fmt.Sprintf("Hi %s, it has been a while since we caught up. Have you got any crew needs coming up on your sites?", contact)

		results = append(results, nudge.Result{
			Type:            nudge.TypeChurnRisk,
			Priority:        nudge.PriorityHigh,
			Title:           "Cold Client: " + c.Name,
			Description:     fmt.Sprintf("No contact with %s for %d days", c.Name, days),
			ActionPayload:   nudge.SMS(c.Phone, c.ContactName, message),
			RelatedClientID: nudge.Ref(c.ID),
		})
	}
	return results, nil
}

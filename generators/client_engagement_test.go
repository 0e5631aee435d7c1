package generators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/snapshot"
)

func TestColdClient(t *testing.T) {
	clients := []snapshot.Client{
		{ID: "client-1", Name: "Fletcher", ContactName: "Jo", Phone: "095551234", LastContact: day(-50)},
		{ID: "client-2", Name: "Naylor Love", LastContact: day(-10)},
		{ID: "client-3", Name: "Hawkins", LastContact: day(-45)},
		{ID: "client-4", Name: "Never Called"},
	}

	results, err := NewClientEngagement(DefaultThresholds()).Generate(context.Background(),
		snapshot.Snapshot{Clients: clients}, now)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, nudge.TypeChurnRisk, r.Type)
	assert.Equal(t, nudge.PriorityHigh, r.Priority)
	assert.Equal(t, "Cold Client: Fletcher", r.Title)
	assert.Equal(t, "No contact with Fletcher for 50 days", r.Description)
	require.NotNil(t, r.RelatedClientID)
	assert.Equal(t, "client-1", *r.RelatedClientID)

	action, err := nudge.DecodeAction(r.ActionPayload)
	require.NoError(t, err)
	assert.Equal(t, "095551234", action.Recipient)
	assert.Contains(t, action.Message, "Hi Jo,")
}

func TestColdClientWithoutContactName(t *testing.T) {
	results, err := NewClientEngagement(DefaultThresholds()).Generate(context.Background(),
		snapshot.Snapshot{Clients: []snapshot.Client{{ID: "c", Name: "Fletcher", LastContact: day(-46)}}}, now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ActionPayload["message"], "Hi there,")
}

func TestBuiltinNames(t *testing.T) {
	var names []string
	for _, g := range Builtin(DefaultThresholds()) {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{"candidate_risk", "project_risk", "client_engagement"}, names)
}

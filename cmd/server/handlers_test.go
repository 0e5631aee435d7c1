package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecrew/nudges/generators"
	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/rules"
	"github.com/sitecrew/nudges/runner"
	"github.com/sitecrew/nudges/snapshot"
)

var monday = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func testSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Candidates: []snapshot.Candidate{
			{ID: "cand-1", FirstName: "Aroha", LastName: "Ngata", Phone: "0211234567", StartDate: day(3), ProjectID: "proj-2"},
		},
		Projects: []snapshot.Project{
			{ID: "proj-1", Name: "Harbour Tower", StartDate: day(5), SSAStatus: "Complete"},
		},
		Clients: []snapshot.Client{
			{ID: "client-1", Name: "Fletcher", ContactName: "Jo", LastContact: day(-50)},
		},
	}
}

type testServer struct {
	*Server
	store  *nudge.InMemoryStore
	engine *rules.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	engine, err := rules.NewEngine(ctx, rules.NewInMemoryRuleStore())
	require.NoError(t, err)

	store := nudge.NewInMemoryStore()
	gens := append(generators.Builtin(generators.DefaultThresholds()), generators.NewExpression(engine))
	opts := runner.DefaultOptions()
	opts.Clock = func() time.Time { return monday }
	run := runner.New(snapshot.Static(testSnapshot()), gens, nudge.NewUpserter(store), opts)

	return &testServer{
		Server: newServer(nil, store, engine, run, 5*time.Second),
		store:  store,
		engine: engine,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Nil(t, health.LastRunOK)
	assert.Equal(t, 0, health.ActiveRules)
}

type downDB struct{}

func (downDB) PingContext(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthUnhealthyDatabase(t *testing.T) {
	s := newTestServer(t)
	s.db = downDB{}

	rec := s.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "connection refused", health.Error)
}

func TestListNudgesEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/nudges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nudges": [], "count": 0}`, rec.Body.String())
}

func TestRunThenList(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/nudges/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[runner.Report](t, rec)
	assert.True(t, report.Success)
	assert.False(t, report.DryRun)
	assert.Equal(t, 3, report.NewNudgeCount)

	rec = s.do(t, http.MethodGet, "/api/v1/nudges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[NudgesListResponse](t, rec)
	require.Equal(t, 3, list.Count)
	assert.Equal(t, "GHOST TOWN: Harbour Tower", list.Nudges[0].Title, "critical first")
	assert.Equal(t, nudge.PriorityCritical, list.Nudges[0].Priority)

	// A second run finds nothing new.
	rec = s.do(t, http.MethodPost, "/api/v1/nudges/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[runner.Report](t, rec).NewNudgeCount)

	rec = s.do(t, http.MethodGet, "/api/v1/health", nil)
	health := decode[HealthResponse](t, rec)
	require.NotNil(t, health.LastRunOK)
	assert.True(t, *health.LastRunOK)
	assert.Equal(t, "2025-03-10T06:00:00Z", health.LastRunAt)
}

func TestRunDryRun(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/nudges/run?dryRun=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[runner.Report](t, rec)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Generated)
	assert.Empty(t, s.store.All())

	rec = s.do(t, http.MethodPost, "/api/v1/nudges/run?dryRun=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndActionNudge(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/nudges/run", nil).Code)
	id := s.store.All()[0].ID

	rec := s.do(t, http.MethodGet, "/api/v1/nudges/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[nudge.Nudge](t, rec).IsActioned)

	rec = s.do(t, http.MethodPost, "/api/v1/nudges/"+id+"/action", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[nudge.Nudge](t, rec).IsActioned)

	list := decode[NudgesListResponse](t, s.do(t, http.MethodGet, "/api/v1/nudges", nil))
	assert.Equal(t, 2, list.Count)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/nudges/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/nudges/missing/action", nil).Code)
}

func rainyWeek() RuleRequest {
	return RuleRequest{
		Name:        "Rainy week demand",
		Entity:      "client",
		Condition:   `client.daysSinceLastContact > 14`,
		Title:       `"Check in: " + client.name`,
		Description: `"Rain forecast, " + client.name + " may need extra crew"`,
		Type:        "PRE_EMPTIVE",
		Priority:    "MEDIUM",
	}
}

func TestRuleLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/rules", rainyWeek())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[rules.Rule](t, rec)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.Active)
	assert.Equal(t, nudge.PriorityMedium, created.Priority)

	rec = s.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[RulesListResponse](t, rec).Rules, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/rules/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rainy week demand", decode[rules.Rule](t, rec).Name)

	health := decode[HealthResponse](t, s.do(t, http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, 1, health.ActiveRules)

	// The rule feeds the next run.
	report := decode[runner.Report](t, s.do(t, http.MethodPost, "/api/v1/nudges/run", nil))
	assert.Equal(t, 4, report.NewNudgeCount)

	update := rainyWeek()
	update.Priority = "HIGH"
	rec = s.do(t, http.MethodPut, "/api/v1/rules/"+created.ID, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, nudge.PriorityHigh, decode[rules.Rule](t, rec).Priority)

	rec = s.do(t, http.MethodDelete, "/api/v1/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/rules/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/rules/"+created.ID, nil).Code)
}

func TestEvaluateRule(t *testing.T) {
	s := newTestServer(t)

	quiet := rainyWeek()
	quiet.Name = "Quiet on Monday"
	quiet.Condition = `client.daysSinceLastContact > 14 && today.getDayOfWeek() == 1`
	quiet.Description = `client.name + " quiet for " + string(client.daysSinceLastContact) + " days"`
	inactive := false
	quiet.Active = &inactive
	rec := s.do(t, http.MethodPost, "/api/v1/rules", quiet)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[rules.Rule](t, rec).ID
	path := "/api/v1/rules/" + id + "/evaluate"

	facts := func(days any) map[string]any {
		return map[string]any{
			"facts": map[string]any{"client": map[string]any{"name": "Fletcher", "daysSinceLastContact": days}},
			"today": monday,
		}
	}

	rec = s.do(t, http.MethodPost, path, facts(20))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[EvaluateResponse](t, rec)
	assert.True(t, got.Matched, "inactive rules can still be tried")
	assert.Equal(t, "Check in: Fletcher", got.Title)
	assert.Equal(t, "Fletcher quiet for 20 days", got.Description)
	assert.Equal(t, nudge.PriorityMedium, got.Priority)

	rec = s.do(t, http.MethodPost, path, facts(5))
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[EvaluateResponse](t, rec)
	assert.False(t, got.Matched)
	assert.Empty(t, got.Title)

	rec = s.do(t, http.MethodPost, path, map[string]any{"facts": map[string]any{"client": map[string]any{"name": "Fletcher"}}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[EvaluateResponse](t, rec).Error)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/rules/missing/evaluate", facts(20)).Code)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{"))
	bad := httptest.NewRecorder()
	s.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	assert.Empty(t, s.store.All(), "evaluating writes no nudges")
}

func TestCreateRuleErrors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/rules", rainyWeek()).Code)

	tests := []struct {
		name   string
		mutate func(r *RuleRequest)
		status int
	}{
		{"duplicate name", func(r *RuleRequest) {}, http.StatusConflict},
		{"unknown entity", func(r *RuleRequest) { r.Name = "x"; r.Entity = "site" }, http.StatusBadRequest},
		{"unknown priority", func(r *RuleRequest) { r.Name = "x"; r.Priority = "URGENT" }, http.StatusBadRequest},
		{"bad condition", func(r *RuleRequest) { r.Name = "x"; r.Condition = `client.daysSinceLastContact >` }, http.StatusBadRequest},
		{"condition is not boolean", func(r *RuleRequest) { r.Name = "x"; r.Condition = `client.name + "x"` }, http.StatusBadRequest},
		{"empty name", func(r *RuleRequest) { r.Name = "" }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := rainyWeek()
			tt.mutate(&req)
			rec := s.do(t, http.MethodPost, "/api/v1/rules", req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMissingRule(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPut, "/api/v1/rules/missing", rainyWeek())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/nudges/run", nil)

	rec := s.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	metrics := decode[map[string]int64](t, rec)
	assert.Contains(t, metrics, "runs_completed_total")
	assert.GreaterOrEqual(t, metrics["runs_completed_total"], int64(1))
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errorStatus(nudge.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, errorStatus(rules.ErrRuleNotFound))
	assert.Equal(t, http.StatusConflict, errorStatus(rules.ErrRuleExists))
	assert.Equal(t, http.StatusConflict, errorStatus(runner.ErrRunInProgress))
	assert.Equal(t, http.StatusBadRequest, errorStatus(rules.ErrInvalidRule))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("boom")))
}

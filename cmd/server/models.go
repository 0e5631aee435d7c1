package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/rules"
)

// API request and response models

// NudgesListResponse is the body of GET /api/v1/nudges
type NudgesListResponse struct {
	Nudges []*nudge.Nudge `json:"nudges"`
	Count  int            `json:"count" example:"3"`
}

// RuleRequest is the body for creating or replacing a custom rule
type RuleRequest struct {
	Name        string `json:"name" example:"Rainy week demand"`
	Entity      string `json:"entity" example:"client"`
	Condition   string `json:"condition" example:"client.daysSinceLastContact > 14"`
	Title       string `json:"title" example:"\"Check in: \" + client.name"`
	Description string `json:"description" example:"\"Rain forecast for \" + client.name"`
	Type        string `json:"type" example:"PRE_EMPTIVE"`
	Priority    string `json:"priority" example:"MEDIUM"`
	Active      *bool  `json:"active,omitempty" example:"true"`
}

func (req RuleRequest) toRule(id string) (*rules.Rule, error) {
	entity, err := rules.ParseEntity(req.Entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidRule, err)
	}
	typ, err := nudge.ParseType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidRule, err)
	}
	priority, err := nudge.ParsePriority(req.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidRule, err)
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return &rules.Rule{
		ID:          id,
		Name:        req.Name,
		Entity:      entity,
		Condition:   req.Condition,
		Title:       req.Title,
		Description: req.Description,
		Type:        typ,
		Priority:    priority,
		Active:      active,
	}, nil
}

// EvaluateRequest is the body of POST /api/v1/rules/{ruleId}/evaluate. Facts
// are keyed by entity, as the rule sees them; today defaults to now.
type EvaluateRequest struct {
	Facts map[string]any `json:"facts"`
	Today *time.Time     `json:"today,omitempty" example:"2025-03-10T06:00:00Z"`
}

// activation converts JSON numbers to int64 where they are whole, so integer
// facts compare as CEL ints.
func (req EvaluateRequest) activation(now time.Time) map[string]any {
	act := make(map[string]any, len(req.Facts)+1)
	for k, v := range req.Facts {
		act[k] = fromJSONNumbers(v)
	}
	act["today"] = now
	if req.Today != nil {
		act["today"] = *req.Today
	}
	return act
}

func fromJSONNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = fromJSONNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = fromJSONNumbers(inner)
		}
		return t
	default:
		return v
	}
}

// EvaluateResponse reports a trial evaluation of one rule.
type EvaluateResponse struct {
	RuleID      string         `json:"ruleId"`
	Matched     bool           `json:"matched"`
	Title       string         `json:"title,omitempty" example:"Check in: Fletcher"`
	Description string         `json:"description,omitempty"`
	Type        nudge.Type     `json:"type"`
	Priority    nudge.Priority `json:"priority"`
	Error       string         `json:"error,omitempty"`
}

func newEvaluateResponse(res *rules.EvaluationResult) EvaluateResponse {
	resp := EvaluateResponse{
		RuleID:      res.RuleID,
		Matched:     res.Matched,
		Title:       res.Title,
		Description: res.Description,
		Type:        res.Type,
		Priority:    res.Priority,
	}
	if res.Error != nil {
		resp.Error = res.Error.Error()
	}
	return resp
}

// RulesListResponse is the body of GET /api/v1/rules
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"nudge not found"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status" example:"healthy"`
	Error       string `json:"error,omitempty"`
	LastRunAt   string `json:"lastRunAt,omitempty" example:"2024-01-15T06:00:00Z"`
	LastRunOK   *bool  `json:"lastRunOk,omitempty"`
	ActiveRules int    `json:"activeRules"`
}

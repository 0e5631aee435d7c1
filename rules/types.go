package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sitecrew/nudges/nudge"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrRuleExists   = errors.New("rule already exists")
)

// Entity names the record kind a rule is evaluated against. It is also the
// CEL variable the rule's expressions read from.
type Entity string

const (
	EntityCandidate Entity = "candidate"
	EntityProject   Entity = "project"
	EntityClient    Entity = "client"
)

var Entities = []Entity{EntityCandidate, EntityProject, EntityClient}

func (e Entity) Valid() bool {
	switch e {
	case EntityCandidate, EntityProject, EntityClient:
		return true
	}
	return false
}

func ParseEntity(s string) (Entity, error) {
	e := Entity(strings.ToLower(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", fmt.Errorf("unknown entity %q", s)
	}
	return e, nil
}

// Rule is an operator-defined nudge rule. Condition is a CEL boolean
// expression; Title and Description are CEL string expressions rendered only
// when the condition matches.
type Rule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Entity      Entity         `json:"entity"`
	Condition   string         `json:"condition"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        nudge.Type     `json:"type"`
	Priority    nudge.Priority `json:"priority"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// EvaluationResult contains the outcome of evaluating one rule against one
// record.
type EvaluationResult struct {
	RuleID      string
	RuleName    string
	Matched     bool
	Title       string
	Description string
	Type        nudge.Type
	Priority    nudge.Priority
	Error       error
	Trace       any // CEL evaluation state of the condition
}

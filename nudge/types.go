package nudge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Priority orders nudges for display. Higher values sort first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "LOW",
	PriorityMedium:   "MEDIUM",
	PriorityHigh:     "HIGH",
	PriorityCritical: "CRITICAL",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts a priority name (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == want {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Type tags the rule category a nudge came from.
type Type string

const (
	TypeChurnRisk      Type = "CHURN_RISK"
	TypeComplianceRisk Type = "COMPLIANCE_RISK"
	TypeStaffingRisk   Type = "STAFFING_RISK"
	TypePreEmptive     Type = "PRE_EMPTIVE"
	TypeTask           Type = "TASK"
)

// Types lists every nudge type in a stable order.
var Types = []Type{TypeChurnRisk, TypeComplianceRisk, TypeStaffingRisk, TypePreEmptive, TypeTask}

func (t Type) Valid() bool {
	switch t {
	case TypeChurnRisk, TypeComplianceRisk, TypeStaffingRisk, TypePreEmptive, TypeTask:
		return true
	}
	return false
}

// ParseType converts a type name (case-insensitive) to a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown nudge type %q", s)
	}
	return t, nil
}

// ActionPayload is the free-form bag stored alongside a nudge. Generators put a
// suggested outbound communication in it; see SuggestedAction.
type ActionPayload map[string]any

// Equal compares two payloads by their JSON encoding.
func (p ActionPayload) Equal(other ActionPayload) bool {
	if len(p) == 0 && len(other) == 0 {
		return true
	}
	a, errA := json.Marshal(p)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && string(a) == string(b)
}

// Nudge is a persisted alert or opportunity surfaced to a consultant.
type Nudge struct {
	ID                 string        `json:"id"`
	Type               Type          `json:"type"`
	Priority           Priority      `json:"priority"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	ActionPayload      ActionPayload `json:"actionPayload,omitempty"`
	RelatedCandidateID *string       `json:"relatedCandidateId,omitempty"`
	RelatedProjectID   *string       `json:"relatedProjectId,omitempty"`
	RelatedClientID    *string       `json:"relatedClientId,omitempty"`
	IsActioned         bool          `json:"isActioned"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Result is what a generator emits: a nudge that may or may not be persisted.
type Result struct {
	Type               Type
	Priority           Priority
	Title              string
	Description        string
	ActionPayload      ActionPayload
	RelatedCandidateID *string
	RelatedProjectID   *string
	RelatedClientID    *string
}

// Ref returns a pointer to a copy of id, or nil when id is empty.
func Ref(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// Less reports whether a sorts before b in the active list:
// priority descending, then newest first.
func Less(a, b *Nudge) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.After(b.CreatedAt)
}

package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sitecrew/nudges/nudge"
)

// ruleFile is the on-disk layout of a rules file:
//
//	rules:
//	  - name: Wet week labour demand
//	    entity: client
//	    condition: client.daysSinceLastContact > 14
//	    title: '"Check in: " + client.name'
//	    description: '"Rain forecast, " + client.name + " may need extra crew"'
//	    type: PRE_EMPTIVE
//	    priority: MEDIUM
type ruleFile struct {
	Rules []ruleDef `yaml:"rules"`
}

type ruleDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Entity      string `yaml:"entity"`
	Condition   string `yaml:"condition"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Priority    string `yaml:"priority"`
	Active      *bool  `yaml:"active"`
}

// LoadFile reads rule definitions from a YAML file. Rules are active unless
// the file says otherwise.
func LoadFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes the YAML rules layout.
func ParseFile(data []byte) ([]*Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	out := make([]*Rule, 0, len(f.Rules))
	for i, def := range f.Rules {
		r, err := def.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, def.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (d ruleDef) toRule() (*Rule, error) {
	entity, err := ParseEntity(d.Entity)
	if err != nil {
		return nil, err
	}
	typ, err := nudge.ParseType(d.Type)
	if err != nil {
		return nil, err
	}
	priority, err := nudge.ParsePriority(d.Priority)
	if err != nil {
		return nil, err
	}

	active := true
	if d.Active != nil {
		active = *d.Active
	}

	r := &Rule{
		ID:          d.ID,
		Name:        d.Name,
		Entity:      entity,
		Condition:   d.Condition,
		Title:       d.Title,
		Description: d.Description,
		Type:        typ,
		Priority:    priority,
		Active:      active,
	}
	if err := ValidateRule(r); err != nil {
		return nil, err
	}
	return r, nil
}

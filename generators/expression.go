package generators

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/rules"
	"github.com/sitecrew/nudges/snapshot"
)

// Expression runs the operator-defined CEL rules. Each matching (rule,
// record) pair becomes one result; rules are expected to put something
// record-specific in the title so results do not collapse into one nudge.
type Expression struct {
	engine *rules.Engine
}

func NewExpression(engine *rules.Engine) *Expression {
	return &Expression{engine: engine}
}

func (g *Expression) Name() string { return "custom_rules" }

func (g *Expression) Generate(ctx context.Context, snap snapshot.Snapshot, now time.Time) ([]nudge.Result, error) {
	var (
		results []nudge.Result
		failed  = make(map[string]error)
	)

	run := func(entity rules.Entity, activation map[string]any, ref func(*nudge.Result)) error {
		evals, err := g.engine.EvaluateAll(ctx, entity, activation)
		if err != nil {
			return err
		}
		for _, ev := range evals {
			if ev.Error != nil {
				if _, seen := failed[ev.RuleName]; !seen {
					failed[ev.RuleName] = ev.Error
				}
				continue
			}
			if !ev.Matched || strings.TrimSpace(ev.Title) == "" {
				continue
			}
			r := nudge.Result{
				Type:          ev.Type,
				Priority:      ev.Priority,
				Title:         ev.Title,
				Description:   ev.Description,
				ActionPayload: nudge.Internal(ev.Description),
			}
			r.ActionPayload["rule"] = ev.RuleName
			ref(&r)
			results = append(results, r)
		}
		return nil
	}

	if g.hasRules(ctx, rules.EntityCandidate) {
		for _, c := range snap.Candidates {
			id := c.ID
			err := run(rules.EntityCandidate, rules.CandidateFacts(c, now), func(r *nudge.Result) {
				r.RelatedCandidateID = nudge.Ref(id)
			})
			if err != nil {
				return results, err
			}
		}
	}

	if g.hasRules(ctx, rules.EntityProject) {
		for _, p := range snap.Projects {
			id := p.ID
			err := run(rules.EntityProject, rules.ProjectFacts(p, len(snap.AssignedTo(p)), now), func(r *nudge.Result) {
				r.RelatedProjectID = nudge.Ref(id)
			})
			if err != nil {
				return results, err
			}
		}
	}

	if g.hasRules(ctx, rules.EntityClient) {
		for _, c := range snap.Clients {
			id := c.ID
			err := run(rules.EntityClient, rules.ClientFacts(c, now), func(r *nudge.Result) {
				r.RelatedClientID = nudge.Ref(id)
			})
			if err != nil {
				return results, err
			}
		}
	}

	return results, joinRuleErrors(failed)
}

// hasRules lets Generate skip building facts for entities with no rules. A
// lookup error is surfaced by the EvaluateAll call that follows.
func (g *Expression) hasRules(ctx context.Context, entity rules.Entity) bool {
	active, err := g.engine.ActiveRules(ctx, entity)
	return err != nil || len(active) > 0
}

// joinRuleErrors reports each failing rule once, in name order.
func joinRuleErrors(failed map[string]error) error {
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("rule %q: %w", name, failed[name]))
	}
	return errors.Join(errs...)
}

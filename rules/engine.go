package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
)

// costLimit bounds a single expression evaluation.
const costLimit = 1000000

// program is the compiled form of one rule.
type program struct {
	condition   cel.Program
	title       cel.Program
	description cel.Program
}

// Engine compiles operator rules to CEL programs and evaluates them against
// record facts. Safe for concurrent use.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache
	programs map[string]*program // ruleID -> compiled program
	mu       sync.RWMutex
}

// NewEnv declares one dynamic variable per entity plus "today".
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(string(EntityCandidate), cel.DynType),
		cel.Variable(string(EntityProject), cel.DynType),
		cel.Variable(string(EntityClient), cel.DynType),
		cel.Variable("today", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine creates an engine and compiles every active rule in store.
func NewEngine(ctx context.Context, store RuleStore) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRulesCache(DefaultCacheConfig()),
		programs: make(map[string]*program),
	}

	if err := en.CompileAllRules(ctx); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// Compile checks a rule's expressions without storing anything.
func (en *Engine) Compile(r *Rule) error {
	_, err := en.compile(r)
	return err
}

func (en *Engine) compile(r *Rule) (*program, error) {
	condition, err := en.compileExpr(r.Condition, cel.BoolType)
	if err != nil {
		return nil, fmt.Errorf("condition: %w", err)
	}
	title, err := en.compileExpr(r.Title, cel.StringType)
	if err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	description, err := en.compileExpr(r.Description, cel.StringType)
	if err != nil {
		return nil, fmt.Errorf("description: %w", err)
	}
	return &program{condition: condition, title: title, description: description}, nil
}

func (en *Engine) compileExpr(expression string, want *cel.Type) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(want) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression yields %s, want %s", out, want)
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// CompileAllRules compiles every active rule and primes the cache.
func (en *Engine) CompileAllRules(ctx context.Context) error {
	rules, err := en.store.ListActive(ctx)
	if err != nil {
		return err
	}

	compiled := make(map[string]*program, len(rules))
	for _, rule := range rules {
		prog, err := en.compile(rule)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		compiled[rule.ID] = prog
	}

	en.mu.Lock()
	for id, prog := range compiled {
		en.programs[id] = prog
	}
	en.mu.Unlock()

	en.cache.Set(rules)
	return nil
}

// Get returns a stored rule.
func (en *Engine) Get(ctx context.Context, id string) (*Rule, error) {
	return en.store.Get(ctx, id)
}

// List returns every stored rule, active or not.
func (en *Engine) List(ctx context.Context) ([]*Rule, error) {
	return en.store.List(ctx)
}

// AddRule validates, compiles and stores r. An empty ID is filled in.
func (en *Engine) AddRule(ctx context.Context, r *Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := ValidateRule(r); err != nil {
		return err
	}

	if _, err := en.store.Get(ctx, r.ID); err == nil {
		return fmt.Errorf("rule %s: %w", r.ID, ErrRuleExists)
	} else if !errors.Is(err, ErrRuleNotFound) {
		return err
	}

	prog, err := en.compile(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if err := en.store.Add(ctx, r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = prog
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// UpdateRule validates and recompiles r before replacing the stored rule.
func (en *Engine) UpdateRule(ctx context.Context, r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	prog, err := en.compile(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if err := en.store.Update(ctx, r); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[r.ID] = prog
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

func (en *Engine) DeleteRule(ctx context.Context, ruleID string) error {
	if err := en.store.Delete(ctx, ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// Import adds or updates rules matched by name. It stops at the first rule
// that fails validation; rules before it stay applied.
func (en *Engine) Import(ctx context.Context, rules []*Rule) (added, updated int, err error) {
	existing, err := en.store.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	byName := make(map[string]*Rule, len(existing))
	for _, r := range existing {
		byName[r.Name] = r
	}

	for _, r := range rules {
		if current, ok := byName[r.Name]; ok {
			r.ID = current.ID
			if err := en.UpdateRule(ctx, r); err != nil {
				return added, updated, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			updated++
			continue
		}
		if err := en.AddRule(ctx, r); err != nil {
			return added, updated, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		byName[r.Name] = r
		added++
	}
	return added, updated, nil
}

// Evaluate evaluates one rule against activation, whether or not the rule is
// active. A failed evaluation returns the result with its Error set.
func (en *Engine) Evaluate(ctx context.Context, ruleID string, activation map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	en.mu.RLock()
	_, compiled := en.programs[rule.ID]
	en.mu.RUnlock()
	if !compiled {
		prog, err := en.compile(rule)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		en.mu.Lock()
		en.programs[rule.ID] = prog
		en.mu.Unlock()
	}

	res := en.evaluate(ctx, rule, activation)
	return res, res.Error
}

// EvaluateAll evaluates every active rule for entity against activation.
// A failing rule is reported in its result and does not stop the others.
func (en *Engine) EvaluateAll(ctx context.Context, entity Entity, activation map[string]any) ([]*EvaluationResult, error) {
	rules, err := en.ActiveRules(ctx, entity)
	if err != nil {
		return nil, err
	}

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.evaluate(ctx, rule, activation))
	}
	return results, nil
}

// ActiveRules returns the active rules for entity, from the cache when it is
// warm.
func (en *Engine) ActiveRules(ctx context.Context, entity Entity) ([]*Rule, error) {
	if rules := en.cache.Get(entity); rules != nil {
		return rules, nil
	}

	all, err := en.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	en.cache.Set(all)

	var rules []*Rule
	for _, r := range all {
		if r.Entity == entity {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func (en *Engine) evaluate(ctx context.Context, rule *Rule, activation map[string]any) *EvaluationResult {
	res := &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Type:     rule.Type,
		Priority: rule.Priority,
	}

	en.mu.RLock()
	prog, exists := en.programs[rule.ID]
	en.mu.RUnlock()

	if !exists {
		res.Error = fmt.Errorf("rule %s is not compiled", rule.ID)
		return res
	}

	out, details, err := prog.condition.ContextEval(ctx, activation)
	if details != nil {
		res.Trace = details.State()
	}
	if err != nil {
		res.Error = err
		return res
	}

	// Non-boolean results count as no match.
	if matched, ok := out.Value().(bool); !ok || !matched {
		return res
	}
	res.Matched = true

	if res.Title, err = evalString(ctx, prog.title, activation); err != nil {
		res.Error = fmt.Errorf("title: %w", err)
		return res
	}
	if res.Description, err = evalString(ctx, prog.description, activation); err != nil {
		res.Error = fmt.Errorf("description: %w", err)
	}
	return res
}

func evalString(ctx context.Context, prog cel.Program, activation map[string]any) (string, error) {
	out, _, err := prog.ContextEval(ctx, activation)
	if err != nil {
		return "", err
	}
	s, ok := out.Value().(string)
	if !ok {
		return "", fmt.Errorf("expression yielded %T, want string", out.Value())
	}
	return s, nil
}

package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sitecrew/nudges/nudge"
)

// SQLRuleStore implements RuleStore backed by the nudge_rules table on
// PostgreSQL or SQLite.
type SQLRuleStore struct {
	db *sqlx.DB
}

func NewSQLRuleStore(db *sqlx.DB) *SQLRuleStore {
	return &SQLRuleStore{db: db}
}

const ruleColumns = `id, name, entity, condition, title, description, type, priority, active, created_at, updated_at`

type ruleRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Entity      string    `db:"entity"`
	Condition   string    `db:"condition"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Type        string    `db:"type"`
	Priority    string    `db:"priority"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r ruleRow) toRule() (*Rule, error) {
	priority, err := nudge.ParsePriority(r.Priority)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return &Rule{
		ID:          r.ID,
		Name:        r.Name,
		Entity:      Entity(r.Entity),
		Condition:   r.Condition,
		Title:       r.Title,
		Description: r.Description,
		Type:        nudge.Type(r.Type),
		Priority:    priority,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func (s *SQLRuleStore) Add(ctx context.Context, rule *Rule) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists, s.db.Rebind(`
		SELECT EXISTS(SELECT 1 FROM nudge_rules WHERE id = ? OR name = ?)
	`), rule.ID, rule.Name)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule %s (%s): %w", rule.ID, rule.Name, ErrRuleExists)
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO nudge_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), rule.ID, rule.Name, string(rule.Entity), rule.Condition, rule.Title, rule.Description,
		string(rule.Type), rule.Priority.String(), rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

func (s *SQLRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	var row ruleRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+ruleColumns+`
		FROM nudge_rules
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return row.toRule()
}

func (s *SQLRuleStore) List(ctx context.Context) ([]*Rule, error) {
	return s.selectRules(ctx, `
		SELECT `+ruleColumns+`
		FROM nudge_rules
		ORDER BY name ASC
	`)
}

func (s *SQLRuleStore) ListActive(ctx context.Context) ([]*Rule, error) {
	return s.selectRules(ctx, `
		SELECT `+ruleColumns+`
		FROM nudge_rules
		WHERE active = ?
		ORDER BY name ASC
	`, true)
}

func (s *SQLRuleStore) selectRules(ctx context.Context, query string, args ...any) ([]*Rule, error) {
	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	rulesList := make([]*Rule, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRule()
		if err != nil {
			return nil, err
		}
		rulesList = append(rulesList, r)
	}
	return rulesList, nil
}

// Update modifies an existing rule. CreatedAt is left as stored.
func (s *SQLRuleStore) Update(ctx context.Context, rule *Rule) error {
	existing, err := s.Get(ctx, rule.ID)
	if err != nil {
		return err
	}

	var clash bool
	err = s.db.GetContext(ctx, &clash, s.db.Rebind(`
		SELECT EXISTS(SELECT 1 FROM nudge_rules WHERE name = ? AND id <> ?)
	`), rule.Name, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to check rule name: %w", err)
	}
	if clash {
		return fmt.Errorf("rule named %q: %w", rule.Name, ErrRuleExists)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE nudge_rules
		SET name = ?, entity = ?, condition = ?, title = ?, description = ?,
			type = ?, priority = ?, active = ?, updated_at = ?
		WHERE id = ?
	`), rule.Name, string(rule.Entity), rule.Condition, rule.Title, rule.Description,
		string(rule.Type), rule.Priority.String(), rule.Active, rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return expectRule(result, rule.ID)
}

func (s *SQLRuleStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM nudge_rules
		WHERE id = ?
	`), id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return expectRule(result, id)
}

func expectRule(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return nil
}

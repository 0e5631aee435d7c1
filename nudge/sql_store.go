package nudge

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore implements Store on PostgreSQL or SQLite. Queries are written with
// '?' placeholders and rebound for the connected driver. The at-most-one-open
// invariant is backed by the nudges_open_title_idx partial unique index.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a SQL-backed nudge store.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const nudgeColumns = `id, type, priority, title, description, action_payload,
	related_candidate_id, related_project_id, related_client_id,
	is_actioned, created_at, updated_at`

type nudgeRow struct {
	ID                 string         `db:"id"`
	Type               string         `db:"type"`
	Priority           string         `db:"priority"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	ActionPayload      payloadColumn  `db:"action_payload"`
	RelatedCandidateID sql.NullString `db:"related_candidate_id"`
	RelatedProjectID   sql.NullString `db:"related_project_id"`
	RelatedClientID    sql.NullString `db:"related_client_id"`
	IsActioned         bool           `db:"is_actioned"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r nudgeRow) toNudge() (*Nudge, error) {
	priority, err := ParsePriority(r.Priority)
	if err != nil {
		return nil, fmt.Errorf("nudge %s: %w", r.ID, err)
	}
	return &Nudge{
		ID:                 r.ID,
		Type:               Type(r.Type),
		Priority:           priority,
		Title:              r.Title,
		Description:        r.Description,
		ActionPayload:      ActionPayload(r.ActionPayload),
		RelatedCandidateID: nullToPtr(r.RelatedCandidateID),
		RelatedProjectID:   nullToPtr(r.RelatedProjectID),
		RelatedClientID:    nullToPtr(r.RelatedClientID),
		IsActioned:         r.IsActioned,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}

func (s *SQLStore) FindOpenByTitle(ctx context.Context, title string) ([]*Nudge, error) {
	var rows []nudgeRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+nudgeColumns+`
		FROM nudges
		WHERE title = ? AND is_actioned = ?
		ORDER BY created_at ASC
	`), title, false)
	if err != nil {
		return nil, fmt.Errorf("failed to find open nudges: %w", err)
	}
	return toNudges(rows)
}

// Create inserts n. A conflict on the open-title index leaves the table
// untouched and returns ErrOpenTitleExists.
func (s *SQLStore) Create(ctx context.Context, n *Nudge) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO nudges (`+nudgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), n.ID, string(n.Type), n.Priority.String(), n.Title, n.Description,
		payloadColumn(n.ActionPayload),
		ptrToNull(n.RelatedCandidateID), ptrToNull(n.RelatedProjectID), ptrToNull(n.RelatedClientID),
		n.IsActioned, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert nudge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOpenTitleExists
	}
	return nil
}

func (s *SQLStore) UpdateContent(ctx context.Context, id string, c Content) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE nudges
		SET description = ?, priority = ?, action_payload = ?, updated_at = ?
		WHERE id = ? AND is_actioned = ?
	`), c.Description, c.Priority.String(), payloadColumn(c.ActionPayload), c.UpdatedAt.UTC(), id, false)
	if err != nil {
		return fmt.Errorf("failed to update nudge: %w", err)
	}
	return expectOneRow(result, id)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Nudge, error) {
	var row nudgeRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+nudgeColumns+`
		FROM nudges
		WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("nudge %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get nudge: %w", err)
	}
	return row.toNudge()
}

func (s *SQLStore) ListActive(ctx context.Context) ([]*Nudge, error) {
	var rows []nudgeRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT `+nudgeColumns+`
		FROM nudges
		WHERE is_actioned = ?
		ORDER BY
			CASE priority
				WHEN 'CRITICAL' THEN 4
				WHEN 'HIGH' THEN 3
				WHEN 'MEDIUM' THEN 2
				ELSE 1
			END DESC,
			created_at DESC
	`), false)
	if err != nil {
		return nil, fmt.Errorf("failed to list active nudges: %w", err)
	}
	return toNudges(rows)
}

func (s *SQLStore) MarkActioned(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE nudges
		SET is_actioned = ?, updated_at = ?
		WHERE id = ?
	`), true, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark nudge actioned: %w", err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("nudge %s: %w", id, ErrNotFound)
	}
	return nil
}

func toNudges(rows []nudgeRow) ([]*Nudge, error) {
	nudges := make([]*Nudge, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNudge()
		if err != nil {
			return nil, err
		}
		nudges = append(nudges, n)
	}
	return nudges, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func ptrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// payloadColumn stores an ActionPayload as JSON text (jsonb on PostgreSQL).
type payloadColumn map[string]any

func (p payloadColumn) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode action payload: %w", err)
	}
	return string(b), nil
}

func (p *payloadColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported action payload type %T", src)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to decode action payload: %w", err)
	}
	*p = m
	return nil
}

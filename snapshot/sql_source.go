package snapshot

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLSource reads the candidates, projects and clients tables. Rows are
// scanned into maps and passed through the same normalization as any other
// record, so loosely typed columns (dates stored as text, compliance as JSON)
// are handled in one place.
type SQLSource struct {
	db *sqlx.DB
}

// NewSQLSource creates a source over db.
func NewSQLSource(db *sqlx.DB) *SQLSource {
	return &SQLSource{db: db}
}

func (s *SQLSource) Candidates(ctx context.Context) ([]Candidate, error) {
	raws, err := s.scanAll(ctx, "SELECT * FROM candidates ORDER BY id")
	if err != nil {
		return nil, err
	}
	return normalizeAll("candidate", raws, NormalizeCandidate), nil
}

func (s *SQLSource) Projects(ctx context.Context) ([]Project, error) {
	raws, err := s.scanAll(ctx, "SELECT * FROM projects ORDER BY id")
	if err != nil {
		return nil, err
	}
	return normalizeAll("project", raws, NormalizeProject), nil
}

func (s *SQLSource) Clients(ctx context.Context) ([]Client, error) {
	raws, err := s.scanAll(ctx, "SELECT * FROM clients ORDER BY id")
	if err != nil {
		return nil, err
	}
	return normalizeAll("client", raws, NormalizeClient), nil
}

func (s *SQLSource) scanAll(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

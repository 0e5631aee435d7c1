package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource reads a JSON export of the operational data:
//
//	{"candidates": [...], "projects": [...], "clients": [...]}
//
// The file is re-read on every call so a running server picks up new exports.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type export struct {
	Candidates []map[string]any `json:"candidates"`
	Projects   []map[string]any `json:"projects"`
	Clients    []map[string]any `json:"clients"`
}

func (s *FileSource) read() (*export, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	var e export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", s.path, err)
	}
	return &e, nil
}

func (s *FileSource) Candidates(ctx context.Context) ([]Candidate, error) {
	e, err := s.read()
	if err != nil {
		return nil, err
	}
	return normalizeAll("candidate", e.Candidates, NormalizeCandidate), nil
}

func (s *FileSource) Projects(ctx context.Context) ([]Project, error) {
	e, err := s.read()
	if err != nil {
		return nil, err
	}
	return normalizeAll("project", e.Projects, NormalizeProject), nil
}

func (s *FileSource) Clients(ctx context.Context) ([]Client, error) {
	e, err := s.read()
	if err != nil {
		return nil, err
	}
	return normalizeAll("client", e.Clients, NormalizeClient), nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"avito-assist/internal/core/domain"
	"avito-assist/internal/core/ports"
)

// Ensure FileStore implements the required interfaces
var (
	_ ports.ProjectStore = (*FileStore)(nil)
	_ ports.TokenStore   = (*FileStore)(nil)
)

// File names inside the data directory
const (
	projectsFileName = "projects.json"
	tokensFileName   = "avito_tokens.json"
)

// FileStore keeps projects and tokens as JSON documents in one directory.
// Writes go to a temp file that is renamed over the target, so readers see
// either the old or the new document.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the data directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// ============================================================================
// ProjectStore Implementation
// ============================================================================

// Get loads a project by id; nil, nil when absent
func (s *FileStore) Get(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readProjects()
	if err != nil {
		return nil, err
	}
	return projects[id], nil
}

// Upsert inserts or replaces a project
func (s *FileStore) Upsert(_ context.Context, project *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readProjects()
	if err != nil {
		return err
	}
	projects[project.ID] = project

	if err := s.writeJSON(projectsFileName, projects); err != nil {
		return fmt.Errorf("save project: %w", err)
	}

	slog.Info("Project saved", "project_id", project.ID)
	return nil
}

// List returns every project ordered by id
func (s *FileStore) List(_ context.Context) ([]*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.readProjects()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FileStore) readProjects() (map[string]*domain.Project, error) {
	var raw map[string]json.RawMessage
	found, err := s.readJSON(projectsFileName, &raw)
	if err != nil {
		return nil, fmt.Errorf("read projects: %w", err)
	}

	projects := make(map[string]*domain.Project, len(raw))
	if !found {
		return projects, nil
	}

	for id, data := range raw {
		project := domain.NewProject()
		if err := json.Unmarshal(data, project); err != nil {
			return nil, fmt.Errorf("decode project %s: %w", id, err)
		}
		if project.ID == "" {
			project.ID = id
		}
		projects[id] = project
	}
	return projects, nil
}

// ============================================================================
// TokenStore Implementation
// ============================================================================

type storedTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    expiresAt `json:"expires_at"`
}

// expiresAt is written as an ISO-8601 string. Reads also accept naive ISO
// timestamps (taken as UTC) and unix seconds.
type expiresAt struct {
	time.Time
}

func (e expiresAt) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(e.UTC().Format(time.RFC3339))
}

func (e *expiresAt) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		e.Time = time.Time{}
	case float64:
		e.Time = time.Unix(int64(v), 0).UTC()
	case string:
		if v == "" {
			e.Time = time.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			t, err = time.ParseInLocation("2006-01-02T15:04:05.999999999", v, time.UTC)
			if err != nil {
				return fmt.Errorf("invalid expires_at %q: %w", v, err)
			}
		}
		e.Time = t.UTC()
	default:
		return fmt.Errorf("invalid expires_at %s", string(data))
	}
	return nil
}

// GetCurrentTokens returns the default account's tokens; nil, nil when absent
func (s *FileStore) GetCurrentTokens(_ context.Context) (*domain.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all map[string]storedTokens
	found, err := s.readJSON(tokensFileName, &all)
	if err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}
	if !found {
		return nil, nil
	}

	stored, ok := all[defaultAccount]
	if !ok {
		return nil, nil
	}

	return &domain.Tokens{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    stored.ExpiresAt.Time,
	}, nil
}

// SaveTokens replaces the default account's tokens
func (s *FileStore) SaveTokens(_ context.Context, tokens *domain.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := map[string]storedTokens{}
	if _, err := s.readJSON(tokensFileName, &all); err != nil {
		return fmt.Errorf("read tokens: %w", err)
	}
	if all == nil {
		all = map[string]storedTokens{}
	}

	all[defaultAccount] = storedTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiresAt{tokens.ExpiresAt},
	}

	if err := s.writeJSON(tokensFileName, all); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}

	slog.Info("Avito tokens saved", "expires_at", tokens.ExpiresAt)
	return nil
}

// ============================================================================
// File helpers
// ============================================================================

// readJSON decodes the named file into v. A missing or empty file is not an
// error and reports found=false.
func (s *FileStore) readJSON(name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

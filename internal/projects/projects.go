// Package projects persists project metadata and per-project chat history.
package projects

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/logging"
)

// Project statuses
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// ErrNotFound is returned for unknown ids.
var ErrNotFound = errors.New("project not found")

// Project is the metadata of one workspace.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Status      string `json:"status"`
}

// Store keeps projects in <dir>/projects.json keyed by id.
type Store struct {
	path     string
	projects map[string]*Project
	logger   *logging.Logger
	now      func() time.Time
	mu       sync.RWMutex
}

// Open loads the store in dir. An unreadable file starts an empty store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &Store{
		path:     filepath.Join(dir, "projects.json"),
		projects: make(map[string]*Project),
		logger:   logging.New().WithComponent("projects"),
		now:      time.Now,
	}
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.projects); err != nil {
			s.logger.Warn("discarding unreadable project store", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
			s.projects = make(map[string]*Project)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	return s, nil
}

// Create adds an active project with a short random id.
func (s *Store) Create(name, description string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()[:8]
	for s.projects[id] != nil {
		id = uuid.New().String()[:8]
	}
	now := s.timestamp()
	p := &Project{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusActive,
	}
	s.projects[id] = p
	if err := s.flush(); err != nil {
		delete(s.projects, id)
		return nil, err
	}
	cp := *p
	return &cp, nil
}

// Get returns a copy of the project.
func (s *Store) Get(id string) (*Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// Exists reports whether id names a project that is not deleted.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return ok && p.Status != StatusDeleted
}

// Update changes name and/or description; nil leaves a field alone.
func (s *Store) Update(id string, name, description *string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	p.UpdatedAt = s.timestamp()
	if err := s.flush(); err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

// Delete marks the project deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = StatusDeleted
	p.UpdatedAt = s.timestamp()
	return s.flush()
}

// Purge removes the project record entirely.
func (s *Store) Purge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	return s.flush()
}

// List returns projects, most recently updated first.
func (s *Store) List(includeDeleted bool) []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		if !includeDeleted && p.Status == StatusDeleted {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt == out[j].UpdatedAt {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// flush writes the store. Caller holds mu.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.projects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode projects: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write projects: %w", err)
	}
	return os.Rename(tmp, s.path)
}

package jail

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
)

// ErrInvalidID is returned for project ids that cannot name a directory.
var ErrInvalidID = errors.New("invalid project id")

// Manager owns the jails of every project under one base directory.
// Its lifetime is that of the hosting process.
type Manager struct {
	base   string
	opts   []Option
	jails  map[string]*Jail
	logger *logging.Logger
	mu     sync.Mutex
}

// NewManager creates the base directory if needed. opts apply to every jail
// the manager creates.
func NewManager(base string, opts ...Option) (*Manager, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolving workspaces dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating workspaces dir: %w", err)
	}
	return &Manager{
		base:   abs,
		opts:   opts,
		jails:  make(map[string]*Jail),
		logger: logging.New().WithComponent("jail-manager"),
	}, nil
}

// Base returns the directory holding all workspaces.
func (m *Manager) Base() string { return m.base }

// GetOrCreate returns the jail for id, creating its workspace lazily.
func (m *Manager) GetOrCreate(id string) (*Jail, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if j, ok := m.jails[id]; ok {
		return j, nil
	}
	j, err := New(id, filepath.Join(m.base, id), m.opts...)
	if err != nil {
		return nil, err
	}
	m.jails[id] = j
	m.logger.Debug("workspace opened", map[string]interface{}{
		"project": id,
		"root":    j.Root(),
	})
	return j, nil
}

// Get returns an already-open jail.
func (m *Manager) Get(id string) (*Jail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jails[id]
	return j, ok
}

// Delete removes the project's workspace from disk.
func (m *Manager) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	j, ok := m.jails[id]
	delete(m.jails, id)
	m.mu.Unlock()

	if ok {
		if err := j.destroy(); err != nil {
			return fmt.Errorf("removing workspace %s: %w", id, err)
		}
	} else if err := os.RemoveAll(filepath.Join(m.base, id)); err != nil {
		return fmt.Errorf("removing workspace %s: %w", id, err)
	}

	m.logger.Info("workspace deleted", map[string]interface{}{"project": id})
	return nil
}

// ListAll returns the ids of every workspace on disk, sorted.
func (m *Manager) ListAll() ([]string, error) {
	entries, err := os.ReadDir(m.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

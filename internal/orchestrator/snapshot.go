package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotFile is kept at the workspace root while a plan runs.
const SnapshotFile = ".active_plan.json"

// Snapshot is the persisted state of an in-flight plan.
type Snapshot struct {
	Plan       []Step `json:"plan"`
	LastStatus string `json:"last_status"`
}

// SnapshotStore writes plan snapshots for one workspace.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore stores snapshots in dir.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{path: filepath.Join(dir, SnapshotFile)}
}

// Path returns the snapshot location.
func (s *SnapshotStore) Path() string { return s.path }

// Save writes the plan.
func (s *SnapshotStore) Save(steps []*Step) error {
	snap := Snapshot{Plan: make([]Step, len(steps)), LastStatus: "in_progress"}
	for i, st := range steps {
		snap.Plan[i] = *st
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Load returns the snapshot, or nil if none exists.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return &snap, nil
}

// Clear removes the snapshot.
func (s *SnapshotStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

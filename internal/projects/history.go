package projects

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vinayprograms/agentkit/logging"
)

// Message is one chat turn.
type Message struct {
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// HistoryStore keeps chat_history/<project>.json files.
type HistoryStore struct {
	dir    string
	logger *logging.Logger
	mu     sync.Mutex
}

// OpenHistory creates the history directory under dataDir.
func OpenHistory(dataDir string) (*HistoryStore, error) {
	dir := filepath.Join(dataDir, "chat_history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &HistoryStore{
		dir:    dir,
		logger: logging.New().WithComponent("history"),
	}, nil
}

func (h *HistoryStore) file(projectID string) string {
	return filepath.Join(h.dir, projectID+".json")
}

// Load returns the project's messages; missing or unreadable history is
// empty.
func (h *HistoryStore) Load(projectID string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(projectID)
}

func (h *HistoryStore) load(projectID string) []Message {
	data, err := os.ReadFile(h.file(projectID))
	if err != nil {
		if !os.IsNotExist(err) {
			h.logger.Warn("failed to read history", map[string]interface{}{"project": projectID, "error": err.Error()})
		}
		return []Message{}
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		h.logger.Warn("discarding unreadable history", map[string]interface{}{"project": projectID, "error": err.Error()})
		return []Message{}
	}
	return msgs
}

// Save replaces the project's history.
func (h *HistoryStore) Save(projectID string, msgs []Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.save(projectID, msgs)
}

func (h *HistoryStore) save(projectID string, msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.file(projectID), data, 0644)
}

// Append adds messages to the project's history.
func (h *HistoryStore) Append(projectID string, msgs ...Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.save(projectID, append(h.load(projectID), msgs...))
}

// Recent returns the last n messages.
func (h *HistoryStore) Recent(projectID string, n int) []Message {
	msgs := h.Load(projectID)
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}

// Clear removes the project's history.
func (h *HistoryStore) Clear(projectID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := os.Remove(h.file(projectID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

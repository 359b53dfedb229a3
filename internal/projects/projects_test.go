package projects

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_CreateGetPersist(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	p, err := s.Create("demo", "a test project")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(p.ID) != 8 || p.Status != StatusActive || p.CreatedAt == "" {
		t.Errorf("unexpected project: %+v", p)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reopened.Get(p.ID)
	if !ok || got.Name != "demo" || got.Description != "a test project" {
		t.Errorf("project not persisted: %+v", got)
	}
	if !reopened.Exists(p.ID) || reopened.Exists("nope") {
		t.Error("Exists is wrong")
	}
}

func TestStore_UpdateAndSoftDelete(t *testing.T) {
	s, _ := Open(t.TempDir())
	p, _ := s.Create("old", "")

	name := "new"
	up, err := s.Update(p.ID, &name, nil)
	if err != nil || up.Name != "new" || up.Description != "" {
		t.Fatalf("unexpected update: %+v %v", up, err)
	}
	if _, err := s.Update("missing", &name, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.Delete(p.ID); err != nil {
		t.Fatal(err)
	}
	if s.Exists(p.ID) {
		t.Error("deleted project should not exist")
	}
	if got, ok := s.Get(p.ID); !ok || got.Status != StatusDeleted {
		t.Error("soft delete should keep the record")
	}
	if len(s.List(false)) != 0 || len(s.List(true)) != 1 {
		t.Error("List should hide deleted projects")
	}

	if err := s.Purge(p.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(p.ID); ok {
		t.Error("purge should remove the record")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s, _ := Open(t.TempDir())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	a, _ := s.Create("a", "")
	b, _ := s.Create("b", "")
	desc := "touched"
	s.Update(a.ID, nil, &desc)

	list := s.List(false)
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "projects.json"), []byte("[oops"), 0644)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(s.List(true)) != 0 {
		t.Error("expected empty store")
	}
}

func TestHistory(t *testing.T) {
	h, err := OpenHistory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if msgs := h.Load("p1"); len(msgs) != 0 || msgs == nil {
		t.Errorf("expected empty non-nil history, got %v", msgs)
	}

	h.Append("p1", Message{Role: "user", Content: "hi"})
	h.Append("p1", Message{Role: "assistant", Content: "hello", Metadata: map[string]interface{}{"mode": "direct"}})
	h.Append("p2", Message{Role: "user", Content: "other"})

	msgs := h.Load("p1")
	if len(msgs) != 2 || msgs[1].Content != "hello" || msgs[1].Metadata["mode"] != "direct" {
		t.Errorf("unexpected history: %+v", msgs)
	}
	if r := h.Recent("p1", 1); len(r) != 1 || r[0].Role != "assistant" {
		t.Errorf("unexpected recent: %+v", r)
	}

	if err := h.Clear("p1"); err != nil {
		t.Fatal(err)
	}
	if len(h.Load("p1")) != 0 || len(h.Load("p2")) != 1 {
		t.Error("Clear should only affect one project")
	}
	if err := h.Clear("p1"); err != nil {
		t.Errorf("clearing twice should be fine: %v", err)
	}
}

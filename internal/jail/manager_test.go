package jail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestManager_GetOrCreate(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	a, err := m.GetOrCreate("alpha")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	again, _ := m.GetOrCreate("alpha")
	if a != again {
		t.Error("expected the same jail for the same id")
	}
	if _, err := os.Stat(a.Root()); err != nil {
		t.Errorf("workspace not created: %v", err)
	}

	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := m.GetOrCreate(bad); !errors.Is(err, ErrInvalidID) {
			t.Errorf("GetOrCreate(%q) expected ErrInvalidID, got %v", bad, err)
		}
	}
}

func TestManager_ListAndDelete(t *testing.T) {
	base := t.TempDir()
	m, _ := NewManager(base)
	m.GetOrCreate("b")
	m.GetOrCreate("a")
	os.WriteFile(filepath.Join(base, "stray.txt"), []byte("x"), 0644)

	ids, err := m.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("unexpected ids: %v", ids)
	}

	if err := m.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := m.Get("a"); ok {
		t.Error("jail still registered after delete")
	}
	if _, err := os.Stat(filepath.Join(base, "a")); !os.IsNotExist(err) {
		t.Error("workspace still on disk")
	}

	// a workspace left over from a previous process
	os.Mkdir(filepath.Join(base, "old"), 0755)
	if err := m.Delete("old"); err != nil {
		t.Fatalf("Delete of unopened workspace failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "old")); !os.IsNotExist(err) {
		t.Error("unopened workspace still on disk")
	}
}

func TestManager_ProjectsAreIsolated(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	p1, _ := m.GetOrCreate("p1")
	p2, _ := m.GetOrCreate("p2")

	var wg sync.WaitGroup
	for _, tc := range []struct {
		j   *Jail
		dir string
	}{{p1, "one"}, {p2, "two"}} {
		wg.Add(1)
		go func(j *Jail, dir string) {
			defer wg.Done()
			ctx := context.Background()
			j.Execute(ctx, "mkdir "+dir, 0)
			j.Execute(ctx, "cd "+dir, 0)
			for i := 0; i < 20; i++ {
				j.WriteFile("f.txt", dir)
				j.Execute(ctx, "ls", 0)
			}
		}(tc.j, tc.dir)
	}
	wg.Wait()

	if p1.Cwd() != "/one" || p2.Cwd() != "/two" {
		t.Errorf("cursors leaked: p1=%s p2=%s", p1.Cwd(), p2.Cwd())
	}
	if _, ok := p1.Stat("/two"); ok {
		t.Error("p1 sees p2's directory")
	}
	if _, ok := p2.Stat("/one"); ok {
		t.Error("p2 sees p1's directory")
	}
	if got, _ := p1.ReadFile("f.txt"); got != "one" {
		t.Errorf("p1 file content %q", got)
	}
	if got, _ := p2.ReadFile("f.txt"); got != "two" {
		t.Errorf("p2 file content %q", got)
	}
}

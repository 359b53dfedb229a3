package jail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestJail(t *testing.T, opts ...Option) *Jail {
	t.Helper()
	j, err := New("test", t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return j
}

func isInside(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(filepath.Separator))
}

func TestResolve_AlwaysInsideRoot(t *testing.T) {
	j := newTestJail(t)
	if err := os.MkdirAll(filepath.Join(j.Root(), "a", "b"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/etc", filepath.Join(j.Root(), "escape")); err != nil {
		t.Fatal(err)
	}

	candidates := []string{
		"", ".", "/", "file.txt", "/file.txt", "a/b/c.txt", "/a/../b",
		"..", "../", "../../etc/passwd", "/../../etc/passwd", "a/../../..",
		"/etc/passwd", "//double//slash", "a/./b/../../..//x",
		"escape/passwd", "escape", strings.Repeat("../", 40) + "tmp",
	}
	for _, c := range candidates {
		got := j.Resolve(c)
		if !isInside(j.Root(), got) {
			t.Errorf("Resolve(%q) = %q, outside root %q", c, got, j.Root())
		}
	}
}

func TestResolve_AbsoluteIsRootRelative(t *testing.T) {
	j := newTestJail(t)
	got := j.Resolve("/etc/passwd")
	want := filepath.Join(j.Root(), "etc", "passwd")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestResolve_ClampsEscapes(t *testing.T) {
	j := newTestJail(t)
	if got := j.Resolve("../../outside"); got != j.Root() {
		t.Errorf("expected clamp to root, got %s", got)
	}
	if _, err := j.ResolveStrict("../../outside"); !errors.Is(err, ErrOutsideJail) {
		t.Errorf("expected ErrOutsideJail, got %v", err)
	}
	if _, err := j.ResolveStrict("inside/ok.txt"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPathPolicy_Reject(t *testing.T) {
	j := newTestJail(t, WithPathPolicy(PathReject))

	_, err := j.WriteFile("../../x.txt", "nope")
	if !errors.Is(err, ErrOutsideJail) {
		t.Fatalf("expected ErrOutsideJail, got %v", err)
	}
	if !strings.Contains(err.Error(), "Path outside workspace") {
		t.Errorf("unexpected message: %s", err)
	}

	res := j.Execute(context.Background(), "cd ..", 0)
	if res.ExitCode != 1 || !strings.Contains(res.Stderr, "Directory not found") {
		t.Errorf("expected cd refusal, got %+v", res)
	}
}

func TestWriteReadFile(t *testing.T) {
	j := newTestJail(t)

	msg, err := j.WriteFile("src/deep/hello.txt", "hi")
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if msg != "File written: /src/deep/hello.txt" {
		t.Errorf("unexpected message: %s", msg)
	}

	content, err := j.ReadFile("/src/deep/hello.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if content != "hi" {
		t.Errorf("expected 'hi', got %q", content)
	}
}

func TestReadFile_Errors(t *testing.T) {
	j := newTestJail(t)
	os.Mkdir(filepath.Join(j.Root(), "dir"), 0755)

	_, err := j.ReadFile("missing.txt")
	if !errors.Is(err, ErrNotFound) || err.Error() != "File not found: missing.txt" {
		t.Errorf("unexpected error: %v", err)
	}
	_, err = j.ReadFile("dir")
	if !errors.Is(err, ErrNotFile) || err.Error() != "Not a file: dir" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestList_SortedWithMetadata(t *testing.T) {
	j := newTestJail(t)
	j.WriteFile("b.txt", "bb")
	j.WriteFile("a.txt", "a")
	os.Mkdir(filepath.Join(j.Root(), "c"), 0755)

	files := j.List(".")
	if len(files) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(files))
	}
	names := []string{files[0].Name, files[1].Name, files[2].Name}
	if strings.Join(names, ",") != "a.txt,b.txt,c" {
		t.Errorf("unexpected order: %v", names)
	}
	if files[1].Path != "/b.txt" || files[1].Size != 2 || files[1].IsDir {
		t.Errorf("unexpected entry: %+v", files[1])
	}
	if !files[2].IsDir {
		t.Error("expected c to be a directory")
	}
	if _, err := time.Parse(time.RFC3339, files[0].Modified); err != nil {
		t.Errorf("bad modified time %q: %v", files[0].Modified, err)
	}

	if got := j.List("nope"); len(got) != 0 {
		t.Errorf("expected empty list for missing dir, got %v", got)
	}
}

func TestDelete(t *testing.T) {
	j := newTestJail(t)
	j.WriteFile("tree/leaf.txt", "x")

	if _, err := j.Delete("/"); !errors.Is(err, ErrRoot) {
		t.Errorf("expected root refusal, got %v", err)
	}
	if _, err := j.Delete("../.."); !errors.Is(err, ErrRoot) {
		t.Errorf("expected clamped root refusal, got %v", err)
	}
	if _, err := j.Delete("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	msg, err := j.Delete("tree")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if msg != "Deleted: tree" {
		t.Errorf("unexpected message: %s", msg)
	}
	if _, err := os.Stat(filepath.Join(j.Root(), "tree")); !os.IsNotExist(err) {
		t.Error("directory still exists")
	}
	if _, err := os.Stat(j.Root()); err != nil {
		t.Error("root should survive")
	}
}

func TestExecute_Echo(t *testing.T) {
	j := newTestJail(t)
	res := j.Execute(context.Background(), "echo hi", time.Second*5)
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", res.ExitCode, res.Stderr)
	}
	if strings.TrimSpace(res.Stdout) != "hi" {
		t.Errorf("expected 'hi', got %q", res.Stdout)
	}
}

func TestExecute_Environment(t *testing.T) {
	j := newTestJail(t)
	res := j.Execute(context.Background(), "env", 0)
	if !strings.Contains(res.Stdout, "HOME="+j.Root()+"\n") {
		t.Errorf("HOME not set to workspace root:\n%s", res.Stdout)
	}
}

func TestExecute_ExitCode(t *testing.T) {
	j := newTestJail(t)
	res := j.Execute(context.Background(), "ls does-not-exist", 0)
	if res.ExitCode == 0 {
		t.Error("expected non-zero exit")
	}
	if res.Stderr == "" {
		t.Error("expected stderr output")
	}
}

func TestExecute_Blocked(t *testing.T) {
	j := newTestJail(t)

	res := j.Execute(context.Background(), "sudo rm -rf /", 0)
	if res.ExitCode != 1 {
		t.Errorf("expected exit 1, got %d", res.ExitCode)
	}
	if res.Stderr != "Command blocked: Blocked pattern detected: sudo" {
		t.Errorf("unexpected stderr: %q", res.Stderr)
	}
	if res.Duration != 0 {
		t.Errorf("blocked command should not run, duration %v", res.Duration)
	}
}

func TestExecute_DeniedNeverSpawns(t *testing.T) {
	j := newTestJail(t)

	res := j.Execute(context.Background(), "awk 'BEGIN{print 1}' > spawned.txt", 0)
	if !strings.HasPrefix(res.Stderr, "Command blocked: Command not in whitelist: awk") {
		t.Errorf("unexpected stderr: %q", res.Stderr)
	}
	if _, err := os.Stat(filepath.Join(j.Root(), "spawned.txt")); !os.IsNotExist(err) {
		t.Error("denied command produced a side effect")
	}
}

func TestExecute_CD(t *testing.T) {
	j := newTestJail(t)
	os.MkdirAll(filepath.Join(j.Root(), "sub", "dir"), 0755)

	res := j.Execute(context.Background(), "cd sub/dir", 0)
	if res.ExitCode != 0 || res.Stdout != "Changed directory to /sub/dir" {
		t.Fatalf("unexpected cd result: %+v", res)
	}
	if j.Cwd() != "/sub/dir" {
		t.Errorf("expected cursor /sub/dir, got %s", j.Cwd())
	}

	// relative operations now start at the cursor
	j.WriteFile("here.txt", "x")
	if _, err := os.Stat(filepath.Join(j.Root(), "sub", "dir", "here.txt")); err != nil {
		t.Errorf("write did not honour cursor: %v", err)
	}

	res = j.Execute(context.Background(), "pwd", 0)
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), filepath.Join("sub", "dir")) {
		t.Errorf("command did not run in cursor dir: %q", res.Stdout)
	}

	res = j.Execute(context.Background(), "cd missing", 0)
	if res.ExitCode != 1 || res.Stderr != "Directory not found: missing" {
		t.Errorf("unexpected result: %+v", res)
	}
	if j.Cwd() != "/sub/dir" {
		t.Error("failed cd moved the cursor")
	}

	res = j.Execute(context.Background(), "cd /", 0)
	if res.Stdout != "Changed to workspace root" || j.Cwd() != "/" {
		t.Errorf("unexpected result: %+v cwd=%s", res, j.Cwd())
	}
}

func TestExecute_CDClampsToRoot(t *testing.T) {
	j := newTestJail(t)
	res := j.Execute(context.Background(), "cd ..", 0)
	if res.ExitCode != 0 || j.Cwd() != "/" {
		t.Errorf("expected clamp to root, got %+v cwd=%s", res, j.Cwd())
	}
}

func TestExecute_Timeout(t *testing.T) {
	j := newTestJail(t)
	script := filepath.Join(j.Root(), "slow.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 10\n"), 0755); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	res := j.Execute(context.Background(), "./slow.sh", 200*time.Millisecond)
	elapsed := time.Since(start)

	if res.ExitCode != -1 {
		t.Errorf("expected exit -1, got %d", res.ExitCode)
	}
	if res.Stderr != "Command timed out after 200ms" {
		t.Errorf("unexpected stderr: %q", res.Stderr)
	}
	if elapsed > 3*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestExecute_ContextCancel(t *testing.T) {
	j := newTestJail(t)
	script := filepath.Join(j.Root(), "slow.sh")
	os.WriteFile(script, []byte("#!/bin/sh\nsleep 10\n"), 0755)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := j.Execute(ctx, "./slow.sh", 10*time.Second)
	if res.ExitCode != -1 || !strings.Contains(res.Stderr, "cancelled") {
		t.Errorf("unexpected result: %+v", res)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("cancel did not stop the command")
	}
}

func TestRel(t *testing.T) {
	j := newTestJail(t)
	os.MkdirAll(filepath.Join(j.Root(), "sub"), 0755)

	for _, c := range []string{"a.txt", "/a.txt", "./a.txt", "sub/../a.txt", "//a.txt"} {
		if got := j.Rel(c); got != "a.txt" {
			t.Errorf("Rel(%q) = %q, want a.txt", c, got)
		}
	}
	if got := j.Rel("../../x"); got != "" {
		t.Errorf("clamped escape should name the root, got %q", got)
	}

	j.Execute(context.Background(), "cd sub", 0)
	if got := j.Rel("b.txt"); got != "sub/b.txt" {
		t.Errorf("expected sub/b.txt, got %q", got)
	}

	strict := newTestJail(t, WithPathPolicy(PathReject))
	if got := strict.Rel("../x"); got != "" {
		t.Errorf("rejected path should give empty, got %q", got)
	}
}

func TestExecute_OutputCapped(t *testing.T) {
	j := newTestJail(t, WithMaxOutput(1000))
	res := j.Execute(context.Background(), "head -c 300000 /dev/zero", 0)
	if res.ExitCode != 0 {
		t.Fatalf("unexpected failure: %+v", res.Stderr)
	}
	if !strings.HasSuffix(res.Stdout, "\n...[truncated 299000 bytes]") {
		t.Errorf("missing truncation marker: %q", res.Stdout[len(res.Stdout)-40:])
	}
	if len(res.Stdout) > 1000+len("\n...[truncated 299000 bytes]") {
		t.Errorf("stdout not capped: %d bytes", len(res.Stdout))
	}

	res = j.Execute(context.Background(), "echo small", 0)
	if res.Stdout != "small\n" {
		t.Errorf("small output changed: %q", res.Stdout)
	}
}

func TestCappedBuffer(t *testing.T) {
	c := &cappedBuffer{max: 5}
	for _, w := range []string{"abc", "def", "ghi"} {
		if n, err := c.Write([]byte(w)); n != len(w) || err != nil {
			t.Fatalf("Write(%q) = %d, %v", w, n, err)
		}
	}
	if got := c.String(); got != "abcde\n...[truncated 4 bytes]" {
		t.Errorf("unexpected content: %q", got)
	}

	c = &cappedBuffer{max: 5}
	c.Write([]byte("ok"))
	if c.String() != "ok" {
		t.Errorf("unexpected content: %q", c.String())
	}
}

func TestInfo(t *testing.T) {
	j := newTestJail(t)
	j.WriteFile("a.txt", "a")

	info := j.Info()
	if info.ProjectID != "test" || info.CurrentDir != "/" {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(info.Files) != 1 || info.Files[0].Name != "a.txt" {
		t.Errorf("unexpected files: %+v", info.Files)
	}
}

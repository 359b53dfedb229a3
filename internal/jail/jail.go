// Package jail confines file access and command execution to a
// per-project workspace directory.
package jail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
)

// DefaultTimeout bounds a command when the caller passes no timeout.
const DefaultTimeout = 30 * time.Second

// PathPolicy decides what happens to a path that would leave the jail.
type PathPolicy string

const (
	// PathClamp maps escaping paths to the workspace root.
	PathClamp PathPolicy = "clamp"
	// PathReject fails file operations on escaping paths.
	PathReject PathPolicy = "reject"
)

var (
	ErrOutsideJail = errors.New("path escapes workspace")
	ErrNotFound    = errors.New("not found")
	ErrNotFile     = errors.New("not a file")
	ErrRoot        = errors.New("workspace root")
)

// PathError carries the feedback text shown to the reasoning loop.
type PathError struct {
	Msg string
	Err error
}

func (e *PathError) Error() string { return e.Msg }
func (e *PathError) Unwrap() error { return e.Err }

// CommandResult is the outcome of Execute. Failures are reported here,
// never as Go errors.
type CommandResult struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// FileInfo describes one workspace entry. Path is workspace-relative with a
// leading slash.
type FileInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// WorkspaceInfo is a point-in-time view of a jail.
type WorkspaceInfo struct {
	ProjectID  string     `json:"project_id"`
	Root       string     `json:"workspace_path"`
	CurrentDir string     `json:"current_dir"`
	Files      []FileInfo `json:"files"`
}

// Jail is one project's workspace. All operations are serialized; the
// current-directory cursor has a single writer.
type Jail struct {
	id      string
	root    string
	cwd     string
	policy  *CommandPolicy
	paths   PathPolicy
	timeout time.Duration
	maxOut  int
	logger  *logging.Logger

	mu sync.Mutex
}

// Option configures a Jail.
type Option func(*Jail)

// WithCommandPolicy replaces the default command policy.
func WithCommandPolicy(p *CommandPolicy) Option {
	return func(j *Jail) {
		if p != nil {
			j.policy = p
		}
	}
}

// WithPathPolicy sets clamp or reject behaviour for escaping paths.
func WithPathPolicy(p PathPolicy) Option {
	return func(j *Jail) {
		if p == PathReject {
			j.paths = PathReject
		}
	}
}

// WithDefaultTimeout sets the timeout used when Execute gets none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(j *Jail) {
		if d > 0 {
			j.timeout = d
		}
	}
}

// WithMaxOutput caps the bytes kept from each output stream of a command.
func WithMaxOutput(n int) Option {
	return func(j *Jail) {
		if n > 0 {
			j.maxOut = n
		}
	}
}

// New creates (if needed) and opens the workspace at root.
func New(id, root string, opts ...Option) (*Jail, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	j := &Jail{
		id:      id,
		root:    real,
		cwd:     real,
		policy:  DefaultCommandPolicy(),
		paths:   PathClamp,
		timeout: DefaultTimeout,
		maxOut:  DefaultMaxOutput,
		logger:  logging.New().WithComponent("jail"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// ID returns the owning project id.
func (j *Jail) ID() string { return j.id }

// Root returns the absolute workspace root.
func (j *Jail) Root() string { return j.root }

// Cwd returns the cursor relative to the root ("/" or "/sub/dir").
func (j *Jail) Cwd() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.display(j.cwd)
}

// Resolve maps any input to a path inside the workspace. Paths that would
// escape are clamped to the root regardless of the jail's path policy.
func (j *Jail) Resolve(path string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, _ := j.resolve(path)
	return p
}

// ResolveStrict is Resolve without clamping.
func (j *Jail) ResolveStrict(path string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, err := j.resolve(path)
	if err != nil {
		return "", &PathError{Msg: fmt.Sprintf("Path outside workspace: %s", path), Err: ErrOutsideJail}
	}
	return p, nil
}

func (j *Jail) resolve(path string) (string, error) {
	var candidate string
	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		candidate = filepath.Join(j.root, strings.TrimLeft(path, "/"))
	} else {
		candidate = filepath.Join(j.cwd, path)
	}

	real, ok := evalExisting(candidate)
	if !ok || !j.contains(real) {
		return j.root, ErrOutsideJail
	}
	return real, nil
}

// Rel returns the root-relative slash path ("src/main.py") that path
// names under the jail's policy, or "" for the root or a rejected path.
// Different spellings of one file give the same result.
func (j *Jail) Rel(path string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	p, err := j.target(path)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(j.display(p), "/")
}

// target applies the path policy for file operations.
func (j *Jail) target(path string) (string, error) {
	p, err := j.resolve(path)
	if err != nil && j.paths == PathReject {
		return "", &PathError{Msg: fmt.Sprintf("Path outside workspace: %s", path), Err: ErrOutsideJail}
	}
	return p, nil
}

func (j *Jail) contains(p string) bool {
	rel, err := filepath.Rel(j.root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (j *Jail) display(abs string) string {
	rel, err := filepath.Rel(j.root, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// evalExisting follows symlinks on the longest existing prefix of p.
// A dangling symlink reports false.
func evalExisting(p string) (string, bool) {
	cur, rest := p, ""
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(real, rest), true
		}
		if fi, err := os.Lstat(cur); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			return "", false
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, true
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// Execute runs command inside the workspace. Denied commands never spawn a
// process. timeout <= 0 uses the jail default.
func (j *Jail) Execute(ctx context.Context, command string, timeout time.Duration) CommandResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	res := CommandResult{Command: command}
	if ok, reason := j.policy.Check(command); !ok {
		j.logger.Warn("command blocked", map[string]interface{}{
			"project": j.id,
			"command": command,
			"reason":  reason,
		})
		res.Stderr = "Command blocked: " + reason
		res.ExitCode = 1
		return res
	}

	if fields := strings.Fields(command); fields[0] == "cd" {
		target := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(command), "cd"))
		return j.changeDir(res, target)
	}

	if timeout <= 0 {
		timeout = j.timeout
	}
	return j.run(ctx, res, timeout)
}

func (j *Jail) changeDir(res CommandResult, target string) CommandResult {
	dir := j.root
	if target != "" {
		var err error
		dir, err = j.resolve(target)
		if err != nil && j.paths == PathReject {
			dir = ""
		}
	}
	if fi, err := os.Stat(dir); dir == "" || err != nil || !fi.IsDir() {
		res.Stderr = fmt.Sprintf("Directory not found: %s", target)
		res.ExitCode = 1
		return res
	}

	j.cwd = dir
	if dir == j.root {
		res.Stdout = "Changed to workspace root"
	} else {
		res.Stdout = "Changed directory to " + j.display(dir)
	}
	return res
}

func (j *Jail) run(ctx context.Context, res CommandResult, timeout time.Duration) CommandResult {
	cmd := exec.Command("/bin/sh", "-c", res.Command)
	cmd.Dir = j.cwd
	cmd.Env = append(os.Environ(), "HOME="+j.root, "PWD="+j.cwd)
	stdout := &cappedBuffer{max: j.maxOut}
	stderr := &cappedBuffer{max: j.maxOut}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second
	isolate(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Stderr = err.Error()
		res.ExitCode = 1
		return res
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		res.Duration = time.Since(start)
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
		res.ExitCode = exitCode(err)
	case <-timer.C:
		killGroup(cmd)
		<-done
		j.logger.Warn("command timed out", map[string]interface{}{
			"project": j.id,
			"command": res.Command,
			"timeout": timeout.String(),
		})
		res.Stderr = fmt.Sprintf("Command timed out after %s", timeout)
		res.ExitCode = -1
		res.Duration = timeout
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		res.Stderr = fmt.Sprintf("Command cancelled: %v", ctx.Err())
		res.ExitCode = -1
		res.Duration = time.Since(start)
	}
	return res
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// ReadFile returns the text content of a workspace file.
func (j *Jail) ReadFile(path string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	p, err := j.target(path)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return "", &PathError{Msg: fmt.Sprintf("File not found: %s", path), Err: ErrNotFound}
	}
	if !fi.Mode().IsRegular() {
		return "", &PathError{Msg: fmt.Sprintf("Not a file: %s", path), Err: ErrNotFile}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// ReadBytes returns raw file content, for binary downloads.
func (j *Jail) ReadBytes(path string) ([]byte, string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	p, err := j.target(path)
	if err != nil {
		return nil, "", err
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, "", &PathError{Msg: fmt.Sprintf("File not found: %s", path), Err: ErrNotFound}
	}
	data, err := os.ReadFile(p)
	return data, p, err
}

// WriteFile creates or replaces a file, creating parent directories.
func (j *Jail) WriteFile(path, content string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	p, err := j.target(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return "", err
	}
	return "File written: " + j.display(p), nil
}

// Stat describes a single path, reporting false when it does not exist.
func (j *Jail) Stat(path string) (FileInfo, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	p, err := j.target(path)
	if err != nil {
		return FileInfo{}, false
	}
	fi, err := os.Stat(p)
	if err != nil {
		return FileInfo{}, false
	}
	return j.fileInfo(p, fi), true
}

// List returns the entries of a directory sorted by name. A missing or
// non-directory target yields an empty list.
func (j *Jail) List(path string) []FileInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.list(path)
}

func (j *Jail) list(path string) []FileInfo {
	dir, err := j.target(path)
	if err != nil {
		return []FileInfo{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []FileInfo{}
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, j.fileInfo(filepath.Join(dir, e.Name()), fi))
	}
	return files
}

func (j *Jail) fileInfo(p string, fi os.FileInfo) FileInfo {
	return FileInfo{
		Name:     fi.Name(),
		Path:     j.display(p),
		IsDir:    fi.IsDir(),
		Size:     fi.Size(),
		Modified: fi.ModTime().Format(time.RFC3339),
	}
}

// Delete removes a file or directory tree. The root itself is refused.
func (j *Jail) Delete(path string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	p, err := j.target(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(p); err != nil {
		return "", &PathError{Msg: fmt.Sprintf("Path not found: %s", path), Err: ErrNotFound}
	}
	if p == j.root {
		return "", &PathError{Msg: "Cannot delete workspace root", Err: ErrRoot}
	}
	if err := os.RemoveAll(p); err != nil {
		return "", err
	}
	return "Deleted: " + path, nil
}

// Info returns the project id, root, cursor and top-level listing.
func (j *Jail) Info() WorkspaceInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return WorkspaceInfo{
		ProjectID:  j.id,
		Root:       j.root,
		CurrentDir: j.display(j.cwd),
		Files:      j.list("/"),
	}
}

// destroy removes the whole workspace. Called by Manager.Delete.
func (j *Jail) destroy() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cwd = j.root
	return os.RemoveAll(j.root)
}

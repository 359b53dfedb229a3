// Package replay renders session pipelines as readable timelines.
package replay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinayprograms/workcell/internal/pipeline"
)

// Replayer formats pipeline events.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
	maxContentSize int // 0 = unlimited
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithMaxContentSize limits how much of each event payload is printed.
func WithMaxContentSize(size int) Option {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a new Replayer.
func New(output io.Writer, verbosity int, opts ...Option) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve accepts a pipeline file or a workspace directory holding one.
func Resolve(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		path = filepath.Join(path, pipeline.FileName)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("no session pipeline in %s", filepath.Dir(path))
		}
	}
	return path, nil
}

func load(path string) (*pipeline.File, error) {
	path, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	return pipeline.ReadFile(path)
}

// ReplayFile loads and replays one pipeline.
func (r *Replayer) ReplayFile(path string) error {
	f, err := load(path)
	if err != nil {
		return err
	}
	return r.Replay(f)
}

// ReplayFiles replays several pipelines one after another.
func (r *Replayer) ReplayFiles(paths []string) error {
	for i, path := range paths {
		f, err := load(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if len(paths) > 1 {
			fmt.Fprintf(r.output, "\n%s %s\n", planStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(paths))), dimStyle.Render(path))
		}
		if err := r.Replay(f); err != nil {
			return err
		}
	}
	return nil
}

// ReplayFileInteractive replays into the pager.
func (r *Replayer) ReplayFileInteractive(path string) error {
	f, err := load(path)
	if err != nil {
		return err
	}
	content, err := r.render(f)
	if err != nil {
		return err
	}
	return newPager("Session: "+f.SessionID, content).run()
}

// ReplayFileLive replays into the pager and re-renders whenever the file
// changes.
func (r *Replayer) ReplayFileLive(path string) error {
	path, err := Resolve(path)
	if err != nil {
		return err
	}
	f, err := pipeline.ReadFile(path)
	if err != nil {
		return err
	}
	render := func() (string, error) {
		f, err := pipeline.ReadFile(path)
		if err != nil {
			return "", err
		}
		return r.render(f)
	}
	return newPager(fmt.Sprintf("Session: %s (LIVE)", f.SessionID), "").runLive(path, render)
}

func (r *Replayer) render(f *pipeline.File) (string, error) {
	var buf strings.Builder
	out := r.output
	r.output = &buf
	defer func() { r.output = out }()
	if err := r.Replay(f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Replay writes header, timeline and summary for one pipeline.
func (r *Replayer) Replay(f *pipeline.File) error {
	r.printHeader(f)
	r.printTimeline(f)
	r.printSummary(f)
	return nil
}

func (r *Replayer) printHeader(f *pipeline.File) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(f.SessionID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Started:"), valueStyle.Render(f.StartedAt))
	if f.CurrentState.ActivePlan != nil {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Plan:   "), valueStyle.Render(fmt.Sprintf("%d steps", len(planSteps(f.CurrentState.ActivePlan)))))
	}
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(f *pipeline.File) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(f.Pipeline))))
	fmt.Fprintln(r.output, divider)
	for i, e := range f.Pipeline {
		r.formatEvent(i+1, e)
	}
}

func (r *Replayer) printSummary(f *pipeline.File) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)
	stats := ComputeStats(f.Pipeline)
	PrintStats(r.output, stats)

	state := f.CurrentState
	if len(state.FilesCreated) > 0 {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created: "), fileStyle.Render(strings.Join(state.FilesCreated, ", ")))
	}
	if len(state.FilesModified) > 0 {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Modified:"), fileStyle.Render(strings.Join(state.FilesModified, ", ")))
	}
}

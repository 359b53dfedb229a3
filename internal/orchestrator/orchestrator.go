// Package orchestrator turns requests into plans and drives each step
// through execution and validation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/workcell/internal/executor"
	"github.com/vinayprograms/workcell/internal/jail"
	"github.com/vinayprograms/workcell/internal/pipeline"
	"github.com/vinayprograms/workcell/internal/projects"
	"github.com/vinayprograms/workcell/internal/sink"
	"github.com/vinayprograms/workcell/internal/tools"
)

// ErrNoProject is returned when a request names no usable project.
var ErrNoProject = errors.New("no project selected")

// NoProjectMessage is the reply paired with ErrNoProject.
const NoProjectMessage = "Error: No project selected. Please select or create a project first."

// DefaultThreshold is the confidence a validation must exceed.
const DefaultThreshold = 0.6

const (
	historyWindow  = 4
	activityWindow = 10
)

// ProjectChecker reports whether a project may be used.
type ProjectChecker interface {
	Exists(id string) bool
}

// Orchestrator owns one session per project.
type Orchestrator struct {
	gateway       executor.Gateway
	fast          executor.Gateway
	jails         *jail.Manager
	projects      ProjectChecker
	history       *projects.HistoryStore
	sink          sink.Sink
	threshold     float64
	maxIterations int
	cmdTimeout    time.Duration
	logger        *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink sends progress events to s.
func WithSink(s sink.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithFastGateway routes intent classification and validation to a
// cheaper model. Planning and execution stay on the main gateway.
func WithFastGateway(gw executor.Gateway) Option {
	return func(o *Orchestrator) {
		if gw != nil {
			o.fast = gw
		}
	}
}

// WithThreshold sets the validation confidence threshold.
func WithThreshold(t float64) Option {
	return func(o *Orchestrator) { o.threshold = t }
}

// WithMaxIterations caps model turns per step.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) { o.maxIterations = n }
}

// WithCommandTimeout sets the terminal tool timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.cmdTimeout = d }
}

// WithProjects restricts requests to known projects.
func WithProjects(p ProjectChecker) Option {
	return func(o *Orchestrator) { o.projects = p }
}

// WithHistory persists chat history.
func WithHistory(h *projects.HistoryStore) Option {
	return func(o *Orchestrator) { o.history = h }
}

// New creates an orchestrator.
func New(gw executor.Gateway, jails *jail.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:       gw,
		jails:         jails,
		sink:          sink.Nop{},
		threshold:     DefaultThreshold,
		maxIterations: executor.DefaultMaxIterations,
		logger:        logging.New().WithComponent("orchestrator"),
		sessions:      make(map[string]*session),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fast == nil {
		o.fast = gw
	}
	return o
}

// session is the per-project state. mu serializes requests.
type session struct {
	id        string
	jail      *jail.Jail
	registry  *tools.Registry
	pipeline  *pipeline.Pipeline
	snapshots *SnapshotStore
	messages  []projects.Message
	mu        sync.Mutex
}

func (o *Orchestrator) session(projectID string) (*session, error) {
	if projectID == "" || (o.projects != nil && !o.projects.Exists(projectID)) {
		return nil, ErrNoProject
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[projectID]; ok {
		return s, nil
	}

	j, err := o.jails.GetOrCreate(projectID)
	if err != nil {
		if errors.Is(err, jail.ErrInvalidID) {
			return nil, ErrNoProject
		}
		return nil, err
	}
	var regOpts []tools.Option
	if o.cmdTimeout > 0 {
		regOpts = append(regOpts, tools.WithCommandTimeout(o.cmdTimeout))
	}
	p, err := pipeline.Open(projectID, j.Root())
	if err != nil {
		return nil, fmt.Errorf("opening pipeline: %w", err)
	}
	s := &session{
		id:        projectID,
		jail:      j,
		registry:  tools.NewRegistry(j, regOpts...),
		pipeline:  p,
		snapshots: NewSnapshotStore(j.Root()),
		messages:  []projects.Message{},
	}
	if o.history != nil {
		s.messages = o.history.Load(projectID)
	}
	o.sessions[projectID] = s
	return s, nil
}

// Forget drops the cached session, e.g. after the project is deleted.
func (o *Orchestrator) Forget(projectID string) {
	o.mu.Lock()
	delete(o.sessions, projectID)
	o.mu.Unlock()
}

// Workspace returns the jail of a project, creating the session if needed.
func (o *Orchestrator) Workspace(projectID string) (*jail.Jail, error) {
	s, err := o.session(projectID)
	if err != nil {
		return nil, err
	}
	return s.jail, nil
}

// Pipeline returns the event log of a project.
func (o *Orchestrator) Pipeline(projectID string) (*pipeline.Pipeline, error) {
	s, err := o.session(projectID)
	if err != nil {
		return nil, err
	}
	return s.pipeline, nil
}

// LoadSnapshot returns the interrupted or in-flight plan of a project,
// or nil.
func (o *Orchestrator) LoadSnapshot(projectID string) (*Snapshot, error) {
	s, err := o.session(projectID)
	if err != nil {
		return nil, err
	}
	return s.snapshots.Load()
}

// Run handles one user request and returns the reply. Only ErrNoProject
// aborts a request; every other failure is reported in the reply.
func (o *Orchestrator) Run(ctx context.Context, projectID, input string) (string, error) {
	sess, err := o.session(projectID)
	if err != nil {
		if errors.Is(err, ErrNoProject) {
			o.emit(ctx, projectID, sink.KindError, map[string]interface{}{"message": NoProjectMessage})
			return NoProjectMessage, ErrNoProject
		}
		return "", err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	t := o.turnFor(sess, resolveReferences(input, sess.jail, sess.pipeline.State()))
	sess.messages = append(sess.messages, projects.Message{Role: "user", Content: input})
	o.record(sess, pipeline.EventUserMessage, map[string]interface{}{"content": input})

	var (
		reply    string
		metadata = map[string]interface{}{}
	)
	switch dec := o.decide(ctx, t); dec.Kind {
	case DecisionClarify:
		reply = dec.Text
		metadata["mode"] = "clarify"
	case DecisionDirect:
		reply = dec.Text
		metadata["mode"] = "direct"
	case DecisionPlan:
		report := o.execute(ctx, sess, t.input, dec.Steps)
		reply = report.Summary
		metadata["mode"] = "plan"
		metadata["files_created"] = report.FilesCreated()
		metadata["files_modified"] = report.FilesModified()
	}

	sess.messages = append(sess.messages, projects.Message{Role: "assistant", Content: reply, Metadata: metadata})
	o.record(sess, pipeline.EventAssistantResponse, map[string]interface{}{"content": clip(reply, 200)})
	if o.history != nil {
		if err := o.history.Save(projectID, sess.messages); err != nil {
			o.logger.Warn("failed to save history", map[string]interface{}{"project": projectID, "error": err.Error()})
		}
	}

	o.emit(ctx, projectID, sink.KindResult, map[string]interface{}{"content": reply})
	return reply, nil
}

// decide classifies input and builds the matching decision, announcing
// planning on the sink.
func (o *Orchestrator) decide(ctx context.Context, t turn) Decision {
	switch o.classify(ctx, t) {
	case intentClarify:
		return NeedsClarification(ClarifyQuestion)
	case intentExecute:
		o.emit(ctx, t.project, sink.KindStatus, map[string]interface{}{
			"status":  "planning",
			"message": "Creating execution plan...",
		})
		return PlanOf(o.generatePlan(ctx, t))
	}
	return Direct(o.respond(ctx, t))
}

// RunPlan executes a given plan, skipping classification and planning.
func (o *Orchestrator) RunPlan(ctx context.Context, projectID, goal string, steps []*Step) (*Report, error) {
	sess, err := o.session(projectID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		steps = fallbackPlan(goal)
	}
	normalizeIDs(steps)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	o.record(sess, pipeline.EventUserMessage, map[string]interface{}{"content": goal})
	report := o.execute(ctx, sess, goal, steps)
	o.record(sess, pipeline.EventAssistantResponse, map[string]interface{}{"content": clip(report.Summary, 200)})
	o.emit(ctx, projectID, sink.KindResult, map[string]interface{}{"content": report.Summary})
	return report, nil
}

func (o *Orchestrator) emit(ctx context.Context, project, kind string, data map[string]interface{}) {
	o.sink.Emit(ctx, sink.Event{Type: kind, Project: project, Data: data})
}

func (o *Orchestrator) record(sess *session, kind string, data map[string]interface{}) {
	if err := sess.pipeline.Add(kind, data); err != nil {
		o.logger.Warn("pipeline write failed", map[string]interface{}{
			"project": sess.id,
			"type":    kind,
			"error":   err.Error(),
		})
	}
}

func recent(msgs []projects.Message, n int) []projects.Message {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]projects.Message(nil), msgs...)
}

// clip truncates to n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ ProjectChecker = (*projects.Store)(nil)

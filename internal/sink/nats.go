package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/vinayprograms/agentkit/logging"
)

// DefaultSubject is the subject prefix when none is configured.
const DefaultSubject = "workcell.events"

// NATS publishes events to <subject>.<project>.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

// DialNATS connects to url and returns a sink publishing under subject.
func DialNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("workcell"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return NewNATS(conn, subject), nil
}

// NewNATS wraps an existing connection.
func NewNATS(conn *nats.Conn, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{
		conn:    conn,
		subject: subject,
		logger:  logging.New().WithComponent("sink.nats"),
	}
}

func (n *NATS) Emit(_ context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("encoding event", map[string]interface{}{"type": ev.Type, "error": err.Error()})
		return
	}
	subj := subjectFor(n.subject, ev.Project)
	if err := n.conn.Publish(subj, data); err != nil {
		n.logger.Warn("publish failed", map[string]interface{}{"subject": subj, "error": err.Error()})
	}
}

// Close drains the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// subjectFor builds a subject; tokens cannot contain dots or spaces.
func subjectFor(prefix, project string) string {
	if project == "" {
		return prefix + "._"
	}
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>':
			return '_'
		}
		return r
	}, project)
	return prefix + "." + token
}

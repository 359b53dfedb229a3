package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/vinayprograms/workcell/internal/orchestrator"
	"github.com/vinayprograms/workcell/internal/sink"
)

type terminalRequest struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// wsHandler accepts any origin; the API is already open to all origins.
func wsHandler(fn func(ws *websocket.Conn)) http.Handler {
	return websocket.Server{Handler: fn}
}

// handleChat runs each text frame through the orchestrator and streams
// progress events back on the same connection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wsHandler(func(ws *websocket.Conn) {
		defer ws.Close()
		out := sink.NewWebSocket(ws)

		if !s.projects.Exists(id) {
			out.Send(map[string]interface{}{"type": sink.KindError, "content": "Project not found"})
			return
		}
		detach := s.hub.Subscribe(id, out)
		defer detach()

		s.logger.Info("chat connected", map[string]interface{}{"project": id})
		ctx := ws.Request().Context()
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				if !errors.Is(err, io.EOF) {
					s.logger.Debug("chat receive failed", map[string]interface{}{"project": id, "error": err.Error()})
				}
				break
			}
			if msg == "ping" {
				if err := websocket.Message.Send(ws, "pong"); err != nil {
					break
				}
				continue
			}
			s.chat(ctx, id, msg, out)
		}
		s.logger.Info("chat disconnected", map[string]interface{}{"project": id})
	}).ServeHTTP(w, r)
}

func (s *Server) chat(ctx context.Context, id, msg string, out *sink.WebSocket) {
	if _, err := s.orch.Run(ctx, id, msg); err != nil {
		if !errors.Is(err, orchestrator.ErrNoProject) {
			out.Send(map[string]interface{}{"type": sink.KindError, "content": err.Error()})
		}
		return
	}
	j, err := s.orch.Workspace(id)
	if err != nil {
		return
	}
	out.Emit(ctx, sink.Event{
		Type:    sink.KindFilesUpdated,
		Project: id,
		Data:    map[string]interface{}{"files": j.List(".")},
	})
}

// handleTerminal runs commands typed by the user directly in the jail.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wsHandler(func(ws *websocket.Conn) {
		defer ws.Close()

		j, err := s.orch.Workspace(id)
		if err != nil {
			websocket.JSON.Send(ws, map[string]interface{}{"type": sink.KindError, "content": "Project not found"})
			return
		}
		if err := websocket.JSON.Send(ws, map[string]interface{}{"type": "prompt", "cwd": j.Cwd()}); err != nil {
			return
		}

		ctx := ws.Request().Context()
		for {
			var req terminalRequest
			if err := websocket.JSON.Receive(ws, &req); err != nil {
				return
			}
			if req.Type != "command" {
				continue
			}
			s.logger.Debug("terminal command", map[string]interface{}{"project": id, "command": req.Command})

			res := j.Execute(ctx, req.Command, s.cmdTimeout)
			out := map[string]interface{}{
				"type":        "output",
				"stdout":      res.Stdout,
				"stderr":      res.Stderr,
				"return_code": res.ExitCode,
				"duration":    res.Duration.Seconds(),
			}
			if err := websocket.JSON.Send(ws, out); err != nil {
				return
			}
			if err := websocket.JSON.Send(ws, map[string]interface{}{"type": "prompt", "cwd": j.Cwd()}); err != nil {
				return
			}
		}
	}).ServeHTTP(w, r)
}

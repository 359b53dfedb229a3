// Package server exposes projects, workspaces and the orchestrator over
// HTTP and WebSocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/workcell/internal/jail"
	"github.com/vinayprograms/workcell/internal/orchestrator"
	"github.com/vinayprograms/workcell/internal/projects"
	"github.com/vinayprograms/workcell/internal/sink"
)

// Server serves the workcell API.
type Server struct {
	orch       *orchestrator.Orchestrator
	projects   *projects.Store
	history    *projects.HistoryStore
	jails      *jail.Manager
	hub        *sink.Hub
	cmdTimeout time.Duration
	logger     *logging.Logger
	mux        *http.ServeMux
}

// Config wires a Server. Hub must be the sink the orchestrator emits to
// so chat connections receive progress events.
type Config struct {
	Orchestrator   *orchestrator.Orchestrator
	Projects       *projects.Store
	History        *projects.HistoryStore
	Jails          *jail.Manager
	Hub            *sink.Hub
	CommandTimeout time.Duration
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		orch:       cfg.Orchestrator,
		projects:   cfg.Projects,
		history:    cfg.History,
		jails:      cfg.Jails,
		hub:        cfg.Hub,
		cmdTimeout: cfg.CommandTimeout,
		logger:     logging.New().WithComponent("server"),
		mux:        http.NewServeMux(),
	}
	if s.hub == nil {
		s.hub = sink.NewHub()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("PATCH /api/projects/{id}", s.handleUpdateProject)
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	s.mux.HandleFunc("GET /api/projects/{id}/files", s.handleListFiles)
	s.mux.HandleFunc("GET /api/projects/{id}/files/content", s.handleReadFile)
	s.mux.HandleFunc("POST /api/projects/{id}/files", s.handleWriteFile)
	s.mux.HandleFunc("DELETE /api/projects/{id}/files", s.handleDeleteFile)

	s.mux.HandleFunc("GET /api/projects/{id}/chat/history", s.handleChatHistory)
	s.mux.HandleFunc("GET /api/projects/{id}/pipeline", s.handlePipeline)
	s.mux.HandleFunc("GET /api/projects/{id}/plan", s.handlePlan)

	s.mux.HandleFunc("GET /ws/chat/{id}", s.handleChat)
	s.mux.HandleFunc("GET /ws/terminal/{id}", s.handleTerminal)
}

// Handler returns the root handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(cors(s.mux))
}

// Serve runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("listening", map[string]interface{}{"addr": ln.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{"detail": detail})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the response status. It must stay hijackable for
// the WebSocket endpoints.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	sw.status = http.StatusSwitchingProtocols
	return http.NewResponseController(sw.ResponseWriter).Hijack()
}

func (sw *statusWriter) Flush() {
	http.NewResponseController(sw.ResponseWriter).Flush()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.logger.Debug("request", map[string]interface{}{
			"request_id": reqID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"duration":   time.Since(start).String(),
		})
	})
}

package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/vinayprograms/workcell/internal/jail"
	"github.com/vinayprograms/workcell/internal/orchestrator"
)

type writeFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// workspace resolves the project's jail, answering the request itself on
// failure.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*jail.Jail, bool) {
	j, err := s.orch.Workspace(r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return nil, false
	}
	return j, true
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestrator.ErrNoProject) {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// fileError maps jail errors to HTTP statuses.
func fileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jail.ErrOutsideJail):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, jail.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	j, ok := s.workspace(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}
	files := j.List(path)
	if files == nil {
		files = []jail.FileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// handleReadFile returns text content as JSON, or raw bytes with a guessed
// content type when raw=true.
func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	j, ok := s.workspace(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		data, abs, err := j.ReadBytes(path)
		if err != nil {
			fileError(w, err)
			return
		}
		ctype := mime.TypeByExtension(filepath.Ext(abs))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filepath.Base(abs)}))
		w.Write(data)
		return
	}

	content, err := j.ReadFile(path)
	if err != nil {
		fileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"content": content, "path": path})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	j, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req writeFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path and content are required")
		return
	}
	msg, err := j.WriteFile(req.Path, req.Content)
	if err != nil {
		fileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	j, ok := s.workspace(w, r)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	msg, err := j.Delete(path)
	if err != nil {
		fileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg})
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vinayprograms/workcell/internal/projects"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": s.projects.List(includeDeleted)})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := s.projects.Create(req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.jails.GetOrCreate(p.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("project created", map[string]interface{}{"project": p.ID, "name": p.Name})
	writeJSON(w, http.StatusOK, map[string]interface{}{"project": p})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projects.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"project": p})
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.projects.Update(r.PathValue("id"), req.Name, req.Description)
	if errors.Is(err, projects.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"project": p})
}

// handleDeleteProject soft-deletes the record and removes the workspace.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.projects.Delete(id); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.orch.Forget(id)
	if err := s.jails.Delete(id); err != nil {
		s.logger.Warn("workspace removal failed", map[string]interface{}{"project": id, "error": err.Error()})
	}
	s.logger.Info("project deleted", map[string]interface{}{"project": id})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.projects.Get(id); !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	var msgs []projects.Message
	if s.history != nil {
		msgs = s.history.Load(id)
	}
	if msgs == nil {
		msgs = []projects.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.orch.Pipeline(r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    p.SessionID(),
		"pipeline":      p.Events(),
		"current_state": p.State(),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.LoadSnapshot(r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plan": snap})
}

package web

import (
	"encoding/json"
	"net/http"

	"sndctl/internal/macro"
	"sndctl/internal/store"
)

func (s *Server) handleListMacros(w http.ResponseWriter, r *http.Request) {
	macros, err := s.store.ListMacros()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if macros == nil {
		macros = []*store.Macro{}
	}
	s.writeJSON(w, http.StatusOK, macros)
}

func (s *Server) handleGetMacro(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMacro(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMacro(w http.ResponseWriter, r *http.Request) {
	var m store.Macro
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := macro.Validate(&m); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := s.store.CreateMacro(&m); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &m)
}

func (s *Server) handleUpdateMacro(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var m store.Macro
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// The path name wins over whatever the body carries.
	m.Name = name
	if err := macro.Validate(&m); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := s.store.UpdateMacro(name, &m); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &m)
}

func (s *Server) handleDeleteMacro(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMacro(r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runMacroRequest struct {
	Args []string `json:"args"`
}

func (s *Server) handleRunMacro(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req runMacroRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	// An empty body means no arguments.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Args = nil
	}

	exec, err := s.executor.Execute(r.Context(), name, req.Args)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

type executeMacroRequest struct {
	Name      string   `json:"name"`
	Arguments []string `json:"arguments"`
}

// handleExecuteMacro runs a macro named in the body instead of the path.
func (s *Server) handleExecuteMacro(w http.ResponseWriter, r *http.Request) {
	var req executeMacroRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	exec, err := s.executor.Execute(r.Context(), req.Name, req.Arguments)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	m, err := s.store.GetMacro(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	m.Favorite = !m.Favorite
	if err := s.store.UpdateMacro(name, m); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

package web

import (
	"errors"
	"net/http"

	"sndctl/internal/events"
	"sndctl/internal/soco"
)

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.supervisor.Status())
}

func (s *Server) handleServerStart(w http.ResponseWriter, r *http.Request) {
	status, err := s.supervisor.Start(r.Context())
	if err != nil {
		if errors.Is(err, soco.ErrStartTimeout) {
			s.writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
			return
		}
		s.writeError(w, err)
		return
	}
	s.emitProxyState(status)
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleServerStop(w http.ResponseWriter, r *http.Request) {
	status := s.supervisor.Stop()
	s.emitProxyState(status)
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) emitProxyState(status soco.ServerStatus) {
	if s.bus != nil {
		s.bus.Emit(events.Event{Type: events.EventProxyState, Data: &status})
	}
}

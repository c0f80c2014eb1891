package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"sndctl/internal/voice"
)

type voiceSessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
}

// handleVoiceSession relays an ephemeral realtime session token from the
// voice provider.
func (s *Server) handleVoiceSession(w http.ResponseWriter, r *http.Request) {
	if !s.voice.Configured() {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "voice is not configured"})
		return
	}

	var req voiceSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = voiceSessionRequest{}
	}

	session, err := s.voice.Mint(r.Context(), req.Model, req.Voice)
	if err != nil {
		if errors.Is(err, voice.ErrUnreachable) {
			s.logger.Error("voice session request", "err", err)
			s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "voice provider unreachable"})
			return
		}
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(session.Status)
	if _, err := w.Write(session.Body); err != nil {
		s.logger.Debug("write voice session response", "err", err)
	}
}

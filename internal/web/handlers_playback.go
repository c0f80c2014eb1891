package web

import (
	"context"
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	track, err := s.speakers.Track(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"track": track})
}

type onOffRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleGetShuffle(w http.ResponseWriter, r *http.Request) {
	on, err := s.speakers.Shuffle(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

func (s *Server) handleSetShuffle(w http.ResponseWriter, r *http.Request) {
	s.setOnOff(w, r, s.speakers.SetShuffle)
}

func (s *Server) handleGetRepeat(w http.ResponseWriter, r *http.Request) {
	on, err := s.speakers.Repeat(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

func (s *Server) handleSetRepeat(w http.ResponseWriter, r *http.Request) {
	s.setOnOff(w, r, s.speakers.SetRepeat)
}

func (s *Server) handleGetCrossfade(w http.ResponseWriter, r *http.Request) {
	on, err := s.speakers.Crossfade(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

func (s *Server) handleSetCrossfade(w http.ResponseWriter, r *http.Request) {
	s.setOnOff(w, r, s.speakers.SetCrossfade)
}

func (s *Server) setOnOff(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, name string, on bool) error) {
	name := r.PathValue("name")

	var req onOffRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}

	if err := set(r.Context(), name, *req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

type sleepTimerRequest struct {
	Duration string `json:"duration"`
}

func (s *Server) handleSetSleepTimer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req sleepTimerRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Duration == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration is required"})
		return
	}

	if err := s.speakers.SetSleepTimer(r.Context(), name, req.Duration); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCancelSleepTimer(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.CancelSleepTimer(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type seekRequest struct {
	Position string `json:"position"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req seekRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "position is required"})
		return
	}

	if err := s.speakers.Seek(r.Context(), name, req.Position); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetGroupVolume(w http.ResponseWriter, r *http.Request) {
	v, err := s.speakers.GroupVolume(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"volume": v})
}

func (s *Server) handleSetGroupVolume(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req setVolumeRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "level is required"})
		return
	}

	if err := s.speakers.SetGroupVolume(r.Context(), name, *req.Level); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transferRequest struct {
	To string `json:"to"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req transferRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to is required"})
		return
	}

	if err := s.speakers.Transfer(r.Context(), name, req.To); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueueLength(w http.ResponseWriter, r *http.Request) {
	n, err := s.speakers.QueueLength(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"length": n})
}

func (s *Server) handleQueuePosition(w http.ResponseWriter, r *http.Request) {
	n, err := s.speakers.QueuePosition(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"position": n})
}

func (s *Server) handleAddFavoriteToQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req playItemRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if err := s.speakers.AddFavoriteToQueue(r.Context(), name, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type shareLinkRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleAddShareLink(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req shareLinkRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}

	if err := s.speakers.AddShareLink(r.Context(), name, req.URL); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type saveQueueRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleSaveQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req saveQueueRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	if err := s.speakers.SaveQueue(r.Context(), name, req.Title); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type globalCommandRequest struct {
	Speaker string   `json:"speaker"`
	Action  string   `json:"action"`
	Args    []string `json:"args"`
}

// handleGlobalCommand proxies one raw soco-cli action with the speaker named
// in the body rather than the path.
func (s *Server) handleGlobalCommand(w http.ResponseWriter, r *http.Request) {
	var req globalCommandRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Speaker == "" || req.Action == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "speaker and action are required"})
		return
	}

	res, err := s.speakers.Invoke(r.Context(), req.Speaker, req.Action, req.Args...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

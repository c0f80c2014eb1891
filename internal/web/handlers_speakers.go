package web

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func (s *Server) handleListSpeakers(w http.ResponseWriter, r *http.Request) {
	names, err := s.speakers.Names(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"speakers": names})
}

func (s *Server) handleRediscover(w http.ResponseWriter, r *http.Request) {
	names, err := s.speakers.Rediscover(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"speakers": names})
}

func (s *Server) handleSpeakerInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.speakers.Info(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	v, err := s.speakers.Volume(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"volume": v})
}

type setVolumeRequest struct {
	Level *int `json:"level"`
	Delta *int `json:"delta"`
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req setVolumeRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var err error
	switch {
	case req.Level != nil:
		err = s.speakers.SetVolume(r.Context(), name, *req.Level)
	case req.Delta != nil:
		err = s.speakers.AdjustVolume(r.Context(), name, *req.Delta)
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "level or delta is required"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type muteRequest struct {
	Muted *bool `json:"muted"`
}

// handleMute sets the mute state when the body carries one, otherwise
// toggles it.
func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req muteRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	// An empty body means toggle.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Muted = nil
	}

	if req.Muted != nil {
		if err := s.speakers.SetMute(r.Context(), name, *req.Muted); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"muted": *req.Muted})
		return
	}

	muted, err := s.speakers.ToggleMute(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"muted": muted})
}

func (s *Server) handlePlayPause(w http.ResponseWriter, r *http.Request) {
	state, err := s.speakers.PlayPause(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.Next(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.Previous(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type commandRequest struct {
	Action string   `json:"action"`
	Args   []string `json:"args"`
}

// handleCommand proxies one raw soco-cli action and returns the result
// verbatim, including a nonzero exit code for commands that ran but failed.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req commandRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Action == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action is required"})
		return
	}

	res, err := s.speakers.Invoke(r.Context(), name, req.Action, req.Args...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.speakers.Groups(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"groups": groups})
}

type groupRequest struct {
	Coordinator string `json:"coordinator"`
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req groupRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Coordinator == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinator is required"})
		return
	}

	if err := s.speakers.Group(r.Context(), name, req.Coordinator); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUngroup(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.Ungroup(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePartyMode(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.PartyMode(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUngroupAll(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.UngroupAll(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := s.speakers.Favorites(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": items})
}

type playItemRequest struct {
	Name string `json:"name"`
}

func (s *Server) handlePlayFavorite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req playItemRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if err := s.speakers.PlayFavorite(r.Context(), name, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type playNumberRequest struct {
	Number int `json:"number"`
}

func (s *Server) handlePlayFavoriteNumber(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req playNumberRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Number < 1 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be a positive integer"})
		return
	}

	if err := s.speakers.PlayFavoriteNumber(r.Context(), name, req.Number); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	items, err := s.speakers.Playlists(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"playlists": items})
}

func (s *Server) handlePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	items, err := s.speakers.PlaylistTracks(r.Context(), r.PathValue("name"), r.PathValue("playlist"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": items})
}

func (s *Server) handleQueuePlaylist(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req playItemRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if err := s.speakers.QueuePlaylist(r.Context(), name, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRadioStations(w http.ResponseWriter, r *http.Request) {
	items, err := s.speakers.RadioStations(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"stations": items})
}

func (s *Server) handlePlayRadio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req playItemRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if err := s.speakers.PlayRadio(r.Context(), name, req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.speakers.Queue(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"queue": items})
}

type queuePositionRequest struct {
	Position int `json:"position"`
}

func (s *Server) handlePlayFromQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req queuePositionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position < 1 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "position must be >= 1"})
		return
	}

	if err := s.speakers.PlayFromQueue(r.Context(), name, req.Position); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.speakers.ClearQueue(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil || position < 1 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "position must be >= 1"})
		return
	}

	if err := s.speakers.RemoveFromQueue(r.Context(), name, position); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

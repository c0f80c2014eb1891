// Package web provides the HTTP API and WebSocket event stream.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"sndctl/internal/automation"
	"sndctl/internal/events"
	"sndctl/internal/macro"
	"sndctl/internal/soco"
	"sndctl/internal/speakers"
	"sndctl/internal/store"
	"sndctl/internal/voice"
)

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithWwwroot serves a static frontend from dir at the root path.
func WithWwwroot(dir string) ServerOption {
	return func(s *Server) {
		s.wwwroot = dir
	}
}

// WithAutomation sets the automation engine and script manager.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the application version string.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithVoiceKey sets the OpenAI API key used to mint realtime voice
// session tokens.
func WithVoiceKey(key string) ServerOption {
	return func(s *Server) {
		s.voice = voice.NewClient(key)
	}
}

// Server is the HTTP server for the REST API and event stream.
type Server struct {
	store      store.Store
	speakers   *speakers.Service
	executor   *macro.Executor
	supervisor *soco.Supervisor

	wsHub  *WSHub
	bus    *events.Bus
	logger *slog.Logger
	mux    *http.ServeMux

	apiKey         string
	allowedOrigins []string
	wwwroot        string
	version        string
	voice          *voice.Client

	scriptMgr  *automation.Manager
	autoEngine *automation.Engine

	wg          sync.WaitGroup
	unsubEvents func()
}

// NewServer creates a new web server.
func NewServer(st store.Store, svc *speakers.Service, exec *macro.Executor, sup *soco.Supervisor, bus *events.Bus, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		store:      st,
		speakers:   svc,
		executor:   exec,
		supervisor: sup,
		bus:        bus,
		logger:     logger,
		mux:        http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	// Broadcast every bus event to WebSocket clients.
	if bus != nil {
		s.unsubEvents = bus.OnAll(func(event events.Event) {
			s.wsHub.Broadcast(event)
		})
	}

	s.routes()
	return s
}

// Stop gracefully shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	// Speakers
	s.mux.HandleFunc("GET /api/speakers", s.handleListSpeakers)
	s.mux.HandleFunc("POST /api/speakers/rediscover", s.handleRediscover)
	s.mux.HandleFunc("GET /api/speakers/{name}", s.handleSpeakerInfo)
	s.mux.HandleFunc("GET /api/speakers/{name}/volume", s.handleGetVolume)
	s.mux.HandleFunc("POST /api/speakers/{name}/volume", s.handleSetVolume)
	s.mux.HandleFunc("POST /api/speakers/{name}/mute", s.handleMute)
	s.mux.HandleFunc("POST /api/speakers/{name}/playpause", s.handlePlayPause)
	s.mux.HandleFunc("POST /api/speakers/{name}/next", s.handleNext)
	s.mux.HandleFunc("POST /api/speakers/{name}/previous", s.handlePrevious)
	s.mux.HandleFunc("POST /api/speakers/{name}/command", s.handleCommand)
	s.mux.HandleFunc("GET /api/speakers/{name}/track", s.handleGetTrack)
	s.mux.HandleFunc("GET /api/speakers/{name}/shuffle", s.handleGetShuffle)
	s.mux.HandleFunc("POST /api/speakers/{name}/shuffle", s.handleSetShuffle)
	s.mux.HandleFunc("GET /api/speakers/{name}/repeat", s.handleGetRepeat)
	s.mux.HandleFunc("POST /api/speakers/{name}/repeat", s.handleSetRepeat)
	s.mux.HandleFunc("GET /api/speakers/{name}/crossfade", s.handleGetCrossfade)
	s.mux.HandleFunc("POST /api/speakers/{name}/crossfade", s.handleSetCrossfade)
	s.mux.HandleFunc("POST /api/speakers/{name}/sleep", s.handleSetSleepTimer)
	s.mux.HandleFunc("DELETE /api/speakers/{name}/sleep", s.handleCancelSleepTimer)
	s.mux.HandleFunc("POST /api/speakers/{name}/seek", s.handleSeek)
	s.mux.HandleFunc("GET /api/speakers/{name}/groups", s.handleGroups)
	s.mux.HandleFunc("POST /api/speakers/{name}/group", s.handleGroup)
	s.mux.HandleFunc("POST /api/speakers/{name}/ungroup", s.handleUngroup)
	s.mux.HandleFunc("POST /api/speakers/{name}/party", s.handlePartyMode)
	s.mux.HandleFunc("POST /api/speakers/{name}/ungroup-all", s.handleUngroupAll)
	s.mux.HandleFunc("GET /api/speakers/{name}/group-volume", s.handleGetGroupVolume)
	s.mux.HandleFunc("POST /api/speakers/{name}/group-volume", s.handleSetGroupVolume)
	s.mux.HandleFunc("POST /api/speakers/{name}/transfer", s.handleTransfer)
	s.mux.HandleFunc("GET /api/speakers/{name}/favorites", s.handleFavorites)
	s.mux.HandleFunc("POST /api/speakers/{name}/favorites/play", s.handlePlayFavorite)
	s.mux.HandleFunc("POST /api/speakers/{name}/favorites/play-number", s.handlePlayFavoriteNumber)
	s.mux.HandleFunc("GET /api/speakers/{name}/playlists", s.handlePlaylists)
	s.mux.HandleFunc("GET /api/speakers/{name}/playlists/{playlist}/tracks", s.handlePlaylistTracks)
	s.mux.HandleFunc("POST /api/speakers/{name}/playlists/queue", s.handleQueuePlaylist)
	s.mux.HandleFunc("GET /api/speakers/{name}/radio", s.handleRadioStations)
	s.mux.HandleFunc("POST /api/speakers/{name}/radio/play", s.handlePlayRadio)
	s.mux.HandleFunc("GET /api/speakers/{name}/queue", s.handleQueue)
	s.mux.HandleFunc("POST /api/speakers/{name}/queue/play", s.handlePlayFromQueue)
	s.mux.HandleFunc("DELETE /api/speakers/{name}/queue", s.handleClearQueue)
	s.mux.HandleFunc("DELETE /api/speakers/{name}/queue/{position}", s.handleRemoveFromQueue)
	s.mux.HandleFunc("GET /api/speakers/{name}/queue/length", s.handleQueueLength)
	s.mux.HandleFunc("GET /api/speakers/{name}/queue/position", s.handleQueuePosition)
	s.mux.HandleFunc("POST /api/speakers/{name}/queue/favorite", s.handleAddFavoriteToQueue)
	s.mux.HandleFunc("POST /api/speakers/{name}/queue/sharelink", s.handleAddShareLink)
	s.mux.HandleFunc("POST /api/speakers/{name}/queue/save", s.handleSaveQueue)

	// Raw command with the speaker named in the body
	s.mux.HandleFunc("POST /api/command", s.handleGlobalCommand)

	// Macros
	s.mux.HandleFunc("GET /api/macros", s.handleListMacros)
	s.mux.HandleFunc("POST /api/macros", s.handleCreateMacro)
	s.mux.HandleFunc("GET /api/macros/{name}", s.handleGetMacro)
	s.mux.HandleFunc("PUT /api/macros/{name}", s.handleUpdateMacro)
	s.mux.HandleFunc("DELETE /api/macros/{name}", s.handleDeleteMacro)
	s.mux.HandleFunc("POST /api/macros/execute", s.handleExecuteMacro)
	s.mux.HandleFunc("POST /api/macros/{name}/run", s.handleRunMacro)
	s.mux.HandleFunc("POST /api/macros/{name}/favorite", s.handleToggleFavorite)

	// soco-cli server lifecycle
	s.mux.HandleFunc("GET /api/server/status", s.handleServerStatus)
	s.mux.HandleFunc("POST /api/server/start", s.handleServerStart)
	s.mux.HandleFunc("POST /api/server/stop", s.handleServerStop)

	// Automations
	s.mux.HandleFunc("GET /api/automations", s.handleListAutomations)
	s.mux.HandleFunc("GET /api/automations/{id}", s.handleGetAutomation)
	s.mux.HandleFunc("POST /api/automations", s.handleCreateAutomation)
	s.mux.HandleFunc("PUT /api/automations/{id}", s.handleUpdateAutomation)
	s.mux.HandleFunc("DELETE /api/automations/{id}", s.handleDeleteAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/toggle", s.handleToggleAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/run", s.handleRunAutomation)

	// Voice
	s.mux.HandleFunc("POST /api/voice/session", s.handleVoiceSession)

	s.mux.HandleFunc("GET /api/version", s.handleVersion)

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)

	// Static frontend
	if s.wwwroot != "" {
		s.mux.Handle("GET /", http.FileServer(http.Dir(s.wwwroot)))
	}
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				// Preflight request.
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	if s.apiKey != "" {
		// Only require API key for /api/ endpoints. Static files and the
		// WebSocket upgrade are not API-key-protected because browsers
		// cannot send custom headers on page navigation or WS upgrade.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var missing *macro.MissingParameterError
	var extra *macro.ExtraArgumentsError
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrExists):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &missing), errors.As(err, &extra):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, soco.ErrUnreachable):
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

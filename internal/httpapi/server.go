package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lumenhq/asklumen/internal/brain"
	"github.com/lumenhq/asklumen/internal/config"
	"github.com/lumenhq/asklumen/internal/media"
	"github.com/lumenhq/asklumen/internal/narrate"
	"github.com/lumenhq/asklumen/internal/observability"
	"github.com/lumenhq/asklumen/internal/session"
	"github.com/lumenhq/asklumen/internal/transcribe"
)

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	Sessions    *session.Manager
	Brain       brain.Adapter
	Transcriber transcribe.Transcriber
	Chain       *narrate.Chain
	Media       *media.Service
	Generator   *media.Generator
	Metrics     *observability.Metrics
}

type Server struct {
	cfg         config.Config
	sessions    *session.Manager
	brain       brain.Adapter
	transcriber transcribe.Transcriber
	chain       *narrate.Chain
	media       *media.Service
	generator   *media.Generator
	metrics     *observability.Metrics
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    deps.Sessions,
		brain:       deps.Brain,
		transcriber: deps.Transcriber,
		chain:       deps.Chain,
		media:       deps.Media,
		generator:   deps.Generator,
		metrics:     deps.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser websocket connections are restricted to the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsOpen)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/ws", s.handleCaptureWS)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Get("/v1/sessions/{id}/messages", s.handleListMessages)
	r.Post("/v1/sessions/{id}/question", s.handleQuestion)

	r.Get("/v1/sessions/{id}/narration", s.handleNarrationState)
	r.Post("/v1/sessions/{id}/narration/toggle", s.handleNarrationToggle)
	r.Post("/v1/sessions/{id}/narration/pause", s.handleNarrationPause)
	r.Post("/v1/sessions/{id}/narration/resume", s.handleNarrationResume)
	r.Post("/v1/sessions/{id}/narration/stop", s.handleNarrationStop)
	r.Post("/v1/sessions/{id}/narration/mute", s.handleNarrationMute)

	r.Post("/v1/chat-completion", s.handleChatCompletion)
	r.Post("/v1/speech-to-text", s.handleSpeechToText)
	r.Post("/v1/text-to-speech", s.handleTextToSpeech)

	r.Post("/v1/image-generation", s.handleImageGeneration)
	r.Post("/v1/generate-image-prompt", s.handleGeneratePrompt)
	r.Post("/v1/video-generation", s.handleVideoGeneration)
	r.Post("/v1/sessions/{id}/messages/{messageID}/video", s.handleMessageVideo)

	return r
}

// corsOpen mirrors the edge-function contract: every JSON endpoint is
// callable cross-origin.
func corsOpen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"active_sessions":  s.sessions.ActiveCount(),
		"images_enabled":   s.generator != nil && s.generator.ImagesConfigured(),
		"videos_enabled":   s.generator != nil && s.generator.VideosConfigured(),
		"database_enabled": s.cfg.DatabaseURL != "",
	})
}

// activeSession resolves the {id} URL parameter to a live session and
// refreshes its activity clock.
func (s *Server) activeSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return nil, false
	}
	sess, err := s.sessions.Active(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return nil, false
	}
	_ = s.sessions.Touch(id)
	return sess, true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

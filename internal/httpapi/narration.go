package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lumenhq/asklumen/internal/narrate"
)

type narrationTargetRequest struct {
	MessageID string `json:"message_id"`
}

func (s *Server) handleNarrationState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	rt := sess.Runtime()
	respondJSON(w, http.StatusOK, map[string]any{
		"muted": rt.Narrator.Muted(),
		"state": rt.Narrator.State(),
	})
}

func (s *Server) handleNarrationToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	var req narrationTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	rt := sess.Runtime()
	msg, found := rt.Controller.Message(strings.TrimSpace(req.MessageID))
	if !found {
		respondError(w, http.StatusNotFound, "message_not_found", "no such message in this conversation")
		return
	}
	// Narration keeps playing after this request returns.
	if err := rt.Narrator.ToggleReadAloud(context.WithoutCancel(r.Context()), msg.ID, msg.Content); err != nil {
		writeNarrationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rt.Narrator.State())
}

func (s *Server) handleNarrationPause(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	rt := sess.Runtime()
	rt.Narrator.Pause()
	respondJSON(w, http.StatusOK, rt.Narrator.State())
}

func (s *Server) handleNarrationResume(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	rt := sess.Runtime()
	if err := rt.Narrator.Resume(context.WithoutCancel(r.Context())); err != nil {
		writeNarrationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rt.Narrator.State())
}

func (s *Server) handleNarrationStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	rt := sess.Runtime()
	rt.Narrator.Stop()
	respondJSON(w, http.StatusOK, rt.Narrator.State())
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (s *Server) handleNarrationMute(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	var req muteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	rt := sess.Runtime()
	rt.Narrator.SetMuted(req.Muted)
	respondJSON(w, http.StatusOK, map[string]any{
		"muted": rt.Narrator.Muted(),
		"state": rt.Narrator.State(),
	})
}

func writeNarrationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, narrate.ErrMuted):
		respondError(w, http.StatusConflict, "narration_muted", err.Error())
	case errors.Is(err, narrate.ErrNotPaused):
		respondError(w, http.StatusConflict, "not_paused", err.Error())
	case errors.Is(err, narrate.ErrCannotNarrate):
		respondError(w, http.StatusUnprocessableEntity, "cannot_narrate", err.Error())
	case errors.Is(err, narrate.ErrSynthesisUnavailable):
		respondError(w, http.StatusBadGateway, "synthesis_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "narration_failed", err.Error())
	}
}

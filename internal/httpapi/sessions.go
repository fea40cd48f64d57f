package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumenhq/asklumen/internal/brain"
	"github.com/lumenhq/asklumen/internal/conversation"
	"github.com/lumenhq/asklumen/internal/narrate"
	"github.com/lumenhq/asklumen/internal/reliability"
)

type createSessionRequest struct {
	UserID string `json:"user_id"`
	// ConversationID resumes a stored conversation for a signed-in user.
	ConversationID string `json:"conversation_id,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sess := s.sessions.Create(strings.TrimSpace(req.UserID))
	if convID := strings.TrimSpace(req.ConversationID); convID != "" {
		if err := sess.Runtime().Controller.Resume(r.Context(), convID); err != nil {
			respondError(w, http.StatusBadGateway, "history_unavailable", err.Error())
			return
		}
	}
	s.metrics.CountSession("created")
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	sess, err := s.sessions.Snapshot(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if _, err := s.sessions.End(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.metrics.CountSession("ended")
	respondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	rt := sess.Runtime()
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"title":      rt.Controller.Title(),
		"messages":   rt.Controller.Messages(),
	})
}

type questionRequest struct {
	Question    string              `json:"question"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
}

type attachmentPayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type questionResponse struct {
	Assistant conversation.Message `json:"assistant"`
	Narration narrate.State        `json:"narration"`
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	files, err := decodeAttachments(req.Attachments)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_attachment", err.Error())
		return
	}

	rt := sess.Runtime()
	msg, err := rt.Controller.SendQuestion(r.Context(), req.Question, files)
	if err != nil {
		writeTurnError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, questionResponse{
		Assistant: msg,
		Narration: rt.Narrator.State(),
	})
}

func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyQuestion):
		respondError(w, http.StatusBadRequest, "empty_question", err.Error())
	case errors.Is(err, conversation.ErrTurnInFlight):
		respondError(w, http.StatusConflict, "turn_in_flight", err.Error())
	default:
		status := http.StatusBadGateway
		if reliability.ClassifyErrorText(err.Error()) == reliability.FailureRateLimit {
			status = http.StatusTooManyRequests
		}
		respondError(w, status, "turn_failed", err.Error())
	}
}

func decodeAttachments(payloads []attachmentPayload) ([]brain.Attachment, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	files := make([]brain.Attachment, 0, len(payloads))
	for _, p := range payloads {
		// Attachments travel base64-encoded end to end; decode only to
		// validate.
		if _, err := base64.StdEncoding.DecodeString(p.Data); err != nil {
			return nil, fmt.Errorf("attachment %s: %w", p.Name, err)
		}
		files = append(files, brain.Attachment{
			Name:     p.Name,
			MimeType: p.MimeType,
			Data:     p.Data,
		})
	}
	return files, nil
}

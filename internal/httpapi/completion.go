package httpapi

import (
	"net/http"
	"strings"

	"github.com/lumenhq/asklumen/internal/brain"
	"github.com/lumenhq/asklumen/internal/reliability"
)

type completionError struct {
	Error      string `json:"error"`
	Type       string `json:"type,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// handleChatCompletion is the stateless completion proxy: one request, one
// answer, history carried by the caller. Conversation sessions do not use
// it; it exists for clients that manage their own history.
func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	var req brain.Request
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, completionError{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondJSON(w, http.StatusBadRequest, completionError{Error: "message is required"})
		return
	}

	res, err := s.brain.Complete(r.Context(), req)
	if err != nil {
		switch reliability.ClassifyErrorText(err.Error()) {
		case reliability.FailureRateLimit:
			respondJSON(w, http.StatusTooManyRequests, completionError{
				Error:      err.Error(),
				Type:       "rate_limit",
				RetryAfter: 30,
			})
		case reliability.FailureConfig:
			respondJSON(w, http.StatusUnauthorized, completionError{Error: err.Error()})
		default:
			respondJSON(w, http.StatusBadGateway, completionError{Error: err.Error()})
		}
		return
	}
	respondJSON(w, http.StatusOK, res)
}

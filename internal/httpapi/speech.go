package httpapi

import (
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/lumenhq/asklumen/internal/narrate"
	"github.com/lumenhq/asklumen/internal/transcribe"
)

type speechToTextRequest struct {
	Audio string `json:"audio"`
}

type speechToTextResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	var req speechToTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_audio", "audio must be base64 encoded")
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, speechToTextResponse{Text: text})
	case errors.Is(err, transcribe.ErrNoSpeech):
		respondJSON(w, http.StatusOK, speechToTextResponse{Text: ""})
	case errors.Is(err, transcribe.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "transcription_timeout", err.Error())
	default:
		log.Printf("httpapi: transcription failed: %v", err)
		respondError(w, http.StatusInternalServerError, "transcription_failed", err.Error())
	}
}

type textToSpeechRequest struct {
	Text string `json:"text"`
}

type textToSpeechResponse struct {
	AudioContent string `json:"audioContent"`
	MimeType     string `json:"mimeType"`
	Provider     string `json:"provider"`
}

func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	var req textToSpeechRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := narrate.CleanTextForSpeech(req.Text)
	if strings.TrimSpace(text) == "" {
		respondError(w, http.StatusBadRequest, "empty_text", "nothing to synthesize")
		return
	}

	handle, provider, err := s.chain.Resolve(r.Context(), text)
	if err != nil {
		respondError(w, http.StatusBadGateway, "synthesis_unavailable", err.Error())
		return
	}
	if handle.Platform {
		// Platform synthesis happens on the server's own audio device
		// and has no byte stream to hand back.
		respondError(w, http.StatusBadGateway, "no_remote_audio", "no remote synthesis provider produced audio")
		return
	}
	respondJSON(w, http.StatusOK, textToSpeechResponse{
		AudioContent: base64.StdEncoding.EncodeToString(handle.Data),
		MimeType:     handle.MimeType,
		Provider:     provider,
	})
}

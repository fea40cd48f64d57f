package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lumenhq/asklumen/internal/media"
)

type imageGenerationRequest struct {
	Prompt string `json:"prompt"`
}

type imageGenerationResponse struct {
	ImageURL      string `json:"imageUrl"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

func (s *Server) handleImageGeneration(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil || !s.generator.ImagesConfigured() {
		respondError(w, http.StatusNotImplemented, "images_disabled", "image generation is not configured")
		return
	}
	var req imageGenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "empty_prompt", "prompt is required")
		return
	}
	imageURL, revised, err := s.generator.GenerateImage(r.Context(), req.Prompt)
	if err != nil {
		respondError(w, http.StatusBadGateway, "image_generation_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, imageGenerationResponse{ImageURL: imageURL, RevisedPrompt: revised})
}

type promptGenerationRequest struct {
	UserQuestion string `json:"userQuestion"`
	AIResponse   string `json:"aiResponse"`
}

type promptGenerationResponse struct {
	ImagePrompt string `json:"imagePrompt"`
}

func (s *Server) handleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusNotImplemented, "media_disabled", "media generation is not configured")
		return
	}
	var req promptGenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserQuestion) == "" {
		respondError(w, http.StatusBadRequest, "empty_question", "userQuestion is required")
		return
	}
	prompt, err := s.generator.GeneratePrompt(r.Context(), req.UserQuestion, req.AIResponse)
	if err != nil {
		// The templated fallback keeps the feature usable when the
		// prompt service is down.
		prompt = media.TemplatedPrompt(req.UserQuestion, req.AIResponse)
	}
	respondJSON(w, http.StatusOK, promptGenerationResponse{ImagePrompt: prompt})
}

type videoGenerationRequest struct {
	Prompt string `json:"prompt"`
}

type videoGenerationResponse struct {
	VideoURL string `json:"videoUrl"`
	Provider string `json:"provider,omitempty"`
}

func (s *Server) handleVideoGeneration(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil || !s.generator.VideosConfigured() {
		respondError(w, http.StatusNotImplemented, "videos_disabled", "video generation is not configured")
		return
	}
	var req videoGenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "empty_prompt", "prompt is required")
		return
	}
	videoURL, provider, err := s.generator.GenerateVideo(r.Context(), req.Prompt)
	if err != nil {
		respondError(w, http.StatusBadGateway, "video_generation_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, videoGenerationResponse{VideoURL: videoURL, Provider: provider})
}

// handleMessageVideo builds a video for an existing assistant answer,
// deriving the prompt from the surrounding conversation turn.
func (s *Server) handleMessageVideo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	if s.media == nil || s.generator == nil || !s.generator.VideosConfigured() {
		respondError(w, http.StatusNotImplemented, "videos_disabled", "video generation is not configured")
		return
	}
	rt := sess.Runtime()
	messageID := strings.TrimSpace(chi.URLParam(r, "messageID"))
	msg, found := rt.Controller.Message(messageID)
	if !found || msg.Role != "assistant" {
		respondError(w, http.StatusNotFound, "message_not_found", "no such assistant message in this conversation")
		return
	}
	question := ""
	msgs := rt.Controller.Messages()
	for i, m := range msgs {
		if m.ID == msg.ID && i > 0 {
			question = msgs[i-1].Content
			break
		}
	}
	videoURL, provider, err := s.media.GenerateVideoForMessage(r.Context(), msg.ID, question, msg.Content)
	if err != nil {
		respondError(w, http.StatusBadGateway, "video_generation_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, videoGenerationResponse{VideoURL: videoURL, Provider: provider})
}

package brain

import (
	"context"
	"fmt"
	"strings"
)

// Attachment is a file forwarded with a question, base64-encoded by the
// client. Images are passed to the model inline; other types are reduced to
// a text note naming the file.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
}

func (a Attachment) DataURI() string {
	return "data:" + a.MimeType + ";base64," + a.Data
}

// Exchange is one prior turn carried as conversation history.
type Exchange struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized question sent to the reasoning backend.
type Request struct {
	Message string       `json:"message"`
	History []Exchange   `json:"conversationHistory"`
	Files   []Attachment `json:"files,omitempty"`
}

// Response is the backend's answer plus the updated history to carry into
// the next turn.
type Response struct {
	Text    string     `json:"response"`
	History []Exchange `json:"conversationHistory"`
}

// Adapter bridges conversation turns to a reasoning backend.
type Adapter interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	APIKey  string
	Model   string
	HTTPURL string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewOpenAIAdapter(cfg.APIKey, cfg.Model), nil
		}
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPAdapter(cfg.HTTPURL), nil
		}
		return NewMockAdapter(), nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("brain: api key is required for openai mode")
		}
		return NewOpenAIAdapter(cfg.APIKey, cfg.Model), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, fmt.Errorf("brain: http url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported brain adapter mode %q", cfg.Mode)
	}
}

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// ElevenLabs synthesizes speech through the ElevenLabs HTTP API, typically
// with a cloned voice. It is the highest-quality tier of the fallback chain.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	return &ElevenLabs{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }

func (p *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(p.cfg.VoiceID) == "" {
		return nil, "", fmt.Errorf("elevenlabs: voice_id is required")
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(p.cfg.VoiceID)

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": p.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, "", classifyElevenLabsFailure(res.StatusCode, body)
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("elevenlabs: empty audio response")
	}
	return audio, "audio/mpeg", nil
}

// classifyElevenLabsFailure maps API failures onto the chain's sentinel
// errors. The "unusual activity" status is how ElevenLabs reports an
// abuse-flagged account; it arrives with HTTP 401 but must not be messaged
// as a credentials problem.
func classifyElevenLabsFailure(status int, body []byte) error {
	detail := strings.ToLower(string(body))
	if strings.Contains(detail, "detected_unusual_activity") || strings.Contains(detail, "unusual activity") {
		return fmt.Errorf("%w: status %d", ErrUnusualActivity, status)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	}
	if strings.Contains(detail, "quota") {
		return fmt.Errorf("%w: status %d", ErrQuotaExceeded, status)
	}
	return fmt.Errorf("elevenlabs: status %d: %s", status, strings.TrimSpace(string(body)))
}

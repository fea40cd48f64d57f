package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey string
	Voice  string
	Model  string
}

// OpenAI is the secondary remote synthesis tier, used automatically when the
// primary provider fails for any reason.
type OpenAI struct {
	client oai.Client
	voice  string
	model  string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	voice := strings.TrimSpace(cfg.Voice)
	if voice == "" {
		voice = "alloy"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "tts-1"
	}
	client := oai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	return &OpenAI{client: client, voice: voice, model: model}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	res, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, "", classifyOpenAIFailure(err)
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("openai tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("openai tts: empty audio response")
	}
	return audio, "audio/mpeg", nil
}

func classifyOpenAIFailure(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "api key"):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	default:
		return fmt.Errorf("openai tts: %w", err)
	}
}

package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator calls the media edge functions: image generation, prompt
// generation and video generation. Every contract is JSON over HTTPS with
// an {error} field on failure.
type Generator struct {
	imageURL  string
	promptURL string
	videoURL  string
	client    *http.Client
}

func NewGenerator(imageURL, promptURL, videoURL string) *Generator {
	return &Generator{
		imageURL:  strings.TrimSpace(imageURL),
		promptURL: strings.TrimSpace(promptURL),
		videoURL:  strings.TrimSpace(videoURL),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// ImagesConfigured reports whether an image endpoint is wired up.
func (g *Generator) ImagesConfigured() bool { return g.imageURL != "" }

// VideosConfigured reports whether a video endpoint is wired up.
func (g *Generator) VideosConfigured() bool { return g.videoURL != "" }

// GenerateImage returns a data URI for the rendered image.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) (string, string, error) {
	if g.imageURL == "" {
		return "", "", errors.New("image generation is not configured")
	}
	var out struct {
		ImageURL      string `json:"imageUrl"`
		RevisedPrompt string `json:"revisedPrompt"`
		Error         string `json:"error"`
	}
	if err := g.post(ctx, g.imageURL, map[string]string{"prompt": prompt}, &out); err != nil {
		return "", "", err
	}
	if out.Error != "" {
		return "", "", errors.New(out.Error)
	}
	if out.ImageURL == "" {
		return "", "", errors.New("empty imageUrl in response")
	}
	return out.ImageURL, out.RevisedPrompt, nil
}

// GeneratePrompt asks the prompt service to distill a question/answer pair
// into an illustration prompt. Callers fall back to TemplatedPrompt on any
// failure.
func (g *Generator) GeneratePrompt(ctx context.Context, question, answer string) (string, error) {
	if g.promptURL == "" {
		return "", errors.New("prompt generation is not configured")
	}
	var out struct {
		ImagePrompt string `json:"imagePrompt"`
		VideoPrompt string `json:"videoPrompt"`
		Error       string `json:"error"`
	}
	payload := map[string]string{"userQuestion": question, "aiResponse": answer}
	if err := g.post(ctx, g.promptURL, payload, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	prompt := strings.TrimSpace(out.ImagePrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(out.VideoPrompt)
	}
	if prompt == "" {
		return "", errors.New("empty prompt in response")
	}
	return prompt, nil
}

// GenerateVideo returns a data URI for the rendered clip and the name of
// the provider that produced it.
func (g *Generator) GenerateVideo(ctx context.Context, prompt string) (string, string, error) {
	if g.videoURL == "" {
		return "", "", errors.New("video generation is not configured")
	}
	var out struct {
		VideoURL string `json:"videoUrl"`
		Provider string `json:"provider"`
		Error    string `json:"error"`
	}
	if err := g.post(ctx, g.videoURL, map[string]string{"prompt": prompt}, &out); err != nil {
		return "", "", err
	}
	if out.Error != "" {
		return "", "", errors.New(out.Error)
	}
	if out.VideoURL == "" {
		return "", "", errors.New("empty videoUrl in response")
	}
	return out.VideoURL, out.Provider, nil
}

// TemplatedPrompt is the deterministic fallback illustration prompt used
// whenever the prompt service cannot be reached.
func TemplatedPrompt(question, answer string) string {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if len(answer) > 160 {
		answer = answer[:160]
	}
	return fmt.Sprintf("A clear, friendly illustration that answers the question %q, depicting: %s", question, answer)
}

func (g *Generator) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("media endpoint status %d: %s", res.StatusCode, strings.TrimSpace(string(raw[:min(len(raw), 256)])))
	}
	return nil
}

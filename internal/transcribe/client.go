package transcribe

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

	"github.com/lumenhq/asklumen/internal/reliability"
)

var (
	// ErrNoSpeech means the audio transcribed to an empty string.
	ErrNoSpeech = errors.New("no speech detected in audio")
	// ErrTimeout means the transcript did not complete within the poll budget.
	ErrTimeout = errors.New("transcription timed out")
)

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Client runs the upload, submit, poll cycle against an AssemblyAI-style
// speech-to-text API. One call covers the whole cycle; a timeout is a
// normal failure, not a crash.
type Client struct {
	apiKey   string
	baseURL  string
	attempts int
	interval time.Duration
	client   *http.Client
}

func NewClient(apiKey, baseURL string, attempts int, interval time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.assemblyai.com"
	}
	if attempts <= 0 {
		attempts = 30
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		attempts: attempts,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	audioURL, err := c.upload(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}

	transcriptID, err := c.submit(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}

	return c.poll(ctx, transcriptID)
}

func (c *Client) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.New("empty upload_url in response")
	}
	return out.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	if out.ID == "" {
		return "", errors.New("empty transcript id in response")
	}
	return out.ID, nil
}

// poll checks the transcript status on a fixed interval. Transient HTTP
// failures consume an attempt like any other incomplete poll.
func (c *Client) poll(ctx context.Context, transcriptID string) (string, error) {
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.interval):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+transcriptID, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", c.apiKey)

		var out struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		if err := c.do(req, &out); err != nil {
			var se *statusError
			if errors.As(err, &se) && reliability.IsRetryableHTTPStatus(se.code) {
				continue
			}
			return "", err
		}

		switch out.Status {
		case "completed":
			text := strings.TrimSpace(out.Text)
			if text == "" {
				return "", ErrNoSpeech
			}
			return text, nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", out.Error)
		}
	}
	return "", ErrTimeout
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("speech-to-text status %d: %s", e.code, e.body)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &statusError{code: res.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

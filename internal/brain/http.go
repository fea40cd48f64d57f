package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAdapter forwards questions to a chat-completion HTTP endpoint that
// speaks the {message, conversationHistory, files} contract.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type httpCompletionReply struct {
	Response   string     `json:"response"`
	History    []Exchange `json:"conversationHistory"`
	Error      string     `json:"error"`
	Type       string     `json:"type"`
	RetryAfter int        `json:"retryAfter"`
}

func (a *HTTPAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var reply httpCompletionReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Response{}, fmt.Errorf("chat completion status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if reply.Error != "" {
		if reply.Type == "rate_limit" {
			return Response{}, fmt.Errorf("chat completion rate limit (retry after %ds): %s", reply.RetryAfter, reply.Error)
		}
		return Response{}, fmt.Errorf("chat completion: %s", reply.Error)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Response{}, fmt.Errorf("chat completion status %d", res.StatusCode)
	}

	history := reply.History
	if len(history) == 0 {
		history = append(append([]Exchange{}, req.History...),
			Exchange{Role: "user", Content: req.Message},
			Exchange{Role: "assistant", Content: reply.Response},
		)
	}
	return Response{Text: strings.TrimSpace(reply.Response), History: history}, nil
}

package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no backend is
// configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	history := append(append([]Exchange{}, req.History...),
		Exchange{Role: "user", Content: req.Message},
		Exchange{Role: "assistant", Content: text},
	)
	return Response{Text: text, History: history}, nil
}

func buildMockReply(req Request) string {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return "I am listening."
	}
	if len(req.Files) > 0 {
		return fmt.Sprintf("You asked: %s (with %d attachment(s))", question, len(req.Files))
	}
	return fmt.Sprintf("You asked: %s", question)
}

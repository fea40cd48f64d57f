package tts

import (
	"context"
	"strings"
)

// MockProvider returns the input text bytes as fake audio. Used in mock mode
// and in tests that exercise the fallback chain.
type MockProvider struct {
	ProviderName string
	Err          error
	Calls        int
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string {
	if strings.TrimSpace(p.ProviderName) == "" {
		return "mock"
	}
	return p.ProviderName
}

func (p *MockProvider) Synthesize(_ context.Context, text string) ([]byte, string, error) {
	p.Calls++
	if p.Err != nil {
		return nil, "", p.Err
	}
	return []byte(text), "audio/mock", nil
}

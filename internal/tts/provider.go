package tts

import (
	"context"
	"errors"
)

// Provider turns text into a complete encoded audio clip.
type Provider interface {
	// Synthesize converts text to audio and returns the full buffer plus
	// its MIME type. Implementations classify provider failures into the
	// sentinel errors below so the fallback chain can message them.
	Synthesize(ctx context.Context, text string) (audio []byte, mimeType string, err error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

var (
	// ErrUnauthorized means the provider rejected our credentials. Treated
	// as a configuration failure for that provider only.
	ErrUnauthorized = errors.New("tts provider unauthorized")

	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited = errors.New("tts provider rate limited")

	// ErrQuotaExceeded means the account has no remaining character quota.
	ErrQuotaExceeded = errors.New("tts provider quota exceeded")

	// ErrUnusualActivity means the provider abuse-flagged the account.
	ErrUnusualActivity = errors.New("tts provider flagged unusual activity")
)

package narrate

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/lumenhq/asklumen/internal/observability"
	"github.com/lumenhq/asklumen/internal/playback"
	"github.com/lumenhq/asklumen/internal/tts"
)

// Handle is a resolved piece of narration audio. Either URI carries playable
// audio, or Platform is set and the local synthesis engine speaks the text
// directly.
type Handle struct {
	URI      string
	MimeType string
	Data     []byte
	Platform bool
}

// Chain resolves narration audio through up to three tiers: a primary hosted
// voice, a secondary hosted voice, and the platform synthesis engine. Tiers
// are tried strictly in order; a later tier runs only after the earlier one
// failed.
type Chain struct {
	primary   tts.Provider
	secondary tts.Provider
	synth     playback.Synthesizer
	metrics   *observability.Metrics
}

func NewChain(primary, secondary tts.Provider, synth playback.Synthesizer, metrics *observability.Metrics) *Chain {
	return &Chain{
		primary:   primary,
		secondary: secondary,
		synth:     synth,
		metrics:   metrics,
	}
}

// Resolve returns an audio handle for text along with the name of the tier
// that produced it. It returns ErrSynthesisUnavailable only after every
// configured tier has failed.
func (c *Chain) Resolve(ctx context.Context, text string) (Handle, string, error) {
	if c.primary != nil {
		h, err := c.synthesize(ctx, c.primary, text)
		if err == nil {
			return h, c.primary.Name(), nil
		}
		c.reportFailure("primary", c.primary.Name(), err)
	}

	if c.secondary != nil {
		h, err := c.synthesize(ctx, c.secondary, text)
		if err == nil {
			return h, c.secondary.Name(), nil
		}
		c.reportFailure("secondary", c.secondary.Name(), err)
	}

	if c.synth != nil && c.synth.Available() {
		return Handle{Platform: true}, "platform", nil
	}

	return Handle{}, "", ErrSynthesisUnavailable
}

func (c *Chain) synthesize(ctx context.Context, p tts.Provider, text string) (Handle, error) {
	start := time.Now()
	audio, mimeType, err := p.Synthesize(ctx, text)
	if err != nil {
		return Handle{}, err
	}
	c.metrics.ObserveSynthesis(p.Name(), time.Since(start))
	return Handle{
		URI:      dataURI(audio, mimeType),
		MimeType: mimeType,
		Data:     audio,
	}, nil
}

// reportFailure logs the tier failure with a reason-specific message so
// operators can tell a revoked key from a throttle at a glance.
func (c *Chain) reportFailure(tier, provider string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, tts.ErrUnusualActivity):
		reason = "unusual_activity"
		log.Printf("narrate: %s provider %s flagged for unusual activity, falling through: %v", tier, provider, err)
	case errors.Is(err, tts.ErrUnauthorized):
		reason = "unauthorized"
		log.Printf("narrate: %s provider %s rejected credentials, falling through: %v", tier, provider, err)
	case errors.Is(err, tts.ErrRateLimited):
		reason = "rate_limited"
		log.Printf("narrate: %s provider %s rate limited, falling through: %v", tier, provider, err)
	case errors.Is(err, tts.ErrQuotaExceeded):
		reason = "quota_exceeded"
		log.Printf("narrate: %s provider %s quota exceeded, falling through: %v", tier, provider, err)
	default:
		log.Printf("narrate: %s provider %s failed, falling through: %v", tier, provider, err)
	}
	c.metrics.CountFallback(tier, reason)
	c.metrics.CountProviderError(provider, reason)
}

func dataURI(audio []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio)
}

package playback

import (
	"context"
	"time"
)

// Player plays a complete audio clip (a data URI or file URL) and exposes a
// real time cursor into the clip. This is the narration backend used for
// audio delivered by remote text-to-speech providers.
type Player interface {
	// Play starts playback of uri at the given offset. It returns a channel
	// closed when this playback finishes on its own. Calling Play while a
	// clip is active replaces the active clip.
	Play(ctx context.Context, uri string, at time.Duration) (<-chan struct{}, error)

	// Pause halts playback but keeps the clip loaded so playback can be
	// resumed with another Play call at an offset.
	Pause()

	// Stop halts playback and unloads the clip. Idempotent.
	Stop()

	// Position reports the current playback cursor into the clip.
	Position() time.Duration
}

// Synthesizer is platform-native speech synthesis. Unlike Player it owns its
// own audio output, exposes no cursor, and cannot pause: the only control is
// cancellation, so a resume restarts synthesis from a text offset.
type Synthesizer interface {
	// Speak begins speaking text. The returned channel is closed when the
	// utterance completes on its own.
	Speak(ctx context.Context, text string) (<-chan struct{}, error)

	// Cancel discards the active utterance, if any. Idempotent. It must
	// also clear any queued utterances so nothing speaks after a stop.
	Cancel()

	// Available reports whether a speech engine is usable on this host.
	Available() bool
}

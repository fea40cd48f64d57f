package narrate

import "errors"

var (
	// ErrMuted means narration is muted; starting speech is a silent no-op
	// for the conversation but callers may surface it.
	ErrMuted = errors.New("narration muted")

	// ErrCannotNarrate means the content is empty or an error-marker
	// message that must never be read aloud.
	ErrCannotNarrate = errors.New("content cannot be narrated")

	// ErrSynthesisUnavailable means every provider tier failed; the
	// conversation continues in text-only mode.
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")

	// ErrNotPaused means Resume was called without a paused narration.
	ErrNotPaused = errors.New("no paused narration to resume")
)

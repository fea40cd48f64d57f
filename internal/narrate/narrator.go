package narrate

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lumenhq/asklumen/internal/observability"
	"github.com/lumenhq/asklumen/internal/playback"
)

// Flags lets the narrator mirror playback state onto messages without
// knowing how the conversation stores them.
type Flags interface {
	SetPlaying(messageID string, playing bool)
	ClearAllPlaying()
}

type noopFlags struct{}

func (noopFlags) SetPlaying(string, bool) {}
func (noopFlags) ClearAllPlaying()        {}

// State is a snapshot of the narration currently tracked. Position is a
// character offset into Text. Zero value means nothing is being narrated.
type State struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	Position  int    `json:"position"`
	Paused    bool   `json:"paused"`
	Loading   bool   `json:"loading"`
}

type ClipSink func(messageID string, audio []byte, mimeType string)

type Options struct {
	Chain          *Chain
	Player         playback.Player
	Synth          playback.Synthesizer
	Flags          Flags
	Metrics        *observability.Metrics
	CharsPerSecond int
	PollInterval   time.Duration
	Muted          bool
	ClipSink       ClipSink
}

// Narrator is the speech playback state machine. At most one message is
// narrated at a time; starting a new narration supersedes the old one.
type Narrator struct {
	chain        *Chain
	player       playback.Player
	synth        playback.Synthesizer
	flags        Flags
	metrics      *observability.Metrics
	est          *PositionEstimator
	pollInterval time.Duration
	sink         ClipSink

	mu    sync.Mutex
	muted bool
	// gen increments on every transition that invalidates in-flight work;
	// resolves and watchers carry the gen they started under and discard
	// themselves when it no longer matches.
	gen       int64
	state     State
	handle    Handle
	provider  string
	base      int
	startedAt time.Time
}

func New(opts Options) *Narrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Flags == nil {
		opts.Flags = noopFlags{}
	}
	return &Narrator{
		chain:        opts.Chain,
		player:       opts.Player,
		synth:        opts.Synth,
		flags:        opts.Flags,
		metrics:      opts.Metrics,
		est:          NewPositionEstimator(opts.CharsPerSecond),
		pollInterval: opts.PollInterval,
		sink:         opts.ClipSink,
		muted:        opts.Muted,
	}
}

// Start narrates content attributed to messageID, replacing any narration in
// progress. Content that is empty or looks like an error message is refused.
func (n *Narrator) Start(ctx context.Context, messageID, content string) error {
	n.mu.Lock()
	if n.muted {
		n.mu.Unlock()
		return ErrMuted
	}
	if strings.TrimSpace(content) == "" || IsErrorContent(content) {
		n.mu.Unlock()
		return ErrCannotNarrate
	}
	text := CleanTextForSpeech(content)
	if text == "" {
		n.mu.Unlock()
		return ErrCannotNarrate
	}
	n.haltLocked()
	n.gen++
	gen := n.gen
	n.state = State{MessageID: messageID, Text: text, Loading: true}
	n.handle = Handle{}
	n.mu.Unlock()

	n.flags.ClearAllPlaying()
	n.flags.SetPlaying(messageID, true)
	n.metrics.CountNarration("start")

	handle, provider, err := n.chain.Resolve(ctx, text)

	n.mu.Lock()
	if n.gen != gen {
		// Superseded while resolving.
		n.mu.Unlock()
		return nil
	}
	if err != nil {
		n.state = State{}
		n.mu.Unlock()
		n.flags.SetPlaying(messageID, false)
		n.metrics.CountNarration("unavailable")
		return err
	}
	n.handle = handle
	n.provider = provider
	n.state.Loading = false
	if err := n.beginLocked(ctx, gen, 0); err != nil {
		n.state = State{}
		n.handle = Handle{}
		n.mu.Unlock()
		n.flags.SetPlaying(messageID, false)
		n.metrics.CountNarration("playback_error")
		return err
	}
	n.mu.Unlock()

	if n.sink != nil && len(handle.Data) > 0 {
		n.sink(messageID, handle.Data, handle.MimeType)
	}
	log.Printf("narrate: speaking message %s via %s (%d chars)", messageID, provider, utf8.RuneCountInString(text))
	return nil
}

// Pause freezes the narration at the current estimated position. Platform
// synthesis cannot pause, so it is cancelled and Resume restarts from the
// frozen position.
func (n *Narrator) Pause() {
	n.mu.Lock()
	if n.state.MessageID == "" || n.state.Paused || n.state.Loading {
		n.mu.Unlock()
		return
	}
	n.state.Position = n.positionLocked()
	n.gen++
	if n.handle.Platform {
		n.synth.Cancel()
	} else {
		n.player.Pause()
	}
	n.state.Paused = true
	messageID := n.state.MessageID
	n.mu.Unlock()

	n.flags.SetPlaying(messageID, false)
	n.metrics.CountNarration("pause")
}

// Resume continues a paused narration from the frozen position.
func (n *Narrator) Resume(ctx context.Context) error {
	n.mu.Lock()
	if n.state.MessageID == "" || !n.state.Paused {
		n.mu.Unlock()
		return ErrNotPaused
	}
	n.gen++
	gen := n.gen
	n.state.Paused = false
	messageID := n.state.MessageID
	if err := n.beginLocked(ctx, gen, n.state.Position); err != nil {
		n.state.Paused = true
		n.mu.Unlock()
		return err
	}
	n.mu.Unlock()

	n.flags.SetPlaying(messageID, true)
	n.metrics.CountNarration("resume")
	return nil
}

// Stop halts both backends unconditionally, resets the tracked state, and
// clears the playing flag on every message. Safe to call when idle.
func (n *Narrator) Stop() {
	n.mu.Lock()
	n.haltLocked()
	n.gen++
	n.state = State{}
	n.handle = Handle{}
	n.mu.Unlock()

	n.flags.ClearAllPlaying()
	n.metrics.CountNarration("stop")
}

// ToggleReadAloud is the single entry point behind the read-aloud control.
// Tapping the tracked message pauses or resumes it; tapping any other
// message stops the current narration and starts a new one. Taps during the
// loading window are ignored.
func (n *Narrator) ToggleReadAloud(ctx context.Context, messageID, content string) error {
	n.mu.Lock()
	current := n.state.MessageID
	loading := n.state.Loading
	paused := n.state.Paused
	n.mu.Unlock()

	if messageID != "" && current == messageID {
		if loading {
			return nil
		}
		if paused {
			return n.Resume(ctx)
		}
		n.Pause()
		return nil
	}

	n.Stop()
	return n.Start(ctx, messageID, content)
}

// SetMuted flips the mute flag. Muting while narrating stops the narration.
func (n *Narrator) SetMuted(muted bool) {
	n.mu.Lock()
	n.muted = muted
	active := n.state.MessageID != ""
	n.mu.Unlock()
	if muted && active {
		n.Stop()
	}
}

func (n *Narrator) Muted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.muted
}

// State returns a snapshot with the position brought up to date.
func (n *Narrator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.state
	if s.MessageID != "" && !s.Paused && !s.Loading {
		s.Position = n.positionLocked()
	}
	return s
}

// beginLocked starts the backend for the current handle at the given
// character offset and spawns the position watcher.
func (n *Narrator) beginLocked(ctx context.Context, gen int64, from int) error {
	n.base = from
	n.startedAt = time.Now()

	var done <-chan struct{}
	var err error
	if n.handle.Platform {
		done, err = n.synth.Speak(ctx, n.state.Text[byteOffset(n.state.Text, from):])
	} else {
		done, err = n.player.Play(ctx, n.handle.URI, n.est.OffsetDuration(n.state.Text, from))
	}
	if err != nil {
		return err
	}
	go n.watch(gen, done)
	return nil
}

// watch samples the position on a fixed interval until the utterance ends or
// the narration it belongs to is superseded.
func (n *Narrator) watch(gen int64, done <-chan struct{}) {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			n.finish(gen)
			return
		case <-ticker.C:
			n.mu.Lock()
			if n.gen != gen {
				n.mu.Unlock()
				return
			}
			if !n.state.Paused && !n.state.Loading {
				n.state.Position = n.positionLocked()
			}
			n.mu.Unlock()
		}
	}
}

func (n *Narrator) finish(gen int64) {
	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		return
	}
	n.gen++
	n.state = State{}
	n.handle = Handle{}
	n.mu.Unlock()

	n.flags.ClearAllPlaying()
	n.metrics.CountNarration("complete")
}

// positionLocked estimates the character offset of the active utterance.
// Remote audio reports a playback cursor; platform synthesis only gives wall
// clock time since the utterance began, measured from the base offset it was
// started at. The estimate never moves backwards.
func (n *Narrator) positionLocked() int {
	text := n.state.Text
	var pos int
	if n.handle.Platform {
		rest := text[byteOffset(text, n.base):]
		pos = n.base + n.est.CharOffset(rest, time.Since(n.startedAt))
	} else {
		pos = n.est.CharOffset(text, n.player.Position())
	}
	if pos < n.state.Position {
		return n.state.Position
	}
	return pos
}

func (n *Narrator) haltLocked() {
	if n.player != nil {
		n.player.Stop()
	}
	if n.synth != nil {
		n.synth.Cancel()
	}
}

package narrate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lumenhq/asklumen/internal/playback"
	"github.com/lumenhq/asklumen/internal/tts"
)

type flagRecorder struct {
	mu       sync.Mutex
	playing  map[string]bool
	clearAll int
}

func newFlagRecorder() *flagRecorder {
	return &flagRecorder{playing: make(map[string]bool)}
}

func (f *flagRecorder) SetPlaying(messageID string, playing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if playing {
		f.playing[messageID] = true
	} else {
		delete(f.playing, messageID)
	}
}

func (f *flagRecorder) ClearAllPlaying() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = make(map[string]bool)
	f.clearAll++
}

func (f *flagRecorder) playingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.playing)
}

func (f *flagRecorder) isPlaying(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing[messageID]
}

type fixture struct {
	narrator  *Narrator
	primary   *tts.MockProvider
	secondary *tts.MockProvider
	player    *playback.MockPlayer
	synth     *playback.MockSynthesizer
	flags     *flagRecorder
}

func newFixture(charsPerSecond int) *fixture {
	f := &fixture{
		primary:   &tts.MockProvider{ProviderName: "primary"},
		secondary: &tts.MockProvider{ProviderName: "secondary"},
		player:    playback.NewMockPlayer(),
		synth:     playback.NewMockSynthesizer(),
		flags:     newFlagRecorder(),
	}
	f.narrator = New(Options{
		Chain:          NewChain(f.primary, f.secondary, f.synth, nil),
		Player:         f.player,
		Synth:          f.synth,
		Flags:          f.flags,
		CharsPerSecond: charsPerSecond,
		PollInterval:   10 * time.Millisecond,
	})
	return f
}

func longText() string {
	return strings.Repeat("a", 150)
}

func TestStartRejectsErrorContent(t *testing.T) {
	f := newFixture(15)
	for _, content := range []string{"", "   ", "Error: upstream failed", "hit the rate limit", "quota exceeded for today", "check your API key"} {
		if err := f.narrator.Start(context.Background(), "m1", content); !errors.Is(err, ErrCannotNarrate) {
			t.Fatalf("Start(%q) error = %v, want ErrCannotNarrate", content, err)
		}
	}
	if f.primary.Calls != 0 {
		t.Fatalf("primary.Calls = %d, want 0", f.primary.Calls)
	}
	if got := f.narrator.State(); got.MessageID != "" {
		t.Fatalf("State() = %+v, want empty", got)
	}
}

func TestStartWhileMuted(t *testing.T) {
	f := newFixture(15)
	f.narrator.SetMuted(true)
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); !errors.Is(err, ErrMuted) {
		t.Fatalf("Start() error = %v, want ErrMuted", err)
	}
	if got := f.narrator.State(); got.MessageID != "" {
		t.Fatalf("State() = %+v, want empty", got)
	}
}

func TestStartRemoteAudio(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := f.narrator.State()
	if st.MessageID != "m1" || st.Paused || st.Loading {
		t.Fatalf("State() = %+v, want playing m1", st)
	}
	if st.Text != "hello there" {
		t.Fatalf("State().Text = %q, want %q", st.Text, "hello there")
	}
	if f.player.PlayCalls != 1 || f.player.LastOffset != 0 {
		t.Fatalf("player = (%d calls, offset %v), want (1, 0)", f.player.PlayCalls, f.player.LastOffset)
	}
	if !f.flags.isPlaying("m1") {
		t.Fatal("message m1 not flagged playing")
	}
}

func TestStartFallsBackToPlatform(t *testing.T) {
	f := newFixture(15)
	f.primary.Err = tts.ErrUnauthorized
	f.secondary.Err = tts.ErrRateLimited

	if err := f.narrator.Start(context.Background(), "m1", "What is 2+2? It is 4."); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := f.narrator.State()
	if st.MessageID != "m1" || st.Paused {
		t.Fatalf("State() = %+v, want playing m1", st)
	}
	if f.primary.Calls != 1 || f.secondary.Calls != 1 {
		t.Fatalf("provider calls = (%d, %d), want (1, 1)", f.primary.Calls, f.secondary.Calls)
	}
	if f.synth.SpeakCalls != 1 {
		t.Fatalf("synth.SpeakCalls = %d, want 1", f.synth.SpeakCalls)
	}
	if f.player.PlayCalls != 0 {
		t.Fatalf("player.PlayCalls = %d, want 0", f.player.PlayCalls)
	}
}

func TestStartAllTiersDown(t *testing.T) {
	f := newFixture(15)
	f.primary.Err = tts.ErrQuotaExceeded
	f.secondary.Err = errors.New("boom")
	f.synth.SetAvailable(false)

	err := f.narrator.Start(context.Background(), "m1", "hello there")
	if !errors.Is(err, ErrSynthesisUnavailable) {
		t.Fatalf("Start() error = %v, want ErrSynthesisUnavailable", err)
	}
	if got := f.narrator.State(); got.MessageID != "" {
		t.Fatalf("State() = %+v, want empty", got)
	}
	if f.flags.playingCount() != 0 {
		t.Fatalf("playing flags = %d, want 0", f.flags.playingCount())
	}
}

func TestPauseFreezesPositionRemote(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Start(context.Background(), "m1", longText()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.player.SetPosition(2 * time.Second)
	f.narrator.Pause()

	st := f.narrator.State()
	if !st.Paused {
		t.Fatal("State().Paused = false, want true")
	}
	if st.Position < 30 || st.Position > 35 {
		t.Fatalf("State().Position = %d, want ~30", st.Position)
	}
	frozen := st.Position
	time.Sleep(50 * time.Millisecond)
	if got := f.narrator.State().Position; got != frozen {
		t.Fatalf("position moved while paused: %d, was %d", got, frozen)
	}
	if f.flags.isPlaying("m1") {
		t.Fatal("message m1 still flagged playing after pause")
	}
}

func TestResumeRemoteSeeksToFrozenPosition(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Start(context.Background(), "m1", longText()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.player.SetPosition(2 * time.Second)
	f.narrator.Pause()
	frozen := f.narrator.State().Position

	if err := f.narrator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if f.player.PlayCalls != 2 {
		t.Fatalf("player.PlayCalls = %d, want 2", f.player.PlayCalls)
	}
	wantOffset := time.Duration(float64(frozen) / 150 * 10 * float64(time.Second))
	if got := f.player.LastOffset; got < wantOffset-100*time.Millisecond || got > wantOffset+100*time.Millisecond {
		t.Fatalf("player.LastOffset = %v, want ~%v", got, wantOffset)
	}
	if !f.flags.isPlaying("m1") {
		t.Fatal("message m1 not flagged playing after resume")
	}
}

func TestPlatformPositionMonotoneAndResumeSpeaksRemainder(t *testing.T) {
	f := newFixture(1000)
	f.primary.Err = tts.ErrUnauthorized
	f.secondary.Err = tts.ErrRateLimited
	text := strings.Repeat("b", 2000)

	if err := f.narrator.Start(context.Background(), "m1", text); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	p1 := f.narrator.State().Position
	time.Sleep(60 * time.Millisecond)
	p2 := f.narrator.State().Position
	if p1 <= 0 {
		t.Fatalf("position after 60ms = %d, want > 0", p1)
	}
	if p2 < p1 {
		t.Fatalf("position decreased: %d after %d", p2, p1)
	}

	f.narrator.Pause()
	frozen := f.narrator.State().Position
	time.Sleep(60 * time.Millisecond)
	if got := f.narrator.State().Position; got != frozen {
		t.Fatalf("position moved while paused: %d, was %d", got, frozen)
	}
	if f.synth.CancelCalls == 0 {
		t.Fatal("platform synthesis not cancelled on pause")
	}

	if err := f.narrator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if f.synth.SpeakCalls != 2 {
		t.Fatalf("synth.SpeakCalls = %d, want 2", f.synth.SpeakCalls)
	}
	if want := text[frozen:]; f.synth.LastText != want {
		t.Fatalf("resume spoke %d chars, want remainder of %d chars", len(f.synth.LastText), len(want))
	}
}

func TestPlatformResumeMultiByteTextStaysOnRuneBoundary(t *testing.T) {
	f := newFixture(1000)
	f.primary.Err = tts.ErrUnauthorized
	f.secondary.Err = tts.ErrRateLimited
	text := strings.Repeat("é", 4000)

	if err := f.narrator.Start(context.Background(), "m1", text); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	f.narrator.Pause()
	frozen := f.narrator.State().Position
	if frozen <= 0 || frozen >= 4000 {
		t.Fatalf("frozen position = %d, want inside (0, 4000)", frozen)
	}

	if err := f.narrator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if !utf8.ValidString(f.synth.LastText) {
		t.Fatalf("resume spoke invalid UTF-8 starting %q", f.synth.LastText[:8])
	}
	if want := string([]rune(text)[frozen:]); f.synth.LastText != want {
		t.Fatalf("resume spoke %d chars, want remainder of %d chars",
			utf8.RuneCountInString(f.synth.LastText), utf8.RuneCountInString(want))
	}
}

func TestResumeWithoutPause(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Resume(context.Background()); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Resume() error = %v, want ErrNotPaused", err)
	}
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.narrator.Resume(context.Background()); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Resume() while playing error = %v, want ErrNotPaused", err)
	}
}

func TestToggleReadAloudSingleFlight(t *testing.T) {
	f := newFixture(15)
	ctx := context.Background()

	if err := f.narrator.ToggleReadAloud(ctx, "m1", "first message body"); err != nil {
		t.Fatalf("ToggleReadAloud(m1) error = %v", err)
	}
	if f.flags.playingCount() != 1 || !f.flags.isPlaying("m1") {
		t.Fatalf("playing flags = %d, want only m1", f.flags.playingCount())
	}

	// Same message again pauses, a third tap resumes.
	if err := f.narrator.ToggleReadAloud(ctx, "m1", "first message body"); err != nil {
		t.Fatalf("ToggleReadAloud(m1) again error = %v", err)
	}
	if st := f.narrator.State(); !st.Paused {
		t.Fatalf("State() = %+v, want paused", st)
	}
	if f.flags.playingCount() != 0 {
		t.Fatalf("playing flags = %d, want 0 while paused", f.flags.playingCount())
	}
	if err := f.narrator.ToggleReadAloud(ctx, "m1", "first message body"); err != nil {
		t.Fatalf("ToggleReadAloud(m1) third tap error = %v", err)
	}
	if st := f.narrator.State(); st.Paused {
		t.Fatalf("State() = %+v, want resumed", st)
	}

	// A different message supersedes the current narration.
	if err := f.narrator.ToggleReadAloud(ctx, "m2", "second message body"); err != nil {
		t.Fatalf("ToggleReadAloud(m2) error = %v", err)
	}
	st := f.narrator.State()
	if st.MessageID != "m2" {
		t.Fatalf("State().MessageID = %q, want m2", st.MessageID)
	}
	if f.flags.playingCount() != 1 || !f.flags.isPlaying("m2") {
		t.Fatalf("playing flags = %d (m2=%v), want only m2", f.flags.playingCount(), f.flags.isPlaying("m2"))
	}
}

func TestStopResetsEverything(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.narrator.Stop()

	if got := f.narrator.State(); got != (State{}) {
		t.Fatalf("State() = %+v, want zero", got)
	}
	if f.flags.playingCount() != 0 {
		t.Fatalf("playing flags = %d, want 0", f.flags.playingCount())
	}
	if f.flags.clearAll < 2 {
		t.Fatalf("ClearAllPlaying calls = %d, want >= 2", f.flags.clearAll)
	}
	// Stop is idempotent.
	f.narrator.Stop()
}

func TestNaturalEndResetsState(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.player.Finish()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.narrator.State().MessageID == "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.narrator.State(); got.MessageID != "" {
		t.Fatalf("State() = %+v, want reset after clip ended", got)
	}
	if f.flags.playingCount() != 0 {
		t.Fatalf("playing flags = %d, want 0", f.flags.playingCount())
	}
}

func TestMutingStopsActiveNarration(t *testing.T) {
	f := newFixture(15)
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.narrator.SetMuted(true)
	if got := f.narrator.State(); got.MessageID != "" {
		t.Fatalf("State() = %+v, want empty after mute", got)
	}
	if !f.narrator.Muted() {
		t.Fatal("Muted() = false, want true")
	}
}

func TestClipSinkReceivesAudio(t *testing.T) {
	f := newFixture(15)
	var gotID, gotMime string
	var gotAudio []byte
	f.narrator.sink = func(messageID string, audio []byte, mimeType string) {
		gotID, gotAudio, gotMime = messageID, audio, mimeType
	}
	if err := f.narrator.Start(context.Background(), "m1", "hello there"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if gotID != "m1" || gotMime != "audio/mock" || len(gotAudio) == 0 {
		t.Fatalf("sink got (%q, %d bytes, %q), want m1 audio", gotID, len(gotAudio), gotMime)
	}
}

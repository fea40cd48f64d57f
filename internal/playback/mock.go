package playback

import (
	"context"
	"sync"
	"time"
)

// MockPlayer is an in-process player used in mock mode and tests. Its cursor
// advances with wall clock while playing, like a real audio element.
type MockPlayer struct {
	mu      sync.Mutex
	playing bool
	offset  time.Duration
	startAt time.Time
	done    chan struct{}

	PlayCalls  int
	LastURI    string
	LastOffset time.Duration
}

func NewMockPlayer() *MockPlayer { return &MockPlayer{} }

func (p *MockPlayer) Play(_ context.Context, uri string, at time.Duration) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls++
	p.LastURI = uri
	p.LastOffset = at
	p.offset = at
	p.startAt = time.Now()
	p.playing = true
	p.done = make(chan struct{})
	return p.done, nil
}

func (p *MockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.offset += time.Since(p.startAt)
		p.playing = false
	}
}

func (p *MockPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.offset = 0
}

func (p *MockPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return p.offset + time.Since(p.startAt)
	}
	return p.offset
}

// Finish simulates the clip ending on its own.
func (p *MockPlayer) Finish() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	if p.playing {
		p.offset += time.Since(p.startAt)
		p.playing = false
	}
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// SetPosition forces the cursor, letting tests model elapsed playback.
func (p *MockPlayer) SetPosition(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = d
	p.startAt = time.Now()
}

// MockSynthesizer records utterances without producing audio.
type MockSynthesizer struct {
	mu        sync.Mutex
	available bool
	done      chan struct{}

	SpeakCalls  int
	CancelCalls int
	LastText    string
	SpeakErr    error
}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{available: true} }

func (s *MockSynthesizer) SetAvailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = v
}

func (s *MockSynthesizer) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *MockSynthesizer) Speak(_ context.Context, text string) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls++
	s.LastText = text
	if s.SpeakErr != nil {
		return nil, s.SpeakErr
	}
	s.done = make(chan struct{})
	return s.done, nil
}

func (s *MockSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCalls++
}

// Finish simulates the utterance completing on its own.
func (s *MockSynthesizer) Finish() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done != nil {
		close(done)
	}
}

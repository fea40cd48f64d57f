package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/asklumen/internal/capture"
	"github.com/lumenhq/asklumen/internal/conversation"
	"github.com/lumenhq/asklumen/internal/narrate"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Runtime is the per-session machinery: one conversation, its narrator and
// the audio capture buffer.
type Runtime struct {
	Controller *conversation.Controller
	Narrator   *narrate.Narrator
	Recorder   *capture.Accumulator
}

// Session binds a user to a conversation runtime for its lifetime.
type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	runtime *Runtime
}

// Runtime returns the session's conversation machinery.
func (s *Session) Runtime() *Runtime { return s.runtime }

// Factory builds a Runtime for a new session. userID may be empty for
// anonymous sessions, which are never persisted.
type Factory func(userID string) *Runtime

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	factory           Factory
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration, factory Factory) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
		factory:           factory,
	}
}

// SetExpireHook registers a callback run for each session the janitor ends.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create starts a session. A signed-in user with an active session gets that
// session back instead of a second runtime.
func (m *Manager) Create(userID string) *Session {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	if userID != "" {
		if id, ok := m.sessionByUser[userID]; ok {
			if existing, ok := m.sessions[id]; ok && existing.Status == StatusActive {
				existing.LastActivityAt = now
				return existing
			}
		}
	}

	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		runtime:        m.factory(userID),
	}
	m.sessions[s.ID] = s
	if userID != "" {
		m.sessionByUser[userID] = s.ID
	}
	return s
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Active returns the session only if it has not ended.
func (m *Manager) Active(sessionID string) (*Session, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s.Status != StatusActive {
		return nil, ErrNotFound
	}
	return s, nil
}

// Snapshot returns a copy safe to serialize while the janitor runs.
func (m *Manager) Snapshot(sessionID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	out := *s
	out.runtime = nil
	return out, nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// End marks the session ended and shuts its narration down.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	if s.UserID != "" {
		delete(m.sessionByUser, s.UserID)
	}
	m.mu.Unlock()

	m.teardown(s)
	return s, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status != StatusActive {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, s)
		if s.UserID != "" {
			delete(m.sessionByUser, s.UserID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, s := range expired {
		m.teardown(s)
		if hook != nil {
			hook(s)
		}
	}
}

func (m *Manager) teardown(s *Session) {
	if s.runtime == nil {
		return
	}
	if s.runtime.Narrator != nil {
		s.runtime.Narrator.Stop()
	}
	if s.runtime.Recorder != nil {
		s.runtime.Recorder.Reset()
	}
}

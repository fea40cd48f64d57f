package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversation history in-process. Used for anonymous
// sessions and local development where no database is configured.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]ConversationRecord
	messages      map[string][]MessageRecord
	images        []MediaRecord
	videos        []MediaRecord
	audio         []AudioRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]ConversationRecord),
		messages:      make(map[string][]MessageRecord),
	}
}

func (s *InMemoryStore) SaveConversation(_ context.Context, record ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.conversations[record.ID] = record
	return nil
}

func (s *InMemoryStore) SaveMessage(_ context.Context, record MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.messages[record.ConversationID] = append(s.messages[record.ConversationID], record)
	return nil
}

func (s *InMemoryStore) UpdateMessagePlayback(_ context.Context, messageID, audioURL string, isPlaying bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for convID, msgs := range s.messages {
		for i := range msgs {
			if msgs[i].ID != messageID {
				continue
			}
			if audioURL != "" {
				msgs[i].AudioURL = audioURL
			}
			msgs[i].IsPlaying = isPlaying
			s.messages[convID] = msgs
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.messages[conversationID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]MessageRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) SaveGeneratedImage(_ context.Context, record MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, withMediaDefaults(record))
	return nil
}

func (s *InMemoryStore) SaveGeneratedVideo(_ context.Context, record MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos = append(s.videos, withMediaDefaults(record))
	return nil
}

func (s *InMemoryStore) SaveConversationAudio(_ context.Context, record AudioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.audio = append(s.audio, record)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func withMediaDefaults(record MediaRecord) MediaRecord {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return record
}

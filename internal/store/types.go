package store

import (
	"context"
	"time"
)

// ConversationRecord is one persisted conversation owned by a user.
type ConversationRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRecord mirrors one conversation message row.
type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	Role           string    `json:"role"`
	AudioURL       string    `json:"audio_url,omitempty"`
	IsPlaying      bool      `json:"is_playing"`
	CreatedAt      time.Time `json:"created_at"`
}

// MediaRecord stores one generated image or video keyed by message.
type MediaRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Prompt    string    `json:"prompt"`
	URL       string    `json:"url"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AudioRecord stores one synthesized narration clip keyed by message.
type AudioRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	AudioURL  string    `json:"audio_url"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversations, messages and generated media. Callers treat
// every write as best-effort: the in-memory conversation log is the source
// of truth for a live session and rows are a mirror for signed-in users.
type Store interface {
	SaveConversation(ctx context.Context, record ConversationRecord) error
	SaveMessage(ctx context.Context, record MessageRecord) error
	UpdateMessagePlayback(ctx context.Context, messageID, audioURL string, isPlaying bool) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]MessageRecord, error)
	SaveGeneratedImage(ctx context.Context, record MediaRecord) error
	SaveGeneratedVideo(ctx context.Context, record MediaRecord) error
	SaveConversationAudio(ctx context.Context, record AudioRecord) error
	Close() error
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, updated_at);`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			role TEXT NOT NULL,
			audio_url TEXT,
			is_playing BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (conversation_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS generated_images (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			prompt TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL,
			provider TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS generated_videos (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			prompt TEXT NOT NULL DEFAULT '',
			video_url TEXT NOT NULL,
			provider TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_audio (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL,
			audio_url TEXT NOT NULL,
			provider TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveConversation(ctx context.Context, record ConversationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = EXCLUDED.updated_at`,
		record.ID,
		record.UserID,
		record.Title,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, record MessageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_messages (id, conversation_id, content, role, audio_url, is_playing, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		record.ID,
		record.ConversationID,
		record.Content,
		record.Role,
		record.AudioURL,
		record.IsPlaying,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMessagePlayback(ctx context.Context, messageID, audioURL string, isPlaying bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversation_messages
		 SET audio_url = COALESCE(NULLIF($2, ''), audio_url), is_playing = $3
		 WHERE id = $1`,
		messageID,
		audioURL,
		isPlaying,
	)
	if err != nil {
		return fmt.Errorf("update message playback: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, content, role, COALESCE(audio_url, ''), is_playing, created_at
		 FROM conversation_messages WHERE conversation_id=$1 ORDER BY created_at DESC LIMIT $2`,
		conversationID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var r MessageRecord
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Content, &r.Role, &r.AudioURL, &r.IsPlaying, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Reverse into chronological order for rendering.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) SaveGeneratedImage(ctx context.Context, record MediaRecord) error {
	return s.saveMedia(ctx, "generated_images", "image_url", record)
}

func (s *PostgresStore) SaveGeneratedVideo(ctx context.Context, record MediaRecord) error {
	return s.saveMedia(ctx, "generated_videos", "video_url", record)
}

func (s *PostgresStore) saveMedia(ctx context.Context, table, urlColumn string, record MediaRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, message_id, prompt, %s, provider, created_at) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		table, urlColumn,
	)
	if _, err := s.pool.Exec(ctx, stmt, record.ID, record.MessageID, record.Prompt, record.URL, record.Provider, record.CreatedAt); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) SaveConversationAudio(ctx context.Context, record AudioRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_audio (id, message_id, audio_url, provider, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		record.ID,
		record.MessageID,
		record.AudioURL,
		record.Provider,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation audio: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

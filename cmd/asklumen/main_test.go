package main

import (
	"context"
	"strings"
	"testing"

	"github.com/lumenhq/asklumen/internal/brain"
	"github.com/lumenhq/asklumen/internal/conversation"
	"github.com/lumenhq/asklumen/internal/store"
)

// audioRecorder counts audio writes on top of the in-memory store.
type audioRecorder struct {
	*store.InMemoryStore
	saved []store.AudioRecord
}

func (s *audioRecorder) SaveConversationAudio(ctx context.Context, record store.AudioRecord) error {
	s.saved = append(s.saved, record)
	return s.InMemoryStore.SaveConversationAudio(ctx, record)
}

func TestClipSinkAnonymousSessionKeepsAudioInMemoryOnly(t *testing.T) {
	db := &audioRecorder{InMemoryStore: store.NewInMemoryStore()}
	ctrl := conversation.NewController(conversation.Options{Adapter: brain.NewMockAdapter()})
	assistant, err := ctrl.SendQuestion(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("SendQuestion() error = %v", err)
	}

	sink := clipSink(ctrl, db, "")
	sink(assistant.ID, []byte("clip"), "audio/mpeg")

	if len(db.saved) != 0 {
		t.Fatalf("anonymous session wrote %d audio rows, want 0", len(db.saved))
	}
	got, ok := ctrl.Message(assistant.ID)
	if !ok {
		t.Fatalf("Message(%q) not found", assistant.ID)
	}
	if !strings.HasPrefix(got.AudioURL, "data:audio/mpeg;base64,") {
		t.Fatalf("AudioURL = %q, want data URI", got.AudioURL)
	}
}

func TestClipSinkPersistsForSignedInUser(t *testing.T) {
	db := &audioRecorder{InMemoryStore: store.NewInMemoryStore()}
	ctrl := conversation.NewController(conversation.Options{
		Adapter: brain.NewMockAdapter(),
		Store:   db,
		UserID:  "user-42",
	})
	assistant, err := ctrl.SendQuestion(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("SendQuestion() error = %v", err)
	}

	sink := clipSink(ctrl, db, "user-42")
	sink(assistant.ID, []byte("clip"), "audio/mpeg")

	if len(db.saved) != 1 {
		t.Fatalf("signed-in session wrote %d audio rows, want 1", len(db.saved))
	}
	if db.saved[0].MessageID != assistant.ID {
		t.Fatalf("audio row MessageID = %q, want %q", db.saved[0].MessageID, assistant.ID)
	}
	if !strings.HasPrefix(db.saved[0].AudioURL, "data:audio/mpeg;base64,") {
		t.Fatalf("audio row AudioURL = %q, want data URI", db.saved[0].AudioURL)
	}
}

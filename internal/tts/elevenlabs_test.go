package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabsSynthesizeReturnsAudio(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p := NewElevenLabs(ElevenLabsConfig{APIKey: "key-1", BaseURL: srv.URL, VoiceID: "voice-1"})

	audio, mime, err := p.Synthesize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("Synthesize() audio = %q, want mp3-bytes", audio)
	}
	if mime != "audio/mpeg" {
		t.Fatalf("Synthesize() mime = %q, want audio/mpeg", mime)
	}
	if gotKey != "key-1" {
		t.Fatalf("xi-api-key = %q, want key-1", gotKey)
	}
}

func TestElevenLabsClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":{"status":"invalid_api_key"}}`, ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{"detail":"too many requests"}`, ErrRateLimited},
		{"unusual activity", http.StatusUnauthorized, `{"detail":{"status":"detected_unusual_activity"}}`, ErrUnusualActivity},
		{"quota", http.StatusBadRequest, `{"detail":"character quota exceeded"}`, ErrQuotaExceeded},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := NewElevenLabs(ElevenLabsConfig{APIKey: "k", BaseURL: srv.URL, VoiceID: "v"})
			_, _, err := p.Synthesize(context.Background(), "hi")
			if !errors.Is(err, tc.want) {
				t.Fatalf("Synthesize() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestElevenLabsRequiresVoiceID(t *testing.T) {
	p := NewElevenLabs(ElevenLabsConfig{APIKey: "k"})
	if _, _, err := p.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("Synthesize() expected error without voice id")
	}
}

package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeASR struct {
	pollsUntilDone int32
	finalText      string
	failPolls      int32
	polls          atomic.Int32
}

func (f *fakeASR) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("upload missing Authorization header")
		}
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.test/audio/1"})
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["audio_url"] != "https://cdn.test/audio/1" {
			t.Errorf("submit audio_url = %q", req["audio_url"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
	})
	mux.HandleFunc("GET /v2/transcript/tr-1", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		if n <= f.failPolls {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if n < f.pollsUntilDone {
			json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "completed", "text": f.finalText})
	})
	return mux
}

func TestTranscribeUploadSubmitPoll(t *testing.T) {
	asr := &fakeASR{pollsUntilDone: 3, finalText: "  hello world  "}
	srv := httptest.NewServer(asr.handler(t))
	defer srv.Close()

	c := NewClient("key", srv.URL, 5, 5*time.Millisecond)
	got, err := c.Transcribe(context.Background(), []byte("wav-bytes"))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "hello world" {
		t.Fatalf("Transcribe() = %q, want %q", got, "hello world")
	}
	if asr.polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", asr.polls.Load())
	}
}

func TestTranscribeRetriesTransientPollFailures(t *testing.T) {
	asr := &fakeASR{pollsUntilDone: 3, failPolls: 2, finalText: "recovered"}
	srv := httptest.NewServer(asr.handler(t))
	defer srv.Close()

	c := NewClient("key", srv.URL, 10, 5*time.Millisecond)
	got, err := c.Transcribe(context.Background(), []byte("wav-bytes"))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "recovered" {
		t.Fatalf("Transcribe() = %q, want %q", got, "recovered")
	}
}

func TestTranscribeTimesOutAfterAttemptBudget(t *testing.T) {
	asr := &fakeASR{pollsUntilDone: 100, finalText: "never"}
	srv := httptest.NewServer(asr.handler(t))
	defer srv.Close()

	c := NewClient("key", srv.URL, 4, time.Millisecond)
	_, err := c.Transcribe(context.Background(), []byte("wav-bytes"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Transcribe() error = %v, want ErrTimeout", err)
	}
	if asr.polls.Load() != 4 {
		t.Fatalf("polls = %d, want 4", asr.polls.Load())
	}
}

func TestTranscribeEmptyTranscript(t *testing.T) {
	asr := &fakeASR{pollsUntilDone: 1, finalText: "   "}
	srv := httptest.NewServer(asr.handler(t))
	defer srv.Close()

	c := NewClient("key", srv.URL, 3, time.Millisecond)
	_, err := c.Transcribe(context.Background(), []byte("wav-bytes"))
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Transcribe() error = %v, want ErrNoSpeech", err)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	c := NewClient("key", "http://example.test", 3, time.Millisecond)
	if _, err := c.Transcribe(context.Background(), nil); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Transcribe() error = %v, want ErrNoSpeech", err)
	}
}

func TestTranscribeSubmitError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.test/audio/1"})
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "unsupported codec"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient("key", srv.URL, 3, time.Millisecond)
	_, err := c.Transcribe(context.Background(), []byte("wav-bytes"))
	if err == nil || !strings.Contains(err.Error(), "unsupported codec") {
		t.Fatalf("Transcribe() error = %v, want submit error", err)
	}
}

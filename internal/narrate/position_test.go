package narrate

import (
	"strings"
	"testing"
	"time"
)

func TestEstimatedDuration(t *testing.T) {
	est := NewPositionEstimator(15)
	text := make([]byte, 150)
	for i := range text {
		text[i] = 'a'
	}
	if got := est.EstimatedDuration(string(text)); got != 10*time.Second {
		t.Fatalf("EstimatedDuration(150 chars) = %v, want 10s", got)
	}
	if got := est.EstimatedDuration(""); got != 0 {
		t.Fatalf("EstimatedDuration(\"\") = %v, want 0", got)
	}
}

func TestEstimatorCountsCharactersNotBytes(t *testing.T) {
	est := NewPositionEstimator(15)
	s := strings.Repeat("é", 150)

	if got := est.EstimatedDuration(s); got != 10*time.Second {
		t.Fatalf("EstimatedDuration(150 two-byte chars) = %v, want 10s", got)
	}
	if got := est.CharOffset(s, 5*time.Second); got != 75 {
		t.Fatalf("CharOffset(half) = %d, want 75", got)
	}
	if got := est.CharOffset(s, time.Minute); got != 150 {
		t.Fatalf("CharOffset(past end) = %d, want 150", got)
	}
	if got := byteOffset(s, 75); got != 150 {
		t.Fatalf("byteOffset(75 chars) = %d, want 150", got)
	}
	if got := byteOffset(s, 1000); got != len(s) {
		t.Fatalf("byteOffset(past end) = %d, want %d", got, len(s))
	}
}

func TestCharOffsetClampsAndInterpolates(t *testing.T) {
	est := NewPositionEstimator(15)
	text := make([]byte, 150)
	for i := range text {
		text[i] = 'a'
	}
	s := string(text)

	if got := est.CharOffset(s, -time.Second); got != 0 {
		t.Fatalf("CharOffset(negative) = %d, want 0", got)
	}
	if got := est.CharOffset(s, 5*time.Second); got != 75 {
		t.Fatalf("CharOffset(half) = %d, want 75", got)
	}
	if got := est.CharOffset(s, time.Minute); got != 150 {
		t.Fatalf("CharOffset(past end) = %d, want 150", got)
	}
}

func TestCharOffsetMonotone(t *testing.T) {
	est := NewPositionEstimator(15)
	s := "the quick brown fox jumps over the lazy dog again and again"
	prev := 0
	for elapsed := time.Duration(0); elapsed <= 6*time.Second; elapsed += 250 * time.Millisecond {
		got := est.CharOffset(s, elapsed)
		if got < prev {
			t.Fatalf("CharOffset decreased: %d after %d at %v", got, prev, elapsed)
		}
		prev = got
	}
}

func TestOffsetDurationRoundTrip(t *testing.T) {
	est := NewPositionEstimator(15)
	text := make([]byte, 150)
	for i := range text {
		text[i] = 'a'
	}
	s := string(text)

	d := est.OffsetDuration(s, 75)
	if d != 5*time.Second {
		t.Fatalf("OffsetDuration(75) = %v, want 5s", d)
	}
	if got := est.CharOffset(s, d); got != 75 {
		t.Fatalf("CharOffset(OffsetDuration(75)) = %d, want 75", got)
	}
	if got := est.OffsetDuration(s, 0); got != 0 {
		t.Fatalf("OffsetDuration(0) = %v, want 0", got)
	}
	if got := est.OffsetDuration(s, 500); got != 10*time.Second {
		t.Fatalf("OffsetDuration(past end) = %v, want 10s", got)
	}
}

package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func TestCommitReassemblesOutOfOrderChunks(t *testing.T) {
	a := NewAccumulator()
	if err := a.Append(2, b64([]byte{5, 6}), 16000); err != nil {
		t.Fatalf("Append(2) error = %v", err)
	}
	if err := a.Append(0, b64([]byte{1, 2}), 16000); err != nil {
		t.Fatalf("Append(0) error = %v", err)
	}
	if err := a.Append(1, b64([]byte{3, 4}), 16000); err != nil {
		t.Fatalf("Append(1) error = %v", err)
	}
	if a.Size() != 6 {
		t.Fatalf("Size() = %d, want 6", a.Size())
	}

	wav, err := a.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Fatalf("wav does not start with RIFF: %q", wav[:4])
	}
	if got := string(wav[8:12]); got != "WAVE" {
		t.Fatalf("wav format = %q, want WAVE", got)
	}
	// Sample rate sits at byte offset 24 of the canonical header.
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if !bytes.HasSuffix(wav, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("pcm payload out of order: %v", wav[len(wav)-6:])
	}

	// Committing drains the buffer.
	if a.Size() != 0 {
		t.Fatalf("Size() after commit = %d, want 0", a.Size())
	}
	if _, err := a.Commit(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("second Commit() error = %v, want ErrNoAudio", err)
	}
}

func TestAppendRejectsBadBase64(t *testing.T) {
	a := NewAccumulator()
	if err := a.Append(0, "not-base64!!!", 16000); err == nil {
		t.Fatal("Append() expected error for invalid base64")
	}
}

func TestAppendDuplicateSeqOverwrites(t *testing.T) {
	a := NewAccumulator()
	if err := a.Append(0, b64([]byte{1, 1, 1}), 16000); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := a.Append(0, b64([]byte{9, 9}), 16000); err != nil {
		t.Fatalf("Append(dup) error = %v", err)
	}
	if a.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", a.Size())
	}
	wav, err := a.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !bytes.HasSuffix(wav, []byte{9, 9}) {
		t.Fatalf("pcm payload = %v, want overwritten chunk", wav[len(wav)-2:])
	}
}

func TestResetDiscardsChunks(t *testing.T) {
	a := NewAccumulator()
	if err := a.Append(0, b64([]byte{1, 2, 3}), 16000); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	a.Reset()
	if _, err := a.Commit(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Commit() after reset error = %v, want ErrNoAudio", err)
	}
}

func TestEncodeWAVSizes(t *testing.T) {
	pcm := make([]byte, 320)
	wav, err := encodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		t.Fatalf("encodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len(wav) = %d, want %d", len(wav), 44+len(pcm))
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Fatalf("data chunk size = %d, want %d", size, len(pcm))
	}
}

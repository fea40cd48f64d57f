package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrNoAudio = errors.New("no audio captured")

// maxRecordingBytes bounds one recording at roughly 2 minutes of 16kHz
// PCM16 mono.
const maxRecordingBytes = 4 << 20

// Accumulator collects the PCM chunks of one recording in progress. Chunks
// may arrive out of order; they are reassembled by sequence number when the
// recording is committed.
type Accumulator struct {
	mu         sync.Mutex
	chunks     map[int][]byte
	total      int
	sampleRate int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{chunks: make(map[int][]byte)}
}

// Append decodes and stores one base64 PCM chunk. A duplicate sequence
// number overwrites the earlier chunk.
func (a *Accumulator) Append(seq int, pcmBase64 string, sampleRate int) error {
	pcm, err := base64.StdEncoding.DecodeString(pcmBase64)
	if err != nil {
		return fmt.Errorf("decode audio chunk %d: %w", seq, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.chunks[seq]; ok {
		a.total -= len(prev)
	}
	if a.total+len(pcm) > maxRecordingBytes {
		return fmt.Errorf("recording exceeds %d bytes", maxRecordingBytes)
	}
	a.chunks[seq] = pcm
	a.total += len(pcm)
	if sampleRate > 0 {
		a.sampleRate = sampleRate
	}
	return nil
}

// Commit reassembles the chunks in sequence order into one WAV blob and
// resets the accumulator.
func (a *Accumulator) Commit() ([]byte, error) {
	a.mu.Lock()
	chunks := a.chunks
	sampleRate := a.sampleRate
	a.chunks = make(map[int][]byte)
	a.total = 0
	a.mu.Unlock()

	if len(chunks) == 0 {
		return nil, ErrNoAudio
	}

	seqs := make([]int, 0, len(chunks))
	for seq := range chunks {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	var pcm []byte
	for _, seq := range seqs {
		pcm = append(pcm, chunks[seq]...)
	}
	return encodeWAVPCM16LE(pcm, sampleRate)
}

// Reset discards any buffered chunks.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = make(map[int][]byte)
	a.total = 0
}

// Size reports buffered PCM bytes.
func (a *Accumulator) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

package narrate

import (
	"time"
	"unicode/utf8"
)

// PositionEstimator maps elapsed playback time to a character offset in the
// cleaned narration text. Speech APIs report no word boundaries, so the
// offset is a linear estimate from an assumed speaking rate. Offsets count
// characters, not bytes, so multi-byte text estimates and slices correctly.
type PositionEstimator struct {
	charsPerSecond int
}

func NewPositionEstimator(charsPerSecond int) *PositionEstimator {
	if charsPerSecond <= 0 {
		charsPerSecond = 15
	}
	return &PositionEstimator{charsPerSecond: charsPerSecond}
}

// EstimatedDuration returns the expected playback length for text.
func (e *PositionEstimator) EstimatedDuration(text string) time.Duration {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return time.Duration(float64(n)/float64(e.charsPerSecond)*float64(time.Second) + 0.5)
}

// CharOffset converts elapsed playback time into a character offset, clamped
// to [0, character count of text].
func (e *PositionEstimator) CharOffset(text string, elapsed time.Duration) int {
	n := utf8.RuneCountInString(text)
	if n == 0 || elapsed <= 0 {
		return 0
	}
	total := e.EstimatedDuration(text)
	if total <= 0 || elapsed >= total {
		return n
	}
	off := int(float64(n) * (float64(elapsed) / float64(total)))
	if off < 0 {
		return 0
	}
	if off > n {
		return n
	}
	return off
}

// OffsetDuration is the inverse of CharOffset: the playback time at which a
// given character offset is reached. Used to seek remote audio on resume.
func (e *PositionEstimator) OffsetDuration(text string, offset int) time.Duration {
	n := utf8.RuneCountInString(text)
	if n == 0 || offset <= 0 {
		return 0
	}
	if offset >= n {
		return e.EstimatedDuration(text)
	}
	return time.Duration(float64(offset) / float64(n) * float64(e.EstimatedDuration(text)))
}

// byteOffset returns the byte index of the given character offset, clamped
// to the text length. Slicing at the result never splits a rune.
func byteOffset(text string, chars int) int {
	if chars <= 0 {
		return 0
	}
	seen := 0
	for i := range text {
		if seen == chars {
			return i
		}
		seen++
	}
	return len(text)
}

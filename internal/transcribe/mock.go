package transcribe

import "context"

// MockTranscriber returns a fixed transcript. Used in mock mode and tests.
type MockTranscriber struct {
	Text  string
	Err   error
	Calls int
}

func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{Text: text}
}

func (m *MockTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(audio) == 0 || m.Text == "" {
		return "", ErrNoSpeech
	}
	return m.Text, nil
}

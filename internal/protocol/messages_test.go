package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"client_audio_chunk","session_id":"s1","seq":3,"pcm16_base64":"AAA=","sample_rate":16000}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	chunk, ok := msg.(ClientAudioChunk)
	if !ok {
		t.Fatalf("ParseClientMessage() = %T, want ClientAudioChunk", msg)
	}
	if chunk.Seq != 3 || chunk.SampleRate != 16000 {
		t.Fatalf("chunk = %+v", chunk)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"client_control","session_id":"s1","action":"commit"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	ctl, ok := msg.(ClientControl)
	if !ok || ctl.Action != ActionCommit {
		t.Fatalf("ParseClientMessage() = %#v", msg)
	}
}

func TestParseClientMessageRejectsInvalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{"type":"client_audio_chunk","session_id":"","pcm16_base64":"AAA=","sample_rate":16000}`,
		`{"type":"client_audio_chunk","session_id":"s1","pcm16_base64":"AAA=","sample_rate":0}`,
		`{"type":"client_control","session_id":"s1","action":"explode"}`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) expected error", raw)
		}
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"transcript","session_id":"s1"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

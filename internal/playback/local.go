package playback

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// LocalPlayer plays audio clips through a host media player process
// (ffplay by default). The clip is materialized to a temp file because the
// narration chain hands clips around as base64 data URIs.
type LocalPlayer struct {
	command string

	mu       sync.Mutex
	cmd      *exec.Cmd
	clipPath string
	offset   time.Duration
	startAt  time.Time
	playing  bool
	done     chan struct{}
}

func NewLocalPlayer(command string) *LocalPlayer {
	if strings.TrimSpace(command) == "" {
		command = "ffplay"
	}
	return &LocalPlayer{command: command}
}

func (p *LocalPlayer) Play(ctx context.Context, uri string, at time.Duration) (<-chan struct{}, error) {
	p.Stop()

	path, err := materializeClip(uri)
	if err != nil {
		return nil, err
	}

	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	if at > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", at.Seconds()))
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, p.command, args...)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("start player %s: %w", p.command, err)
	}

	done := make(chan struct{})

	p.mu.Lock()
	p.cmd = cmd
	p.clipPath = path
	p.offset = at
	p.startAt = time.Now()
	p.playing = true
	p.done = done
	p.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.offset += time.Since(p.startAt)
			p.playing = false
			p.cmd = nil
		}
		p.mu.Unlock()
		close(done)
	}()

	return done, nil
}

func (p *LocalPlayer) Pause() {
	p.mu.Lock()
	cmd := p.cmd
	if p.playing {
		p.offset += time.Since(p.startAt)
		p.playing = false
	}
	p.cmd = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (p *LocalPlayer) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	path := p.clipPath
	p.cmd = nil
	p.clipPath = ""
	p.offset = 0
	p.playing = false
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if path != "" {
		_ = os.Remove(path)
	}
}

func (p *LocalPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return p.offset + time.Since(p.startAt)
	}
	return p.offset
}

// materializeClip writes a data URI (or passes through a file path) so the
// player process can read it.
func materializeClip(uri string) (string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return uri, nil
	}
	idx := strings.Index(uri, "base64,")
	if idx < 0 {
		return "", fmt.Errorf("unsupported clip uri")
	}
	raw, err := base64.StdEncoding.DecodeString(uri[idx+len("base64,"):])
	if err != nil {
		return "", fmt.Errorf("decode clip: %w", err)
	}

	f, err := os.CreateTemp("", "asklumen-clip-*.mp3")
	if err != nil {
		return "", fmt.Errorf("create clip file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// LocalSynthesizer speaks through a host speech engine process such as
// espeak-ng or macOS say. It plays directly to the audio device, so there is
// no clip and no cursor, matching the platform-synthesis contract.
type LocalSynthesizer struct {
	command string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewLocalSynthesizer builds a synthesizer around command, or probes for a
// known engine when command is empty.
func NewLocalSynthesizer(command string) *LocalSynthesizer {
	command = strings.TrimSpace(command)
	if command == "" {
		for _, candidate := range []string{"espeak-ng", "espeak", "say"} {
			if _, err := exec.LookPath(candidate); err == nil {
				command = candidate
				break
			}
		}
	}
	return &LocalSynthesizer{command: command}
}

func (s *LocalSynthesizer) Available() bool {
	if s.command == "" {
		return false
	}
	_, err := exec.LookPath(s.command)
	return err == nil
}

func (s *LocalSynthesizer) Speak(ctx context.Context, text string) (<-chan struct{}, error) {
	if !s.Available() {
		return nil, fmt.Errorf("no speech engine available")
	}

	s.Cancel()

	cmd := exec.CommandContext(ctx, s.command, text)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start speech engine %s: %w", s.command, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()
		close(done)
	}()
	return done, nil
}

func (s *LocalSynthesizer) Cancel() {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

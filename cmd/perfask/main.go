package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenhq/asklumen/internal/protocol"
)

type options struct {
	baseURL        string
	userID         string
	turns          int
	chunkMS        int
	clipMS         int
	sampleRate     int
	realtime       float64
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	verbose        bool
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type wsEnvelope struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfask: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfask: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "AskLumen base URL")
	flag.StringVar(&cfg.userID, "user-id", "perf-replay", "user_id used for the synthetic session")
	flag.IntVar(&cfg.turns, "turns", 10, "number of voice turns to replay")
	flag.IntVar(&cfg.chunkMS, "chunk-ms", 45, "audio chunk size in milliseconds")
	flag.IntVar(&cfg.clipMS, "clip-ms", 1200, "synthetic utterance length in milliseconds")
	flag.IntVar(&cfg.sampleRate, "sample-rate", 16000, "synthetic utterance sample rate in Hz")
	flag.Float64Var(&cfg.realtime, "realtime", 3.0, "chunk pacing multiplier (1.0=realtime, 2.0=2x)")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 15000, "timeout waiting for the assistant reply per turn in milliseconds")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.chunkMS < 10 || cfg.chunkMS > 2000 {
		return options{}, fmt.Errorf("chunk-ms must be in [10,2000]")
	}
	if cfg.clipMS < 100 || cfg.clipMS > 30000 {
		return options{}, fmt.Errorf("clip-ms must be in [100,30000]")
	}
	if cfg.sampleRate < 8000 || cfg.sampleRate > 48000 {
		return options{}, fmt.Errorf("sample-rate must be in [8000,48000]")
	}
	if cfg.realtime <= 0 {
		return options{}, fmt.Errorf("realtime must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	httpClient := &http.Client{Timeout: 45 * time.Second}
	sessionID, err := createSession(ctx, httpClient, cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = endSession(context.Background(), httpClient, cfg.baseURL, sessionID)
	}()

	if cfg.verbose {
		fmt.Printf("perfask: session=%s turns=%d chunk_ms=%d realtime=%.2f\n", sessionID, cfg.turns, cfg.chunkMS, cfg.realtime)
	}

	pcm := tonePCM(cfg.clipMS, cfg.sampleRate)

	wsURL, err := wsURLForSession(cfg.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	replyCh := make(chan struct{}, 32)
	readErrCh := make(chan error, 1)
	go readLoop(conn, replyCh, readErrCh, cfg.verbose)

	seq := 0
	for i := 0; i < cfg.turns; i++ {
		select {
		case err := <-readErrCh:
			return fmt.Errorf("ws read: %w", err)
		default:
		}

		start := time.Now()
		if err := sendTurnAudio(conn, sessionID, pcm, cfg, &seq); err != nil {
			return fmt.Errorf("turn %d send audio: %w", i+1, err)
		}
		if err := sendCommit(conn, sessionID); err != nil {
			return fmt.Errorf("turn %d send commit: %w", i+1, err)
		}
		if err := awaitReply(replyCh, readErrCh, cfg.turnTimeout); err != nil {
			return fmt.Errorf("turn %d await assistant reply: %w", i+1, err)
		}
		if cfg.verbose {
			fmt.Printf("perfask: turn %d/%d round trip %s\n", i+1, cfg.turns, time.Since(start).Round(time.Millisecond))
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	return printLatencyReport(ctx, httpClient, cfg.baseURL)
}

func createSession(ctx context.Context, client *http.Client, cfg options) (string, error) {
	payload, err := json.Marshal(map[string]string{"user_id": cfg.userID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out createSessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return "", fmt.Errorf("missing session_id in response")
	}
	return out.SessionID, nil
}

func endSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

// tonePCM builds a mono PCM16LE sine burst. The content only matters to the
// transcription backend; for latency replays a tone exercises the same
// byte path as speech.
func tonePCM(clipMS, sampleRate int) []byte {
	samples := sampleRate * clipMS / 1000
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(6000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/sessions/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, replyCh chan<- struct{}, readErrCh chan<- error, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErrCh <- err:
			default:
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case string(protocol.TypeAssistantMessage):
			select {
			case replyCh <- struct{}{}:
			default:
			}
		case string(protocol.TypeErrorEvent):
			if verbose {
				fmt.Fprintf(os.Stderr, "perfask: error_event code=%s detail=%s\n", env.Code, env.Detail)
			}
			// Terminal error for the turn: count it so the replay moves on.
			select {
			case replyCh <- struct{}{}:
			default:
			}
		}
	}
}

func sendTurnAudio(conn *websocket.Conn, sessionID string, pcm []byte, cfg options, seq *int) error {
	bytesPerChunk := cfg.sampleRate * 2 * cfg.chunkMS / 1000
	if bytesPerChunk < 2 {
		bytesPerChunk = 2
	}
	if bytesPerChunk%2 != 0 {
		bytesPerChunk++
	}
	if bytesPerChunk > len(pcm) {
		bytesPerChunk = len(pcm)
		if bytesPerChunk%2 != 0 {
			bytesPerChunk--
		}
	}
	if bytesPerChunk <= 0 {
		return fmt.Errorf("invalid chunk size for sample_rate=%d", cfg.sampleRate)
	}

	pace := time.Duration(float64(cfg.chunkMS)/cfg.realtime) * time.Millisecond
	for off := 0; off < len(pcm); off += bytesPerChunk {
		end := off + bytesPerChunk
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			SessionID:   sessionID,
			Seq:         *seq,
			PCM16Base64: base64.StdEncoding.EncodeToString(pcm[off:end]),
			SampleRate:  cfg.sampleRate,
		}
		*seq++
		if err := conn.WriteJSON(chunk); err != nil {
			return err
		}
		if pace > 0 {
			time.Sleep(pace)
		}
	}
	return nil
}

func sendCommit(conn *websocket.Conn, sessionID string) error {
	return conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionCommit,
	})
}

func awaitReply(replyCh <-chan struct{}, readErrCh <-chan error, timeout time.Duration) error {
	select {
	case <-replyCh:
		return nil
	case err := <-readErrCh:
		return fmt.Errorf("ws read: %w", err)
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s", timeout)
	}
}

func printLatencyReport(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("perf endpoint HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var snapshot struct {
		Stages []struct {
			Stage       string  `json:"stage"`
			Samples     int     `json:"samples"`
			AvgMS       float64 `json:"avg_ms"`
			P50MS       float64 `json:"p50_ms"`
			P95MS       float64 `json:"p95_ms"`
			TargetP95MS float64 `json:"target_p95_ms"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return err
	}

	fmt.Println("perfask: stage latency (ms)")
	for _, st := range snapshot.Stages {
		line := fmt.Sprintf("  %-24s samples=%-4d avg=%-8.1f p50=%-8.1f p95=%-8.1f", st.Stage, st.Samples, st.AvgMS, st.P50MS, st.P95MS)
		if st.TargetP95MS > 0 && st.P95MS > st.TargetP95MS {
			line += fmt.Sprintf(" OVER target p95=%.0f", st.TargetP95MS)
		}
		fmt.Println(line)
	}
	return nil
}

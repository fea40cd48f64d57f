package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the AskLumen answering service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// Narration tuning. CharsPerSecond drives the position estimator and
	// NarrationPollInterval is how often the estimate is refreshed while
	// audio is playing.
	CharsPerSecond        int
	NarrationPollInterval time.Duration
	NarrationMuted        bool

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	OpenAIAPIKey    string
	OpenAIChatModel string
	OpenAITTSVoice  string

	TranscribeAPIKey       string
	TranscribeBaseURL      string
	TranscribePollAttempts int
	TranscribePollInterval time.Duration

	// PlatformSynthCommand is the local speech engine invoked when every
	// remote TTS provider is down. Empty means "probe for a known engine".
	PlatformSynthCommand string

	BrainMode    string
	BrainHTTPURL string

	ImageGenURL    string
	ImagePromptURL string
	VideoGenURL    string

	DatabaseURL string
}

// Load reads .env (when present) and environment variables, applying safe defaults.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "asklumen"),
		AllowAnyOrigin:    false,
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Default premade voice used when no cloned voice is configured.
		ElevenLabsVoiceID:        envOrDefault("ELEVENLABS_VOICE_ID", "9BWtsMINqrJLrRacOk9x"),
		ElevenLabsModelID:        envOrDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsAPIKey:         envTrimmed("ELEVENLABS_API_KEY"),
		OpenAIAPIKey:             envTrimmed("OPENAI_API_KEY"),
		OpenAIChatModel:          envOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAITTSVoice:           envOrDefault("OPENAI_TTS_VOICE", "alloy"),
		TranscribeAPIKey:         envTrimmed("ASSEMBLYAI_API_KEY"),
		TranscribeBaseURL:        envOrDefault("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com"),
		PlatformSynthCommand:     envTrimmed("PLATFORM_SYNTH_COMMAND"),
		BrainMode:                envOrDefault("BRAIN_MODE", "auto"),
		BrainHTTPURL:             envTrimmed("BRAIN_HTTP_URL"),
		ImageGenURL:              envTrimmed("IMAGE_GEN_URL"),
		ImagePromptURL:           envTrimmed("IMAGE_PROMPT_URL"),
		VideoGenURL:              envTrimmed("VIDEO_GEN_URL"),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		CharsPerSecond:           15,
		NarrationPollInterval:    500 * time.Millisecond,
		NarrationMuted:           false,
		TranscribePollAttempts:   30,
		TranscribePollInterval:   time.Second,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.NarrationPollInterval, err = durationFromEnv("NARRATION_POLL_INTERVAL", cfg.NarrationPollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribePollInterval, err = durationFromEnv("TRANSCRIBE_POLL_INTERVAL", cfg.TranscribePollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.CharsPerSecond, err = intFromEnv("NARRATION_CHARS_PER_SECOND", cfg.CharsPerSecond)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribePollAttempts, err = intFromEnv("TRANSCRIBE_POLL_ATTEMPTS", cfg.TranscribePollAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.NarrationMuted, err = boolFromEnv("NARRATION_MUTED", cfg.NarrationMuted)
	if err != nil {
		return Config{}, err
	}

	if cfg.CharsPerSecond <= 0 {
		return Config{}, fmt.Errorf("NARRATION_CHARS_PER_SECOND must be positive")
	}
	if cfg.NarrationPollInterval <= 0 {
		return Config{}, fmt.Errorf("NARRATION_POLL_INTERVAL must be positive")
	}
	if cfg.TranscribePollAttempts <= 0 {
		return Config{}, fmt.Errorf("TRANSCRIBE_POLL_ATTEMPTS must be positive")
	}
	if cfg.TranscribePollInterval <= 0 {
		return Config{}, fmt.Errorf("TRANSCRIBE_POLL_INTERVAL must be positive")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

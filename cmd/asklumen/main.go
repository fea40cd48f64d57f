package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lumenhq/asklumen/internal/brain"
	"github.com/lumenhq/asklumen/internal/capture"
	"github.com/lumenhq/asklumen/internal/config"
	"github.com/lumenhq/asklumen/internal/conversation"
	"github.com/lumenhq/asklumen/internal/httpapi"
	"github.com/lumenhq/asklumen/internal/media"
	"github.com/lumenhq/asklumen/internal/narrate"
	"github.com/lumenhq/asklumen/internal/observability"
	"github.com/lumenhq/asklumen/internal/playback"
	"github.com/lumenhq/asklumen/internal/session"
	"github.com/lumenhq/asklumen/internal/store"
	"github.com/lumenhq/asklumen/internal/transcribe"
	"github.com/lumenhq/asklumen/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	db, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer db.Close()

	adapter, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainMode,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIChatModel,
		HTTPURL: cfg.BrainHTTPURL,
	})
	if err != nil {
		log.Fatalf("brain adapter init failed: %v", err)
	}

	var primary, secondary tts.Provider
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
		primary = tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			VoiceID: cfg.ElevenLabsVoiceID,
			ModelID: cfg.ElevenLabsModelID,
		})
		log.Printf("tts primary: elevenlabs voice %s", cfg.ElevenLabsVoiceID)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		secondary = tts.NewOpenAI(tts.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Voice:  cfg.OpenAITTSVoice,
		})
		log.Printf("tts secondary: openai voice %s", cfg.OpenAITTSVoice)
	}
	synth := playback.NewLocalSynthesizer(cfg.PlatformSynthCommand)
	player := playback.NewLocalPlayer("")
	chain := narrate.NewChain(primary, secondary, synth, metrics)
	if primary == nil && secondary == nil {
		log.Printf("no remote tts configured, narration relies on the platform engine")
	}

	var transcriber transcribe.Transcriber
	if strings.TrimSpace(cfg.TranscribeAPIKey) != "" {
		transcriber = transcribe.NewClient(cfg.TranscribeAPIKey, cfg.TranscribeBaseURL,
			cfg.TranscribePollAttempts, cfg.TranscribePollInterval)
	} else {
		log.Printf("no transcription key configured, using mock transcriber")
		transcriber = transcribe.NewMockTranscriber("")
	}

	generator := media.NewGenerator(cfg.ImageGenURL, cfg.ImagePromptURL, cfg.VideoGenURL)
	mediaSvc := media.NewService(generator, db, metrics)

	factory := func(userID string) *session.Runtime {
		ctrl := conversation.NewController(conversation.Options{
			Adapter: adapter,
			Store:   db,
			Metrics: metrics,
			UserID:  userID,
		})
		narr := narrate.New(narrate.Options{
			Chain:          chain,
			Player:         player,
			Synth:          synth,
			Flags:          ctrl,
			Metrics:        metrics,
			CharsPerSecond: cfg.CharsPerSecond,
			PollInterval:   cfg.NarrationPollInterval,
			Muted:          cfg.NarrationMuted,
			ClipSink:       clipSink(ctrl, db, userID),
		})
		ctrl.AttachNarrator(narr)
		ctrl.AttachIllustrator(mediaSvc.Bind(ctrl))
		return &session.Runtime{
			Controller: ctrl,
			Narrator:   narr,
			Recorder:   capture.NewAccumulator(),
		}
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout, factory)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.CountSession("expired")
	})

	api := httpapi.New(cfg, httpapi.Deps{
		Sessions:    sessions,
		Brain:       adapter,
		Transcriber: transcriber,
		Chain:       chain,
		Media:       mediaSvc,
		Generator:   generator,
		Metrics:     metrics,
	})
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	mediaSvc.Wait()

	log.Printf("shutdown complete")
}

// clipSink records resolved narration audio on the message and mirrors it to
// the store, so a replayed conversation does not re-synthesize. Anonymous
// sessions keep the clip in memory only, matching the message mirroring.
func clipSink(ctrl *conversation.Controller, db store.Store, userID string) narrate.ClipSink {
	return func(messageID string, audio []byte, mimeType string) {
		uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio)
		ctrl.SetAudioURL(messageID, uri)
		if strings.TrimSpace(userID) == "" {
			return
		}
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.SaveConversationAudio(saveCtx, store.AudioRecord{
			MessageID: messageID,
			AudioURL:  uri,
		}); err != nil {
			log.Printf("audio persist failed for message %s: %v", messageID, err)
		}
	}
}

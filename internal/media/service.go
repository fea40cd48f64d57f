package media

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/asklumen/internal/narrate"
	"github.com/lumenhq/asklumen/internal/observability"
	"github.com/lumenhq/asklumen/internal/store"
)

// Attacher receives generated media URLs for a message.
type Attacher interface {
	SetImageURL(messageID, url string)
}

// Service coordinates illustration of answered questions: prompt
// generation with a templated fallback, image rendering, and best-effort
// persistence.
type Service struct {
	gen     *Generator
	store   store.Store
	metrics *observability.Metrics

	wg sync.WaitGroup
}

func NewService(gen *Generator, st store.Store, metrics *observability.Metrics) *Service {
	return &Service{gen: gen, store: st, metrics: metrics}
}

// Bind ties the service to one conversation's message log.
func (s *Service) Bind(attach Attacher) *Binding {
	return &Binding{svc: s, attach: attach}
}

// Wait blocks until background generation has drained. Test hook.
func (s *Service) Wait() { s.wg.Wait() }

// GenerateVideoForMessage renders a clip for an already-answered message.
func (s *Service) GenerateVideoForMessage(ctx context.Context, messageID, question, answer string) (string, string, error) {
	prompt := s.resolvePrompt(ctx, question, answer)
	videoURL, provider, err := s.gen.GenerateVideo(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	s.persistVideo(messageID, prompt, videoURL, provider)
	return videoURL, provider, nil
}

// Binding illustrates answers for a single conversation.
type Binding struct {
	svc    *Service
	attach Attacher
}

// IllustrateAnswer renders a companion image in the background. Error
// bubbles are never illustrated, and a prompt-service failure degrades to
// the templated prompt rather than skipping the image.
func (b *Binding) IllustrateAnswer(ctx context.Context, messageID, question, answer string) {
	if !b.svc.gen.ImagesConfigured() || narrate.IsErrorContent(answer) {
		return
	}

	ctx = context.WithoutCancel(ctx)
	b.svc.wg.Add(1)
	go func() {
		defer b.svc.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		start := time.Now()
		prompt := b.svc.resolvePrompt(ctx, question, answer)
		imageURL, revised, err := b.svc.gen.GenerateImage(ctx, prompt)
		if err != nil {
			log.Printf("media: image generation for message %s failed: %v", messageID, err)
			b.svc.metrics.CountProviderError("image_generation", "error")
			return
		}
		b.svc.metrics.ObserveStage("image_generation", time.Since(start))

		if revised != "" {
			prompt = revised
		}
		b.attach.SetImageURL(messageID, imageURL)
		b.svc.persistImage(messageID, prompt, imageURL)
	}()
}

// resolvePrompt prefers the prompt service and falls back to the template
// on any failure.
func (s *Service) resolvePrompt(ctx context.Context, question, answer string) string {
	prompt, err := s.gen.GeneratePrompt(ctx, question, answer)
	if err != nil {
		log.Printf("media: prompt generation failed, using templated prompt: %v", err)
		return TemplatedPrompt(question, answer)
	}
	return prompt
}

func (s *Service) persistImage(messageID, prompt, imageURL string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := store.MediaRecord{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Prompt:    prompt,
		URL:       imageURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveGeneratedImage(ctx, record); err != nil {
		log.Printf("media: save generated image for message %s: %v", messageID, err)
	}
}

func (s *Service) persistVideo(messageID, prompt, videoURL, provider string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := store.MediaRecord{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Prompt:    prompt,
		URL:       videoURL,
		Provider:  provider,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveGeneratedVideo(ctx, record); err != nil {
		log.Printf("media: save generated video for message %s: %v", messageID, err)
	}
}

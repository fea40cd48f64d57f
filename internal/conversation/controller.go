package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/asklumen/internal/brain"
	"github.com/lumenhq/asklumen/internal/narrate"
	"github.com/lumenhq/asklumen/internal/observability"
	"github.com/lumenhq/asklumen/internal/reliability"
	"github.com/lumenhq/asklumen/internal/store"
)

// Message is one entry in the conversation log. Content is immutable once
// set; AudioURL, IsPlaying and ImageURL are mutated in place as narration
// and media generation progress.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AudioURL  string    `json:"audio_url,omitempty"`
	IsPlaying bool      `json:"is_playing"`
	ImageURL  string    `json:"generated_image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Illustrator generates companion media for an answered question.
type Illustrator interface {
	IllustrateAnswer(ctx context.Context, messageID, question, answer string)
}

type Options struct {
	Adapter     brain.Adapter
	Store       store.Store
	Narrator    *narrate.Narrator
	Illustrator Illustrator
	Metrics     *observability.Metrics
	UserID      string
}

// Controller orchestrates question/answer turns for one conversation. The
// in-memory message log is the source of truth; rows are mirrored to the
// store best-effort when a user is signed in.
type Controller struct {
	id      string
	userID  string
	adapter brain.Adapter
	store   store.Store
	narr    *narrate.Narrator
	illus   Illustrator
	metrics *observability.Metrics

	mu         sync.Mutex
	title      string
	messages   []Message
	history    []brain.Exchange
	processing bool
}

func NewController(opts Options) *Controller {
	return &Controller{
		id:      uuid.NewString(),
		userID:  opts.UserID,
		adapter: opts.Adapter,
		store:   opts.Store,
		narr:    opts.Narrator,
		illus:   opts.Illustrator,
		metrics: opts.Metrics,
	}
}

func (c *Controller) ID() string { return c.id }

// AttachNarrator wires the narrator after construction. The narrator needs
// the controller as its playback flags sink, so the two are built in
// sequence and joined here.
func (c *Controller) AttachNarrator(n *narrate.Narrator) { c.narr = n }

// AttachIllustrator wires the media binding after construction, for the
// same reason: the binding attaches image URLs back onto this controller.
func (c *Controller) AttachIllustrator(i Illustrator) { c.illus = i }

func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Messages returns a snapshot of the conversation log.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// historyReloadLimit caps how many stored messages a resumed conversation
// pulls back into memory.
const historyReloadLimit = 50

// Resume rebinds the controller to a stored conversation and reloads its
// recent messages so the backend keeps the prior context. Anonymous
// controllers have no stored history and are left untouched, as is any
// controller that already holds messages.
func (c *Controller) Resume(ctx context.Context, conversationID string) error {
	if c.store == nil || c.userID == "" || conversationID == "" {
		return nil
	}
	records, err := c.store.RecentMessages(ctx, conversationID, historyReloadLimit)
	if err != nil {
		return fmt.Errorf("reload conversation %s: %w", conversationID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) > 0 {
		return nil
	}
	c.id = conversationID
	for _, rec := range records {
		c.messages = append(c.messages, Message{
			ID:        rec.ID,
			Role:      rec.Role,
			Content:   rec.Content,
			AudioURL:  rec.AudioURL,
			CreatedAt: rec.CreatedAt,
		})
		c.history = append(c.history, brain.Exchange{Role: rec.Role, Content: rec.Content})
		if c.title == "" && rec.Role == "user" {
			c.title = rec.Content
			if len(c.title) > 60 {
				c.title = c.title[:57] + "..."
			}
		}
	}
	return nil
}

// SendQuestion runs one turn: append the user message, ask the backend,
// append the answer. On backend failure a classified error bubble is
// appended instead so the conversation stays readable; error bubbles are
// never persisted and never narrated or illustrated.
func (c *Controller) SendQuestion(ctx context.Context, content string, files []brain.Attachment) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return Message{}, ErrTurnInFlight
	}
	c.processing = true
	firstTurn := len(c.messages) == 0
	history := append([]brain.Exchange{}, c.history...)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	start := time.Now()

	userMsg := c.append("user", content)
	if firstTurn {
		c.setTitle(content)
	}
	c.mirrorConversation()
	c.mirrorMessage(userMsg)

	resp, err := c.adapter.Complete(ctx, brain.Request{
		Message: content,
		History: history,
		Files:   files,
	})
	c.metrics.ObserveStage("chat_completion", time.Since(start))

	if err != nil {
		bubble, class := classifyFailure(err)
		log.Printf("conversation %s: turn failed (%s): %v", c.id, class, err)
		c.metrics.CountProviderError("brain", string(class))
		return c.append("assistant", bubble), nil
	}

	c.mu.Lock()
	c.history = resp.History
	c.mu.Unlock()

	assistant := c.append("assistant", resp.Text)
	c.mirrorMessage(assistant)
	c.metrics.ObserveTurn(time.Since(start))

	c.autoFire(ctx, userMsg, assistant)
	return assistant, nil
}

// autoFire begins narration and media generation for a successful answer.
// Content that looks like an error message is skipped outright.
func (c *Controller) autoFire(ctx context.Context, question, answer Message) {
	if narrate.IsErrorContent(answer.Content) {
		return
	}
	// Narration and media generation outlive the request that triggered them.
	ctx = context.WithoutCancel(ctx)
	if c.narr != nil {
		if err := c.narr.Start(ctx, answer.ID, answer.Content); err != nil {
			log.Printf("conversation %s: narration not started: %v", c.id, err)
		}
	}
	if c.illus != nil {
		c.illus.IllustrateAnswer(ctx, answer.ID, question.Content, answer.Content)
	}
}

// Processing reports whether a turn is currently in flight.
func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// SetPlaying implements narrate.Flags.
func (c *Controller) SetPlaying(messageID string, playing bool) {
	c.mu.Lock()
	var audioURL string
	found := false
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].IsPlaying = playing
			audioURL = c.messages[i].AudioURL
			found = true
		}
	}
	c.mu.Unlock()
	if found {
		c.mirrorPlayback(messageID, audioURL, playing)
	}
}

// ClearAllPlaying implements narrate.Flags. Every message is cleared, not
// just the one being narrated.
func (c *Controller) ClearAllPlaying() {
	c.mu.Lock()
	var cleared []Message
	for i := range c.messages {
		if c.messages[i].IsPlaying {
			c.messages[i].IsPlaying = false
			cleared = append(cleared, c.messages[i])
		}
	}
	c.mu.Unlock()
	for _, m := range cleared {
		c.mirrorPlayback(m.ID, m.AudioURL, false)
	}
}

// SetAudioURL records the narration clip attached to a message.
func (c *Controller) SetAudioURL(messageID, audioURL string) {
	c.mu.Lock()
	playing := false
	found := false
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].AudioURL = audioURL
			playing = c.messages[i].IsPlaying
			found = true
		}
	}
	c.mu.Unlock()
	if found {
		c.mirrorPlayback(messageID, audioURL, playing)
	}
}

// SetImageURL records generated media on a message.
func (c *Controller) SetImageURL(messageID, imageURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].ImageURL = imageURL
		}
	}
}

// Message looks up one message by id.
func (c *Controller) Message(messageID string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.ID == messageID {
			return m, true
		}
	}
	return Message{}, false
}

func (c *Controller) append(role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return msg
}

func (c *Controller) setTitle(content string) {
	title := content
	if len(title) > 60 {
		title = title[:57] + "..."
	}
	c.mu.Lock()
	c.title = title
	c.mu.Unlock()
}

func (c *Controller) persistable() bool {
	return c.store != nil && c.userID != ""
}

func (c *Controller) mirrorConversation() {
	if !c.persistable() {
		return
	}
	c.mu.Lock()
	record := store.ConversationRecord{
		ID:        c.id,
		UserID:    c.userID,
		Title:     c.title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	c.mu.Unlock()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.SaveConversation(ctx, record); err != nil {
			log.Printf("conversation %s: save conversation: %v", c.id, err)
		}
	}()
}

func (c *Controller) mirrorMessage(msg Message) {
	if !c.persistable() {
		return
	}
	record := store.MessageRecord{
		ID:             msg.ID,
		ConversationID: c.id,
		Content:        msg.Content,
		Role:           msg.Role,
		AudioURL:       msg.AudioURL,
		IsPlaying:      msg.IsPlaying,
		CreatedAt:      msg.CreatedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.SaveMessage(ctx, record); err != nil {
			log.Printf("conversation %s: save message %s: %v", c.id, msg.ID, err)
		}
	}()
}

func (c *Controller) mirrorPlayback(messageID, audioURL string, playing bool) {
	if !c.persistable() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.UpdateMessagePlayback(ctx, messageID, audioURL, playing); err != nil {
			log.Printf("conversation %s: update playback %s: %v", c.id, messageID, err)
		}
	}()
}

// classifyFailure maps an upstream failure onto a user-facing bubble. The
// bubble text deliberately carries an error marker so downstream narration
// and media generation refuse it.
func classifyFailure(err error) (string, reliability.FailureClass) {
	class := reliability.ClassifyErrorText(err.Error())
	switch class {
	case reliability.FailureRateLimit:
		return "Error: rate limit exceeded. Please wait a moment before asking again.", class
	case reliability.FailureQuota:
		return "Error: quota exceeded for the AI service. Please try again later.", class
	case reliability.FailureConfig:
		return "Error: the configured API key was rejected. Check the server configuration.", class
	case reliability.FailureUpstream:
		return "Error: the AI service returned an unexpected response. Please try again.", class
	default:
		return "Error: something went wrong while answering. Please try again.", class
	}
}

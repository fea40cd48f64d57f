package brain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const systemPrompt = "You are Lumen, a concise voice assistant. Answer the " +
	"user's question directly in plain prose suitable for being read aloud. " +
	"Avoid markdown tables and long code blocks unless asked."

const defaultChatModel = "gpt-4o-mini"

// OpenAIAdapter answers questions through the OpenAI chat completion API.
type OpenAIAdapter struct {
	client oai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	if strings.TrimSpace(model) == "" {
		model = defaultChatModel
	}
	client := oai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	return &OpenAIAdapter{client: client, model: model}
}

func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	messages := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(systemPrompt),
	}
	for _, ex := range req.History {
		switch ex.Role {
		case "assistant":
			messages = append(messages, oai.AssistantMessage(ex.Content))
		default:
			messages = append(messages, oai.UserMessage(ex.Content))
		}
	}
	messages = append(messages, buildUserMessage(req))

	resp, err := a.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(a.model),
		Messages: messages,
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion: empty choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	history := append(append([]Exchange{}, req.History...),
		Exchange{Role: "user", Content: req.Message},
		Exchange{Role: "assistant", Content: text},
	)
	return Response{Text: text, History: history}, nil
}

// buildUserMessage folds attachments into the final user turn. Images go to
// the model as inline image parts; every other file type becomes a text note
// naming the file.
func buildUserMessage(req Request) oai.ChatCompletionMessageParamUnion {
	text := req.Message
	var images []Attachment
	for _, f := range req.Files {
		if f.IsImage() {
			images = append(images, f)
			continue
		}
		text += fmt.Sprintf("\n[attached file: %s (%s)]", f.Name, f.MimeType)
	}

	if len(images) == 0 {
		return oai.UserMessage(text)
	}

	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart(text),
	}
	for _, img := range images {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL: img.DataURI(),
		}))
	}
	return oai.UserMessage(parts)
}

package exchange

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

const DefaultTitleMaxLength = 30

const titleEllipsis = "..."

// TitleDeriver produces a session title from the first successful exchange.
type TitleDeriver interface {
	DeriveTitle(ctx context.Context, query string, answer string) (string, error)
}

// TruncatingDeriver uses the query itself, cut to MaxLength runes.
type TruncatingDeriver struct {
	MaxLength int
}

var _ TitleDeriver = TruncatingDeriver{}

func NewTruncatingDeriver(maxLength int) TruncatingDeriver {
	return TruncatingDeriver{MaxLength: maxLength}
}

func (d TruncatingDeriver) DeriveTitle(_ context.Context, query string, _ string) (string, error) {
	maxLength := d.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultTitleMaxLength
	}
	return TruncateTitle(query, maxLength), nil
}

// TruncateTitle returns s if it has at most maxLength runes, otherwise its
// first maxLength runes followed by "...".
func TruncateTitle(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + titleEllipsis
}

// ChatCompleter is the part of *go_openai.Client the OpenAI deriver needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req go_openai.ChatCompletionRequest) (go_openai.ChatCompletionResponse, error)
}

// OpenAIDeriver asks a chat model for a short title.
type OpenAIDeriver struct {
	client    ChatCompleter
	model     string
	maxLength int
}

var _ TitleDeriver = (*OpenAIDeriver)(nil)

func NewOpenAIDeriver(client ChatCompleter, model string, maxLength int) *OpenAIDeriver {
	if maxLength <= 0 {
		maxLength = DefaultTitleMaxLength
	}
	return &OpenAIDeriver{client: client, model: model, maxLength: maxLength}
}

// NewOpenAIClient builds a go-openai client for an OpenAI compatible endpoint.
// An empty baseURL keeps the library default.
func NewOpenAIClient(apiKey string, baseURL string) *go_openai.Client {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return go_openai.NewClientWithConfig(config)
}

const titlePrompt = `Write a title of at most a few words for a conversation that starts with the exchange below.
Reply with the title only, no quotes and no trailing punctuation.`

func (d *OpenAIDeriver) DeriveTitle(ctx context.Context, query string, answer string) (string, error) {
	req := go_openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: titlePrompt},
			{Role: go_openai.ChatMessageRoleUser, Content: query},
			{Role: go_openai.ChatMessageRoleAssistant, Content: answer},
		},
		MaxTokens:   32,
		Temperature: 0.2,
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "title completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("title completion returned no choices")
	}

	title := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"'`)
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return "", errors.New("title completion returned an empty title")
	}
	return TruncateTitle(title, d.maxLength), nil
}

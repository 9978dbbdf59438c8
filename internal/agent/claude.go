package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultClaudeModel     = "claude-sonnet-4-5-20250929"
	DefaultClaudeMaxTokens = 2048
)

// ClaudeMessages is the part of the anthropic client the Claude agent uses.
type ClaudeMessages interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type anthropicMessages struct {
	messages *anthropic.MessageService
}

func (m *anthropicMessages) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return m.messages.New(ctx, params)
}

// Claude sends the joined prompt and passes the system instructions in the System field.
type Claude struct {
	base
	Messages  ClaudeMessages
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

func NewClaude(apiKey, baseURL, model string, maxTokens int, timeout time.Duration) *Claude {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewClaudeWithMessages(&anthropicMessages{messages: &client.Messages}, model, maxTokens, timeout)
}

func NewClaudeWithMessages(messages ClaudeMessages, model string, maxTokens int, timeout time.Duration) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultClaudeMaxTokens
	}
	return &Claude{
		base: base{
			name:        "Claude",
			description: "Claude is a generative AI chatbot developed by Anthropic.",
		},
		Messages:  messages,
		Model:     model,
		MaxTokens: int64(maxTokens),
		Timeout:   timeout,
	}
}

// ClaudeParams builds the request for an invocation.
func (c *Claude) ClaudeParams(inv Invocation) anthropic.MessageNewParams {
	turns := inv.Turns()
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Text())
		if t.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.Model),
		MaxTokens: c.MaxTokens,
		Messages:  messages,
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}
	return params
}

func (c *Claude) SendPrompts(ctx context.Context, inv Invocation) string {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	message, err := c.Messages.New(ctx, c.ClaudeParams(inv))
	if err != nil {
		return failure(c.name, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return failure(c.name, errors.New("empty response"))
	}
	return sb.String()
}

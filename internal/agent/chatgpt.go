package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	DefaultChatGPTModel     = "gpt-4o"
	DefaultChatGPTMaxTokens = 4000

	DefaultChatGPTTemperature = 0.7
)

// ChatGPT sends the system instructions as a leading system message and the joined prompt as the last human message.
type ChatGPT struct {
	base
	Model       llms.Model
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func NewChatGPT(apiKey, baseURL, model string, maxTokens int, temperature *float64, timeout time.Duration) (*ChatGPT, error) {
	if model == "" {
		model = DefaultChatGPTModel
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewChatGPTWithModel(llm, maxTokens, temperature, timeout), nil
}

// NewChatGPTWithModel uses DefaultChatGPTTemperature when temperature is nil.
func NewChatGPTWithModel(model llms.Model, maxTokens int, temperature *float64, timeout time.Duration) *ChatGPT {
	if maxTokens <= 0 {
		maxTokens = DefaultChatGPTMaxTokens
	}
	temp := DefaultChatGPTTemperature
	if temperature != nil {
		temp = *temperature
	}
	return &ChatGPT{
		base: base{
			name:        "ChatGPT",
			description: "ChatGPT is a generative AI chatbot developed by OpenAI.",
		},
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temp,
		Timeout:     timeout,
	}
}

// ChatGPTMessages maps the invocation onto langchaingo messages.
func (c *ChatGPT) ChatGPTMessages(inv Invocation) []llms.MessageContent {
	var messages []llms.MessageContent
	if c.system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(c.system)},
		})
	}
	for _, t := range inv.Turns() {
		role := llms.ChatMessageTypeHuman
		if t.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(t.Text())},
		})
	}
	return messages
}

func (c *ChatGPT) SendPrompts(ctx context.Context, inv Invocation) string {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	resp, err := c.Model.GenerateContent(ctx, c.ChatGPTMessages(inv),
		llms.WithMaxTokens(c.MaxTokens),
		llms.WithTemperature(c.Temperature),
	)
	if err != nil {
		return failure(c.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return failure(c.name, errors.New("empty response"))
	}
	return resp.Choices[0].Content
}

package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiModels is the part of the genai client the Gemini agent uses.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini sends each fragment as its own part and replays history with the user/model roles.
type Gemini struct {
	base
	Models  GeminiModels
	Model   string
	Timeout time.Duration
}

func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return NewGeminiWithModels(client.Models, model, timeout), nil
}

func NewGeminiWithModels(models GeminiModels, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		base: base{
			name:        "Gemini",
			description: "Gemini is a generative artificial intelligence chatbot developed by Google.",
		},
		Models:  models,
		Model:   model,
		Timeout: timeout,
	}
}

// GeminiContents maps the invocation turns onto genai contents.
func GeminiContents(inv Invocation) []*genai.Content {
	turns := inv.Turns()
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(t.Parts))
		for _, p := range t.Parts {
			parts = append(parts, genai.NewPartFromText(p))
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func (g *Gemini) SendPrompts(ctx context.Context, inv Invocation) string {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{}
	if g.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.system, genai.RoleUser)
	}

	resp, err := g.Models.GenerateContent(ctx, g.Model, GeminiContents(inv), cfg)
	if err != nil {
		return failure(g.name, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return failure(g.name, errors.New("empty response"))
	}
	return text
}

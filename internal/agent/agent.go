package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rahul/perfwizard/internal/store"
)

// ErrUnknownAgent is returned when a registry lookup finds no provider by that name.
var ErrUnknownAgent = errors.New("unknown agent")

// AdditionalQuestionsPrompt asks the model to end its answer with follow-up question buttons.
const AdditionalQuestionsPrompt = `Finally, based on the data collected and recommendations so far, provide two suggestions for follow up questions that the user could ask to get more information or further recommendations. For these questions, provide them as HTML buttons that the user can click to ask the question. Keep the questions succinct, a maximum of 16 words. For example: "<button class="wp-wizard-follow-up-question">What is the best way to optimize my LCP image?</button>"`

// Agent is a pluggable LLM backend.
type Agent interface {
	Name() string
	Description() string
	SystemInstructions() string
	SetSystemInstructions(s string)
	// SendPrompts never fails; provider errors are returned as the response text.
	SendPrompts(ctx context.Context, inv Invocation) string
}

// Invocation is everything one agent call needs.
type Invocation struct {
	Fragments           []string
	Step                int
	History             store.History
	AdditionalQuestions bool
}

// Prompt returns the fragments joined into a single message.
func (inv Invocation) Prompt() string {
	return strings.Join(inv.outgoing(), "\n")
}

func (inv Invocation) outgoing() []string {
	if !inv.AdditionalQuestions {
		return inv.Fragments
	}
	out := make([]string, 0, len(inv.Fragments)+1)
	out = append(out, inv.Fragments...)
	return append(out, AdditionalQuestionsPrompt)
}

// Role is a provider-neutral conversation role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the replayed conversation.
type Turn struct {
	Role  Role
	Parts []string
}

// Text joins the parts of the turn.
func (t Turn) Text() string {
	return strings.Join(t.Parts, "\n")
}

// Turns replays the history in [1, Step) as alternating user/assistant turns and
// ends with the current fragments as the final user turn.
func (inv Invocation) Turns() []Turn {
	var turns []Turn
	for _, rec := range inv.History.Before(inv.Step) {
		response := rec.Response
		// Providers reject empty turns and require strict alternation.
		if response == "" {
			response = "(no response)"
		}
		turns = append(turns,
			Turn{Role: RoleUser, Parts: []string{rec.Prompt}},
			Turn{Role: RoleAssistant, Parts: []string{response}},
		)
	}
	return append(turns, Turn{Role: RoleUser, Parts: inv.outgoing()})
}

// base carries the metadata shared by every provider.
type base struct {
	name        string
	description string
	system      string
}

func (b *base) Name() string                   { return b.name }
func (b *base) Description() string            { return b.description }
func (b *base) SystemInstructions() string     { return b.system }
func (b *base) SetSystemInstructions(s string) { b.system = s }

func failure(provider string, err error) string {
	return fmt.Sprintf("Error from %s: %v", provider, err)
}

// Registry holds the configured agents by lowercase name.
type Registry struct {
	agents  map[string]Agent
	Default string
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

func (r *Registry) Register(a Agent) {
	key := strings.ToLower(a.Name())
	r.agents[key] = a
	if r.Default == "" {
		r.Default = key
	}
}

var aliases = map[string]string{
	"openai":    "chatgpt",
	"anthropic": "claude",
	"google":    "gemini",
}

// Get returns the named agent, or the default one when name is empty.
func (r *Registry) Get(name string) (Agent, error) {
	if name == "" {
		name = r.Default
	}
	key := strings.ToLower(name)
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	a, ok := r.agents[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetSystemInstructions applies the same instructions to every registered agent.
func (r *Registry) SetSystemInstructions(s string) {
	for _, a := range r.agents {
		a.SetSystemInstructions(s)
	}
}

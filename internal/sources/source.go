package sources

import (
	"context"
	"fmt"
)

// Source is a named provider of one diagnostic data block about the site.
type Source interface {
	Name() string
	// UserPrompt is shown to the user while the step runs. Falls back to Prompt.
	UserPrompt() string
	Prompt() string
	Description() string
	DataShape() string
	AnalysisStrategy() string
	Data(ctx context.Context) (string, error)
}

// Base carries the descriptive metadata shared by all sources.
type Base struct {
	name             string
	userPrompt       string
	prompt           string
	description      string
	dataShape        string
	analysisStrategy string
}

func (b *Base) Name() string { return b.name }

func (b *Base) UserPrompt() string {
	if b.userPrompt == "" {
		return b.prompt
	}
	return b.userPrompt
}

func (b *Base) Prompt() string           { return b.prompt }
func (b *Base) Description() string      { return b.description }
func (b *Base) DataShape() string        { return b.dataShape }
func (b *Base) AnalysisStrategy() string { return b.analysisStrategy }

// Static is a Source with fixed data, used for debug runs and tests.
type Static struct {
	Base
	Payload string
	Err     error
}

func NewStatic(name, prompt, payload string) *Static {
	return &Static{
		Base:    Base{name: name, prompt: prompt},
		Payload: payload,
	}
}

func (s *Static) WithMeta(description, dataShape, strategy string) *Static {
	s.description = description
	s.dataShape = dataShape
	s.analysisStrategy = strategy
	return s
}

func (s *Static) Data(ctx context.Context) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Payload, nil
}

// Debug wraps a source and returns a placeholder instead of collecting data.
type Debug struct {
	Source
}

func (d Debug) Data(ctx context.Context) (string, error) {
	return "{debug}", nil
}

// Registry keeps sources in registration order.
type Registry struct {
	order   []string
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

func (r *Registry) Register(s Source) error {
	if _, ok := r.sources[s.Name()]; ok {
		return fmt.Errorf("data source %q registered twice", s.Name())
	}
	r.order = append(r.order, s.Name())
	r.sources[s.Name()] = s
	return nil
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

package plan

import (
	"errors"
	"fmt"

	"github.com/rahul/perfwizard/internal/sources"
)

var (
	ErrOutOfRange = errors.New("step index out of range")
	ErrNoSources  = errors.New("plan requires at least one data source")
)

// Action tells the client what to do with a step.
type Action string

const (
	ActionContinue  Action = "continue"
	ActionRunAction Action = "run_action"
	ActionPrompt    Action = "prompt"
	ActionComplete  Action = "complete"
)

const (
	TitleIntroduction = "Introduction"
	TitleSummarize    = "Summarize Results"
	TitleWrapUp       = "Wrap Up"
)

// Step is one entry of the analysis plan.
type Step struct {
	Title      string         `json:"title"`
	UserPrompt string         `json:"user_prompt"`
	Source     sources.Source `json:"-"`
	Action     Action         `json:"action"`
}

// Template holds the prompts of the fixed steps around the data-source steps.
type Template struct {
	Introduction string
	Summarize    string
	WrapUp       string
}

var DefaultTemplate = Template{
	Introduction: "The Performance Wizard will analyze the performance of your WordPress site.",
	Summarize: "Considering all of the analysis of the previous steps, provide recommendations for improving the performance of the site. " +
		"This response can be several paragraphs long. First, summarize all of the findings. Next, list the top recommendations for improving the performance of the site. " +
		"For each point, refer to the plugin that could be causing the issue. Each issue should also be rooted in a specific failing Lighthouse audit - state which audit or problem it is aiming to fix. " +
		"Do not provide generic recommendations like \"consider adding caching\". Instead, always provide specific recommendations such as \"Try installing a full page caching solution like WP Fastest Cache\". " +
		"Finally, provide a testing strategy for measuring the impact of the recommendations.",
	WrapUp: "That is the end of the analysis.",
}

// Plan is the immutable ordered list of steps of one analysis session.
type Plan struct {
	steps []Step
}

// Build lays out the introduction, one step per source in order, the summary and the wrap-up.
func Build(srcs []sources.Source, tmpl Template) (*Plan, error) {
	if len(srcs) == 0 {
		return nil, ErrNoSources
	}
	tmpl = tmpl.withDefaults()

	steps := make([]Step, 0, len(srcs)+3)
	steps = append(steps, Step{
		Title:      TitleIntroduction,
		UserPrompt: tmpl.Introduction,
		Action:     ActionContinue,
	})
	seen := make(map[string]bool)
	for _, s := range srcs {
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate step title %q", s.Name())
		}
		seen[s.Name()] = true
		steps = append(steps, Step{
			Title:      s.Name(),
			UserPrompt: s.UserPrompt(),
			Source:     s,
			Action:     ActionRunAction,
		})
	}
	steps = append(steps,
		Step{Title: TitleSummarize, UserPrompt: tmpl.Summarize, Action: ActionPrompt},
		Step{Title: TitleWrapUp, UserPrompt: tmpl.WrapUp, Action: ActionComplete},
	)
	return &Plan{steps: steps}, nil
}

func (t Template) withDefaults() Template {
	if t.Introduction == "" {
		t.Introduction = DefaultTemplate.Introduction
	}
	if t.Summarize == "" {
		t.Summarize = DefaultTemplate.Summarize
	}
	if t.WrapUp == "" {
		t.WrapUp = DefaultTemplate.WrapUp
	}
	return t
}

func (p *Plan) Len() int { return len(p.steps) }

func (p *Plan) Step(i int) (Step, error) {
	if i < 0 || i >= len(p.steps) {
		return Step{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, len(p.steps))
	}
	return p.steps[i], nil
}

// Lookup returns the index of the step with the given title.
func (p *Plan) Lookup(title string) (int, bool) {
	for i, s := range p.steps {
		if s.Title == title {
			return i, true
		}
	}
	return 0, false
}

// Steps returns a copy of the plan's steps.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

package wizard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/perfwizard/internal/agent"
	"github.com/rahul/perfwizard/internal/observability"
	"github.com/rahul/perfwizard/internal/plan"
	"github.com/rahul/perfwizard/internal/store"
)

const (
	DataPointPrompt        = "You will now analyze a new data point. Remember the analysis for this data point so you can refer to it in future steps."
	DataPointSummaryPrompt = "Analyze the data, while also considering analysis from previous steps. Provide a high level summary of the information received - 2-3 paragraphs at most - and how it reflects on the performance of the site. Highlight the most important findings."

	// DataPlaceholder stands in for the raw payload in the transcript shown to the user.
	DataPlaceholder = "{DATA}"

	QuestionPrefix = ">Q: "
	AnswerPrefix   = ">A: "
)

// Executor runs single steps of a plan against the store and an agent.
type Executor struct {
	Plan   *plan.Plan
	Store  store.Store
	Logger *observability.Logger
}

func NewExecutor(p *plan.Plan, s store.Store, logger *observability.Logger) *Executor {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Executor{Plan: p, Store: s, Logger: logger}
}

// Fragments builds the prompt fragments sent to the agent and the parallel
// fragments shown to the user, where the data is replaced by DataPlaceholder.
func Fragments(prompt, description, data, dataShape, strategy string) (prompts, forUser []string) {
	prompts = append(prompts, DataPointPrompt)
	forUser = append(forUser, DataPointPrompt)

	if prompt != "" {
		prompts = append(prompts, prompt)
		forUser = append(forUser, prompt)
	}
	if description != "" {
		prompts = append(prompts, description)
		forUser = append(forUser, description)
	}
	if data != "" {
		r := []string{"Here is the data: " + data}
		u := []string{"Here is the data: " + DataPlaceholder}
		if dataShape != "" {
			r = append(r, "Here is the data shape: "+dataShape)
			u = append(u, "Here is the data shape: "+dataShape)
		}
		if strategy != "" {
			r = append(r, "Here is the analysis strategy: "+strategy)
			u = append(u, "Here is the analysis strategy: "+strategy)
		}
		prompts = append(prompts, strings.Join(r, "\n"))
		forUser = append(forUser, strings.Join(u, "\n"))
	}

	prompts = append(prompts, DataPointSummaryPrompt)
	forUser = append(forUser, DataPointSummaryPrompt)
	return prompts, forUser
}

// Transcript renders a question and answer as the two printable lines returned to clients.
func Transcript(question []string, answer string) []string {
	return []string{
		QuestionPrefix + strings.Join(question, "\n"),
		AnswerPrefix + answer,
	}
}

// Run collects the step's data, sends it to the agent with the prior history and stores the exchange.
func (e *Executor) Run(ctx context.Context, session, runID string, step int, a agent.Agent) ([]string, error) {
	s, err := e.Plan.Step(step)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownStep, err)
	}
	if s.Source == nil {
		return nil, fmt.Errorf("%w: step %d (%s) has no data source", ErrUnknownStep, step, s.Title)
	}
	src := s.Source

	observability.SetStatus(observability.RoleCollecting, session, step, s.Title)
	start := time.Now()
	data, srcErr := src.Data(ctx)
	if srcErr != nil {
		// A failed collection is narrated by the agent rather than failing the step.
		data = ""
	}
	e.Logger.LogSource(session, runID, step, src.Name(), len(data), time.Since(start), srcErr)

	prompts, forUser := Fragments(src.Prompt(), src.Description(), data, src.DataShape(), src.AnalysisStrategy())

	resp, err := e.send(ctx, session, runID, step, s.Title, a, prompts, false)
	if err != nil {
		return nil, err
	}

	if data != "" {
		if err := e.Store.SaveSnapshot(session, src.Name(), data); err != nil {
			return nil, fmt.Errorf("failed to save %s snapshot: %w", src.Name(), err)
		}
	}

	e.Logger.LogStep(session, runID, step, s.Title, "run_action")
	return Transcript(forUser, resp), nil
}

// Prompt sends free text for the step with the prior history and stores the exchange.
func (e *Executor) Prompt(ctx context.Context, session, runID string, step int, text string, a agent.Agent, additionalQuestions bool) ([]string, error) {
	s, err := e.Plan.Step(step)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownStep, err)
	}

	resp, err := e.send(ctx, session, runID, step, s.Title, a, []string{text}, additionalQuestions)
	if err != nil {
		return nil, err
	}

	e.Logger.LogStep(session, runID, step, s.Title, "prompt")
	return Transcript([]string{text}, resp), nil
}

func (e *Executor) send(ctx context.Context, session, runID string, step int, title string, a agent.Agent, fragments []string, additionalQuestions bool) (string, error) {
	all, err := e.Store.History(session)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	inv := agent.Invocation{
		Fragments:           fragments,
		Step:                step,
		History:             all.Window(step),
		AdditionalQuestions: additionalQuestions,
	}

	observability.SetStatus(observability.RoleThinking, session, step, title)
	start := time.Now()
	resp := a.SendPrompts(ctx, inv)
	e.Logger.LogLLM(session, runID, step, a.Name(), inv.Prompt(), resp, time.Since(start))

	rec := store.StepRecord{
		Step:     step,
		Prompt:   strings.Join(fragments, "\n"),
		Response: resp,
	}
	if err := e.Store.SaveStep(session, rec); err != nil {
		return "", fmt.Errorf("failed to save step %d: %w", step, err)
	}
	return resp, nil
}

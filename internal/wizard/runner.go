package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/perfwizard/internal/plan"
)

// DefaultMaxSteps bounds the client loop when a plan never reaches its complete step.
const DefaultMaxSteps = 25

// Update is one visible event of a run: a step announcement, optionally with its transcript.
type Update struct {
	Step   int
	Title  string
	Prompt string
	Action plan.Action
	Lines  []string
}

// Sink receives updates as the runner produces them.
type Sink interface {
	Publish(ctx context.Context, u Update) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, u Update) error

func (f SinkFunc) Publish(ctx context.Context, u Update) error { return f(ctx, u) }

// Runner walks a session through the whole plan the way an interactive client does.
type Runner struct {
	Dispatcher          *Dispatcher
	Session             string
	Agent               string
	Enabled             []string
	AdditionalQuestions bool
	MaxSteps            int
}

// Run starts a fresh session and executes every step until the complete step.
func (r *Runner) Run(ctx context.Context, sink Sink) error {
	limit := r.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}

	if _, err := r.Dispatcher.Handle(ctx, r.Session, Command{Command: CommandStart}); err != nil {
		return err
	}

	for step := 0; step <= limit; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := r.Dispatcher.Handle(ctx, r.Session, Command{
			Command: CommandGetNextAction,
			Step:    step,
			Enabled: r.Enabled,
		})
		if errors.Is(err, plan.ErrOutOfRange) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		next := res.Next
		u := Update{Step: step, Title: next.Title, Prompt: next.UserPrompt, Action: next.Action}

		switch next.Action {
		case plan.ActionComplete:
			return sink.Publish(ctx, u)
		case plan.ActionRunAction:
			out, err := r.Dispatcher.Handle(ctx, r.Session, Command{
				Command: CommandRunAction,
				Step:    step,
				Agent:   r.Agent,
				Enabled: r.Enabled,
			})
			if err != nil {
				return fmt.Errorf("step %d: %w", step, err)
			}
			u.Lines = out.Lines
		case plan.ActionPrompt:
			out, err := r.Dispatcher.Handle(ctx, r.Session, Command{
				Command:             CommandPrompt,
				Step:                step,
				Prompt:              next.UserPrompt,
				Agent:               r.Agent,
				AdditionalQuestions: r.AdditionalQuestions,
			})
			if err != nil {
				return fmt.Errorf("step %d: %w", step, err)
			}
			u.Lines = out.Lines
		}

		if err := sink.Publish(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

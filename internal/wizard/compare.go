package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/perfwizard/internal/observability"
)

// CompareCommand is the prompt text that triggers a comparison instead of an agent call.
const CompareCommand = "compare"

// Comparer is implemented by sources that can describe the difference between two payloads.
type Comparer interface {
	Compare(before, after string) (string, error)
}

// IsCompare reports whether a prompt asks for a comparison. Only the exact
// command matches; anything else is a question for the agent.
func IsCompare(text string) bool {
	return text == CompareCommand
}

// Compare re-collects the reference source and reports how it changed since the stored snapshot.
// The fresh payload becomes the new baseline. No agent is involved.
func (e *Executor) Compare(ctx context.Context, session, runID, reference string) ([]string, error) {
	question := []string{CompareCommand}

	idx, ok := e.Plan.Lookup(reference)
	if !ok {
		return Transcript(question, fmt.Sprintf("There is no %s step in this analysis to compare.", reference)), nil
	}
	s, err := e.Plan.Step(idx)
	if err != nil || s.Source == nil {
		return Transcript(question, fmt.Sprintf("The %s step has no data source to compare.", reference)), nil
	}

	before, hasBaseline, err := e.Store.Snapshot(session, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s snapshot: %w", reference, err)
	}

	observability.SetStatus(observability.RoleCollecting, session, idx, "compare "+reference)
	start := time.Now()
	after, srcErr := s.Source.Data(ctx)
	e.Logger.LogSource(session, runID, idx, reference, len(after), time.Since(start), srcErr)
	if srcErr != nil || after == "" {
		msg := fmt.Sprintf("Could not collect fresh %s data", reference)
		if srcErr != nil {
			msg += ": " + srcErr.Error()
		}
		return Transcript(question, msg+"."), nil
	}

	if err := e.Store.SaveSnapshot(session, reference, after); err != nil {
		return nil, fmt.Errorf("failed to save %s snapshot: %w", reference, err)
	}

	if !hasBaseline {
		return Transcript(question, fmt.Sprintf("No previous %s data was stored for this site. The fresh results are now the baseline for the next comparison.", reference)), nil
	}

	var answer string
	if c, ok := s.Source.(Comparer); ok {
		diff, err := c.Compare(before, after)
		if err != nil {
			answer = fmt.Sprintf("The %s results could not be compared: %v", reference, err)
		} else {
			answer = fmt.Sprintf("Changes in %s since the previous run:\n\n%s", reference, diff)
		}
	} else if before == after {
		answer = fmt.Sprintf("The %s data is unchanged since the previous run.", reference)
	} else {
		answer = fmt.Sprintf("The %s data changed since the previous run (%d bytes before, %d bytes now).", reference, len(before), len(after))
	}

	e.Logger.LogStep(session, runID, idx, s.Title, "compare")
	return Transcript(question, answer), nil
}

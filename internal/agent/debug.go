package agent

import (
	"context"
	"sync"
)

// Debug answers every call with a fixed reply and records the invocations it received.
type Debug struct {
	base
	Reply string

	mu    sync.Mutex
	calls []Invocation
}

func NewDebug() *Debug {
	return &Debug{
		base: base{
			name:        "Debug",
			description: "The Debug agent returns a placeholder instead of calling a provider.",
		},
		Reply: "{debug}",
	}
}

func (d *Debug) SendPrompts(ctx context.Context, inv Invocation) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, inv)
	return d.Reply
}

// Calls returns the invocations received so far.
func (d *Debug) Calls() []Invocation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Invocation, len(d.calls))
	copy(out, d.calls)
	return out
}

package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rahul/perfwizard/internal/agent"
	"github.com/rahul/perfwizard/internal/governance"
	"github.com/rahul/perfwizard/internal/observability"
	"github.com/rahul/perfwizard/internal/plan"
	"github.com/rahul/perfwizard/internal/store"
)

const (
	CommandGetNextAction = "get_next_action"
	CommandRunAction     = "run_action"
	CommandPrompt        = "prompt"
	CommandStart         = "start"
)

// Command is one request of the command protocol.
type Command struct {
	Command             string   `json:"command"`
	Step                int      `json:"step"`
	Prompt              string   `json:"prompt,omitempty"`
	AdditionalQuestions bool     `json:"additional_questions,omitempty"`
	Agent               string   `json:"agent,omitempty"`
	Enabled             []string `json:"enabled,omitempty"`
}

// Name returns the command name with the legacy underscore wrapping removed.
func (c Command) Name() string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(c.Command), "_"))
}

// StepView is what get_next_action reports about a step.
type StepView struct {
	Title      string      `json:"title"`
	UserPrompt string      `json:"user_prompt"`
	Action     plan.Action `json:"action"`
	Enabled    bool        `json:"enabled"`
}

// Result is the outcome of one command. Exactly one of Next and Lines is set,
// except for start which returns neither.
type Result struct {
	Next  *StepView
	Lines []string
}

// Payload is the JSON body a client receives for the result.
func (r Result) Payload() any {
	switch {
	case r.Next != nil:
		return r.Next
	case r.Lines != nil:
		return r.Lines
	default:
		return ""
	}
}

// PlanBuilder produces a fresh plan. It is called at construction and on every start.
type PlanBuilder func() (*plan.Plan, error)

// Dispatcher routes protocol commands to the executor and keeps the session state machine.
type Dispatcher struct {
	Store  store.Store
	Agents *agent.Registry
	Policy governance.PolicyEngine
	Logger *observability.Logger
	// Reference is the source re-collected by the compare prompt.
	Reference string

	build PlanBuilder

	planMu sync.RWMutex
	plan   *plan.Plan

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

func NewDispatcher(build PlanBuilder, s store.Store, agents *agent.Registry, policy governance.PolicyEngine, logger *observability.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if policy == nil {
		policy = governance.NewDefaultPolicyEngine()
	}
	if agents == nil || len(agents.Names()) == 0 {
		return nil, fmt.Errorf("%w: no agent registered", ErrConfiguration)
	}
	d := &Dispatcher{
		Store:     s,
		Agents:    agents,
		Policy:    policy,
		Logger:    logger,
		Reference: "Lighthouse",
		build:     build,
		sessions:  make(map[string]*sync.Mutex),
	}
	if err := d.rebuild(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) rebuild() error {
	p, err := d.build()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	d.planMu.Lock()
	d.plan = p
	d.planMu.Unlock()
	observability.SetPlanSize(p.Len())
	return nil
}

// Plan returns the current plan.
func (d *Dispatcher) Plan() *plan.Plan {
	d.planMu.RLock()
	defer d.planMu.RUnlock()
	return d.plan
}

func (d *Dispatcher) executor() *Executor {
	return NewExecutor(d.Plan(), d.Store, d.Logger)
}

func (d *Dispatcher) lock(session string) func() {
	d.mu.Lock()
	m, ok := d.sessions[session]
	if !ok {
		m = &sync.Mutex{}
		d.sessions[session] = m
	}
	d.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Handle runs one command for the session.
func (d *Dispatcher) Handle(ctx context.Context, session string, cmd Command) (Result, error) {
	if session == "" {
		return Result{}, fmt.Errorf("%w: missing session id", ErrBadRequest)
	}
	runID := uuid.NewString()
	name := cmd.Name()
	d.Logger.LogCommand(session, runID, name, cmd.Step)
	defer observability.Idle()

	switch name {
	case CommandGetNextAction:
		v, err := d.NextAction(ctx, session, cmd.Step, cmd.Enabled)
		if err != nil {
			return Result{}, err
		}
		return Result{Next: &v}, nil
	case CommandRunAction:
		lines, err := d.RunAction(ctx, session, runID, cmd.Step, cmd.Agent, cmd.Enabled)
		return Result{Lines: lines}, err
	case CommandPrompt:
		lines, err := d.Prompt(ctx, session, runID, cmd.Step, cmd.Prompt, cmd.Agent, cmd.AdditionalQuestions)
		return Result{Lines: lines}, err
	case CommandStart:
		return Result{}, d.Start(ctx, session)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

// NextAction describes the step. Reaching the complete step finishes the session.
func (d *Dispatcher) NextAction(ctx context.Context, session string, step int, enabled []string) (StepView, error) {
	s, err := d.Plan().Step(step)
	if err != nil {
		return StepView{}, fmt.Errorf("%w: %w", ErrUnknownStep, err)
	}

	view := StepView{
		Title:      s.Title,
		UserPrompt: s.UserPrompt,
		Action:     s.Action,
		Enabled:    true,
	}
	if s.Action == plan.ActionRunAction {
		res, err := d.evaluate(ctx, session, step, s.Title, enabled)
		if err != nil {
			return StepView{}, err
		}
		view.Enabled = res.Allowed()
	}

	if s.Action == plan.ActionComplete {
		unlock := d.lock(session)
		defer unlock()
		if err := d.Store.SetState(session, store.SessionState{Status: store.StatusComplete, Step: step}); err != nil {
			return StepView{}, fmt.Errorf("failed to save session state: %w", err)
		}
	}
	return view, nil
}

// RunAction executes a data-source step. It is refused once the session is complete.
func (d *Dispatcher) RunAction(ctx context.Context, session, runID string, step int, agentName string, enabled []string) ([]string, error) {
	unlock := d.lock(session)
	defer unlock()

	state, err := d.Store.State(session)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if state.Status == store.StatusComplete {
		return nil, ErrSessionComplete
	}

	s, err := d.Plan().Step(step)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownStep, err)
	}

	if s.Action != plan.ActionRunAction {
		return nil, fmt.Errorf("%w: step %d (%s) has no action to run", ErrUnknownStep, step, s.Title)
	}

	res, err := d.evaluate(ctx, session, step, s.Title, enabled)
	if err != nil {
		return nil, err
	}
	if !res.Allowed() {
		return []string{fmt.Sprintf("Skipping %s: %s.", s.Title, res.Reason)}, nil
	}

	a, err := d.agent(agentName)
	if err != nil {
		return nil, err
	}
	if err := d.running(session, step); err != nil {
		return nil, err
	}
	return d.executor().Run(ctx, session, runID, step, a)
}

// Prompt sends free text for the step, or runs a comparison for the compare prompt.
// Follow-up prompts stay allowed after completion.
func (d *Dispatcher) Prompt(ctx context.Context, session, runID string, step int, text, agentName string, additionalQuestions bool) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrBadRequest)
	}

	unlock := d.lock(session)
	defer unlock()

	exec := d.executor()
	if IsCompare(text) {
		return exec.Compare(ctx, session, runID, d.Reference)
	}

	if _, err := exec.Plan.Step(step); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownStep, err)
	}
	a, err := d.agent(agentName)
	if err != nil {
		return nil, err
	}

	state, err := d.Store.State(session)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if state.Status != store.StatusComplete {
		if err := d.running(session, step); err != nil {
			return nil, err
		}
	}
	return exec.Prompt(ctx, session, runID, step, text, a, additionalQuestions)
}

// Start clears the session and rebuilds the plan.
func (d *Dispatcher) Start(ctx context.Context, session string) error {
	unlock := d.lock(session)
	defer unlock()

	if err := d.Store.Reset(session); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return d.rebuild()
}

func (d *Dispatcher) agent(name string) (agent.Agent, error) {
	a, err := d.Agents.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return a, nil
}

func (d *Dispatcher) running(session string, step int) error {
	if err := d.Store.SetState(session, store.SessionState{Status: store.StatusRunning, Step: step}); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

func (d *Dispatcher) evaluate(ctx context.Context, session string, step int, title string, enabled []string) (governance.Result, error) {
	res, err := d.Policy.Evaluate(ctx, governance.Request{Step: title, SessionID: session, Enabled: enabled})
	if err != nil {
		return governance.Result{}, fmt.Errorf("policy check for %s: %w", title, err)
	}
	d.Logger.LogPolicy(session, step, title, string(res.Effect), res.Reason)
	return res, nil
}

package wizard

import (
	"context"
	"fmt"

	"github.com/rahul/perfwizard/internal/agent"
	"github.com/rahul/perfwizard/internal/governance"
	"github.com/rahul/perfwizard/internal/observability"
	"github.com/rahul/perfwizard/internal/plan"
	"github.com/rahul/perfwizard/internal/sources"
	"github.com/rahul/perfwizard/internal/store"
	"github.com/rahul/perfwizard/pkg/config"
)

// OpenStore opens the backend named by cfg.Memory.Type.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Memory.Type {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite", "":
		s, err := store.NewSQLiteStore(cfg.Memory.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown memory type %q", ErrConfiguration, cfg.Memory.Type)
	}
}

// NewPolicy turns the policy section of cfg into a policy engine.
func NewPolicy(cfg *config.Config) (*governance.DefaultPolicyEngine, error) {
	p := governance.NewDefaultPolicyEngine()
	for _, title := range cfg.Policy.DisabledSteps {
		p.DenyStep(title)
	}
	for _, pattern := range cfg.Policy.DeniedURLs {
		if err := p.DenyURL(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid denied url pattern %q: %w", ErrConfiguration, pattern, err)
		}
	}
	return p, nil
}

// PlanFromConfig builds the sources enabled in cfg and lays them out with the
// step templates of the prompt directory. Templates are re-read on every call;
// directory is shared by every plan so its lookups stay cached across runs.
func PlanFromConfig(cfg *config.Config, policy governance.PolicyEngine, prompts *agent.PromptManager, directory *sources.Directory) PlanBuilder {
	return func() (*plan.Plan, error) {
		reg, err := sources.Build(cfg, policy, directory)
		if err != nil {
			return nil, err
		}
		return plan.Build(reg.Sources(), prompts.GetTemplate())
	}
}

// New wires a dispatcher from cfg. The caller owns the returned store.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dispatcher, store.Store, error) {
	if cfg.App.SiteURL == "" {
		return nil, nil, fmt.Errorf("%w: app.site_url is required", ErrConfiguration)
	}

	policy, err := NewPolicy(cfg)
	if err != nil {
		return nil, nil, err
	}

	prompts := agent.NewPromptManager(cfg.Prompts.Directory)
	agents, err := agent.FromConfig(ctx, cfg, prompts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	s, err := OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	directory := sources.NewConfigDirectory(cfg, policy)
	d, err := NewDispatcher(PlanFromConfig(cfg, policy, prompts, directory), s, agents, policy, logger)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	d.Reference = cfg.Sources.Reference
	return d, s, nil
}

package agent

import (
	"context"
	"fmt"

	"github.com/rahul/perfwizard/pkg/config"
)

// FromConfig builds one agent per enabled provider. Debug mode registers only the Debug agent.
func FromConfig(ctx context.Context, cfg *config.Config, prompts *PromptManager) (*Registry, error) {
	reg := NewRegistry()
	timeout := cfg.Agent.Timeout.Std()

	if cfg.App.Debug {
		reg.Register(NewDebug())
	} else {
		defaultName, _ := cfg.GetDefaultProvider()
		names := cfg.ProviderNames()
		// Register the default provider first so it becomes the registry default.
		ordered := []string{}
		if defaultName != "" {
			ordered = append(ordered, defaultName)
		}
		for _, n := range names {
			if n != defaultName {
				ordered = append(ordered, n)
			}
		}

		for _, name := range ordered {
			p := cfg.Providers[name]
			switch name {
			case "gemini":
				g, err := NewGemini(ctx, p.Key(), p.Model, timeout)
				if err != nil {
					return nil, fmt.Errorf("gemini: %w", err)
				}
				reg.Register(g)
			case "chatgpt", "openai":
				c, err := NewChatGPT(p.Key(), p.BaseURL, p.Model, p.MaxTokens, p.Temp, timeout)
				if err != nil {
					return nil, fmt.Errorf("chatgpt: %w", err)
				}
				reg.Register(c)
			case "claude", "anthropic":
				reg.Register(NewClaude(p.Key(), p.BaseURL, p.Model, p.MaxTokens, timeout))
			case "debug":
				reg.Register(NewDebug())
			default:
				return nil, fmt.Errorf("%w: provider %q is not supported", ErrUnknownAgent, name)
			}
		}
	}

	if len(reg.Names()) == 0 {
		return nil, fmt.Errorf("%w: no enabled provider found in config", ErrUnknownAgent)
	}

	system, err := prompts.GetSystemInstructions()
	if err != nil {
		return nil, err
	}
	reg.SetSystemInstructions(system)
	return reg, nil
}

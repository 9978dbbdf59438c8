package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes either a plan step about to run or a URL about to be fetched.
type Request struct {
	Step      string
	URL       string
	SessionID string
	// Enabled is the caller's selection of data-source steps. Nil means all.
	Enabled []string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

func (r Result) Allowed() bool { return r.Effect == EffectAllow }

// PolicyEngine evaluates steps and fetches against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedSteps map[string]bool
	DeniedURLs  []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedSteps: make(map[string]bool),
		DeniedURLs:  make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyStep(title string) {
	e.DeniedSteps[title] = true
}

func (e *DefaultPolicyEngine) DenyURL(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedURLs = append(e.DeniedURLs, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if req.Step != "" {
		if e.DeniedSteps[req.Step] {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Step '%s' is disabled by configuration", req.Step),
			}, nil
		}
		if req.Enabled != nil && !contains(req.Enabled, req.Step) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Step '%s' is not in the selected data sources", req.Step),
			}, nil
		}
	}

	if req.URL != "" {
		for _, re := range e.DeniedURLs {
			if re.MatchString(req.URL) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("URL matches restricted pattern: %s", re.String()),
				}, nil
			}
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

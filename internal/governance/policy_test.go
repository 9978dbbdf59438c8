package governance

import (
	"context"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	res1, err := engine.Evaluate(ctx, Request{Step: "Lighthouse"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test Deny by configuration
	engine.DenyStep("Script Attribution")
	res2, err := engine.Evaluate(ctx, Request{Step: "Script Attribution"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultPolicyEngine_EnabledSelection(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	res, _ := engine.Evaluate(ctx, Request{Step: "HTML", Enabled: []string{"Lighthouse"}})
	if res.Allowed() {
		t.Errorf("Expected HTML to be denied when only Lighthouse is selected")
	}

	res, _ = engine.Evaluate(ctx, Request{Step: "Lighthouse", Enabled: []string{"Lighthouse"}})
	if !res.Allowed() {
		t.Errorf("Expected Lighthouse to be allowed, got %s", res.Reason)
	}
}

func TestDefaultPolicyEngine_DenyURL(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	if err := engine.DenyURL(`^https?://(localhost|127\.)`); err != nil {
		t.Fatal(err)
	}
	if err := engine.DenyURL(`(`); err == nil {
		t.Error("Expected invalid pattern to fail")
	}

	res, _ := engine.Evaluate(context.Background(), Request{URL: "http://127.0.0.1:8080/"})
	if res.Allowed() {
		t.Error("Expected loopback URL to be denied")
	}
	res, _ = engine.Evaluate(context.Background(), Request{URL: "https://example.com/"})
	if !res.Allowed() {
		t.Error("Expected public URL to be allowed")
	}
}

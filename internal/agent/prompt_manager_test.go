package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/perfwizard/internal/plan"
)

func TestPromptManager_GetSystemInstructions(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"persona.md":         "Persona Content",
		"analysis.md":        "Analysis Content",
		"recommendations.md": "Recommendations Content",
		"example.md":         "Example Content",
		"extra.md":           "Extra Content",
		"summarize.md":       "Summarize Override",
	}

	for name, content := range files {
		err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(tempDir)
	prompt, err := pm.GetSystemInstructions()
	if err != nil {
		t.Fatal(err)
	}

	expectedParts := []string{
		"Persona Content",
		"Analysis Content",
		"Recommendations Content",
		"Example Content",
		"Extra Content",
	}

	for _, part := range expectedParts {
		if !strings.Contains(prompt, part) {
			t.Errorf("Prompt missing expected part: %s", part)
		}
	}
	if strings.Contains(prompt, "Summarize Override") {
		t.Error("Step templates should not be part of the system instructions")
	}

	// Verify order
	for i := 0; i < len(expectedParts)-1; i++ {
		if strings.Index(prompt, expectedParts[i]) >= strings.Index(prompt, expectedParts[i+1]) {
			t.Errorf("%s should be before %s", expectedParts[i], expectedParts[i+1])
		}
	}

	tmpl := pm.GetTemplate()
	if tmpl.Summarize != "Summarize Override" {
		t.Errorf("Expected summarize override, got %q", tmpl.Summarize)
	}
	if tmpl.Introduction != plan.DefaultTemplate.Introduction {
		t.Errorf("Expected default introduction, got %q", tmpl.Introduction)
	}
}

func TestPromptManager_MissingDirectoryFallsBack(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "missing"))
	prompt, err := pm.GetSystemInstructions()
	if err != nil {
		t.Fatal(err)
	}
	if prompt != DefaultSystemInstructions {
		t.Error("Expected built-in system instructions")
	}
	if pm.GetTemplate() != plan.DefaultTemplate {
		t.Error("Expected default step templates")
	}
}

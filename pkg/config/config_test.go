package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_JSONDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"app": {"site_url": "https://example.com/blog"},
		"providers": {"gemini": {"model": "gemini-2.0-flash", "enabled": true}}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.App.SessionID)
	assert.Equal(t, DefaultSources, cfg.Sources.Enabled)
	assert.Equal(t, 180*time.Second, cfg.Agent.Timeout.Std())
	assert.Equal(t, "Lighthouse", cfg.Sources.Reference)
	assert.Equal(t, "sqlite", cfg.Memory.Type)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "gemini", name)
	assert.Equal(t, "gemini-2.0-flash", p.Model)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  site_url: https://shop.example.org
  session_id: shop
agent:
  default: claude
  timeout: 90s
providers:
  claude:
    model: claude-sonnet-4-5
    api_key_env: TEST_CLAUDE_KEY
    enabled: true
  chatgpt:
    model: gpt-4o
    temperature: 0
    enabled: true
sources:
  enabled: [Lighthouse, HTML]
gateways:
  http:
    addr: ":9090"
    enabled: true
`)
	t.Setenv("TEST_CLAUDE_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.App.SessionID)
	assert.Equal(t, 90*time.Second, cfg.Agent.Timeout.Std())
	assert.Equal(t, []string{"Lighthouse", "HTML"}, cfg.Sources.Enabled)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "claude", name)
	assert.Equal(t, "sk-test", p.Key())
	assert.Equal(t, []string{"chatgpt", "claude"}, cfg.ProviderNames())
	require.NotNil(t, cfg.Providers["chatgpt"].Temp)
	assert.Equal(t, 0.0, *cfg.Providers["chatgpt"].Temp)
	assert.Nil(t, cfg.Providers["claude"].Temp)

	g, ok := cfg.GetGateway("http")
	require.True(t, ok)
	assert.Equal(t, ":9090", g.Addr)

	_, ok = cfg.GetGateway("telegram")
	assert.False(t, ok)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.json", "{"))
	assert.Error(t, err)
}

func TestGetDefaultProvider_FallsBackToFirstEnabled(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{Default: "gemini"},
		Providers: map[string]ProviderConfig{
			"gemini":  {Enabled: false},
			"chatgpt": {Enabled: true, Model: "gpt-4o"},
		},
	}
	name, _ := cfg.GetDefaultProvider()
	assert.Equal(t, "chatgpt", name)
}

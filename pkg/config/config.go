package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Agent     AgentConfig               `json:"agent" yaml:"agent"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Sources   SourcesConfig             `json:"sources" yaml:"sources"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Prompts   PromptsConfig             `json:"prompts" yaml:"prompts"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy"`
}

type AppConfig struct {
	Name    string `json:"name" yaml:"name"`
	SiteURL string `json:"site_url" yaml:"site_url"`
	// SessionID keys every persisted record. Defaults to the site host.
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	// Debug skips every costly data source and provider call.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`
}

type AgentConfig struct {
	Default             string   `json:"default" yaml:"default"`
	AdditionalQuestions bool     `json:"additional_questions" yaml:"additional_questions"`
	Timeout             Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type ProviderConfig struct {
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Model     string `json:"model" yaml:"model"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`

	// Temp is nil when unset, so an explicit 0 is kept.
	Temp *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Key resolves the provider API key, preferring the inline value over the environment.
func (p ProviderConfig) Key() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

type SourcesConfig struct {
	// Enabled lists data source names in plan order.
	Enabled        []string  `json:"enabled" yaml:"enabled"`
	PageSpeedKey   string    `json:"pagespeed_api_key,omitempty" yaml:"pagespeed_api_key,omitempty"`
	PageSpeedURL   string    `json:"pagespeed_url,omitempty" yaml:"pagespeed_url,omitempty"`
	PluginAPIURL   string    `json:"plugin_api_url,omitempty" yaml:"plugin_api_url,omitempty"`
	ThemeAPIURL    string    `json:"theme_api_url,omitempty" yaml:"theme_api_url,omitempty"`
	Pages          PagesConf `json:"pages" yaml:"pages"`
	BrowserPath    string    `json:"browser_path,omitempty" yaml:"browser_path,omitempty"`
	Reference      string    `json:"compare_reference,omitempty" yaml:"compare_reference,omitempty"`
	MaxBytes       int64     `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
	SearchResults  int       `json:"search_results,omitempty" yaml:"search_results,omitempty"`
	RequestTimeout Duration  `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
}

// PagesConf pins the pages the HTML source collects. Empty entries are discovered from the home page.
type PagesConf struct {
	RecentPost string `json:"most_recent_post,omitempty" yaml:"most_recent_post,omitempty"`
	Archive    string `json:"archive_page,omitempty" yaml:"archive_page,omitempty"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

type PromptsConfig struct {
	Directory string `json:"directory" yaml:"directory"`
}

type PolicyConfig struct {
	DeniedURLs    []string `json:"denied_urls,omitempty" yaml:"denied_urls,omitempty"`
	DisabledSteps []string `json:"disabled_steps,omitempty" yaml:"disabled_steps,omitempty"`
}

// Duration accepts "90s" style strings in both JSON and YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid duration %s", string(b))
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

var DefaultSources = []string{"Lighthouse", "HTML", "Themes and Plugins", "Script Attribution"}

// LoadConfig reads a JSON or YAML config file, picked by extension, and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "Performance Wizard"
	}
	if c.App.SessionID == "" {
		c.App.SessionID = sessionFromURL(c.App.SiteURL)
	}
	if c.Agent.Timeout == 0 {
		c.Agent.Timeout = Duration(180 * time.Second)
	}
	if len(c.Sources.Enabled) == 0 {
		c.Sources.Enabled = append([]string(nil), DefaultSources...)
	}
	if c.Sources.Reference == "" {
		c.Sources.Reference = "Lighthouse"
	}
	if c.Sources.MaxBytes == 0 {
		c.Sources.MaxBytes = 1 << 20
	}
	if c.Sources.SearchResults == 0 {
		c.Sources.SearchResults = 5
	}
	if c.Sources.RequestTimeout == 0 {
		c.Sources.RequestTimeout = Duration(3 * time.Minute)
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "perfwizard.db"
	}
	if c.Prompts.Directory == "" {
		c.Prompts.Directory = "./prompts"
	}
}

func sessionFromURL(site string) string {
	u, err := url.Parse(site)
	if err != nil || u.Host == "" {
		return "default"
	}
	return u.Host
}

// GetDefaultProvider returns the configured default provider, falling back to
// the first enabled one in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	if p, ok := c.Providers[c.Agent.Default]; ok && p.Enabled {
		return c.Agent.Default, p
	}
	for _, name := range c.ProviderNames() {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// ProviderNames lists enabled providers in a stable order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetGateway returns the named gateway config if enabled.
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}

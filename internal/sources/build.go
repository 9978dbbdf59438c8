package sources

import (
	"fmt"

	"github.com/rahul/perfwizard/internal/governance"
	"github.com/rahul/perfwizard/pkg/config"
)

// NewConfigDirectory returns the wordpress.org client configured in cfg.
func NewConfigDirectory(cfg *config.Config, policy governance.PolicyEngine) *Directory {
	sc := cfg.Sources
	return NewDirectory(sc.PluginAPIURL, sc.ThemeAPIURL, NewFetcher(sc.RequestTimeout.Std(), sc.MaxBytes, policy))
}

// Build registers the sources enabled in cfg, in configured order. The plugin
// and theme sources share directory, so its cache survives rebuilds; a nil
// directory gets a fresh one.
func Build(cfg *config.Config, policy governance.PolicyEngine, directory *Directory) (*Registry, error) {
	sc := cfg.Sources
	site := cfg.App.SiteURL
	timeout := sc.RequestTimeout.Std()

	pages := NewFetcher(timeout, sc.MaxBytes, policy)
	// PageSpeed reports are larger than any page and must stay valid JSON.
	reports := NewFetcher(timeout, 0, policy)
	if directory == nil {
		directory = NewConfigDirectory(cfg, policy)
	}

	reg := NewRegistry()
	for _, name := range sc.Enabled {
		var s Source
		switch name {
		case "Lighthouse":
			s = NewLighthouse(site, sc.PageSpeedURL, sc.PageSpeedKey, reports)
		case "HTML":
			s = NewHTML(site, sc.Pages.RecentPost, sc.Pages.Archive, pages)
		case "Themes and Plugins":
			s = NewThemesAndPlugins(site, pages, directory)
		case "Script Attribution":
			s = NewScriptAttribution(site, &ChromeRenderer{ExecPath: sc.BrowserPath, Timeout: timeout}, directory, policy)
		case "Page Content":
			s = NewPageContent(site, pages)
		case "Known Issues":
			ddg, err := NewDuckDuckGo(sc.SearchResults)
			if err != nil {
				return nil, fmt.Errorf("known issues search: %w", err)
			}
			s = NewKnownIssues(site, ddg, pages)
		default:
			return nil, fmt.Errorf("unknown data source %q", name)
		}
		if cfg.App.Debug {
			s = Debug{Source: s}
		}
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

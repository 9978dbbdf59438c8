package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/rahul/perfwizard/internal/governance"
)

const resourceTimingJS = `performance.getEntriesByType("resource")
	.filter(e => e.initiatorType === "script")
	.map(e => ({url: e.name, duration: e.duration, transfer_size: e.transferSize}))`

// ScriptTiming is one script resource entry reported by the browser.
type ScriptTiming struct {
	URL          string  `json:"url"`
	Duration     float64 `json:"duration"`
	TransferSize float64 `json:"transfer_size"`
}

// Renderer loads a page in a browser and returns its rendered markup and script timings.
type Renderer interface {
	Render(ctx context.Context, url string) (html string, scripts []ScriptTiming, err error)
}

// ChromeRenderer renders pages with a headless Chrome through chromedp.
type ChromeRenderer struct {
	ExecPath string
	Timeout  time.Duration
}

func (c *ChromeRenderer) Render(ctx context.Context, url string) (string, []ScriptTiming, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	var scripts []ScriptTiming
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(resourceTimingJS, &scripts),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", nil, fmt.Errorf("browser render failed: %w", err)
	}
	return html, scripts, nil
}

// ScriptAttribution lists the scripts on the home page and the component that enqueued each.
type ScriptAttribution struct {
	Base
	SiteURL   string
	Renderer  Renderer
	Policy    governance.PolicyEngine
	directory *Directory
}

func NewScriptAttribution(siteURL string, renderer Renderer, directory *Directory, policy governance.PolicyEngine) *ScriptAttribution {
	return &ScriptAttribution{
		Base: Base{
			name:             "Script Attribution",
			prompt:           "Collecting data about the scripts on the site...",
			description:      "The Script Attribution data source provides a list of scripts on the page. For each script it provides the path (or URL), as well as the slug and name of the plugin that enqueued the script.",
			analysisStrategy: "The Script Attribution data source can be combined with the Lighthouse data to include the plugin name when making recommendations. When a Lighthouse audit identifies a script as a performance issue, the script attribution data can be used to identify the specific plugin that is causing the issue.",
			dataShape:        "The returned data is a JSON object with a list of scripts. Each script object includes the path (or URL) of the script, the slug and name of the plugin that enqueued the script, and when available the load duration in milliseconds and transfer size in bytes measured by the browser.",
		},
		SiteURL:   siteURL,
		Renderer:  renderer,
		Policy:    policy,
		directory: directory,
	}
}

type attributedScript struct {
	Path         string  `json:"path"`
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Duration     float64 `json:"duration_ms,omitempty"`
	TransferSize float64 `json:"transfer_size,omitempty"`
}

func (s *ScriptAttribution) Data(ctx context.Context) (string, error) {
	if s.Policy != nil {
		res, err := s.Policy.Evaluate(ctx, governance.Request{URL: s.SiteURL})
		if err != nil {
			return "", err
		}
		if !res.Allowed() {
			return "", fmt.Errorf("%w: %s", ErrDenied, res.Reason)
		}
	}

	html, timings, err := s.Renderer.Render(ctx, s.SiteURL)
	if err != nil {
		return "", err
	}
	srcs, err := ScriptURLs([]byte(html))
	if err != nil {
		return "", err
	}

	byURL := make(map[string]*attributedScript)
	var order []string
	add := func(path string) *attributedScript {
		path = absoluteURL(s.SiteURL, path)
		if sc, ok := byURL[path]; ok {
			return sc
		}
		attr := Attribute(s.SiteURL, path)
		sc := &attributedScript{Path: path, Slug: attr.Slug, Name: attr.Name, Kind: attr.Kind}
		if sc.Name == "" && s.directory != nil {
			sc.Name = s.directory.Name(ctx, attr.Kind, attr.Slug)
		}
		byURL[path] = sc
		order = append(order, path)
		return sc
	}

	for _, src := range srcs {
		add(src)
	}
	for _, t := range timings {
		sc := add(t.URL)
		sc.Duration = t.Duration
		sc.TransferSize = t.TransferSize
	}

	scripts := make([]attributedScript, 0, len(order))
	for _, path := range order {
		scripts = append(scripts, *byURL[path])
	}
	sort.SliceStable(scripts, func(i, j int) bool { return scripts[i].Duration > scripts[j].Duration })

	data, err := json.Marshal(map[string]any{"scripts": scripts})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

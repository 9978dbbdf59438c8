package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher runs a web search query.
type Searcher interface {
	Call(ctx context.Context, query string) (string, error)
}

func NewDuckDuckGo(maxResults int) (Searcher, error) {
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return ddg, nil
}

// KnownIssues searches the web for reported performance problems with the detected plugins and theme.
type KnownIssues struct {
	Base
	SiteURL  string
	Searcher Searcher
	// MaxQueries caps the number of components searched.
	MaxQueries int
	fetcher    *Fetcher
}

func NewKnownIssues(siteURL string, searcher Searcher, fetcher *Fetcher) *KnownIssues {
	return &KnownIssues{
		Base: Base{
			name:             "Known Issues",
			prompt:           "Searching for known performance issues with the plugins and theme in use...",
			description:      "The Known Issues data source provides web search results about performance problems reported for the plugins and theme detected on the site.",
			analysisStrategy: "Use the search results to confirm or rule out suspicions from earlier steps. Only rely on results that clearly refer to the same plugin or theme, and mention the source when a recommendation depends on it.",
			dataShape:        "Plain text with one section per plugin or theme. Each section starts with the search query and lists the search results with title, description and URL.",
		},
		SiteURL:    siteURL,
		Searcher:   searcher,
		MaxQueries: 6,
		fetcher:    fetcher,
	}
}

func (k *KnownIssues) Data(ctx context.Context) (string, error) {
	home, err := k.fetcher.Get(ctx, k.SiteURL)
	if err != nil {
		return "", err
	}
	assets, err := AssetURLs(home)
	if err != nil {
		return "", err
	}
	plugins, themes := DetectComponents(assets)

	var queries []string
	for _, slug := range themes {
		queries = append(queries, fmt.Sprintf("WordPress %s theme slow performance issue", slug))
	}
	for _, slug := range plugins {
		queries = append(queries, fmt.Sprintf("WordPress %s plugin slow performance issue", slug))
	}
	if len(queries) == 0 {
		return "", nil
	}
	if k.MaxQueries > 0 && len(queries) > k.MaxQueries {
		queries = queries[:k.MaxQueries]
	}

	var sb strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&sb, "## %s\n", q)
		res, err := k.Searcher.Call(ctx, q)
		if err != nil {
			fmt.Fprintf(&sb, "search failed: %v\n\n", err)
			continue
		}
		sb.WriteString(strings.TrimSpace(res))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const DefaultPageSpeedURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

var imageBlob = regexp.MustCompile(`(data:image/[^"]*)`)

// Lighthouse collects PageSpeed Insights reports for the site.
type Lighthouse struct {
	Base
	SiteURL    string
	APIURL     string
	APIKey     string
	Strategies []string
	fetcher    *Fetcher
}

func NewLighthouse(siteURL, apiURL, apiKey string, fetcher *Fetcher) *Lighthouse {
	if apiURL == "" {
		apiURL = DefaultPageSpeedURL
	}
	return &Lighthouse{
		Base: Base{
			name:        "Lighthouse",
			prompt:      "Gathering Lighthouse data for the site, this may take a moment.",
			description: "Lighthouse is an open-source, automated tool for improving the quality of web pages, including performance data. This page describes how Lighthouse weighs its performance scores: https://developer.chrome.com/docs/lighthouse/performance/performance-scoring.",
			analysisStrategy: "The data returned against the website is the performance category described here: https://developers.google.com/speed/docs/insights/v5/reference/pagespeedapi/runpagespeed#response. " +
				"The Lighthouse audits can indicate top opportunities for performance and provide an overall guide to making improvements. " +
				"The site you are analyzing is a WordPress site, so look for common pitfalls and issues that affect WordPress sites. " +
				"Assets served from WordPress plugins will include the plugin slug in their path (typically /wp-content/plugins/{slug}/path...), this information can be useful when evaluating WordPress plugins in a later step. " +
				"Data will include mobile and desktop reports - compare these to note any differences that could be worth addressing. " +
				"When sites have Real User Metrics available in the CrUX dataset, the API will return those as well - in this case compare the RUM metrics with the Lab metrics to discern anything noteworthy to highlight to the user.",
			dataShape: "The results are a JSON object keyed by strategy (\"mobile\" and \"desktop\"). Each value includes the `lighthouseResult` object which is a Lighthouse Results Object (LHR), documented here: https://github.com/GoogleChrome/lighthouse/blob/main/docs/understanding-results.md. " +
				"The object structure for the audits is described here: https://github.com/GoogleChrome/lighthouse/blob/main/docs/understanding-results.md#audits. " +
				"The audits themselves are open source audits run against the page and available for review here: https://github.com/GoogleChrome/lighthouse/tree/main/core/audits.",
		},
		SiteURL:    siteURL,
		APIURL:     apiURL,
		APIKey:     apiKey,
		Strategies: []string{"mobile", "desktop"},
		fetcher:    fetcher,
	}
}

func (l *Lighthouse) requestURL(strategy string) string {
	q := url.Values{}
	q.Set("url", l.SiteURL)
	q.Set("category", "performance")
	q.Set("strategy", strategy)
	if l.APIKey != "" {
		q.Set("key", l.APIKey)
	}
	return l.APIURL + "?" + q.Encode()
}

func (l *Lighthouse) Data(ctx context.Context) (string, error) {
	reports := make([][]byte, len(l.Strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range l.Strategies {
		g.Go(func() error {
			body, err := l.fetcher.Get(gctx, l.requestURL(strategy))
			if err != nil {
				return fmt.Errorf("lighthouse %s: %w", strategy, err)
			}
			reports[i] = StripImageData(body)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	out := make(map[string]json.RawMessage, len(reports))
	for i, strategy := range l.Strategies {
		if !json.Valid(reports[i]) {
			quoted, _ := json.Marshal(string(reports[i]))
			out[strategy] = quoted
			continue
		}
		out[strategy] = reports[i]
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StripImageData replaces inline data:image blobs with a placeholder.
func StripImageData(body []byte) []byte {
	return imageBlob.ReplaceAll(body, []byte("BINARY_DATA_REMOVED"))
}

// LighthouseSummary holds the scores extracted from one report.
type LighthouseSummary struct {
	Categories map[string]float64
	Audits     map[string]AuditResult
}

type AuditResult struct {
	Title        string
	Score        *float64
	NumericValue *float64
	DisplayValue string
}

type lighthouseReport struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]struct {
			Title        string   `json:"title"`
			Score        *float64 `json:"score"`
			NumericValue *float64 `json:"numericValue"`
			DisplayValue string   `json:"displayValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// ParseLighthouse extracts per-strategy summaries from a payload produced by Data.
func ParseLighthouse(data string) (map[string]LighthouseSummary, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("invalid lighthouse payload: %w", err)
	}

	out := make(map[string]LighthouseSummary, len(raw))
	for strategy, msg := range raw {
		var rep lighthouseReport
		if err := json.Unmarshal(msg, &rep); err != nil {
			continue
		}
		sum := LighthouseSummary{
			Categories: make(map[string]float64),
			Audits:     make(map[string]AuditResult),
		}
		for id, c := range rep.LighthouseResult.Categories {
			if c.Score != nil {
				sum.Categories[id] = *c.Score
			}
		}
		for id, a := range rep.LighthouseResult.Audits {
			sum.Audits[id] = AuditResult{
				Title:        a.Title,
				Score:        a.Score,
				NumericValue: a.NumericValue,
				DisplayValue: a.DisplayValue,
			}
		}
		out[strategy] = sum
	}
	return out, nil
}

// Compare reports the category, audit score and metric changes between two payloads.
func (l *Lighthouse) Compare(before, after string) (string, error) {
	prev, err := ParseLighthouse(before)
	if err != nil {
		return "", err
	}
	next, err := ParseLighthouse(after)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, strategy := range l.Strategies {
		p, okP := prev[strategy]
		n, okN := next[strategy]
		if !okP || !okN {
			fmt.Fprintf(&sb, "## %s\nNo %s report to compare.\n\n", strategy, strategy)
			continue
		}
		fmt.Fprintf(&sb, "## %s\n", strategy)

		for _, id := range sortedKeys(n.Categories) {
			old, ok := p.Categories[id]
			if !ok {
				fmt.Fprintf(&sb, "- %s score: %s (new)\n", id, pct(n.Categories[id]))
				continue
			}
			fmt.Fprintf(&sb, "- %s score: %s -> %s (%s)\n", id, pct(old), pct(n.Categories[id]), delta(old, n.Categories[id]))
		}

		changed := 0
		for _, id := range sortedKeys(n.Audits) {
			a := n.Audits[id]
			b, ok := p.Audits[id]
			if !ok {
				continue
			}
			switch {
			case a.Score != nil && b.Score != nil && *a.Score != *b.Score:
				fmt.Fprintf(&sb, "- audit %s: %s -> %s", id, pct(*b.Score), pct(*a.Score))
			case a.NumericValue != nil && b.NumericValue != nil && math.Abs(*a.NumericValue-*b.NumericValue) >= 1:
				fmt.Fprintf(&sb, "- metric %s: %.0f -> %.0f", id, *b.NumericValue, *a.NumericValue)
			default:
				continue
			}
			if a.DisplayValue != "" {
				fmt.Fprintf(&sb, " [%s]", a.DisplayValue)
			}
			sb.WriteString("\n")
			changed++
		}
		if changed == 0 {
			sb.WriteString("- no audit changes\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func pct(score float64) string {
	return fmt.Sprintf("%.0f", score*100)
}

func delta(old, cur float64) string {
	d := math.Round((cur - old) * 100)
	if d == 0 {
		return "0"
	}
	if d > 0 {
		return fmt.Sprintf("+%.0f", d)
	}
	return fmt.Sprintf("%.0f", d)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

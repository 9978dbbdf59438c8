package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxContentChars = 50000

// PageContent extracts the readable text of the home page.
type PageContent struct {
	Base
	SiteURL string
	fetcher *Fetcher
}

func NewPageContent(siteURL string, fetcher *Fetcher) *PageContent {
	return &PageContent{
		Base: Base{
			name:             "Page Content",
			prompt:           "Extracting the main content of the home page...",
			description:      "The Page Content data source provides the readable text of the home page with markup removed, alongside the size of the raw HTML document.",
			analysisStrategy: "Compare the amount of readable content with the size of the HTML document. A large document with little content points at markup bloat from page builders, inline styles or inline scripts. Use the title and excerpt to understand what kind of page is being served.",
			dataShape:        "Plain text with TITLE, EXCERPT, HTML_BYTES and TEXT_BYTES header lines followed by a CONTENT section.",
		},
		SiteURL: siteURL,
		fetcher: fetcher,
	}
}

func (p *PageContent) Data(ctx context.Context) (string, error) {
	body, err := p.fetcher.Get(ctx, p.SiteURL)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(p.SiteURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %w", err)
	}

	sanitized := bluemonday.StrictPolicy().Sanitize(article.TextContent)
	sanitized = strings.TrimSpace(sanitized)

	var sb strings.Builder
	fmt.Fprintf(&sb, "TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		fmt.Fprintf(&sb, "EXCERPT: %s\n", article.Excerpt)
	}
	fmt.Fprintf(&sb, "HTML_BYTES: %d\n", len(body))
	fmt.Fprintf(&sb, "TEXT_BYTES: %d\n", len(sanitized))
	sb.WriteString("\n-- CONTENT --\n")

	sb.WriteString(truncateText(sanitized, maxContentChars))
	return sb.String(), nil
}

// truncateText cuts s to at most limit bytes on a rune boundary.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (content truncated) ..."
}

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// HTML collects the markup of the home page, a recent post and an archive page.
type HTML struct {
	Base
	SiteURL string
	// RecentPost and Archive override page discovery when set.
	RecentPost string
	Archive    string
	fetcher    *Fetcher
}

func NewHTML(siteURL, recentPost, archive string, fetcher *Fetcher) *HTML {
	return &HTML{
		Base: Base{
			name:        "HTML",
			prompt:      "Collecting HTML source for the site, attempting to grab the home page, a recent post and an archive page.",
			description: "The HTML data source provides the HTML of the website as retrieved from the front end by an unauthenticated user.",
			analysisStrategy: "The data returned is JSON encoded and includes an object with three keys: \"home_page\", \"most_recent_post\" and \"archive_page\". Each key's value contains the HTML of the respective page. " +
				"The HTML data can be analyzed by looking for common performance issues in the HTML. Particular attention can be paid to issues identified in the Lighthouse audit at the beginning of the analysis. " +
				"Files loaded from a WordPress plugin or theme can typically be identified by their path: /wp-content/plugins/<plugin-slug> or /wp-content/themes/<theme-slug>. " +
				"This analysis is for the website so scripts from other domains (so called \"third party scripts\") should be reviewed individually for their potential performance impact. " +
				"Also, consider the Lighthouse report script details from the previous step when considering which scripts are having the most impact.",
		},
		SiteURL:    siteURL,
		RecentPost: recentPost,
		Archive:    archive,
		fetcher:    fetcher,
	}
}

type htmlPages struct {
	HomePage       string `json:"home_page"`
	MostRecentPost string `json:"most_recent_post"`
	ArchivePage    string `json:"archive_page"`
}

func (h *HTML) Data(ctx context.Context) (string, error) {
	home, err := h.fetcher.Get(ctx, h.SiteURL)
	if err != nil {
		return "", err
	}

	post, archive := h.RecentPost, h.Archive
	if post == "" || archive == "" {
		foundPost, foundArchive := DiscoverPages(h.SiteURL, home)
		if post == "" {
			post = foundPost
		}
		if archive == "" {
			archive = foundArchive
		}
	}

	pages := htmlPages{HomePage: string(home)}

	// A missing post or archive page leaves its key empty rather than failing the step.
	g, gctx := errgroup.WithContext(ctx)
	if post != "" {
		g.Go(func() error {
			if body, err := h.fetcher.Get(gctx, post); err == nil {
				pages.MostRecentPost = string(body)
			}
			return nil
		})
	}
	if archive != "" {
		g.Go(func() error {
			if body, err := h.fetcher.Get(gctx, archive); err == nil {
				pages.ArchivePage = string(body)
			}
			return nil
		})
	}
	g.Wait()

	data, err := json.Marshal(pages)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DiscoverPages finds a post permalink and an archive link in the home page markup.
func DiscoverPages(siteURL string, home []byte) (post, archive string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(home))
	if err != nil {
		return "", ""
	}
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", ""
	}

	resolve := func(href string) string {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return ""
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			return ""
		}
		return abs.String()
	}

	for _, sel := range []string{"a[rel=bookmark]", "article a[href]", ".entry-title a[href]", ".wp-block-post-title a[href]"} {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			post = resolve(s.AttrOr("href", ""))
			return post == ""
		})
		if post != "" {
			break
		}
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		rel := s.AttrOr("rel", "")
		if strings.Contains(href, "/category/") || strings.Contains(rel, "category") || strings.Contains(href, "/page/2") {
			archive = resolve(href)
		}
		return archive == ""
	})
	return post, archive
}

package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultPluginAPIURL = "https://api.wordpress.org/plugins/info/1.2/"
	DefaultThemeAPIURL  = "https://api.wordpress.org/themes/info/1.2/"

	// DirectoryTTL is how long a directory record is reused before it is fetched again.
	DirectoryTTL = 24 * time.Hour
)

var assetSlug = regexp.MustCompile(`/wp-content/(plugins|themes)/([^/?#]+)/`)

// Attribution names the WordPress component an asset path belongs to.
type Attribution struct {
	Kind string `json:"kind"` // plugin, theme, core or third_party
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Attribute maps an asset URL to the plugin, theme or core component that serves it.
func Attribute(siteURL, asset string) Attribution {
	if m := assetSlug.FindStringSubmatch(asset); m != nil {
		kind := "plugin"
		if m[1] == "themes" {
			kind = "theme"
		}
		return Attribution{Kind: kind, Slug: m[2]}
	}
	if strings.Contains(asset, "/wp-includes/") || strings.Contains(asset, "/wp-admin/") {
		return Attribution{Kind: "core", Slug: "core", Name: "Core"}
	}
	if isThirdParty(siteURL, asset) {
		return Attribution{Kind: "third_party", Slug: hostOf(asset), Name: hostOf(asset)}
	}
	return Attribution{Kind: "core", Slug: "core", Name: "Core"}
}

func isThirdParty(siteURL, asset string) bool {
	host := hostOf(asset)
	return host != "" && host != hostOf(siteURL)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func absoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// AssetURLs returns the script, stylesheet and image URLs referenced by an HTML document.
func AssetURLs(html []byte) ([]string, error) {
	return collectURLs(html, true)
}

// ScriptURLs returns the external script URLs referenced by an HTML document.
func ScriptURLs(html []byte) ([]string, error) {
	return collectURLs(html, false)
}

func collectURLs(html []byte, all bool) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	if !all {
		return out, nil
	}
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})
	return out, nil
}

// DetectComponents returns the plugin and theme slugs referenced by asset URLs.
func DetectComponents(assets []string) (plugins, themes []string) {
	p := make(map[string]bool)
	t := make(map[string]bool)
	for _, a := range assets {
		m := assetSlug.FindStringSubmatch(a)
		if m == nil {
			continue
		}
		if m[1] == "plugins" {
			p[m[2]] = true
		} else {
			t[m[2]] = true
		}
	}
	return sortedKeys(p), sortedKeys(t)
}

// Directory looks up plugin and theme metadata from the wordpress.org API.
// It is safe for concurrent use and meant to outlive the plans that share it.
type Directory struct {
	PluginURL string
	ThemeURL  string
	fetcher   *Fetcher
	cache     *lru.Cache[string, directoryEntry]
	now       func() time.Time
}

// Entries expire on read, so the cache needs no janitor goroutine.
type directoryEntry struct {
	info    json.RawMessage
	fetched time.Time
}

func NewDirectory(pluginURL, themeURL string, fetcher *Fetcher) *Directory {
	if pluginURL == "" {
		pluginURL = DefaultPluginAPIURL
	}
	if themeURL == "" {
		themeURL = DefaultThemeAPIURL
	}
	cache, _ := lru.New[string, directoryEntry](256)
	return &Directory{
		PluginURL: pluginURL,
		ThemeURL:  themeURL,
		fetcher:   fetcher,
		cache:     cache,
		now:       time.Now,
	}
}

// Plugin returns the plugin_information record for slug, or nil if unavailable.
func (d *Directory) Plugin(ctx context.Context, slug string) json.RawMessage {
	return d.lookup(ctx, "plugin", d.PluginURL, "plugin_information", slug)
}

// Theme returns the theme_information record for slug, or nil if unavailable.
func (d *Directory) Theme(ctx context.Context, slug string) json.RawMessage {
	return d.lookup(ctx, "theme", d.ThemeURL, "theme_information", slug)
}

// Name returns the display name of a plugin or theme, falling back to its slug.
func (d *Directory) Name(ctx context.Context, kind, slug string) string {
	var info json.RawMessage
	switch kind {
	case "plugin":
		info = d.Plugin(ctx, slug)
	case "theme":
		info = d.Theme(ctx, slug)
	default:
		return slug
	}
	return componentName(info, slug)
}

func (d *Directory) lookup(ctx context.Context, kind, base, action, slug string) json.RawMessage {
	key := kind + ":" + slug
	if e, ok := d.cache.Get(key); ok {
		if d.now().Sub(e.fetched) < DirectoryTTL {
			return e.info
		}
		d.cache.Remove(key)
	}

	q := url.Values{}
	q.Set("action", action)
	q.Set("request[slug]", slug)
	body, err := d.fetcher.Get(ctx, base+"?"+q.Encode())
	if err != nil || !json.Valid(body) {
		return nil
	}
	// The API answers unknown slugs with {"error": "..."}.
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return nil
	}

	info := json.RawMessage(trimPluginInfo(body))
	d.cache.Add(key, directoryEntry{info: info, fetched: d.now()})
	return info
}

// trimPluginInfo drops the bulky sections of a directory record.
func trimPluginInfo(body []byte) []byte {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return body
	}
	for _, k := range []string{"sections", "screenshots", "banners", "icons", "reviews", "contributors"} {
		delete(m, k)
	}
	if v, ok := m["versions"].(map[string]any); ok && len(v) > 10 {
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		trimmed := make(map[string]any)
		for _, k := range keys[len(keys)-10:] {
			trimmed[k] = v[k]
		}
		m["versions"] = trimmed
	}
	out, err := json.Marshal(m)
	if err != nil {
		return body
	}
	return out
}

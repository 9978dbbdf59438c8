package sources

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ThemesAndPlugins lists the theme and plugins the site's front end exposes, with directory metadata.
type ThemesAndPlugins struct {
	Base
	SiteURL   string
	fetcher   *Fetcher
	directory *Directory
}

func NewThemesAndPlugins(siteURL string, fetcher *Fetcher, directory *Directory) *ThemesAndPlugins {
	return &ThemesAndPlugins{
		Base: Base{
			name:             "Themes and Plugins",
			prompt:           "Collecting data about the themes and plugins used on the site...",
			description:      "The Themes and Plugins data source provides a list of the theme and plugins detected on the website, as well as meta data about those plugins.",
			analysisStrategy: "The Themes and Plugins data source can be analyzed by looking for common performance issues for the listed themes and plugins and combined with the HTML and Lighthouse data to make recommendations about the installed theme and plugins.",
			dataShape: "The returned data is a JSON object with \"active_themes\" and \"active_plugins\" lists. Each entry includes the slug, the asset paths it was detected from and a field named 'api_data' which contains the meta data from the wordpress.org plugin or theme API. " +
				"This data includes a 'download_link' field which is a link to a zip archive of the complete source code, and a 'versions' field with links to recent versions so you can refer to the version installed on the site.",
		},
		SiteURL:   siteURL,
		fetcher:   fetcher,
		directory: directory,
	}
}

type component struct {
	Slug    string          `json:"slug"`
	Name    string          `json:"name,omitempty"`
	Assets  []string        `json:"assets"`
	APIData json.RawMessage `json:"api_data,omitempty"`
}

type componentList struct {
	ActiveThemes  []component `json:"active_themes"`
	ActivePlugins []component `json:"active_plugins"`
}

func (t *ThemesAndPlugins) Data(ctx context.Context) (string, error) {
	home, err := t.fetcher.Get(ctx, t.SiteURL)
	if err != nil {
		return "", err
	}
	assets, err := AssetURLs(home)
	if err != nil {
		return "", err
	}

	byKind := map[string]map[string][]string{"plugin": {}, "theme": {}}
	for _, a := range assets {
		attr := Attribute(t.SiteURL, a)
		if group, ok := byKind[attr.Kind]; ok {
			group[attr.Slug] = append(group[attr.Slug], a)
		}
	}

	var mu sync.Mutex
	list := componentList{ActiveThemes: []component{}, ActivePlugins: []component{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for kind, slugs := range byKind {
		for _, slug := range sortedKeys(slugs) {
			g.Go(func() error {
				c := component{Slug: slug, Assets: slugs[slug]}
				if kind == "plugin" {
					c.APIData = t.directory.Plugin(gctx, slug)
				} else {
					c.APIData = t.directory.Theme(gctx, slug)
				}
				c.Name = componentName(c.APIData, slug)

				mu.Lock()
				defer mu.Unlock()
				if kind == "plugin" {
					list.ActivePlugins = append(list.ActivePlugins, c)
				} else {
					list.ActiveThemes = append(list.ActiveThemes, c)
				}
				return nil
			})
		}
	}
	g.Wait()

	sortComponents(list.ActivePlugins)
	sortComponents(list.ActiveThemes)

	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func componentName(info json.RawMessage, slug string) string {
	var meta struct {
		Name string `json:"name"`
	}
	if len(info) == 0 || json.Unmarshal(info, &meta) != nil || meta.Name == "" {
		return slug
	}
	return meta.Name
}

func sortComponents(cs []component) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Slug < cs[j].Slug })
}

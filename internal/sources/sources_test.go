package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/perfwizard/internal/governance"
)

const homePage = `<!doctype html><html><head><title>Demo</title>
<link rel="stylesheet" href="/wp-content/themes/twentytwentyfour/style.css">
<script src="/wp-includes/js/jquery/jquery.min.js"></script>
<script src="/wp-content/plugins/slider-pro/js/slider.js?ver=1.2"></script>
<script src="https://cdn.tracker.example/t.js"></script>
</head><body>
<article><h2 class="entry-title"><a rel="bookmark" href="/2024/05/hello-world/">Hello</a></h2>
<p>Some words about performance on the home page of this demo site.</p></article>
<a href="/category/news/" rel="category tag">News</a>
<img src="/wp-content/plugins/gallery-plus/img/x.png">
</body></html>`

func newTestFetcher() *Fetcher {
	return NewFetcher(5*time.Second, 1<<20, nil)
}

func TestBase_UserPromptFallsBackToPrompt(t *testing.T) {
	s := NewStatic("Lighthouse", "Gathering data", "")
	assert.Equal(t, "Gathering data", s.UserPrompt())

	s.userPrompt = "Please wait"
	assert.Equal(t, "Please wait", s.UserPrompt())
}

func TestRegistry_Order(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewStatic("B", "", "")))
	require.NoError(t, reg.Register(NewStatic("A", "", "")))
	assert.Error(t, reg.Register(NewStatic("A", "", "")))

	var names []string
	for _, s := range reg.Sources() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"B", "A"}, names)
}

func TestDebug_ReturnsPlaceholder(t *testing.T) {
	d := Debug{Source: NewStatic("HTML", "Collecting", "<html>")}
	data, err := d.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "{debug}", data)
	assert.Equal(t, "HTML", d.Name())
}

func TestFetcher_PolicyDenied(t *testing.T) {
	policy := governance.NewDefaultPolicyEngine()
	require.NoError(t, policy.DenyURL(`^http://127\.0\.0\.1`))
	f := NewFetcher(time.Second, 0, policy)

	_, err := f.Get(context.Background(), "http://127.0.0.1:1/")
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestFetcher_LimitsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Contains(t, r.Header.Get("User-Agent"), "PerformanceWizard")
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, 10, nil)
	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 10)

	_, err = f.Get(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func psiReport(perf float64, lcpScore float64, lcp float64) string {
	return fmt.Sprintf(`{"lighthouseResult":{"categories":{"performance":{"score":%v}},
"audits":{"largest-contentful-paint":{"title":"LCP","score":%v,"numericValue":%v,"displayValue":"%.1f s"},
"final-screenshot":{"title":"Screenshot","details":{"data":"data:image/jpeg;base64,AAAA"}}}}}`, perf, lcpScore, lcp, lcp/1000)
}

func TestLighthouse_FetchesBothStrategiesAndStripsBlobs(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "https://example.com", r.URL.Query().Get("url"))
		assert.Equal(t, "performance", r.URL.Query().Get("category"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		if r.URL.Query().Get("strategy") == "mobile" {
			fmt.Fprint(w, psiReport(0.5, 0.4, 4200))
			return
		}
		fmt.Fprint(w, psiReport(0.9, 0.95, 1200))
	}))
	defer srv.Close()

	l := NewLighthouse("https://example.com", srv.URL, "secret", newTestFetcher())
	data, err := l.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.NotContains(t, data, "data:image")
	assert.Contains(t, data, "BINARY_DATA_REMOVED")

	summaries, err := ParseLighthouse(data)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, summaries["mobile"].Categories["performance"], 0.001)
	assert.InDelta(t, 0.9, summaries["desktop"].Categories["performance"], 0.001)
}

func TestLighthouse_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewLighthouse("https://example.com", srv.URL, "", newTestFetcher())
	_, err := l.Data(context.Background())
	assert.Error(t, err)
}

func TestLighthouse_Compare(t *testing.T) {
	l := NewLighthouse("https://example.com", "", "", newTestFetcher())
	before := fmt.Sprintf(`{"mobile":%s,"desktop":%s}`, psiReport(0.5, 0.4, 4200), psiReport(0.9, 0.9, 1200))
	after := fmt.Sprintf(`{"mobile":%s,"desktop":%s}`, psiReport(0.75, 0.8, 2500), psiReport(0.9, 0.9, 1200))

	diff, err := l.Compare(before, after)
	require.NoError(t, err)
	assert.Contains(t, diff, "## mobile")
	assert.Contains(t, diff, "performance score: 50 -> 75 (+25)")
	assert.Contains(t, diff, "audit largest-contentful-paint: 40 -> 80")
	assert.Contains(t, diff, "performance score: 90 -> 90 (0)")
	assert.Contains(t, diff, "no audit changes")

	_, err = l.Compare("not json", after)
	assert.Error(t, err)
}

func TestDiscoverPages(t *testing.T) {
	post, archive := DiscoverPages("https://example.com/", []byte(homePage))
	assert.Equal(t, "https://example.com/2024/05/hello-world/", post)
	assert.Equal(t, "https://example.com/category/news/", archive)
}

func TestHTML_CollectsThreePages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, homePage)
		case "/2024/05/hello-world/":
			fmt.Fprint(w, "<html>post</html>")
		case "/category/news/":
			fmt.Fprint(w, "<html>archive</html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHTML(srv.URL+"/", "", "", newTestFetcher())
	data, err := h.Data(context.Background())
	require.NoError(t, err)

	var pages map[string]string
	require.NoError(t, json.Unmarshal([]byte(data), &pages))
	assert.Contains(t, pages["home_page"], "Hello")
	assert.Equal(t, "<html>post</html>", pages["most_recent_post"])
	assert.Equal(t, "<html>archive</html>", pages["archive_page"])
}

func TestAttribute(t *testing.T) {
	site := "https://example.com"
	tests := []struct {
		asset string
		want  Attribution
	}{
		{"/wp-content/plugins/slider-pro/js/slider.js", Attribution{Kind: "plugin", Slug: "slider-pro"}},
		{"https://example.com/wp-content/themes/astra/main.js", Attribution{Kind: "theme", Slug: "astra"}},
		{"/wp-includes/js/jquery/jquery.min.js", Attribution{Kind: "core", Slug: "core", Name: "Core"}},
		{"https://cdn.tracker.example/t.js", Attribution{Kind: "third_party", Slug: "cdn.tracker.example", Name: "cdn.tracker.example"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Attribute(site, tt.asset), tt.asset)
	}
}

func TestDetectComponents(t *testing.T) {
	assets, err := AssetURLs([]byte(homePage))
	require.NoError(t, err)
	plugins, themes := DetectComponents(assets)
	assert.Equal(t, []string{"gallery-plus", "slider-pro"}, plugins)
	assert.Equal(t, []string{"twentytwentyfour"}, themes)

	scripts, err := ScriptURLs([]byte(homePage))
	require.NoError(t, err)
	assert.Len(t, scripts, 3)
}

func wordpressAPI(t *testing.T, hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		slug := r.URL.Query().Get("request[slug]")
		switch slug {
		case "slider-pro":
			fmt.Fprint(w, `{"name":"Slider Pro","slug":"slider-pro","version":"1.2","download_link":"https://downloads.example/slider-pro.zip","sections":{"description":"long"}}`)
		case "twentytwentyfour":
			fmt.Fprint(w, `{"name":"Twenty Twenty-Four","slug":"twentytwentyfour"}`)
		default:
			fmt.Fprint(w, `{"error":"Plugin not found."}`)
		}
	}))
}

func TestDirectory_CachesLookups(t *testing.T) {
	var hits atomic.Int32
	api := wordpressAPI(t, &hits)
	defer api.Close()

	d := NewDirectory(api.URL, api.URL, newTestFetcher())
	ctx := context.Background()

	info := d.Plugin(ctx, "slider-pro")
	require.NotNil(t, info)
	assert.NotContains(t, string(info), "sections")
	d.Plugin(ctx, "slider-pro")
	assert.Equal(t, int32(1), hits.Load())

	assert.Nil(t, d.Plugin(ctx, "unknown"))
	assert.Equal(t, "Slider Pro", d.Name(ctx, "plugin", "slider-pro"))
	assert.Equal(t, "unknown", d.Name(ctx, "plugin", "unknown"))
	assert.Equal(t, "core", d.Name(ctx, "core", "core"))
}

func TestDirectory_ExpiresAfterTTL(t *testing.T) {
	var hits atomic.Int32
	api := wordpressAPI(t, &hits)
	defer api.Close()

	now := time.Now()
	d := NewDirectory(api.URL, api.URL, newTestFetcher())
	d.now = func() time.Time { return now }
	ctx := context.Background()

	d.Plugin(ctx, "slider-pro")
	now = now.Add(DirectoryTTL - time.Minute)
	d.Plugin(ctx, "slider-pro")
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(2 * time.Minute)
	require.NotNil(t, d.Plugin(ctx, "slider-pro"))
	assert.Equal(t, int32(2), hits.Load())
}

func TestThemesAndPlugins_Data(t *testing.T) {
	var hits atomic.Int32
	api := wordpressAPI(t, &hits)
	defer api.Close()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, homePage)
	}))
	defer site.Close()

	f := newTestFetcher()
	tp := NewThemesAndPlugins(site.URL, f, NewDirectory(api.URL, api.URL, f))
	data, err := tp.Data(context.Background())
	require.NoError(t, err)

	var list componentList
	require.NoError(t, json.Unmarshal([]byte(data), &list))
	require.Len(t, list.ActivePlugins, 2)
	assert.Equal(t, "gallery-plus", list.ActivePlugins[0].Slug)
	assert.Equal(t, "Slider Pro", list.ActivePlugins[1].Name)
	assert.Contains(t, string(list.ActivePlugins[1].APIData), "download_link")
	require.Len(t, list.ActiveThemes, 1)
	assert.Equal(t, "Twenty Twenty-Four", list.ActiveThemes[0].Name)
}

type fakeRenderer struct {
	html    string
	scripts []ScriptTiming
	err     error
}

func (f fakeRenderer) Render(ctx context.Context, url string) (string, []ScriptTiming, error) {
	return f.html, f.scripts, f.err
}

func TestScriptAttribution_Data(t *testing.T) {
	renderer := fakeRenderer{
		html: homePage,
		scripts: []ScriptTiming{
			{URL: "https://example.com/wp-content/plugins/slider-pro/js/slider.js?ver=1.2", Duration: 310, TransferSize: 52000},
			{URL: "https://example.com/wp-content/plugins/lazy-embed/embed.js", Duration: 40},
		},
	}
	s := NewScriptAttribution("https://example.com/", renderer, nil, nil)
	data, err := s.Data(context.Background())
	require.NoError(t, err)

	var out struct {
		Scripts []attributedScript `json:"scripts"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &out))
	require.Len(t, out.Scripts, 4)
	assert.Equal(t, "slider-pro", out.Scripts[0].Slug)
	assert.InDelta(t, 310, out.Scripts[0].Duration, 0.1)
	assert.Equal(t, "lazy-embed", out.Scripts[1].Slug)

	kinds := map[string]bool{}
	for _, sc := range out.Scripts {
		kinds[sc.Kind] = true
	}
	assert.True(t, kinds["core"])
	assert.True(t, kinds["third_party"])
}

func TestScriptAttribution_RenderError(t *testing.T) {
	s := NewScriptAttribution("https://example.com/", fakeRenderer{err: errors.New("no chrome")}, nil, nil)
	_, err := s.Data(context.Background())
	assert.Error(t, err)
}

func TestTruncateText_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))

	// "é" is two bytes, so a limit of 5 falls inside the third rune.
	out := truncateText(strings.Repeat("é", 10), 5)
	head, _, ok := strings.Cut(out, "\n")
	require.True(t, ok)
	assert.Equal(t, "éé", head)
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "(content truncated)")
}

func TestPageContent_Data(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, homePage)
	}))
	defer site.Close()

	p := NewPageContent(site.URL, newTestFetcher())
	data, err := p.Data(context.Background())
	require.NoError(t, err)
	assert.Contains(t, data, "HTML_BYTES: ")
	assert.Contains(t, data, "-- CONTENT --")
	assert.NotContains(t, data, "<script")
}

type fakeSearcher struct {
	queries []string
}

func (f *fakeSearcher) Call(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return "Title: result for " + query, nil
}

func TestKnownIssues_SearchesDetectedComponents(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, homePage)
	}))
	defer site.Close()

	searcher := &fakeSearcher{}
	k := NewKnownIssues(site.URL, searcher, newTestFetcher())
	data, err := k.Data(context.Background())
	require.NoError(t, err)

	require.Len(t, searcher.queries, 3)
	assert.Contains(t, searcher.queries[0], "twentytwentyfour theme")
	assert.Contains(t, data, "slider-pro plugin")
}

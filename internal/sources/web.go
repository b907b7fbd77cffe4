package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mozillazg/go-unidecode"

	"reel-go/internal/reel"
)

// WebName is the registry name of the catalog scraping source.
const WebName = "web"

const (
	defaultWebTimeout = 15 * time.Second
	defaultUserAgent  = "reel/1.0 (+https://github.com/reel-go/reel)"
	maxPageSize       = 4 << 20
)

// HTTPStatusError reports a non-2xx catalog response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// WebSource scrapes a movie catalog site. A lookup is two requests: the
// search page, then the detail page of the best result.
//
// Search page: each result is an "a.result" link (or a link inside
// "ul.results li") whose text is the title, with the year in a nested
// ".year" element or a data-year attribute.
//
// Detail page: OpenGraph title and description plus a definition list
// ("dl.info" or "dl.details") of label/value pairs.
type WebSource struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewWebSource creates a catalog source. timeout <= 0 uses the default.
func NewWebSource(baseURL string, timeout time.Duration, userAgent string) *WebSource {
	if timeout <= 0 {
		timeout = defaultWebTimeout
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &WebSource{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (*WebSource) Name() string             { return WebName }
func (*WebSource) RequiredParams() []string { return []string{"title"} }
func (*WebSource) OptionalParams() []string { return []string{"year"} }

// Fetch searches the catalog for params["title"], narrowed by
// params["year"] when present, and parses the detail page.
func (w *WebSource) Fetch(ctx context.Context, params reel.Params) (*reel.MetadataBlock, error) {
	if err := reel.CheckParams(w, params); err != nil {
		return nil, err
	}
	if w.baseURL == "" {
		return nil, fmt.Errorf("web source: sources.web.base_url is not configured")
	}

	title := strings.TrimSpace(reel.FormatValue(params["title"]))
	year := strings.TrimSpace(reel.FormatValue(params["year"]))

	q := url.Values{"q": {title}}
	if year != "" {
		q.Set("year", year)
	}
	searchURL := w.baseURL + "/search?" + q.Encode()
	searchHTML, err := w.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	href, err := findResult(searchHTML, title, year)
	if err != nil {
		return nil, err
	}

	pageURL := resolveURL(searchURL, href)
	pageHTML, err := w.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return parseDetail(pageHTML, pageURL)
}

func (w *WebSource) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
}

type searchResult struct {
	href  string
	title string
	year  string
}

// findResult picks the result whose folded title matches, preferring a
// matching year. Without an exact title match the first result with the
// right year (or simply the first result) is used.
func findResult(html []byte, title, year string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", err
	}

	var results []searchResult
	doc.Find("a.result, ul.results li a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		y := strings.TrimSpace(s.Find(".year").First().Text())
		if y == "" {
			y, _ = s.Attr("data-year")
		}
		t := s.Clone()
		t.Find(".year").Remove()
		results = append(results, searchResult{
			href:  strings.TrimSpace(href),
			title: normSpace(t.Text()),
			year:  strings.Trim(strings.TrimSpace(y), "()"),
		})
	})
	if len(results) == 0 {
		return "", fmt.Errorf("no catalog results for %q: %w", title, reel.ErrNotFound)
	}

	want := foldTitle(title)
	var titleOnly, yearOnly string
	for _, r := range results {
		titleMatch := foldTitle(r.title) == want
		yearMatch := year == "" || r.year == year
		switch {
		case titleMatch && yearMatch:
			return r.href, nil
		case titleMatch && titleOnly == "":
			titleOnly = r.href
		case yearMatch && yearOnly == "":
			yearOnly = r.href
		}
	}
	if titleOnly != "" {
		return titleOnly, nil
	}
	if yearOnly != "" {
		return yearOnly, nil
	}
	return results[0].href, nil
}

func parseDetail(html []byte, pageURL string) (*reel.MetadataBlock, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	block := reel.NewMetadataBlock(nil)
	meta := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return normSpace(v)
			}
		}
		return ""
	}

	title := meta(`meta[property="og:title"]`)
	if title == "" {
		title = normSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		return nil, fmt.Errorf("detail page %s has no title", pageURL)
	}
	block.Set("title", title)
	if plot := meta(`meta[property="og:description"]`, `meta[name="description"]`); plot != "" {
		block.Set("plot", plot)
	}

	doc.Find("dl.info dt, dl.details dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		value := normSpace(dd.Text())
		switch strings.ToLower(strings.TrimSuffix(normSpace(dt.Text()), ":")) {
		case "year", "released", "release date":
			if y := yearRe.FindString(value); y != "" {
				block.Set("year", atoi(y))
			}
		case "genre", "genres":
			var genres []string
			dd.Find("a").Each(func(_ int, a *goquery.Selection) {
				genres = append(genres, normSpace(a.Text()))
			})
			if len(genres) == 0 {
				for _, g := range strings.Split(value, ",") {
					genres = append(genres, strings.TrimSpace(g))
				}
			}
			if genres = normList(genres); len(genres) > 0 {
				block.Set("genre", genres)
			}
		case "director", "directed by":
			block.Set("director", value)
		case "studio", "production company":
			block.Set("studio", value)
		case "runtime", "length", "duration":
			if m := firstInt(value); m > 0 {
				block.Set("runtime", m)
			}
		case "rating", "score":
			if fields := strings.Fields(value); len(fields) > 0 {
				if f, err := strconv.ParseFloat(strings.SplitN(fields[0], "/", 2)[0], 64); err == nil {
					block.Set("rating", f)
				}
			}
		}
	})

	if u := meta(`meta[property="og:url"]`); u != "" {
		block.Set("url", u)
	} else {
		block.Set("url", pageURL)
	}
	return block, nil
}

func resolveURL(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func foldTitle(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func normList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func firstInt(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	n, _ := strconv.Atoi(b.String())
	return n
}

var _ reel.MetadataSource = (*WebSource)(nil)

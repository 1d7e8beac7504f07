package jobboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Selectors maps posting fields onto CSS selectors of a listing page. Row is
// required; the remaining selectors are evaluated inside each row node.
type Selectors struct {
	Row         string `mapstructure:"row"`
	Title       string `mapstructure:"title"`
	Company     string `mapstructure:"company"`
	Location    string `mapstructure:"location"`
	Description string `mapstructure:"description"`
	Link        string `mapstructure:"link"`
	NextPage    string `mapstructure:"next-page"`
}

// HTMLTransport scrapes a job board that only serves server-rendered HTML
// listing pages, such as the regional boards without a public API.
type HTMLTransport struct {
	name       string
	selectors  Selectors
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
	// QueryParam carries the search term, PageParam the 0-based page index.
	QueryParam string
	PageParam  string
}

func NewHTMLTransport(name, baseURL, userAgent string, selectors Selectors) *HTMLTransport {
	return &HTMLTransport{
		name:      name,
		selectors: selectors,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		UserAgent:  userAgent,
		QueryParam: "q",
		PageParam:  "page",
	}
}

func (t *HTMLTransport) Name() string { return t.name }

func (t *HTMLTransport) FetchPage(ctx context.Context, term string, page int) (*Page, error) {
	if strings.TrimSpace(t.selectors.Row) == "" {
		return nil, &FatalError{Detail: "html transport requires a row selector"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL, nil)
	if err != nil {
		return nil, &FatalError{Detail: fmt.Sprintf("building request: %v", err)}
	}

	q := url.Values{}
	q.Set(t.QueryParam, term)
	q.Set(t.PageParam, strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", t.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransientError{Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Detail: "reading response body", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, &FatalError{Detail: fmt.Sprintf("parsing listing page: %v", err)}
	}

	rows := doc.Find(t.selectors.Row)
	if rows.Length() == 0 {
		// A page without the expected structure usually means an interstitial
		// was served instead of listings.
		if marker := findBlockMarker(string(body)); marker != "" {
			return nil, &BlockedError{Reason: fmt.Sprintf("block marker %q in listing page", marker)}
		}
		return &Page{}, nil
	}

	raw := make([]*RawPosting, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		raw = append(raw, t.parseRow(row))
	})

	hasNext := false
	if t.selectors.NextPage != "" {
		hasNext = doc.Find(t.selectors.NextPage).Length() > 0
	}

	return &Page{Raw: raw, HasNextPage: hasNext}, nil
}

func (t *HTMLTransport) parseRow(row *goquery.Selection) *RawPosting {
	posting := &RawPosting{
		Title:       selectText(row, t.selectors.Title),
		Company:     selectText(row, t.selectors.Company),
		Location:    selectText(row, t.selectors.Location),
		Description: selectText(row, t.selectors.Description),
	}

	link := row
	if t.selectors.Link != "" {
		link = row.Find(t.selectors.Link)
	}
	if href, ok := link.Attr("href"); ok {
		posting.URL = t.absoluteURL(href)
	}

	return posting
}

func (t *HTMLTransport) absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	base, err := url.Parse(t.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func selectText(row *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(row.Find(selector).First().Text())
}

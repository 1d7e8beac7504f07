package jobboard

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
	defaultPerPage  = "50"

	// blockScanLimit bounds how much of a failed body is scanned for block markers.
	blockScanLimit = 16 * 1024
)

// blockMarkers are body fragments that indicate anti-bot interference even on
// otherwise plausible responses.
var blockMarkers = []string{"captcha", "access denied", "unusual traffic", "are you a robot", "request blocked"}

// APITransport talks to a job board search API that returns JSON pages.
type APITransport struct {
	name       string
	token      string
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
}

type listingResponse struct {
	Items   []map[string]any `json:"items"`
	Page    int              `json:"page"`
	Pages   int              `json:"pages"`
	PerPage int              `json:"per_page"`
}

// NewAPITransport creates a JSON API transport. The token is optional and is
// sent as a bearer credential when present.
func NewAPITransport(name, baseURL, userAgent, token string) *APITransport {
	return &APITransport{
		name:    name,
		token:   token,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
}

func (t *APITransport) Name() string { return t.name }

// FetchPage requests one result page and classifies every failure so the
// fetcher can decide whether to retry.
func (t *APITransport) FetchPage(ctx context.Context, term string, page int) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL, nil)
	if err != nil {
		return nil, &FatalError{Detail: fmt.Sprintf("building request: %v", err)}
	}

	req = t.setHeaders(req)
	req.URL.RawQuery = buildQuery(term, page).Encode()

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransientError{Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &TransientError{Detail: "reading response body", Err: err}
	}

	var response listingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		// A 200 that does not carry the expected structure is a block signal,
		// not a broken deploy: boards serve interstitial HTML to bots.
		if marker := findBlockMarker(string(body)); marker != "" {
			return nil, &BlockedError{Reason: fmt.Sprintf("block marker %q in response body", marker)}
		}
		return nil, &FatalError{Detail: fmt.Sprintf("unexpected response structure: %v", err)}
	}

	raw, err := decodeItems(response.Items)
	if err != nil {
		return nil, &FatalError{Detail: fmt.Sprintf("decoding result rows: %v", err)}
	}

	return &Page{
		Raw:         raw,
		HasNextPage: response.Page < response.Pages-1,
	}, nil
}

func (t *APITransport) setHeaders(req *http.Request) *http.Request {
	if t.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))
	}
	req.Header.Set("User-Agent", t.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Content-Type", contentType)

	return req
}

func buildQuery(term string, page int) url.Values {
	q := url.Values{}
	q.Set("q", term)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", defaultPerPage)
	return q
}

// classifyStatus maps HTTP statuses onto the outcome taxonomy. 403 and 429
// are treated as block signals, 5xx as retryable, other non-2xx as fatal.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return &BlockedError{Reason: fmt.Sprintf("status %s", resp.Status)}
	case resp.StatusCode >= 500:
		return &TransientError{Detail: fmt.Sprintf("status %s", resp.Status)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, blockScanLimit))
		if marker := findBlockMarker(string(body)); marker != "" {
			return &BlockedError{Reason: fmt.Sprintf("status %s with marker %q", resp.Status, marker)}
		}
		return &FatalError{Detail: fmt.Sprintf("bad status: %s", resp.Status)}
	}
}

func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(reader)
}

func findBlockMarker(body string) string {
	lowered := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lowered, marker) {
			return marker
		}
	}
	return ""
}

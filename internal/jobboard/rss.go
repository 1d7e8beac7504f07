package jobboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"
)

// RSSTransport reads a job board search feed. Feeds are single-page by
// nature, so HasNextPage is always false and only page 0 yields results.
type RSSTransport struct {
	name    string
	feedURL string
	parser  *gofeed.Parser
}

func NewRSSTransport(name, feedURL, userAgent string) *RSSTransport {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	return &RSSTransport{
		name:    name,
		feedURL: feedURL,
		parser:  parser,
	}
}

func (t *RSSTransport) Name() string { return t.name }

func (t *RSSTransport) FetchPage(ctx context.Context, term string, page int) (*Page, error) {
	if page > 0 {
		return &Page{}, nil
	}

	feedURL, err := t.buildURL(term)
	if err != nil {
		return nil, &FatalError{Detail: fmt.Sprintf("building feed url: %v", err)}
	}

	feed, err := t.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, classifyFeedError(err)
	}

	raw := make([]*RawPosting, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		posting := &RawPosting{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.Link,
			PostedAt:    item.Published,
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			posting.Company = item.Authors[0].Name
		}
		raw = append(raw, posting)
	}

	return &Page{Raw: raw}, nil
}

func (t *RSSTransport) buildURL(term string) (string, error) {
	parsed, err := url.Parse(t.feedURL)
	if err != nil {
		return "", err
	}

	q := parsed.Query()
	q.Set("q", term)
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}

func classifyFeedError(err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 403 || httpErr.StatusCode == 429:
			return &BlockedError{Reason: fmt.Sprintf("feed status %d", httpErr.StatusCode)}
		case httpErr.StatusCode >= 500:
			return &TransientError{Detail: fmt.Sprintf("feed status %d", httpErr.StatusCode)}
		default:
			return &FatalError{Detail: fmt.Sprintf("feed status %d", httpErr.StatusCode)}
		}
	}

	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return &FatalError{Detail: err.Error()}
	}

	return &TransientError{Detail: "fetching feed", Err: err}
}

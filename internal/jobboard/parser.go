package jobboard

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxDescriptionLen = 5000

// ParseError marks a raw posting that cannot be normalized. Such postings are
// dropped and counted rather than failing the run.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparsable posting: %s", e.Reason)
}

// Parser converts raw result rows into normalized postings for one source.
type Parser struct {
	source string
}

func NewParser(source string) *Parser {
	return &Parser{source: source}
}

// Parse normalizes a raw posting. A title is mandatory, and so is at least
// one of company or location; anything less is not worth scoring.
func (p *Parser) Parse(raw *RawPosting) (*Posting, error) {
	if raw == nil {
		return nil, &ParseError{Reason: "empty row"}
	}

	title := normalizeField(raw.Title)
	if title == "" {
		return nil, &ParseError{Reason: "missing title"}
	}

	company := normalizeField(raw.Company)
	location := normalizeField(raw.Location)
	if company == "" && location == "" {
		return nil, &ParseError{Reason: "missing both company and location"}
	}

	posting := &Posting{
		ID:          postingID(raw.URL, title, company),
		Title:       title,
		Company:     company,
		Location:    location,
		Description: normalizeDescription(raw.Description),
		URL:         strings.TrimSpace(raw.URL),
		Source:      p.source,
	}

	if posted, ok := parsePostedDate(raw.PostedAt); ok {
		posting.PostedAt = &posted
	}

	return posting, nil
}

// postingID derives a stable identifier. The URL is preferred since it
// survives text reformatting; a title+company hash is the fallback.
func postingID(rawURL, title, company string) string {
	key := strings.TrimSpace(rawURL)
	if key == "" {
		key = strings.ToLower(title) + "|" + strings.ToLower(company)
	}

	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:8])
}

func normalizeField(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeDescription strips HTML markup that boards embed into description
// fragments and bounds the length kept for scoring.
func normalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}

	s = normalizeField(s)
	if len(s) > maxDescriptionLen {
		s = s[:maxDescriptionLen]
	}
	return s
}

// Boards disagree on date formats; try the common ones and give up quietly.
func parsePostedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		time.DateOnly,
		"2006-01-02 15:04:05",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

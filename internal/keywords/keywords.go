package keywords

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/nkhaldi/jobradar/internal/profile"
)

// ErrEmptyProfile is returned when no queries can be derived from a profile.
var ErrEmptyProfile = errors.New("profile has no domains, skills or desired titles")

const defaultMaxQueries = 10

// Source tags a query with the profile field it was derived from.
type Source string

const (
	SourceDomain   Source = "domain"
	SourceSkill    Source = "skill"
	SourceLocation Source = "location"
	SourceTitle    Source = "title"
)

// Query is a single search term together with its source category.
type Query struct {
	Term   string
	Source Source
}

// QueryPlan is the ordered, duplicate-free set of queries for one run.
type QueryPlan struct {
	Queries []Query
}

// Terms returns the plain search terms in plan order.
func (p *QueryPlan) Terms() []string {
	terms := make([]string, 0, len(p.Queries))
	for _, q := range p.Queries {
		terms = append(terms, q.Term)
	}
	return terms
}

func (p *QueryPlan) Len() int {
	return len(p.Queries)
}

// Extractor derives a bounded query plan from a candidate profile.
type Extractor struct {
	maxQueries int
	logger     *zap.Logger
}

func NewExtractor(maxQueries int, logger *zap.Logger) *Extractor {
	if maxQueries <= 0 {
		maxQueries = defaultMaxQueries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{maxQueries: maxQueries, logger: logger}
}

// Extract builds the query plan for the given profile. Domains and skills are
// emitted before titles so that they survive the query ceiling; a single
// location-qualified query is appended when the profile states a location
// preference. The result is deterministic for identical profiles.
func (e *Extractor) Extract(p *profile.Profile) (*QueryPlan, error) {
	if p == nil || p.IsEmpty() {
		return nil, ErrEmptyProfile
	}

	plan := &QueryPlan{}
	seen := make(map[string]struct{})

	add := func(term string, source Source) {
		term = CleanTerm(term)
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		plan.Queries = append(plan.Queries, Query{Term: term, Source: source})
	}

	for _, domain := range p.Domains {
		add(domain, SourceDomain)
	}
	for _, skill := range p.Skills {
		add(skill, SourceSkill)
	}
	if len(p.Locations) > 0 && len(plan.Queries) > 0 {
		add(fmt.Sprintf("%s %s", plan.Queries[0].Term, p.Locations[0]), SourceLocation)
	}
	if p.Title != "" {
		add(p.Title, SourceTitle)
	}
	for _, title := range p.DesiredTitles {
		add(title, SourceTitle)
	}

	if plan.Len() > e.maxQueries {
		e.logger.Debug("query plan exceeds ceiling, truncating",
			zap.Int("derived", plan.Len()),
			zap.Int("ceiling", e.maxQueries),
		)
		plan.Queries = plan.Queries[:e.maxQueries]
	}

	if plan.Len() == 0 {
		return nil, ErrEmptyProfile
	}

	return plan, nil
}

var nonQueryChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-]+`)

// CleanTerm strips punctuation except hyphens, collapses whitespace and
// lower-cases the term so it is safe to use as a search string.
func CleanTerm(term string) string {
	term = nonQueryChars.ReplaceAllString(term, " ")
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

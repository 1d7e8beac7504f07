// Package scoring computes the deterministic, explainable match score between
// a candidate profile and a job posting.
package scoring

import (
	"math"
	"strings"

	"github.com/nkhaldi/jobradar/internal/jobboard"
	"github.com/nkhaldi/jobradar/internal/profile"
)

// Breakdown component names.
const (
	ComponentDomains  = "domains"
	ComponentSkills   = "skills"
	ComponentLocation = "location"
	ComponentTitle    = "title"
)

const maxScore = 100

// Weights control the contribution of each sub-score. They are expected to
// sum to 1.0; the final score is clamped regardless.
type Weights struct {
	Domain   float64 `mapstructure:"domain"`
	Skill    float64 `mapstructure:"skill"`
	Location float64 `mapstructure:"location"`
	Title    float64 `mapstructure:"title"`
}

// DefaultWeights favors skill overlap, the strongest predictor of fit.
func DefaultWeights() Weights {
	return Weights{
		Domain:   0.30,
		Skill:    0.40,
		Location: 0.15,
		Title:    0.15,
	}
}

// ScoredPosting pairs a posting with its final score and the per-component
// breakdown. It is never mutated after creation.
type ScoredPosting struct {
	Posting   *jobboard.Posting  `json:"posting"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"score_breakdown"`
}

// Engine scores (profile, posting) pairs with weighted sub-scores. Matching
// is case-insensitive, whitespace-normalized substring containment; no fuzzy
// or stemmed matching on purpose, so every score is explainable.
type Engine struct {
	weights Weights
}

func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Score computes the 0-100 match score. Empty profile fields zero out the
// corresponding component instead of failing.
func (e *Engine) Score(p *profile.Profile, posting *jobboard.Posting) *ScoredPosting {
	body := normalizeText(posting.Title + " " + posting.Description)

	breakdown := map[string]float64{
		ComponentDomains:  fractionContained(p.Domains, body),
		ComponentSkills:   fractionContained(p.Skills, body),
		ComponentLocation: locationScore(p.Locations, posting.Location),
		ComponentTitle:    titleScore(p.DesiredTitles, posting.Title),
	}

	score := maxScore * (e.weights.Domain*breakdown[ComponentDomains] +
		e.weights.Skill*breakdown[ComponentSkills] +
		e.weights.Location*breakdown[ComponentLocation] +
		e.weights.Title*breakdown[ComponentTitle])

	return &ScoredPosting{
		Posting:   posting,
		Score:     math.Max(0, math.Min(maxScore, score)),
		Breakdown: breakdown,
	}
}

// Compare orders scored postings for ranking: higher final score first, ties
// broken by skill sub-score, then domain sub-score. Returns a negative value
// when a ranks before b, positive when after, zero when the caller should
// preserve first-seen order.
func Compare(a, b *ScoredPosting) int {
	if c := compareDesc(a.Score, b.Score); c != 0 {
		return c
	}
	if c := compareDesc(a.Breakdown[ComponentSkills], b.Breakdown[ComponentSkills]); c != 0 {
		return c
	}
	return compareDesc(a.Breakdown[ComponentDomains], b.Breakdown[ComponentDomains])
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// fractionContained returns the fraction of terms found as substrings of the
// normalized text. An empty term list yields 0.
func fractionContained(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}

	matched := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(text, normalizeText(term)) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// locationScore gives full credit for the first preferred location contained
// in the posting location. No partial credit.
func locationScore(preferences []string, postingLocation string) float64 {
	location := normalizeText(postingLocation)
	if location == "" {
		return 0
	}

	for _, preference := range preferences {
		if preference == "" {
			continue
		}
		if strings.Contains(location, normalizeText(preference)) {
			return 1
		}
	}
	return 0
}

// titleScore is the fraction of desired-title tokens found in the posting
// title, so multi-word titles earn partial credit per matched word.
func titleScore(desired []string, postingTitle string) float64 {
	seen := make(map[string]struct{})
	tokens := make([]string, 0, len(desired))
	for _, title := range desired {
		for _, token := range strings.Fields(normalizeText(title)) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}

	return fractionContained(tokens, normalizeText(postingTitle))
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Profile holds the normalized candidate attributes used as matching input.
// It is the already-parsed output of an external CV extraction step.
type Profile struct {
	Name    string   `json:"name,omitempty"`
	Title   string   `json:"title,omitempty"`
	Domains []string `json:"domains"`
	Skills  []string `json:"skills"`
	// Locations is ordered by preference. The first matching location wins
	// during scoring.
	Locations     []string `json:"locations"`
	DesiredTitles []string `json:"desired_titles"`
}

// FromFile loads a parsed CV profile from a JSON file and normalizes it.
func FromFile(path string) (*Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile file: %w", err)
	}
	defer file.Close()

	var p Profile
	if err := json.NewDecoder(file).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding profile file %q: %w", path, err)
	}

	p.Normalize()

	return &p, nil
}

// Normalize lower-cases, trims and deduplicates every string field while
// preserving order. All downstream matching assumes normalized input.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Title = normalizeTerm(p.Title)
	p.Domains = normalizeTerms(p.Domains)
	p.Skills = normalizeTerms(p.Skills)
	p.Locations = normalizeTerms(p.Locations)
	p.DesiredTitles = normalizeTerms(p.DesiredTitles)
}

// IsEmpty reports whether the profile has no searchable attributes at all.
// Locations alone are not enough to derive queries.
func (p *Profile) IsEmpty() bool {
	return len(p.Domains) == 0 && len(p.Skills) == 0 && len(p.DesiredTitles) == 0 && p.Title == ""
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = normalizeTerm(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

package scoring

import (
	"testing"

	"github.com/nkhaldi/jobradar/internal/jobboard"
	"github.com/nkhaldi/jobradar/internal/profile"
)

func securityProfile() *profile.Profile {
	p := &profile.Profile{
		Domains:       []string{"cybersecurity"},
		Skills:        []string{"linux", "firewall"},
		Locations:     []string{"tunisia"},
		DesiredTitles: []string{"security"},
	}
	p.Normalize()
	return p
}

func TestScoreWeightedBreakdown(t *testing.T) {
	t.Parallel()

	posting := &jobboard.Posting{
		Title:       "Security Engineer",
		Company:     "Acme",
		Location:    "Tunisia",
		Description: "Linux, firewall, VPN administration",
	}

	scored := NewEngine(DefaultWeights()).Score(securityProfile(), posting)

	wantBreakdown := map[string]float64{
		ComponentDomains:  0,
		ComponentSkills:   1,
		ComponentLocation: 1,
		ComponentTitle:    1,
	}
	for component, want := range wantBreakdown {
		if got := scored.Breakdown[component]; got != want {
			t.Errorf("%s sub-score = %v, want %v", component, got, want)
		}
	}

	// 0.30*0 + 0.40*1 + 0.15*1 + 0.15*1 scaled to 0-100.
	if scored.Score != 70.0 {
		t.Fatalf("score = %v, want 70.0", scored.Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()

	engine := NewEngine(DefaultWeights())
	posting := &jobboard.Posting{
		Title:       "Linux Administrator",
		Location:    "Remote",
		Description: "firewall management on linux servers",
	}

	first := engine.Score(securityProfile(), posting)
	for i := 0; i < 10; i++ {
		if got := engine.Score(securityProfile(), posting); got.Score != first.Score {
			t.Fatalf("score changed between runs: %v vs %v", got.Score, first.Score)
		}
	}
}

func TestScorePartialSkillOverlap(t *testing.T) {
	t.Parallel()

	posting := &jobboard.Posting{
		Title:       "Platform Engineer",
		Location:    "France",
		Description: "day to day linux operations",
	}

	scored := NewEngine(DefaultWeights()).Score(securityProfile(), posting)

	if got := scored.Breakdown[ComponentSkills]; got != 0.5 {
		t.Fatalf("skills sub-score = %v, want 0.5", got)
	}
	if got := scored.Breakdown[ComponentLocation]; got != 0 {
		t.Fatalf("location sub-score = %v, want 0", got)
	}
}

func TestTitleScoreGivesPartialCreditPerToken(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		Skills:        []string{"linux"},
		DesiredTitles: []string{"security engineer"},
	}
	p.Normalize()

	posting := &jobboard.Posting{
		Title:       "Security Analyst",
		Location:    "Tunisia",
		Description: "incident response",
	}

	scored := NewEngine(DefaultWeights()).Score(p, posting)

	if got := scored.Breakdown[ComponentTitle]; got != 0.5 {
		t.Fatalf("title sub-score = %v, want 0.5 for one of two matched tokens", got)
	}
}

func TestTitleScoreDeduplicatesTokensAcrossTitles(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		Skills:        []string{"linux"},
		DesiredTitles: []string{"security engineer", "security analyst"},
	}
	p.Normalize()

	posting := &jobboard.Posting{
		Title:    "Security Engineer",
		Location: "Tunisia",
	}

	scored := NewEngine(DefaultWeights()).Score(p, posting)

	// Tokens are security, engineer, analyst; two of three match.
	if got := scored.Breakdown[ComponentTitle]; got != 2.0/3.0 {
		t.Fatalf("title sub-score = %v, want %v", got, 2.0/3.0)
	}
}

func TestScoreEmptyProfileFieldsZeroComponents(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{Skills: []string{"linux"}}
	p.Normalize()

	posting := &jobboard.Posting{
		Title:       "Linux Engineer",
		Location:    "Tunisia",
		Description: "linux everywhere",
	}

	scored := NewEngine(DefaultWeights()).Score(p, posting)

	if got := scored.Breakdown[ComponentDomains]; got != 0 {
		t.Fatalf("domains sub-score = %v, want 0 for empty domain list", got)
	}
	if got := scored.Breakdown[ComponentTitle]; got != 0 {
		t.Fatalf("title sub-score = %v, want 0 for empty desired titles", got)
	}
	if scored.Score != 40.0 {
		t.Fatalf("score = %v, want 40.0 from the skill component alone", scored.Score)
	}
}

func TestScoreClampsToRange(t *testing.T) {
	t.Parallel()

	// Over-weighted configuration must still produce a score within 0-100.
	engine := NewEngine(Weights{Domain: 1, Skill: 1, Location: 1, Title: 1})
	posting := &jobboard.Posting{
		Title:       "Security Engineer",
		Location:    "Tunisia",
		Description: "cybersecurity linux firewall",
	}

	scored := engine.Score(securityProfile(), posting)
	if scored.Score != 100.0 {
		t.Fatalf("score = %v, want clamped 100.0", scored.Score)
	}
}

func TestScoreMatchingIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	posting := &jobboard.Posting{
		Title:       "SECURITY ENGINEER",
		Location:    "TUNISIA",
		Description: "LINUX and FIREWALL work",
	}

	scored := NewEngine(DefaultWeights()).Score(securityProfile(), posting)
	if scored.Score != 70.0 {
		t.Fatalf("score = %v, want 70.0 regardless of casing", scored.Score)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   *ScoredPosting
		expect int
	}{
		{
			name:   "higher score first",
			a:      &ScoredPosting{Score: 80},
			b:      &ScoredPosting{Score: 90},
			expect: 1,
		},
		{
			name: "skill sub-score breaks score tie",
			a: &ScoredPosting{
				Score:     70,
				Breakdown: map[string]float64{ComponentSkills: 1, ComponentDomains: 0},
			},
			b: &ScoredPosting{
				Score:     70,
				Breakdown: map[string]float64{ComponentSkills: 0.5, ComponentDomains: 1},
			},
			expect: -1,
		},
		{
			name: "domain sub-score breaks skill tie",
			a: &ScoredPosting{
				Score:     70,
				Breakdown: map[string]float64{ComponentSkills: 1, ComponentDomains: 0},
			},
			b: &ScoredPosting{
				Score:     70,
				Breakdown: map[string]float64{ComponentSkills: 1, ComponentDomains: 1},
			},
			expect: 1,
		},
		{
			name: "full tie preserves first-seen order",
			a: &ScoredPosting{
				Score:     70,
				Breakdown: map[string]float64{ComponentSkills: 1, ComponentDomains: 1},
			},
			b: &ScoredPosting{
				Score:     70,
				Breakdown: map[string]float64{ComponentSkills: 1, ComponentDomains: 1},
			},
			expect: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Compare(tt.a, tt.b); got != tt.expect {
				t.Fatalf("Compare() = %d, want %d", got, tt.expect)
			}
		})
	}
}

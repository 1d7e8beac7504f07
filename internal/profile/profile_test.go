package profile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNormalizeDeduplicatesAndLowercases(t *testing.T) {
	t.Parallel()

	p := &Profile{
		Name:          "  Antoinne Szciir ",
		Title:         "  Security   Engineer ",
		Domains:       []string{"Cybersecurity", " cybersecurity ", "Networking"},
		Skills:        []string{"Linux", "FIREWALL", "linux", ""},
		Locations:     []string{" Tunisia ", "France"},
		DesiredTitles: []string{"Security Engineer"},
	}

	p.Normalize()

	if p.Name != "Antoinne Szciir" {
		t.Fatalf("unexpected name: %q", p.Name)
	}
	if p.Title != "security engineer" {
		t.Fatalf("unexpected title: %q", p.Title)
	}
	if want := []string{"cybersecurity", "networking"}; !reflect.DeepEqual(p.Domains, want) {
		t.Fatalf("unexpected domains: %v", p.Domains)
	}
	if want := []string{"linux", "firewall"}; !reflect.DeepEqual(p.Skills, want) {
		t.Fatalf("unexpected skills: %v", p.Skills)
	}
	if want := []string{"tunisia", "france"}; !reflect.DeepEqual(p.Locations, want) {
		t.Fatalf("locations must keep preference order: %v", p.Locations)
	}
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile Profile
		expect  bool
	}{
		{
			name:    "nothing searchable",
			profile: Profile{Locations: []string{"tunisia"}},
			expect:  true,
		},
		{
			name:    "skills only",
			profile: Profile{Skills: []string{"linux"}},
			expect:  false,
		},
		{
			name:    "title only",
			profile: Profile{Title: "developer"},
			expect:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.profile.IsEmpty(); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profile.json")
	payload := `{
		"name": "Test Candidate",
		"domains": ["Cybersecurity"],
		"skills": ["Linux", "Firewall"],
		"locations": ["Tunisia"],
		"desired_titles": ["Security Engineer"]
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := FromFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if p.Domains[0] != "cybersecurity" {
		t.Fatalf("profile was not normalized: %v", p.Domains)
	}
}

func TestFromFileRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := FromFile(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

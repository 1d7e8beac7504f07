package jobboard

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// RawPosting carries the unparsed fields of a single result row exactly as
// the transport retrieved them. It lives only between fetch and parse.
type RawPosting struct {
	Title       string `json:"title,omitempty" mapstructure:"title"`
	Company     string `json:"company,omitempty" mapstructure:"company"`
	Location    string `json:"location,omitempty" mapstructure:"location"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	URL         string `json:"url,omitempty" mapstructure:"url"`
	PostedAt    string `json:"posted_at,omitempty" mapstructure:"posted_at"`
}

// Posting is a normalized job listing. ID is stable across repeated fetches
// of the same listing; two postings with equal ID are the same listing.
type Posting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Source      string     `json:"source,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

type Postings struct {
	Items []*Posting
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *Posting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// Report by company.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		key := posting.Company
		if key == "" {
			key = "unknown company"
		}
		entry := map[string]string{
			"title":    posting.Title,
			"url":      posting.URL,
			"location": posting.Location,
			"source":   posting.Source,
		}
		if posting.PostedAt != nil {
			entry["posted_at"] = posting.PostedAt.Format(time.DateOnly)
		}
		report[key] = append(report[key], entry)
	}
	return report
}

// CountBySource tallies how many postings came from each configured source.
func (p *Postings) CountBySource() map[string]int {
	counts := make(map[string]int)
	for _, posting := range p.Items {
		counts[posting.Source]++
	}
	return counts
}

func (p *Postings) String() string {
	return fmt.Sprintf("%d postings", p.Len())
}

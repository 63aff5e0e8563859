package jobsearch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Postings struct {
	Items []*Posting
}

type Posting struct {
	Title          string `json:"title,omitempty"`
	Company        string `json:"company,omitempty"`
	Description    string `json:"description,omitempty"`
	ApplicantCount int    `json:"applicant_count,omitempty"`
	SourceQuery    string `json:"source_query,omitempty"`
}

// Key is the dedup identity: two postings with the same normalized
// (title, company) pair are the same job regardless of description.
func (p *Posting) Key() string {
	return normalize(p.Title) + "|" + normalize(p.Company)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func (p *Postings) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

func (p *Postings) Append(items ...*Posting) {
	p.Items = append(p.Items, items...)
}

// Clone returns a shallow copy of the list with copied posting values, so
// snapshots do not alias the session's postings.
func (p *Postings) Clone() *Postings {
	if p == nil {
		return &Postings{}
	}
	items := make([]*Posting, 0, len(p.Items))
	for _, posting := range p.Items {
		copied := *posting
		items = append(items, &copied)
	}
	return &Postings{Items: items}
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

// ReportByCompany groups postings per company for the end-of-run report.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		company := posting.Company
		if company == "" {
			company = "unknown"
		}
		report[company] = append(report[company], map[string]string{
			"title":        posting.Title,
			"applicants":   fmt.Sprintf("%d", posting.ApplicantCount),
			"source_query": posting.SourceQuery,
		})
	}
	return report
}

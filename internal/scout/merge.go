package scout

import (
	"strings"

	"github.com/compass-dev/career-compass/internal/jobsearch"
	"go.uber.org/zap"
)

// step mirrors the before/after accounting the run log reports per merge
// stage.
type step struct {
	initial int
	dropped int
	left    int
}

// Merge folds newly fetched postings into the existing ordered list. On a
// key collision the posting with the longer description survives in the
// first-seen position; the retention cap drops the newest entries first, so
// postings discovered by higher-ranked queries are preferred.
func (s *Scout) Merge(existing, fetched *jobsearch.Postings) *jobsearch.Postings {
	merged := &jobsearch.Postings{}
	index := make(map[string]int)

	fold := func(p *jobsearch.Posting) bool {
		key := p.Key()
		if at, dup := index[key]; dup {
			if len(p.Description) > len(merged.Items[at].Description) {
				merged.Items[at] = p
			}
			return true
		}
		if merged.Len() >= s.cfg.MaxPostings {
			return false
		}
		index[key] = merged.Len()
		merged.Append(p)
		return true
	}

	initial := existing.Len() + fetched.Len()
	dropped := 0
	for _, p := range existing.Items {
		if !fold(p) {
			dropped++
		}
	}
	for _, p := range fetched.Items {
		if !fold(p) {
			dropped++
		}
	}

	excluded := s.excludeCompanies(merged)

	s.logStep("merge_postings", step{initial: initial, dropped: dropped + excluded, left: merged.Len()})

	return merged
}

// excludeCompanies removes postings from companies the user configured away.
// Returns the number removed.
func (s *Scout) excludeCompanies(postings *jobsearch.Postings) int {
	if len(s.cfg.ExcludeCompanies) == 0 {
		return 0
	}

	blocked := make(map[string]struct{}, len(s.cfg.ExcludeCompanies))
	for _, company := range s.cfg.ExcludeCompanies {
		blocked[strings.ToLower(strings.TrimSpace(company))] = struct{}{}
	}

	kept := postings.Items[:0]
	removed := 0
	for _, p := range postings.Items {
		if _, skip := blocked[strings.ToLower(strings.TrimSpace(p.Company))]; skip {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	postings.Items = kept
	return removed
}

func (s *Scout) logStep(name string, info step) {
	s.logger.Info("filter step",
		zap.String("name", name),
		zap.Int("initial", info.initial),
		zap.Int("dropped", info.dropped),
		zap.Int("left", info.left),
	)
}

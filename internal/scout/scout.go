// Package scout decides when the profile is ready for a search, turns traits
// into queries, fans the queries out to the search provider, and folds the
// results into a deduplicated posting list.
package scout

import (
	"context"
	"fmt"
	"strings"

	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/profile"
	"github.com/compass-dev/career-compass/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMinTraits     = 3
	defaultMinConfidence = 0.5
	defaultMaxTurns      = 5
	defaultTopTraits     = 3
	defaultMaxPostings   = 50
	defaultFetchParallel = 4
)

// Config tunes the gate, the synthesis, and the merge.
type Config struct {
	MinTraits        int
	MinConfidence    float64
	MaxTurns         int
	TopTraits        int
	MaxPostings      int
	ExcludeCompanies []string
	RoleTemplates    map[string][]string
}

func (c Config) withDefaults() Config {
	if c.MinTraits <= 0 {
		c.MinTraits = defaultMinTraits
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = defaultMinConfidence
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = defaultMaxTurns
	}
	if c.TopTraits <= 0 {
		c.TopTraits = defaultTopTraits
	}
	if c.MaxPostings <= 0 {
		c.MaxPostings = defaultMaxPostings
	}
	if c.RoleTemplates == nil {
		c.RoleTemplates = DefaultRoleTemplates()
	}
	return c
}

// DefaultRoleTemplates maps high-signal traits to role keywords used in
// query synthesis.
func DefaultRoleTemplates() map[string][]string {
	return map[string][]string{
		"leadership":         {"Project Manager", "Team Lead"},
		"technical_aptitude": {"Software Engineer", "Developer"},
		"problem_solving":    {"Data Analyst", "Business Analyst"},
		"creativity":         {"Designer", "Product Manager"},
		"resilience":         {"Operations Manager", "Emergency Dispatcher"},
		"communication":      {"Account Manager", "Customer Success Manager"},
		"teamwork":           {"Program Coordinator", "Scrum Master"},
	}
}

type Scout struct {
	provider jobsearch.Provider
	policy   retry.Policy
	cfg      Config
	logger   *zap.Logger
}

func New(provider jobsearch.Provider, policy retry.Policy, cfg Config, logger *zap.Logger) *Scout {
	return &Scout{
		provider: provider,
		policy:   policy,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Sufficient reports whether the profile carries enough confident traits to
// warrant a search, or the session has hit the turn cap and must proceed
// regardless.
func (s *Scout) Sufficient(p *profile.TraitProfile, turns int) bool {
	if turns >= s.cfg.MaxTurns {
		return true
	}
	return p.CountAtOrAbove(s.cfg.MinConfidence) >= s.cfg.MinTraits
}

// Queries builds the ordered, deduplicated query list for the profile. Output
// is deterministic: traits are taken by confidence descending then name
// ascending, and exact duplicate strings keep their first position.
func (s *Scout) Queries(p *profile.TraitProfile, location string) []string {
	traits := p.Traits()
	if len(traits) > s.cfg.TopTraits {
		traits = traits[:s.cfg.TopTraits]
	}

	var queries []string
	seen := make(map[string]struct{})

	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		if _, dup := seen[q]; dup {
			return
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}

	for _, trait := range traits {
		// Low traits say what to avoid, not what to search for.
		if trait.Level == profile.LevelLow {
			continue
		}
		roles, ok := s.cfg.RoleTemplates[trait.Name]
		if !ok {
			roles = []string{strings.ReplaceAll(trait.Name, "_", " ") + " roles"}
		}
		for _, role := range roles {
			if location != "" {
				add(fmt.Sprintf("%s jobs %s", role, location))
				continue
			}
			add(fmt.Sprintf("%s jobs", role))
		}
	}

	return queries
}

// FetchResult carries the outcome of one synthesis round.
type FetchResult struct {
	Postings *jobsearch.Postings
	// Failures lists per-query errors. A failed query is skipped; it never
	// aborts the round.
	Failures []error
}

// Fetch runs every query against the provider, queries concurrently, and
// returns the raw postings in query-rank order. All fetches complete or are
// skipped before the caller merges.
func (s *Scout) Fetch(ctx context.Context, queries []string, location string) (*FetchResult, error) {
	results := make([]*jobsearch.Postings, len(queries))
	failures := make([]error, len(queries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(defaultFetchParallel)

	for i, query := range queries {
		group.Go(func() error {
			err := s.policy.Do(groupCtx, "search_jobs", func(ctx context.Context) error {
				postings, err := s.provider.Search(ctx, query, location)
				if err != nil {
					return err
				}
				results[i] = postings
				return nil
			})
			if err != nil {
				failures[i] = fmt.Errorf("query %q: %w", query, err)
			}
			// Failures are recorded, not propagated, so sibling queries run.
			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		// Cancelled mid-round: partial results are discarded, not merged.
		return nil, err
	}

	fetched := &jobsearch.Postings{}
	var errs []error
	for i := range queries {
		if failures[i] != nil {
			errs = append(errs, failures[i])
			continue
		}
		if results[i] != nil {
			fetched.Append(results[i].Items...)
		}
	}

	s.logger.Info("search round completed",
		zap.Int("queries", len(queries)),
		zap.Int("failed_queries", len(errs)),
		zap.Int("raw_postings", fetched.Len()),
	)

	return &FetchResult{Postings: fetched, Failures: errs}, nil
}

package scout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/profile"
	"github.com/compass-dev/career-compass/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	mu       sync.Mutex
	byQuery  map[string]*jobsearch.Postings
	failures map[string]error
	queries  []string
}

func (s *stubProvider) Search(_ context.Context, query, _ string) (*jobsearch.Postings, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if err, ok := s.failures[query]; ok {
		return nil, err
	}
	if postings, ok := s.byQuery[query]; ok {
		return postings, nil
	}
	return &jobsearch.Postings{}, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, Backoff: time.Millisecond, Timeout: time.Second}
}

func profileWith(estimates ...profile.TraitEstimate) *profile.TraitProfile {
	p := profile.New()
	for _, e := range estimates {
		p.Apply(e, profile.MergeRules{})
	}
	return p
}

func TestSufficientGate(t *testing.T) {
	s := New(&stubProvider{}, fastPolicy(), Config{MinTraits: 3, MinConfidence: 0.5, MaxTurns: 5}, zap.NewNop())

	three := profileWith(
		profile.TraitEstimate{Name: "leadership", Level: profile.LevelHigh, Confidence: 0.6, Source: profile.SourceInferred},
		profile.TraitEstimate{Name: "teamwork", Level: profile.LevelHigh, Confidence: 0.6, Source: profile.SourceInferred},
		profile.TraitEstimate{Name: "resilience", Level: profile.LevelHigh, Confidence: 0.6, Source: profile.SourceInferred},
	)
	assert.True(t, s.Sufficient(three, 1), "3 traits at 0.6 meet (3, 0.5)")

	two := profileWith(
		profile.TraitEstimate{Name: "leadership", Level: profile.LevelHigh, Confidence: 0.6, Source: profile.SourceInferred},
		profile.TraitEstimate{Name: "teamwork", Level: profile.LevelHigh, Confidence: 0.6, Source: profile.SourceInferred},
	)
	assert.False(t, s.Sufficient(two, 1))
	assert.True(t, s.Sufficient(two, 5), "turn cap forces progress")

	weak := profileWith(
		profile.TraitEstimate{Name: "leadership", Level: profile.LevelHigh, Confidence: 0.4, Source: profile.SourceInferred},
		profile.TraitEstimate{Name: "teamwork", Level: profile.LevelHigh, Confidence: 0.4, Source: profile.SourceInferred},
		profile.TraitEstimate{Name: "resilience", Level: profile.LevelHigh, Confidence: 0.4, Source: profile.SourceInferred},
	)
	assert.False(t, s.Sufficient(weak, 1), "low confidence traits do not count")
}

func TestQueriesDeterministicAndDeduplicated(t *testing.T) {
	s := New(&stubProvider{}, fastPolicy(), Config{TopTraits: 2}, zap.NewNop())

	p := profileWith(
		profile.TraitEstimate{Name: "technical_aptitude", Level: profile.LevelHigh, Confidence: 0.9, Source: profile.SourceExplicit},
		profile.TraitEstimate{Name: "leadership", Level: profile.LevelHigh, Confidence: 0.7, Source: profile.SourceExplicit},
		profile.TraitEstimate{Name: "teamwork", Level: profile.LevelMedium, Confidence: 0.4, Source: profile.SourceInferred},
	)

	first := s.Queries(p, "London, ON")
	second := s.Queries(p, "London, ON")
	assert.Equal(t, first, second, "synthesis is deterministic")

	require.Equal(t, []string{
		"Software Engineer jobs London, ON",
		"Developer jobs London, ON",
		"Project Manager jobs London, ON",
		"Team Lead jobs London, ON",
	}, first, "top traits by confidence, teamwork cut by top-K")

	seen := make(map[string]bool)
	for _, q := range first {
		assert.False(t, seen[q], "duplicate query %q", q)
		seen[q] = true
	}
}

func TestQueriesSkipLowTraitsAndUnknownTraitsGetGenericRole(t *testing.T) {
	s := New(&stubProvider{}, fastPolicy(), Config{TopTraits: 3}, zap.NewNop())

	p := profileWith(
		profile.TraitEstimate{Name: "public_speaking", Level: profile.LevelHigh, Confidence: 0.9, Source: profile.SourceExplicit},
		profile.TraitEstimate{Name: "leadership", Level: profile.LevelLow, Confidence: 0.8, Source: profile.SourceExplicit},
	)

	queries := s.Queries(p, "")
	require.Equal(t, []string{"public_speaking roles jobs"}, queries[:1])
	for _, q := range queries {
		assert.False(t, strings.Contains(q, "Project Manager"), "low leadership must not synthesize leadership roles")
	}
}

func TestFetchSkipsFailedQueries(t *testing.T) {
	provider := &stubProvider{
		byQuery: map[string]*jobsearch.Postings{
			"good": {Items: []*jobsearch.Posting{{Title: "Senior PM", Company: "TechCorp"}}},
		},
		failures: map[string]error{"bad": jobsearch.ErrSearchUnavailable},
	}
	s := New(provider, fastPolicy(), Config{}, zap.NewNop())

	result, err := s.Fetch(context.Background(), []string{"good", "bad"}, "London, ON")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Postings.Len())
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0], jobsearch.ErrSearchUnavailable)
}

func TestFetchPreservesQueryRankOrder(t *testing.T) {
	provider := &stubProvider{
		byQuery: map[string]*jobsearch.Postings{
			"first":  {Items: []*jobsearch.Posting{{Title: "A", Company: "a"}, {Title: "B", Company: "b"}}},
			"second": {Items: []*jobsearch.Posting{{Title: "C", Company: "c"}}},
		},
	}
	s := New(provider, fastPolicy(), Config{}, zap.NewNop())

	result, err := s.Fetch(context.Background(), []string{"first", "second"}, "")
	require.NoError(t, err)

	titles := make([]string, 0, 3)
	for _, p := range result.Postings.Items {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)
}

func TestFetchCancelledDiscardsPartialResults(t *testing.T) {
	provider := &stubProvider{
		byQuery: map[string]*jobsearch.Postings{
			"q": {Items: []*jobsearch.Posting{{Title: "A", Company: "a"}}},
		},
	}
	s := New(provider, fastPolicy(), Config{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Fetch(ctx, []string{"q"}, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestMergeDeduplicatesByNormalizedKey(t *testing.T) {
	s := New(&stubProvider{}, fastPolicy(), Config{}, zap.NewNop())

	existing := &jobsearch.Postings{Items: []*jobsearch.Posting{
		{Title: "Senior PM", Company: "TechCorp", Description: "short"},
	}}
	fetched := &jobsearch.Postings{Items: []*jobsearch.Posting{
		{Title: "senior pm", Company: "TECHCORP", Description: "a much longer description with detail"},
		{Title: "Backend Engineer", Company: "StableCorp", Description: "backend"},
	}}

	merged := s.Merge(existing, fetched)
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, "a much longer description with detail", merged.Items[0].Description,
		"longer description wins in first-seen position")
	assert.Equal(t, "Backend Engineer", merged.Items[1].Title)

	keys := make(map[string]bool)
	for _, p := range merged.Items {
		assert.False(t, keys[p.Key()], "duplicate key %q", p.Key())
		keys[p.Key()] = true
	}
}

func TestMergeHonorsCap(t *testing.T) {
	s := New(&stubProvider{}, fastPolicy(), Config{MaxPostings: 2}, zap.NewNop())

	existing := &jobsearch.Postings{Items: []*jobsearch.Posting{
		{Title: "A", Company: "a"},
		{Title: "B", Company: "b"},
	}}
	fetched := &jobsearch.Postings{Items: []*jobsearch.Posting{
		{Title: "C", Company: "c"},
	}}

	merged := s.Merge(existing, fetched)
	require.Equal(t, 2, merged.Len(), "cap drops later discoveries")
	assert.Equal(t, "A", merged.Items[0].Title)
	assert.Equal(t, "B", merged.Items[1].Title)
}

func TestMergeExcludesConfiguredCompanies(t *testing.T) {
	s := New(&stubProvider{}, fastPolicy(), Config{ExcludeCompanies: []string{"Globex"}}, zap.NewNop())

	fetched := &jobsearch.Postings{Items: []*jobsearch.Posting{
		{Title: "A", Company: "globex"},
		{Title: "B", Company: "TechCorp"},
	}}

	merged := s.Merge(&jobsearch.Postings{}, fetched)
	require.Equal(t, 1, merged.Len())
	assert.Equal(t, "TechCorp", merged.Items[0].Company)
}

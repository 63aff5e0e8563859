package analyst

import (
	"context"
	"testing"
	"time"

	"github.com/compass-dev/career-compass/internal/ai"
	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/profile"
	"github.com/compass-dev/career-compass/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubExtractor struct {
	extractions []ai.Extraction
	err         error
}

func (s *stubExtractor) Extract(context.Context, string, string) ([]ai.Extraction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.extractions, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, Backoff: time.Millisecond, Timeout: time.Second}
}

func candidateProfile() *profile.TraitProfile {
	p := profile.New()
	p.Apply(profile.TraitEstimate{Name: "leadership", Level: profile.LevelHigh, Confidence: 0.8, Source: profile.SourceExplicit}, profile.MergeRules{})
	p.Apply(profile.TraitEstimate{Name: "resilience", Level: profile.LevelMedium, Confidence: 0.5, Source: profile.SourceInferred}, profile.MergeRules{})
	return p
}

func postings(items ...*jobsearch.Posting) *jobsearch.Postings {
	return &jobsearch.Postings{Items: items}
}

func TestScoreComputation(t *testing.T) {
	stub := &stubExtractor{extractions: []ai.Extraction{
		{Name: "leadership", Level: "high", Confidence: 0.9, Kind: ai.KindRequirement, Priority: ai.PriorityRequired},
		{Name: "resilience", Level: "high", Confidence: 0.9, Kind: ai.KindRequirement, Priority: ai.PriorityPreferred},
	}}
	a := New(stub, fastPolicy(), Config{}, zap.NewNop())

	result, err := a.Score(context.Background(), candidateProfile(),
		postings(&jobsearch.Posting{Title: "Senior PM", Company: "TechCorp", Description: "lead teams"}))
	require.NoError(t, err)
	require.Len(t, result.Cards, 1)

	card := result.Cards[0]
	// leadership: exact level * 0.8 confidence * weight 1.0 = 0.8
	// resilience: adjacent level 0.5 * 0.5 confidence * weight 0.5 = 0.125
	// (0.8 + 0.125) / 1.5 = 0.61667 -> 62
	assert.Equal(t, 62, card.Score)
	assert.Equal(t, []string{"leadership", "resilience"}, card.MatchedTraits)
	assert.Empty(t, card.UnmatchedTraits)
	assert.Equal(t, RecommendationGoodFit, card.Recommendation)
	assert.False(t, card.LowConfidence)
}

func TestScoreBounds(t *testing.T) {
	perfect := profile.New()
	perfect.Apply(profile.TraitEstimate{Name: "leadership", Level: profile.LevelHigh, Confidence: 1.0, Source: profile.SourceExplicit}, profile.MergeRules{})

	stub := &stubExtractor{extractions: []ai.Extraction{
		{Name: "leadership", Level: "high", Confidence: 0.9, Kind: ai.KindRequirement},
	}}
	a := New(stub, fastPolicy(), Config{}, zap.NewNop())

	result, err := a.Score(context.Background(), perfect,
		postings(&jobsearch.Posting{Title: "Lead", Company: "X", Description: "lead"}))
	require.NoError(t, err)
	assert.Equal(t, 100, result.Cards[0].Score)

	empty := profile.New()
	result, err = a.Score(context.Background(), empty,
		postings(&jobsearch.Posting{Title: "Lead", Company: "X", Description: "lead"}))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cards[0].Score)
	assert.Equal(t, []string{"leadership"}, result.Cards[0].UnmatchedTraits)
}

func TestScoreOppositeLevelsGetNoCredit(t *testing.T) {
	p := profile.New()
	p.Apply(profile.TraitEstimate{Name: "leadership", Level: profile.LevelLow, Confidence: 1.0, Source: profile.SourceExplicit}, profile.MergeRules{})

	stub := &stubExtractor{extractions: []ai.Extraction{
		{Name: "leadership", Level: "high", Confidence: 0.9, Kind: ai.KindRequirement},
	}}
	a := New(stub, fastPolicy(), Config{}, zap.NewNop())

	result, err := a.Score(context.Background(), p,
		postings(&jobsearch.Posting{Title: "Lead", Company: "X", Description: "lead"}))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cards[0].Score)
}

func TestZeroRequirementsNeutralScore(t *testing.T) {
	stub := &stubExtractor{extractions: nil}
	a := New(stub, fastPolicy(), Config{NeutralScore: 50}, zap.NewNop())

	result, err := a.Score(context.Background(), candidateProfile(),
		postings(&jobsearch.Posting{Title: "Mystery Role", Company: "X", Description: "???"}))
	require.NoError(t, err)

	card := result.Cards[0]
	assert.Equal(t, 50, card.Score)
	assert.True(t, card.LowConfidence)
	assert.Contains(t, card.Reasoning, "neutral default")
}

func TestExtractionFailureFallsBackAndKeepsPosting(t *testing.T) {
	stub := &stubExtractor{err: ai.ErrExtractionUnavailable}
	a := New(stub, fastPolicy(), Config{}, zap.NewNop())

	result, err := a.Score(context.Background(), candidateProfile(),
		postings(&jobsearch.Posting{Title: "Team Lead", Company: "X", Description: "lead a team under pressure"}))
	require.NoError(t, err)

	require.Len(t, result.Cards, 1, "posting is never removed from ranking")
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0], ai.ErrExtractionUnavailable)
	assert.NotEmpty(t, result.Cards[0].MatchedTraits, "fallback keyword scan still finds requirements")
}

func TestRankingDeterminism(t *testing.T) {
	stub := &stubExtractor{err: ai.ErrExtractionUnavailable}
	a := New(stub, fastPolicy(), Config{}, zap.NewNop())

	items := postings(
		&jobsearch.Posting{Title: "No Keywords One", Company: "A", Description: "nothing relevant", ApplicantCount: 120},
		&jobsearch.Posting{Title: "Team Lead", Company: "B", Description: "lead a team", ApplicantCount: 45},
		&jobsearch.Posting{Title: "No Keywords Two", Company: "C", Description: "nothing relevant", ApplicantCount: 45},
		&jobsearch.Posting{Title: "No Keywords Three", Company: "D", Description: "nothing relevant", ApplicantCount: 45},
	)

	first, err := a.Score(context.Background(), candidateProfile(), items)
	require.NoError(t, err)
	second, err := a.Score(context.Background(), candidateProfile(), items)
	require.NoError(t, err)

	order := func(r *Result) []string {
		titles := make([]string, 0, len(r.Cards))
		for _, c := range r.Cards {
			titles = append(titles, c.Posting.Title)
		}
		return titles
	}

	assert.Equal(t, order(first), order(second), "identical inputs rank identically")

	// The three no-keyword postings get the neutral score and tie; the tie
	// breaks on applicant count ascending, then discovery order. Team Lead
	// matches only half its fallback requirements and ranks below neutral.
	assert.Equal(t,
		[]string{"No Keywords Two", "No Keywords Three", "No Keywords One", "Team Lead"},
		order(first))

	for _, c := range first.Cards {
		assert.GreaterOrEqual(t, c.Score, 0)
		assert.LessOrEqual(t, c.Score, 100)
	}
}

func TestReasoningReproducibleFromCardFields(t *testing.T) {
	card := &MatchCard{
		Posting:            &jobsearch.Posting{Title: "Senior PM", Company: "TechCorp", ApplicantCount: 10},
		Score:              85,
		MatchedTraits:      []string{"leadership", "problem_solving"},
		UnmatchedTraits:    []string{"creativity"},
		Recommendation:     RecommendationStrongMatch,
		MarketAvailability: marketAvailability(10),
	}

	text := reasoning(card)
	assert.Equal(t, reasoning(card), text, "no hidden randomness")
	assert.Contains(t, text, "85% match (Strong Match)")
	assert.Contains(t, text, "problem solving")
	assert.Contains(t, text, "Gaps: creativity")
}

func TestMarketAvailabilityBands(t *testing.T) {
	tests := []struct {
		applicants int
		want       string
	}{
		{10, "High Availability (Few Applicants)"},
		{45, "Moderate Availability"},
		{150, "Competitive Market"},
		{500, "Highly Competitive (Many Applicants)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, marketAvailability(tt.applicants))
	}
}

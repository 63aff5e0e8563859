// Package analyst extracts job-side requirements, scores candidate
// compatibility per posting, and ranks the results with reproducible
// explanations.
package analyst

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/compass-dev/career-compass/internal/ai"
	"github.com/compass-dev/career-compass/internal/jobsearch"
	"github.com/compass-dev/career-compass/internal/profile"
	"github.com/compass-dev/career-compass/internal/retry"
	"go.uber.org/zap"
)

const (
	defaultNeutralScore        = 50
	defaultPreferredWeight     = 0.5
	defaultFallbackConfidence  = 0.3
	requirementExtractSubject  = "job posting description; extract requirements"
	lowConfidenceReasoningNote = "No concrete requirements could be extracted from this posting, so the score is a neutral default."
)

// Config tunes scoring. Zero values fall back to documented defaults.
type Config struct {
	NeutralScore       int
	PreferredWeight    float64
	FallbackConfidence float64
	Lexicon            profile.Lexicon
}

func (c Config) withDefaults() Config {
	if c.NeutralScore <= 0 {
		c.NeutralScore = defaultNeutralScore
	}
	if c.PreferredWeight <= 0 {
		c.PreferredWeight = defaultPreferredWeight
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = defaultFallbackConfidence
	}
	if c.Lexicon.Traits == nil {
		c.Lexicon = profile.DefaultLexicon()
	}
	return c
}

type Analyst struct {
	extractor ai.Extractor
	policy    retry.Policy
	cfg       Config
	logger    *zap.Logger
}

func New(extractor ai.Extractor, policy retry.Policy, cfg Config, logger *zap.Logger) *Analyst {
	return &Analyst{
		extractor: extractor,
		policy:    policy,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// requirement is one job-side trait demand.
type requirement struct {
	name   string
	level  profile.Level
	weight float64
}

// Result carries the ranked cards plus the per-posting extraction failures
// that degraded to the fallback path.
type Result struct {
	Cards    []*MatchCard
	Failures []error
}

// Score produces one card per posting, ranked best-first: score descending,
// then applicant count ascending, then discovery order.
func (a *Analyst) Score(ctx context.Context, prof *profile.TraitProfile, postings *jobsearch.Postings) (*Result, error) {
	result := &Result{Cards: make([]*MatchCard, 0, postings.Len())}

	for _, posting := range postings.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		requirements, err := a.extractRequirements(ctx, posting)
		if err != nil {
			result.Failures = append(result.Failures,
				fmt.Errorf("posting %q at %q: %w", posting.Title, posting.Company, err))
		}

		result.Cards = append(result.Cards, a.buildCard(prof, posting, requirements))
	}

	rank(result.Cards)

	a.logger.Info("scored postings",
		zap.Int("postings", postings.Len()),
		zap.Int("fallback_scored", len(result.Failures)),
	)

	return result, nil
}

// extractRequirements asks the extractor for job-side requirements and falls
// back to the keyword lexicon when the capability is unavailable. A returned
// error means the fallback path was taken; the requirements are still usable.
func (a *Analyst) extractRequirements(ctx context.Context, posting *jobsearch.Posting) ([]requirement, error) {
	text := strings.TrimSpace(posting.Title + "\n" + posting.Description)

	var extractions []ai.Extraction
	extractErr := a.policy.Do(ctx, "extract_requirements", func(ctx context.Context) error {
		var err error
		extractions, err = a.extractor.Extract(ctx, requirementExtractSubject, text)
		return err
	})

	if extractErr != nil {
		return a.fallbackRequirements(text), extractErr
	}

	var requirements []requirement
	for _, extraction := range extractions {
		if extraction.Kind == ai.KindTrait {
			continue
		}
		level, ok := profile.ParseLevel(extraction.Level)
		if !ok {
			continue
		}
		weight := 1.0
		if extraction.Priority == ai.PriorityPreferred {
			weight = a.cfg.PreferredWeight
		}
		requirements = append(requirements, requirement{
			name:   strings.ToLower(strings.TrimSpace(extraction.Name)),
			level:  level,
			weight: weight,
		})
	}

	return requirements, nil
}

func (a *Analyst) fallbackRequirements(text string) []requirement {
	matches := a.cfg.Lexicon.Scan(text)
	requirements := make([]requirement, 0, len(matches))
	for _, m := range matches {
		requirements = append(requirements, requirement{name: m.Trait, level: m.Level, weight: 1.0})
	}
	return requirements
}

func (a *Analyst) buildCard(prof *profile.TraitProfile, posting *jobsearch.Posting, requirements []requirement) *MatchCard {
	card := &MatchCard{
		Posting:            posting,
		MarketAvailability: marketAvailability(posting.ApplicantCount),
	}

	if len(requirements) == 0 {
		card.Score = a.cfg.NeutralScore
		card.LowConfidence = true
		card.Recommendation = recommendationFor(card.Score)
		card.Reasoning = reasoning(card)
		return card
	}

	var credit, totalWeight float64
	matched := make([]string, 0, len(requirements))
	unmatched := make([]string, 0, len(requirements))

	for _, r := range requirements {
		totalWeight += r.weight

		estimate, ok := prof.Current(r.name)
		contribution := 0.0
		if ok {
			contribution = levelCredit(estimate.Level, r.level) * estimate.Confidence * r.weight
		}

		if contribution > 0 {
			matched = append(matched, r.name)
		} else {
			unmatched = append(unmatched, r.name)
		}
		credit += contribution
	}

	sort.Strings(matched)
	sort.Strings(unmatched)

	// Round half up into [0, 100].
	score := int(math.Floor(credit/totalWeight*100 + 0.5))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	card.Score = score
	card.MatchedTraits = matched
	card.UnmatchedTraits = unmatched
	card.Recommendation = recommendationFor(score)
	card.Reasoning = reasoning(card)
	return card
}

// levelCredit scores how well a candidate level satisfies a required one:
// exact match full credit, adjacent half, opposite none.
func levelCredit(candidate, required profile.Level) float64 {
	diff := candidate.Rank() - required.Rank()
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0.0
	}
}

// reasoning renders the deterministic explanation template. It depends only
// on the card's own fields, so the text is reproducible from the card alone.
func reasoning(card *MatchCard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d%% match (%s) for %s at %s.",
		card.Score, card.Recommendation, card.Posting.Title, card.Posting.Company)

	if card.LowConfidence {
		b.WriteString(" " + lowConfidenceReasoningNote)
		return b.String()
	}

	if len(card.MatchedTraits) > 0 {
		fmt.Fprintf(&b, " Aligned on %s.", strings.Join(humanize(card.MatchedTraits), ", "))
	}
	if len(card.UnmatchedTraits) > 0 {
		fmt.Fprintf(&b, " Gaps: %s.", strings.Join(humanize(card.UnmatchedTraits), ", "))
	}
	fmt.Fprintf(&b, " %s.", card.MarketAvailability)
	return b.String()
}

func humanize(traits []string) []string {
	out := make([]string, len(traits))
	for i, t := range traits {
		out[i] = strings.ReplaceAll(t, "_", " ")
	}
	return out
}

func rank(cards []*MatchCard) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Score != cards[j].Score {
			return cards[i].Score > cards[j].Score
		}
		return cards[i].Posting.ApplicantCount < cards[j].Posting.ApplicantCount
	})
}

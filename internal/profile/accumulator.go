package profile

import (
	"context"

	"github.com/compass-dev/career-compass/internal/ai"
	"github.com/compass-dev/career-compass/internal/retry"
	"go.uber.org/zap"
)

const defaultFallbackConfidence = 0.3

// Config tunes the accumulator. Zero values fall back to documented defaults.
type Config struct {
	FallbackConfidence float64
	MergeRules         MergeRules
	Lexicon            Lexicon
}

// Accumulator merges per-turn trait extractions into a running profile. It
// never mutates the profile it receives; callers get a clone back.
type Accumulator struct {
	extractor ai.Extractor
	policy    retry.Policy
	cfg       Config
	logger    *zap.Logger
}

func NewAccumulator(extractor ai.Extractor, policy retry.Policy, cfg Config, logger *zap.Logger) *Accumulator {
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = defaultFallbackConfidence
	}
	if cfg.Lexicon.Traits == nil {
		cfg.Lexicon = DefaultLexicon()
	}

	return &Accumulator{
		extractor: extractor,
		policy:    policy,
		cfg:       cfg,
		logger:    logger,
	}
}

// Accumulate runs one turn of trait extraction against the profile. On
// extractor failure it degrades to the lexicon fallback and returns the
// failure alongside the fallback result; the error is recoverable and the
// returned profile is always valid.
func (a *Accumulator) Accumulate(ctx context.Context, question, rawInput string, current *TraitProfile, turn int) (*TraitProfile, []TraitEstimate, error) {
	if current == nil {
		current = New()
	}

	var extractions []ai.Extraction
	extractErr := a.policy.Do(ctx, "extract_traits", func(ctx context.Context) error {
		var err error
		extractions, err = a.extractor.Extract(ctx, question, rawInput)
		return err
	})

	var estimates []TraitEstimate
	if extractErr != nil {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-call: discard everything, mutate nothing.
			return current, nil, err
		}
		a.logger.Warn("trait extraction failed, falling back to lexicon scan",
			zap.Int("turn", turn),
			zap.Error(extractErr),
		)
		estimates = a.fallbackEstimates(rawInput, turn)
	} else {
		estimates = a.convert(extractions, turn)
	}

	updated := current.Clone()
	for _, e := range estimates {
		updated.Apply(e, a.cfg.MergeRules)
	}

	a.logger.Debug("turn accumulated",
		zap.Int("turn", turn),
		zap.Int("estimates", len(estimates)),
		zap.Int("profile_traits", updated.Len()),
	)

	return updated, estimates, extractErr
}

func (a *Accumulator) convert(extractions []ai.Extraction, turn int) []TraitEstimate {
	estimates := make([]TraitEstimate, 0, len(extractions))
	for _, extraction := range extractions {
		if extraction.Kind == ai.KindRequirement {
			continue
		}
		estimate, err := FromExtraction(extraction, turn)
		if err != nil {
			a.logger.Debug("rejecting extraction at profile boundary", zap.Error(err))
			continue
		}
		estimates = append(estimates, estimate)
	}
	return estimates
}

func (a *Accumulator) fallbackEstimates(rawInput string, turn int) []TraitEstimate {
	matches := a.cfg.Lexicon.Scan(rawInput)
	estimates := make([]TraitEstimate, 0, len(matches))
	for _, m := range matches {
		estimates = append(estimates, TraitEstimate{
			Name:       m.Trait,
			Level:      m.Level,
			Confidence: a.cfg.FallbackConfidence,
			Source:     SourceFallback,
			Turn:       turn,
		})
	}
	return estimates
}

package profile

import (
	"math"
	"sort"
)

const (
	defaultContradictionEpsilon = 0.1
	defaultContradictionPenalty = 0.15
)

// MergeRules tunes how a new estimate is folded into the profile.
type MergeRules struct {
	// ContradictionEpsilon is the confidence window within which opposite
	// levels are treated as a genuine contradiction.
	ContradictionEpsilon float64
	// ContradictionPenalty is subtracted from the surviving estimate's
	// confidence when a contradiction is detected.
	ContradictionPenalty float64
}

func (r MergeRules) withDefaults() MergeRules {
	if r.ContradictionEpsilon <= 0 {
		r.ContradictionEpsilon = defaultContradictionEpsilon
	}
	if r.ContradictionPenalty <= 0 {
		r.ContradictionPenalty = defaultContradictionPenalty
	}
	return r
}

// TraitProfile holds the current estimate per trait name plus the append-only
// history of every estimate ever produced for the session.
type TraitProfile struct {
	current map[string]TraitEstimate
	history []TraitEstimate
}

func New() *TraitProfile {
	return &TraitProfile{current: make(map[string]TraitEstimate)}
}

// Apply folds one estimate into the profile under the merge rule:
//   - no current estimate: the new one becomes current;
//   - new explicit vs current non-explicit: new wins;
//   - otherwise new wins iff its confidence is >= the current one (ties go to
//     the more recent turn);
//   - opposite levels within the confidence epsilon mark the survivor
//     ambiguous and cost it the contradiction penalty.
//
// The estimate is always appended to history regardless of who wins.
func (p *TraitProfile) Apply(e TraitEstimate, rules MergeRules) {
	rules = rules.withDefaults()
	p.history = append(p.history, e)

	cur, exists := p.current[e.Name]
	if !exists {
		p.current[e.Name] = e
		return
	}

	survivor := cur
	if e.Source == SourceExplicit && cur.Source != SourceExplicit {
		survivor = e
	} else if e.Confidence >= cur.Confidence {
		survivor = e
	}

	if e.Level.Contradicts(cur.Level) && math.Abs(e.Confidence-cur.Confidence) <= rules.ContradictionEpsilon {
		survivor.Confidence = math.Max(0, survivor.Confidence-rules.ContradictionPenalty)
		survivor.Ambiguous = true
	}

	p.current[e.Name] = survivor
}

// Current returns the current estimate for a trait, if any.
func (p *TraitProfile) Current(name string) (TraitEstimate, bool) {
	e, ok := p.current[name]
	return e, ok
}

// Traits returns the current estimates in deterministic order: confidence
// descending, then trait name ascending.
func (p *TraitProfile) Traits() []TraitEstimate {
	traits := make([]TraitEstimate, 0, len(p.current))
	for _, e := range p.current {
		traits = append(traits, e)
	}
	sort.Slice(traits, func(i, j int) bool {
		if traits[i].Confidence != traits[j].Confidence {
			return traits[i].Confidence > traits[j].Confidence
		}
		return traits[i].Name < traits[j].Name
	})
	return traits
}

// CountAtOrAbove counts traits whose current confidence reaches the threshold.
func (p *TraitProfile) CountAtOrAbove(confidence float64) int {
	count := 0
	for _, e := range p.current {
		if e.Confidence >= confidence {
			count++
		}
	}
	return count
}

func (p *TraitProfile) Len() int {
	return len(p.current)
}

// History returns a copy of the append-only estimate history, in append order.
func (p *TraitProfile) History() []TraitEstimate {
	history := make([]TraitEstimate, len(p.history))
	copy(history, p.history)
	return history
}

// Clone returns an independent copy, used for snapshots and for the
// accumulate contract that returns a new profile instead of mutating in place.
func (p *TraitProfile) Clone() *TraitProfile {
	clone := &TraitProfile{
		current: make(map[string]TraitEstimate, len(p.current)),
		history: make([]TraitEstimate, len(p.history)),
	}
	for name, e := range p.current {
		clone.current[name] = e
	}
	copy(clone.history, p.history)
	return clone
}

package profile

import (
	"fmt"
	"strings"

	"github.com/compass-dev/career-compass/internal/ai"
)

// Level is the categorical strength of a trait.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Rank orders levels for compatibility checks. Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return 0
	}
}

// Contradicts reports whether two levels are opposite ends of the scale.
func (l Level) Contradicts(other Level) bool {
	if l.Rank() == 0 || other.Rank() == 0 {
		return false
	}
	diff := l.Rank() - other.Rank()
	return diff == 2 || diff == -2
}

func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelLow:
		return LevelLow, true
	case LevelMedium:
		return LevelMedium, true
	case LevelHigh:
		return LevelHigh, true
	default:
		return "", false
	}
}

// Source records where an estimate came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceInferred Source = "inferred"
	SourceFallback Source = "fallback"
)

// TraitEstimate is one turn's estimate for a single trait. Immutable once
// produced; merging decides which estimate is current, it never edits history.
type TraitEstimate struct {
	Name       string  `json:"name"`
	Level      Level   `json:"level"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Turn       int     `json:"turn"`
	Ambiguous  bool    `json:"ambiguous,omitempty"`
}

// FromExtraction converts a validated boundary extraction into an estimate.
func FromExtraction(e ai.Extraction, turn int) (TraitEstimate, error) {
	level, ok := ParseLevel(e.Level)
	if !ok {
		return TraitEstimate{}, fmt.Errorf("invalid level %q for trait %q", e.Level, e.Name)
	}

	name := strings.ToLower(strings.TrimSpace(e.Name))
	if name == "" {
		return TraitEstimate{}, fmt.Errorf("trait name is required")
	}

	source := SourceInferred
	if e.Source == ai.SourceExplicit {
		source = SourceExplicit
	}

	return TraitEstimate{
		Name:       name,
		Level:      level,
		Confidence: e.Confidence,
		Source:     source,
		Turn:       turn,
	}, nil
}

package profile

import (
	"sort"
	"strings"
)

// Lexicon is the deterministic keyword fallback used when the extraction
// capability is unavailable. Keywords map to trait names; polarity words
// shift the level up or down.
type Lexicon struct {
	Traits       map[string][]string
	Intensifiers []string
	Negators     []string
}

// Match is one lexicon hit for a scanned text.
type Match struct {
	Trait string
	Level Level
}

// DefaultLexicon covers the trait vocabulary the quiz works with.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Traits: map[string][]string{
			"resilience":         {"overcome", "challenge", "difficult", "pressure", "stress", "adversity"},
			"leadership":         {"lead", "led", "manage", "managed", "organize", "mentor", "delegate"},
			"technical_aptitude": {"code", "coding", "build", "develop", "technical", "engineer", "software"},
			"problem_solving":    {"solve", "solving", "analyze", "debug", "figure", "puzzle", "troubleshoot"},
			"teamwork":           {"team", "collaborate", "together", "group", "coworkers"},
			"communication":      {"present", "speak", "communicate", "explain", "write", "negotiate"},
			"creativity":         {"creative", "design", "innovate", "idea", "imagine", "invent"},
		},
		Intensifiers: []string{"very", "extremely", "really", "love", "thrive", "always", "passionate"},
		Negators:     []string{"hate", "avoid", "struggle", "never", "dislike", "rarely"},
	}
}

// Scan returns one match per trait whose keywords appear in the text, sorted
// by trait name so fallback output is deterministic. The level comes from
// polarity: a negator pulls the trait low, an intensifier pushes it high.
func (l Lexicon) Scan(text string) []Match {
	lower := strings.ToLower(text)

	level := LevelMedium
	if containsAny(lower, l.Negators) {
		level = LevelLow
	} else if containsAny(lower, l.Intensifiers) {
		level = LevelHigh
	}

	var matches []Match
	for trait, keywords := range l.Traits {
		if containsAny(lower, keywords) {
			matches = append(matches, Match{Trait: trait, Level: level})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Trait < matches[j].Trait })
	return matches
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

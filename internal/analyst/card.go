package analyst

import (
	"encoding/json"
	"os"

	"github.com/compass-dev/career-compass/internal/jobsearch"
)

// Recommendation bands derived from the compatibility score.
const (
	RecommendationStrongMatch = "Strong Match"
	RecommendationGoodFit     = "Good Fit"
	RecommendationConsider    = "Consider"
	RecommendationNotAligned  = "Not Aligned"
)

// MatchCard pairs one posting with its compatibility score and a reproducible
// explanation. Immutable once produced for a scoring pass.
type MatchCard struct {
	Posting            *jobsearch.Posting `json:"posting"`
	Score              int                `json:"score"`
	MatchedTraits      []string           `json:"matched_traits"`
	UnmatchedTraits    []string           `json:"unmatched_traits"`
	Reasoning          string             `json:"reasoning"`
	Recommendation     string             `json:"recommendation"`
	MarketAvailability string             `json:"market_availability"`
	LowConfidence      bool               `json:"low_confidence,omitempty"`
}

func recommendationFor(score int) string {
	switch {
	case score >= 80:
		return RecommendationStrongMatch
	case score >= 60:
		return RecommendationGoodFit
	case score >= 40:
		return RecommendationConsider
	default:
		return RecommendationNotAligned
	}
}

// marketAvailability classifies how contested a posting is from its
// applicant count.
func marketAvailability(applicants int) string {
	switch {
	case applicants < 30:
		return "High Availability (Few Applicants)"
	case applicants < 100:
		return "Moderate Availability"
	case applicants < 300:
		return "Competitive Market"
	default:
		return "Highly Competitive (Many Applicants)"
	}
}

// DumpToTmpFile writes the ranked cards to a temp JSON file and returns its
// name.
func DumpToTmpFile(cards []*MatchCard) (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cards); err != nil {
		return "", err
	}
	return file.Name(), nil
}

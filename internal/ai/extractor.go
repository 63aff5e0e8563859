package ai

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

// Extraction kinds. Trait extractions describe the candidate, requirement
// extractions describe what a job posting asks for.
const (
	KindTrait       = "trait"
	KindRequirement = "requirement"
)

// Requirement priorities. Preferred requirements carry half the scoring weight.
const (
	PriorityRequired  = "required"
	PriorityPreferred = "preferred"
)

// Trait sources. Explicit means the text states the trait directly; inferred
// means the model deduced it.
const (
	SourceExplicit = "explicit"
	SourceInferred = "inferred"
)

// ErrExtractionUnavailable signals that the extraction capability failed for
// this call (timeout, quota, malformed response). Callers fall back to the
// keyword lexicon instead of aborting.
var ErrExtractionUnavailable = errors.New("extraction capability unavailable")

// Extraction is a single structured field produced from free text.
type Extraction struct {
	Name       string  `json:"name" mapstructure:"name" validate:"required"`
	Level      string  `json:"level" mapstructure:"level" validate:"required,oneof=low medium high"`
	Confidence float64 `json:"confidence" mapstructure:"confidence" validate:"gte=0,lte=1"`
	Kind       string  `json:"kind" mapstructure:"kind" validate:"omitempty,oneof=trait requirement"`
	Source     string  `json:"source" mapstructure:"source" validate:"omitempty,oneof=explicit inferred"`
	Priority   string  `json:"priority" mapstructure:"priority" validate:"omitempty,oneof=required preferred"`
}

var validate = validator.New()

// Validate rejects malformed extractions before they reach the profile or the
// scorer.
func (e *Extraction) Validate() error {
	return validate.Struct(e)
}

// Extractor turns free text into best-effort structured fields. Subject gives
// the model context about what the text is (the quiz question, or a note that
// the text is a job description).
type Extractor interface {
	Extract(ctx context.Context, subject, text string) ([]Extraction, error)
}

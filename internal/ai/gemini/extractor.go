package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/compass-dev/career-compass/internal/ai"
	"github.com/compass-dev/career-compass/internal/logger"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Extractor implements ai.Extractor on top of a Gemini content generator.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewExtractor(generator contentGenerator, log *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Extractor{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Extract asks the model for structured trait or requirement fields. Any
// failure (transport, empty or malformed response) is reported as
// ai.ErrExtractionUnavailable so callers can switch to the lexicon fallback.
func (e *Extractor) Extract(ctx context.Context, subject, text string) ([]ai.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := buildPrompt(subject, text)

	e.logger.Debug("gemini extraction request",
		zap.String("subject", subject),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrExtractionUnavailable, err)
	}

	e.logger.Debug("gemini extraction response",
		zap.String("subject", subject),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	extractions, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrExtractionUnavailable, err)
	}

	valid := make([]ai.Extraction, 0, len(extractions))
	for _, extraction := range extractions {
		normalized := extraction
		normalized.Name = strings.ToLower(strings.TrimSpace(normalized.Name))
		normalized.Level = strings.ToLower(strings.TrimSpace(normalized.Level))
		normalized.Kind = strings.ToLower(strings.TrimSpace(normalized.Kind))
		normalized.Source = strings.ToLower(strings.TrimSpace(normalized.Source))
		normalized.Priority = strings.ToLower(strings.TrimSpace(normalized.Priority))

		if err := normalized.Validate(); err != nil {
			e.logger.Debug("dropping malformed extraction",
				zap.String("name", extraction.Name),
				zap.Error(err),
			)
			continue
		}

		valid = append(valid, normalized)
	}

	return valid, nil
}

func buildPrompt(subject, text string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Subject: {{SUBJECT}}\n\nText:\n{{TEXT}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{SUBJECT}}", subject)
	prompt = strings.ReplaceAll(prompt, "{{TEXT}}", text)
	return prompt
}

func parseResponse(raw string) ([]ai.Extraction, error) {
	cleaned := extractJSON(raw)

	var payload struct {
		Items []map[string]any `json:"items"`
	}

	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		// Some model responses are a bare array instead of the documented object.
		var bare []map[string]any
		if err2 := json.Unmarshal([]byte(cleaned), &bare); err2 != nil {
			return nil, fmt.Errorf("parse gemini response: %w", err)
		}
		payload.Items = bare
	}

	var extractions []ai.Extraction
	cfg := &mapstructure.DecoderConfig{
		Result:           &extractions,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(payload.Items); err != nil {
		return nil, fmt.Errorf("decode gemini items: %w", err)
	}

	return extractions, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

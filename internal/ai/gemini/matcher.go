package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/logger"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateContentWithCache(ctx context.Context, prompt, cacheName string) (string, error)
}

// Matcher turns a (CV, posting, context) triple into a validated verdict via
// one completion call. It never retries; the dispatch loop owns that choice.
type Matcher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewMatcher(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Matcher{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (m *Matcher) Evaluate(ctx context.Context, input *ai.Input) (*ai.Verdict, error) {
	if input == nil {
		return nil, fmt.Errorf("match input is required")
	}
	if strings.TrimSpace(input.CVText) == "" {
		return nil, fmt.Errorf("cv text is required")
	}
	if strings.TrimSpace(input.JobText) == "" {
		return nil, fmt.Errorf("job posting text is required")
	}

	prompt := buildPrompt(input)

	m.logger.Debug("completion request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, m.maxLogLen)),
	)

	var raw string
	var err error
	if input.CVCacheKey != "" {
		raw, err = m.generator.GenerateContentWithCache(ctx, prompt, input.CVCacheKey)
	} else {
		raw, err = m.generator.GenerateContent(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Debug("completion response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, m.maxLogLen)),
	)

	verdict, modelFlag, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if modelFlag != verdict.Compatible {
		m.logger.Debug("model compatibility flag disagrees with its own score; score governs",
			zap.Bool("model_flag", modelFlag),
			zap.Int("score", verdict.Score),
		)
	}

	return verdict, nil
}

type cvCacher interface {
	EnsureCVCache(ctx context.Context, documentID, displayName, payload string) (string, error)
}

// WarmCV pins the CV as cached content when the generator supports it. A
// generator without caching yields an empty key, which callers treat as
// "send the CV inline".
func (m *Matcher) WarmCV(ctx context.Context, documentID, displayName, text string) (string, error) {
	cacher, ok := m.generator.(cvCacher)
	if !ok {
		return "", nil
	}
	return cacher.EnsureCVCache(ctx, documentID, displayName, text)
}

func buildPrompt(input *ai.Input) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "CV:\n{{CV_TEXT}}\n\nJob posting:\n{{JOB_TEXT}}\n\nContext:\n{{CONTEXT_NOTES}}\n\nJSON Response:"
	}

	notes := strings.TrimSpace(input.ContextNotes)
	if notes == "" {
		notes = "none"
	}

	prompt := strings.ReplaceAll(template, "{{CV_TEXT}}", input.CVText)
	prompt = strings.ReplaceAll(prompt, "{{JOB_TEXT}}", input.JobText)
	prompt = strings.ReplaceAll(prompt, "{{CONTEXT_NOTES}}", notes)
	return prompt
}

// parseResponse extracts and validates the verdict object. The model tends
// to wrap the JSON in prose or code fences, so the first balanced object is
// cut out before decoding. Validation never coerces: a wrong type is a
// schema violation, not a repairable value.
func parseResponse(raw string) (*ai.Verdict, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, false, ai.ErrGenerationEmpty
	}

	candidate, ok := extractJSONObject(raw)
	if !ok {
		return nil, false, &ai.NotJSONError{Raw: raw, Err: fmt.Errorf("no json object found in response")}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return nil, false, &ai.NotJSONError{Raw: raw, Err: err}
	}

	score, ok := data["compatibility_score"].(float64)
	if !ok {
		return nil, false, &ai.SchemaError{Raw: raw, Reason: "compatibility_score must be a number"}
	}

	modelFlag, ok := data["is_compatible"].(bool)
	if !ok {
		return nil, false, &ai.SchemaError{Raw: raw, Reason: "is_compatible must be a boolean"}
	}

	analysis, ok := data["analysis"].(map[string]any)
	if !ok {
		return nil, false, &ai.SchemaError{Raw: raw, Reason: "analysis must be an object"}
	}

	strengths, ok := analysis["strengths"].([]any)
	if !ok {
		return nil, false, &ai.SchemaError{Raw: raw, Reason: "analysis.strengths must be an array"}
	}

	missing, ok := analysis["missing_skills"].([]any)
	if !ok {
		return nil, false, &ai.SchemaError{Raw: raw, Reason: "analysis.missing_skills must be an array"}
	}

	verdict := &ai.Verdict{
		Score:         int(score),
		Compatible:    int(score) >= ai.CompatibilityThreshold,
		Strengths:     toStrings(strengths),
		MissingSkills: toStrings(missing),
		Raw:           raw,
	}

	// The numeric score governs. A letter supplied alongside a
	// non-compatible score is dropped rather than trusted.
	if verdict.Compatible {
		if letter, ok := data["cover_letter"].(string); ok {
			verdict.CoverLetter = strings.TrimSpace(letter)
		}
	}

	return verdict, modelFlag, nil
}

// extractJSONObject returns the first balanced {...} substring, tolerating
// leading and trailing prose around the object.
func extractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}

func toStrings(values []any) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case string:
			result = append(result, strings.TrimSpace(v))
		default:
			result = append(result, fmt.Sprintf("%v", v))
		}
	}
	return result
}

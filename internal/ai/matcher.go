// Package ai defines the compatibility matching contract between a CV and a
// job posting, fulfilled by a text-generation provider.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// CompatibilityThreshold is the score at or above which a pair is considered
// a match. The numeric score, not the model's own flag, governs.
const CompatibilityThreshold = 70

// Verdict is the validated structured judgment for one (CV, posting) pair.
type Verdict struct {
	Score         int      `json:"compatibility_score"`
	Compatible    bool     `json:"is_compatible"`
	Strengths     []string `json:"strengths"`
	MissingSkills []string `json:"missing_skills"`
	CoverLetter   string   `json:"cover_letter,omitempty"`
	Raw           string   `json:"-"`
}

// Input is the material the matcher works from.
type Input struct {
	CVText       string
	JobText      string
	ContextNotes string
	CVCacheKey   string
}

type Matcher interface {
	Evaluate(ctx context.Context, input *Input) (*Verdict, error)
}

// CacheWarmer is optionally implemented by matchers whose provider can pin
// the CV once and reuse it across many evaluations. The returned key goes
// into Input.CVCacheKey; an empty key means no cache is available.
type CacheWarmer interface {
	WarmCV(ctx context.Context, documentID, displayName, text string) (string, error)
}

// ErrGenerationEmpty means the completion service returned no text at all.
var ErrGenerationEmpty = errors.New("completion service returned an empty response")

// NotJSONError means no decodable JSON object could be extracted from the
// model response. The raw response is retained for diagnostics.
type NotJSONError struct {
	Raw string
	Err error
}

func (e *NotJSONError) Error() string {
	return fmt.Sprintf("model response is not a json object: %v", e.Err)
}

func (e *NotJSONError) Unwrap() error { return e.Err }

// SchemaError means the decoded object violates the verdict schema. Nothing
// is coerced; the raw response is retained for diagnostics.
type SchemaError struct {
	Raw    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model response violates the verdict schema: %s", e.Reason)
}

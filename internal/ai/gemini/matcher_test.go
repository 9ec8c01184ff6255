package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/applypilot/applypilot/internal/ai"
	"go.uber.org/zap"
)

type stubGenerator struct {
	response      string
	err           error
	lastPrompt    string
	lastCacheName string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) GenerateContentWithCache(ctx context.Context, prompt, cacheName string) (string, error) {
	s.lastCacheName = cacheName
	return s.GenerateContent(ctx, prompt)
}

func testInput() *ai.Input {
	return &ai.Input{
		CVText:       "Five years of Go development, Kubernetes, PostgreSQL.",
		JobText:      "We are hiring a backend engineer with Go experience.",
		ContextNotes: "Open to relocation.",
	}
}

func TestMatcherEvaluateCompatible(t *testing.T) {
	stub := &stubGenerator{response: `{
		"compatibility_score": 85,
		"is_compatible": true,
		"analysis": {"strengths": ["go", "kubernetes", "sql"], "missing_skills": []},
		"cover_letter": "Dear hiring team,"
	}`}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	verdict, err := matcher.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if verdict.Score != 85 {
		t.Fatalf("expected score 85, got %d", verdict.Score)
	}
	if !verdict.Compatible {
		t.Fatalf("expected verdict to be compatible")
	}
	if verdict.CoverLetter == "" {
		t.Fatalf("expected a cover letter for a compatible verdict")
	}
	if len(verdict.Strengths) != 3 {
		t.Fatalf("expected 3 strengths, got %d", len(verdict.Strengths))
	}
	if verdict.Raw == "" {
		t.Fatalf("expected raw response to be retained")
	}
	if !strings.Contains(stub.lastPrompt, "Open to relocation.") {
		t.Fatalf("expected context notes in the prompt")
	}
}

func TestMatcherScoreGovernsOverModelFlag(t *testing.T) {
	// The model claims compatibility but its own score says otherwise.
	stub := &stubGenerator{response: `{
		"compatibility_score": 40,
		"is_compatible": true,
		"analysis": {"strengths": ["a", "b", "c"], "missing_skills": ["x"]},
		"cover_letter": "should be dropped"
	}`}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	verdict, err := matcher.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if verdict.Compatible {
		t.Fatalf("expected the score to govern: 40 is below the threshold")
	}
	if verdict.CoverLetter != "" {
		t.Fatalf("expected the cover letter to be dropped for a non-compatible verdict")
	}
}

func TestMatcherToleratesSurroundingProse(t *testing.T) {
	stub := &stubGenerator{response: "Sure! Here is my assessment:\n```json\n" +
		`{"compatibility_score": 72, "is_compatible": true, "analysis": {"strengths": ["a","b","c"], "missing_skills": []}, "cover_letter": "Hello"}` +
		"\n```\nLet me know if you need anything else."}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	verdict, err := matcher.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if verdict.Score != 72 || !verdict.Compatible {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestMatcherEmptyResponse(t *testing.T) {
	stub := &stubGenerator{response: "   "}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	_, err := matcher.Evaluate(context.Background(), testInput())
	if !errors.Is(err, ai.ErrGenerationEmpty) {
		t.Fatalf("expected ErrGenerationEmpty, got %v", err)
	}
}

func TestMatcherProseWithoutJSON(t *testing.T) {
	stub := &stubGenerator{response: "I cannot judge this pairing, sorry."}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	_, err := matcher.Evaluate(context.Background(), testInput())

	var notJSON *ai.NotJSONError
	if !errors.As(err, &notJSON) {
		t.Fatalf("expected NotJSONError, got %v", err)
	}
	if notJSON.Raw == "" {
		t.Fatalf("expected the raw response to be retained for diagnostics")
	}
}

func TestMatcherSchemaViolations(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{
			name:     "score is a string",
			response: `{"compatibility_score": "85", "is_compatible": true, "analysis": {"strengths": [], "missing_skills": []}}`,
		},
		{
			name:     "flag is a string",
			response: `{"compatibility_score": 85, "is_compatible": "yes", "analysis": {"strengths": [], "missing_skills": []}}`,
		},
		{
			name:     "analysis missing",
			response: `{"compatibility_score": 85, "is_compatible": true}`,
		},
		{
			name:     "strengths not an array",
			response: `{"compatibility_score": 85, "is_compatible": true, "analysis": {"strengths": "go", "missing_skills": []}}`,
		},
		{
			name:     "missing_skills not an array",
			response: `{"compatibility_score": 85, "is_compatible": true, "analysis": {"strengths": [], "missing_skills": "none"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubGenerator{response: tc.response}
			matcher := NewMatcher(stub, zap.NewNop(), 0)

			_, err := matcher.Evaluate(context.Background(), testInput())

			var schemaErr *ai.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if schemaErr.Raw == "" {
				t.Fatalf("expected the raw response to be retained")
			}
		})
	}
}

func TestMatcherUsesCVCache(t *testing.T) {
	stub := &stubGenerator{response: `{"compatibility_score": 90, "is_compatible": true, "analysis": {"strengths": ["a","b","c"], "missing_skills": []}, "cover_letter": "Hi"}`}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	input := testInput()
	input.CVCacheKey = "caches/cv-123"

	if _, err := matcher.Evaluate(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stub.lastCacheName != "caches/cv-123" {
		t.Fatalf("expected the cached content name to be forwarded, got %q", stub.lastCacheName)
	}
}

type cachingStubGenerator struct {
	stubGenerator
	ensured string
}

func (s *cachingStubGenerator) EnsureCVCache(_ context.Context, documentID, _, _ string) (string, error) {
	s.ensured = documentID
	return "caches/" + documentID, nil
}

func TestMatcherWarmCV(t *testing.T) {
	// A plain generator has no cache; warming is a no-op.
	plain := NewMatcher(&stubGenerator{}, zap.NewNop(), 0)
	key, err := plain.WarmCV(context.Background(), "doc-1", "cv.pdf", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected no cache key, got %q", key)
	}

	caching := &cachingStubGenerator{}
	matcher := NewMatcher(caching, zap.NewNop(), 0)
	key, err = matcher.WarmCV(context.Background(), "doc-1", "cv.pdf", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "caches/doc-1" || caching.ensured != "doc-1" {
		t.Fatalf("expected the cache to be ensured, got key=%q", key)
	}
}

func TestVerdictRoundTrip(t *testing.T) {
	stub := &stubGenerator{response: `{
		"compatibility_score": 85,
		"is_compatible": true,
		"analysis": {"strengths": ["a","b","c"], "missing_skills": ["d"]},
		"cover_letter": "Dear team"
	}`}
	matcher := NewMatcher(stub, zap.NewNop(), 0)

	verdict, err := matcher.Evaluate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded, err := json.Marshal(verdict)
	if err != nil {
		t.Fatalf("marshal verdict: %v", err)
	}

	var decoded ai.Verdict
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal verdict: %v", err)
	}

	if decoded.Score != verdict.Score || decoded.Compatible != verdict.Compatible {
		t.Fatalf("score/flag did not round-trip: %+v", decoded)
	}
	if len(decoded.Strengths) != len(verdict.Strengths) || len(decoded.MissingSkills) != len(verdict.MissingSkills) {
		t.Fatalf("analysis arrays did not round-trip: %+v", decoded)
	}
}

func TestExtractJSONObjectBalanced(t *testing.T) {
	raw := `prefix {"a": {"b": "}"}, "c": 1} suffix {"d": 2}`
	extracted, ok := extractJSONObject(raw)
	if !ok {
		t.Fatalf("expected a json object to be found")
	}
	if extracted != `{"a": {"b": "}"}, "c": 1}` {
		t.Fatalf("unexpected extraction: %s", extracted)
	}
}

package logger

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
		{
			name:   "counts runes not bytes",
			input:  "héllø wörld",
			limit:  5,
			expect: "héllø...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		for _, debug := range []bool{false, true} {
			logger, err := New(json, debug)
			if err != nil {
				t.Fatalf("building logger (json=%v debug=%v): %v", json, debug, err)
			}
			if logger == nil {
				t.Fatalf("expected a logger")
			}
		}
	}
}

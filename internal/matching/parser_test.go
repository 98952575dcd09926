package matching

import (
	"strings"
	"testing"
)

func TestParseResponseRoundTrip(t *testing.T) {
	assessment := ParseResponse("Score: 73\nReasoning: good fit")

	if assessment.Score != 73 {
		t.Fatalf("expected score 73, got %d", assessment.Score)
	}
	if assessment.Rationale != "good fit" {
		t.Fatalf("expected rationale %q, got %q", "good fit", assessment.Rationale)
	}
	if !assessment.WellFormed {
		t.Fatal("expected well-formed assessment")
	}
}

func TestParseResponseVariants(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		score      int
		wellFormed bool
	}{
		{"plain integer", "Score: 85", 85, true},
		{"float rounds", "score = 85.6", 86, true},
		{"lowercase marker", "the match score: 42 overall", 42, true},
		{"clamped above", "Score: 250", 100, true},
		{"percent suffix", "Match Score: 90%", 90, true},
		{"no numeric token", "This family seems wonderful.", NeutralScore, false},
		{"empty input", "", NeutralScore, false},
		{"garbage input", "\x00\xff{{{[[", NeutralScore, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment := ParseResponse(tt.input)
			if assessment.Score != tt.score {
				t.Fatalf("expected score %d, got %d", tt.score, assessment.Score)
			}
			if assessment.WellFormed != tt.wellFormed {
				t.Fatalf("expected well_formed=%v, got %v", tt.wellFormed, assessment.WellFormed)
			}
		})
	}
}

func TestParseResponseScoreAlwaysInRange(t *testing.T) {
	inputs := []string{
		"Score: -10",
		"Score: 0",
		"Score: 100",
		"Score: 99999",
		"Score: 55.5555",
		"no score here",
		strings.Repeat("Score: 101 ", 50),
	}

	for _, input := range inputs {
		assessment := ParseResponse(input)
		if assessment.Score < 0 || assessment.Score > 100 {
			t.Fatalf("score %d out of range for input %q", assessment.Score, input)
		}
	}
}

func TestParseResponseRationaleFallbacks(t *testing.T) {
	got := ParseResponse("Score: 80")
	if got.Rationale != defaultRationale {
		t.Fatalf("expected placeholder rationale, got %q", got.Rationale)
	}

	got = ParseResponse("Score: 80\nThe family shares the child's love of music.")
	if got.Rationale != "The family shares the child's love of music." {
		t.Fatalf("expected remaining text as rationale, got %q", got.Rationale)
	}

	got = ParseResponse("Rationale: strengths outweigh concerns\nScore: 64")
	if got.Rationale != "strengths outweigh concerns\nScore: 64" {
		t.Fatalf("unexpected rationale: %q", got.Rationale)
	}

	// A bare reasoning marker with no tail is not a rationale.
	got = ParseResponse("Score: 73%\nReasoning:")
	if got.Score != 73 || !got.WellFormed {
		t.Fatalf("unexpected score parse: %+v", got)
	}
	if got.Rationale != defaultRationale {
		t.Fatalf("expected placeholder for empty reasoning tail, got %q", got.Rationale)
	}
}

func TestParseResponseNeutralDefaultDistinctFromExplicit(t *testing.T) {
	explicit := ParseResponse("Score: 50\nReasoning: truly average")
	missing := ParseResponse("no usable content")

	if explicit.Score != missing.Score {
		t.Fatalf("both should be 50: explicit=%d missing=%d", explicit.Score, missing.Score)
	}
	if !explicit.WellFormed || missing.WellFormed {
		t.Fatal("well_formed flag must separate explicit 50 from parser miss")
	}
}

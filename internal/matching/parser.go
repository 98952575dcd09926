package matching

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NeutralScore is substituted when no numeric score can be extracted from a
// model response. Results carrying it have WellFormed set to false so quality
// metrics can distinguish parser misses from a genuine model-given 50.
const NeutralScore = 50

// defaultRationale is used when the response carries no descriptive text.
const defaultRationale = "No detailed reasoning provided"

// Assessment is the parsed form of a raw model reply.
type Assessment struct {
	Score      int
	Rationale  string
	WellFormed bool
}

var (
	// scoreRe matches a numeric token following a score marker, accepting
	// integers and floats ("Score: 73", "score = 85.5", "match score: 90%").
	scoreRe = regexp.MustCompile(`(?i)score\s*[:=\-]?\s*(\d+(?:\.\d+)?)`)

	// reasoningRe captures everything after an explicit reasoning marker.
	reasoningRe = regexp.MustCompile(`(?is)(?:reasoning|rationale)\s*[:\-]\s*(.+)`)
)

// ParseResponse extracts a score and rationale from free-form model output.
// Total on arbitrary input: it never panics and always returns an Assessment.
// The score is clamped into [0,100]; when no numeric token is found at all the
// neutral default is substituted and WellFormed reports false.
func ParseResponse(raw string) Assessment {
	text := strings.TrimSpace(raw)

	assessment := Assessment{
		Score:     NeutralScore,
		Rationale: extractRationale(text),
	}

	match := scoreRe.FindStringSubmatch(text)
	if match == nil {
		return assessment
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return assessment
	}

	assessment.Score = clamp(int(math.Round(value)))
	assessment.WellFormed = true
	return assessment
}

func extractRationale(text string) string {
	if match := reasoningRe.FindStringSubmatch(text); match != nil {
		if rationale := strings.TrimSpace(match[1]); rationale != "" {
			return rationale
		}
	}

	// Without an explicit marker the remaining descriptive text stands in,
	// minus any line that is only the score or a bare marker.
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || scoreOnlyLine(line) || markerOnlyLine(line) {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return defaultRationale
	}
	return strings.Join(lines, "\n")
}

var (
	scoreOnlyRe  = regexp.MustCompile(`(?i)^(?:match\s+)?score\s*[:=\-]?\s*\d+(?:\.\d+)?\s*%?\s*$`)
	markerOnlyRe = regexp.MustCompile(`(?i)^(?:reasoning|rationale)\s*[:\-]?\s*$`)
)

func scoreOnlyLine(line string) bool {
	return scoreOnlyRe.MatchString(line)
}

// markerOnlyLine matches a reasoning marker with nothing after it.
func markerOnlyLine(line string) bool {
	return markerOnlyRe.MatchString(line)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

package matching

import (
	"fmt"
	"strings"

	_ "embed"

	"github.com/heartmatch/heartmatch/internal/profile"
)

//go:embed prompt.md
var promptTemplate string

// defaultMaxPromptChars bounds the rendered prompt so oversized free-text
// notes cannot crowd out the structured fields.
const defaultMaxPromptChars = 8000

const truncationMark = " [truncated]"

// Rubric describes what the model is asked to weigh and how large the rendered
// prompt may grow.
type Rubric struct {
	Criteria       []string
	MaxPromptChars int
}

// DefaultRubric returns the built-in scoring rubric.
func DefaultRubric() Rubric {
	return Rubric{
		Criteria: []string{
			"Compatibility factors (interests, values, lifestyle)",
			"Special needs accommodations",
			"Age appropriateness",
			"Geographic considerations",
			"Family dynamics and preferences",
		},
		MaxPromptChars: defaultMaxPromptChars,
	}
}

// BuildPrompt renders the scoring prompt for one child/family pair. Identical
// inputs always produce a byte-identical prompt. When the rendered prompt
// exceeds the rubric's character budget, the child's free-text notes are
// truncated first, then the family's; structured fields are never cut. The
// returned flag reports that notes were cut or that the budget could not be
// met by cutting notes alone.
func BuildPrompt(child, family profile.AnonymizedProfile, rubric Rubric) (string, bool) {
	maxChars := rubric.MaxPromptChars
	if maxChars <= 0 {
		maxChars = defaultMaxPromptChars
	}

	childNotes := normalizeWhitespace(child.Notes)
	familyNotes := normalizeWhitespace(family.Notes)

	render := func() string {
		c := child
		c.Notes = childNotes
		f := family
		f.Notes = familyNotes

		prompt := promptTemplate
		prompt = strings.ReplaceAll(prompt, "{{CHILD_PROFILE}}", renderProfile(c))
		prompt = strings.ReplaceAll(prompt, "{{FAMILY_PROFILE}}", renderProfile(f))
		prompt = strings.ReplaceAll(prompt, "{{CRITERIA}}", renderCriteria(rubric.Criteria))
		return strings.TrimSpace(prompt) + "\n"
	}

	prompt := render()
	truncated := false

	for _, notes := range []*string{&childNotes, &familyNotes} {
		overflow := len(prompt) - maxChars
		if overflow <= 0 {
			break
		}
		if *notes == "" {
			continue
		}

		// A note shorter than the marker is dropped outright; replacing
		// it with the marker would grow the prompt instead of shrinking it.
		keep := len(*notes) - overflow - len(truncationMark)
		if keep <= 0 {
			*notes = ""
		} else {
			*notes = strings.TrimSpace((*notes)[:keep]) + truncationMark
		}
		truncated = true
		prompt = render()
	}

	// Structured fields are never cut, so a tight budget can still be
	// exceeded; report that so callers can log it.
	if len(prompt) > maxChars {
		truncated = true
	}

	return prompt, truncated
}

func renderProfile(p profile.AnonymizedProfile) string {
	var b strings.Builder

	line := func(key, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			value = "none"
		}
		fmt.Fprintf(&b, "- %s: %s\n", key, value)
	}

	line("reference", p.Ref)
	switch p.Kind {
	case profile.KindChild:
		line("age", fmt.Sprintf("%d", p.Age))
		line("region", p.Region)
		line("interests", strings.Join(p.Interests, ", "))
		line("special needs", strings.Join(p.SpecialNeeds, ", "))
		line("personality traits", strings.Join(p.Traits, ", "))
	case profile.KindFamily:
		line("household", p.Composition)
		line("region", p.Region)
		line("specializations", strings.Join(p.Specializations, ", "))
		line("preferences", strings.Join(p.Preferences, ", "))
		availability := "not currently available"
		if p.Available {
			availability = "available"
		}
		line("availability", availability)
	}
	line("notes", p.Notes)

	return strings.TrimRight(b.String(), "\n")
}

func renderCriteria(criteria []string) string {
	if len(criteria) == 0 {
		criteria = DefaultRubric().Criteria
	}

	lines := make([]string, 0, len(criteria))
	for _, c := range criteria {
		c = normalizeWhitespace(c)
		if c == "" {
			continue
		}
		lines = append(lines, "- "+c)
	}
	return strings.Join(lines, "\n")
}

// normalizeWhitespace collapses all runs of whitespace into single spaces so
// prompt rendering stays deterministic across input formatting.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

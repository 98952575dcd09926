package support

import "strings"

// DefaultCrisisKeywords is the built-in crisis language list. Deployments can
// extend it via configuration; matching is case-insensitive substring search
// so the check stays deterministic and never depends on model availability.
var DefaultCrisisKeywords = []string{
	"hurt myself",
	"hurting myself",
	"kill myself",
	"suicide",
	"suicidal",
	"want to die",
	"end my life",
	"self-harm",
	"self harm",
	"being abused",
	"abusing me",
	"hits me",
	"not safe at home",
	"unsafe at home",
}

// SafetyMessage is the fixed, pre-approved reply for risk-flagged input. It is
// never produced by a model.
const SafetyMessage = `You matter, and what you're feeling is important. I'm not able to help with this on my own, but caring people are available right now:

- Call or text 988 (Suicide & Crisis Lifeline), available 24/7
- Text HOME to 741741 (Crisis Text Line)
- If you are in immediate danger, call 911

Please also tell your social worker or another trusted adult how you are feeling.`

// RiskClassifier scans user text for crisis language before any model call.
type RiskClassifier struct {
	keywords []string
}

// NewRiskClassifier builds a classifier over the given keyword list, falling
// back to the built-in list when empty.
func NewRiskClassifier(keywords []string) *RiskClassifier {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultCrisisKeywords...)
	}
	return &RiskClassifier{keywords: cleaned}
}

// Detect reports whether the text contains crisis language, returning the
// first matched keyword. Pure and deterministic.
func (c *RiskClassifier) Detect(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, kw) {
			return kw, true
		}
	}
	return "", false
}

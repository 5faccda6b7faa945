// Task 3.3: result post-processor.
// Pure cleanup of raw model output plus a rule-based diff that derives
// "improvements made" tags. Rule-based rather than model-reported so the
// tags are deterministic and testable.
package enhance

import "strings"

// metaPrefixes are known meta-commentary openers the model emits despite the
// hard rules. Each is stripped at most once, case-insensitively.
var metaPrefixes = []string{
	"Here is the enhanced prompt:",
	"Enhanced prompt:",
	"Here's the improved version:",
	"Optimized prompt:",
	"**Enhanced Prompt:**",
}

// Clean normalizes raw model output: trims whitespace, strips known
// meta-commentary prefixes, unwraps a single outer pair of double quotes
// spanning the whole string, and applies target-specific fix-ups.
func Clean(raw string, target TargetProfile) string {
	text := strings.TrimSpace(raw)

	for _, prefix := range metaPrefixes {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}

	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	if target == TargetClaude {
		// Models sometimes pad angle-bracket tags with spaces, breaking the
		// XML-style delimiters Claude keys on.
		text = strings.ReplaceAll(text, "< ", "<")
		text = strings.ReplaceAll(text, " >", ">")
	}

	return text
}

// ===== IMPROVEMENT ANALYSIS =====

const (
	tagDetail      = "Added detail and specificity"
	tagStructure   = "Added structure"
	tagConstraints = "Added constraints"
	tagFormat      = "Specified output format"
	tagExamples    = "Added examples"
)

var constraintWords = []string{"must", "should", "avoid", "don't", "exactly", "specifically"}

var formatWords = []string{"format", "structure", "organize", "bullet", "numbered", "json", "markdown"}

var exampleMarkers = []string{"example:", "e.g.", "such as"}

// AnalyzeImprovements compares original and enhanced text and returns the
// change-category tags in fixed priority order, each at most once. Identical
// inputs yield an empty (non-nil) list.
func AnalyzeImprovements(original, enhanced string) []string {
	tags := []string{}
	origLower := strings.ToLower(original)
	enhLower := strings.ToLower(enhanced)

	if float64(len(enhanced)) > 1.5*float64(len(original)) {
		tags = append(tags, tagDetail)
	}
	if strings.Contains(enhanced, "\n") && !strings.Contains(original, "\n") {
		tags = append(tags, tagStructure)
	}
	if countAny(enhLower, constraintWords) > countAny(origLower, constraintWords) {
		tags = append(tags, tagConstraints)
	}
	if containsAny(enhLower, formatWords) && !containsAny(origLower, formatWords) {
		tags = append(tags, tagFormat)
	}
	if containsAny(enhLower, exampleMarkers) && !containsAny(origLower, exampleMarkers) {
		tags = append(tags, tagExamples)
	}

	return tags
}

// countAny sums the substring occurrence counts of every word in text.
func countAny(text string, words []string) int {
	total := 0
	for _, w := range words {
		total += strings.Count(text, w)
	}
	return total
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

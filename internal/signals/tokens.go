package signals

import "strings"

// Cognitive-token band limits by message class.
const (
	decisionTokenMin = 6
	decisionTokenMax = 10
	analysisTokenMin = 8
	analysisTokenMax = 12
	argumentTokenMin = 4
	argumentTokenMax = 6
	tokenCeiling     = 12
)

// CognitiveTokens scores a message's cognitive weight. Short agreements are
// always worth a single token; everything else starts from word volume and
// earns structural bonuses before being clamped into its class band.
func CognitiveTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 1
	}

	words := strings.Fields(trimmed)
	lines := countLines(trimmed)

	if len(words) <= 5 || canonicalAgrees.MatchString(trimmed) {
		return 1
	}

	tokens := (len(words) + 14) / 15

	lower := strings.ToLower(trimmed)
	if listItemRe.MatchString(trimmed) {
		tokens += 2
	}
	if strings.Count(trimmed, "?") >= 2 {
		tokens++
	}
	if containsAny(lower, conclusionMarkers) {
		tokens += 2
	}
	if containsAny(lower, argumentWords) {
		tokens += 2
	}
	isDecision := containsAny(lower, decisionWords)
	if isDecision {
		tokens += 4
	}
	tokens += lines / 5

	switch {
	case isDecision:
		return clampInt(tokens, decisionTokenMin, decisionTokenMax)
	case len(words) >= 150 || lines >= 10:
		return clampInt(tokens, analysisTokenMin, analysisTokenMax)
	case len(words) >= 50 || lines >= 5:
		return clampInt(tokens, argumentTokenMin, argumentTokenMax)
	default:
		return clampInt(tokens, 1, tokenCeiling)
	}
}

func countLines(text string) int {
	return strings.Count(text, "\n") + 1
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

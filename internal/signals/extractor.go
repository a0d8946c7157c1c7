package signals

import (
	"strings"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Extractor turns raw message text into a SignalRecord. The heuristic path is
// pure and deterministic; callers cache the record on the message.
type Extractor struct{}

// NewExtractor constructs the heuristic signal extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract derives the full signal record for one message.
func (e *Extractor) Extract(text string) models.SignalRecord {
	return models.SignalRecord{
		Sentiment:         Sentiment(text),
		CognitivePatterns: CognitivePatterns(text),
		BiasIndicators:    DetectBiases(text),
		TokenCount:        CognitiveTokens(text),
	}
}

// Sentiment scores text in [-1,1] from lexicon hits; 0 when no signal.
func Sentiment(text string) float64 {
	lower := strings.ToLower(text)
	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)
	if pos+neg == 0 {
		return 0
	}
	score := float64(pos-neg) / float64(pos+neg)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

// CognitivePatterns tags the message with canonical cognitive markers.
func CognitivePatterns(text string) []string {
	lower := strings.ToLower(text)
	tags := make([]string, 0, 4)

	if strings.Contains(text, "?") {
		tags = append(tags, TagQuestioning)
	}
	if containsAny(lower, argumentWords) {
		tags = append(tags, TagAnalysis)
	}
	if containsAny(lower, decisionWords) {
		tags = append(tags, TagDecision)
	}
	if agree, disagree := StanceHits(text); agree > 0 || disagree > 0 {
		if agree >= disagree {
			tags = append(tags, TagAgreement)
		}
		if disagree > 0 {
			tags = append(tags, TagDisagreement)
		}
	}
	if listItemRe.MatchString(text) {
		tags = append(tags, TagStructure)
	}
	if containsAny(lower, uncertaintyWords) {
		tags = append(tags, TagUncertainty)
	}
	if containsAny(lower, conclusionMarkers) {
		tags = append(tags, TagConclusion)
	}
	return tags
}

// DetectBiases scans the closed bias table and returns one indicator per
// matched type. Confidence scales with keyword hits, with phrase matches
// counting double, and is capped below certainty on purpose.
func DetectBiases(text string) []models.BiasIndicator {
	lower := strings.ToLower(text)
	indicators := make([]models.BiasIndicator, 0)

	for _, pattern := range biasPatterns {
		evidence := make([]string, 0, 2)
		keywordHits := 0
		for _, kw := range pattern.Keywords {
			if strings.Contains(lower, kw) {
				keywordHits++
				evidence = append(evidence, kw)
			}
		}
		phraseHits := 0
		for _, re := range pattern.Phrases {
			if m := re.FindString(text); m != "" {
				phraseHits++
				evidence = append(evidence, m)
			}
		}
		if keywordHits == 0 && phraseHits == 0 {
			continue
		}

		confidence := 0.3 + 0.15*float64(keywordHits+2*phraseHits)
		if confidence > 0.9 {
			confidence = 0.9
		}

		indicators = append(indicators, models.BiasIndicator{
			Type:           pattern.Type,
			Confidence:     confidence,
			Evidence:       evidence,
			Severity:       severityForConfidence(confidence),
			Recommendation: pattern.Recommendation,
		})
	}
	return indicators
}

// StanceHits counts agreement and disagreement keyword hits in the text. The
// window aggregator uses the ratio for the convergence rate.
func StanceHits(text string) (agree, disagree int) {
	return len(agreementRe.FindAllString(text, -1)), len(disagreementRe.FindAllString(text, -1))
}

func severityForConfidence(confidence float64) models.Severity {
	switch {
	case confidence > 0.7:
		return models.SeverityHigh
	case confidence > 0.4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func countHits(lower string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return hits
}

package enhance

import (
	"fmt"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Insight is the strict output schema of the enhanced-analysis collaborator.
type Insight struct {
	Sentiment         float64                `json:"sentiment"`
	CognitivePatterns []string               `json:"cognitive_patterns"`
	BiasRisk          float64                `json:"bias_risk"`
	CognitiveLoad     float64                `json:"cognitive_load"`
	BiasIndicators    []models.BiasIndicator `json:"bias_indicators"`
}

// Validate enforces the range bounds of every field.
func (i *Insight) Validate() error {
	if i.Sentiment < -1 || i.Sentiment > 1 {
		return fmt.Errorf("sentiment %.2f outside [-1,1]", i.Sentiment)
	}
	if i.BiasRisk < 0 || i.BiasRisk > 1 {
		return fmt.Errorf("bias_risk %.2f outside [0,1]", i.BiasRisk)
	}
	if i.CognitiveLoad < 0 || i.CognitiveLoad > 1 {
		return fmt.Errorf("cognitive_load %.2f outside [0,1]", i.CognitiveLoad)
	}
	known := make(map[models.BiasType]struct{})
	for _, t := range models.BiasTypes() {
		known[t] = struct{}{}
	}
	for _, ind := range i.BiasIndicators {
		if _, ok := known[ind.Type]; !ok {
			return fmt.Errorf("unknown bias type %q", ind.Type)
		}
		if ind.Confidence < 0 || ind.Confidence > 1 {
			return fmt.Errorf("bias confidence %.2f outside [0,1]", ind.Confidence)
		}
		if ind.Severity.Rank() == 0 {
			return fmt.Errorf("unknown severity %q", ind.Severity)
		}
	}
	return nil
}

// Blend folds validated insight into the heuristic record: scalar scores are
// averaged, pattern sets unioned, and bias confidences take the maximum per
// type. The token count stays heuristic; it gates the latch and must not
// depend on collaborator availability.
func Blend(heuristic models.SignalRecord, insight *Insight) models.SignalRecord {
	if insight == nil {
		return heuristic
	}

	merged := heuristic
	merged.Sentiment = (heuristic.Sentiment + insight.Sentiment) / 2
	merged.CognitivePatterns = unionStrings(heuristic.CognitivePatterns, insight.CognitivePatterns)
	merged.BiasIndicators = mergeIndicators(heuristic.BiasIndicators, insight.BiasIndicators)
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, set := range [][]string{a, b} {
		for _, s := range set {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// mergeIndicators keeps every distinct type, preferring whichever source
// reports the higher confidence for a shared type.
func mergeIndicators(heuristic, enhanced []models.BiasIndicator) []models.BiasIndicator {
	byType := make(map[models.BiasType]models.BiasIndicator, len(heuristic))
	order := make([]models.BiasType, 0, len(heuristic)+len(enhanced))

	for _, set := range [][]models.BiasIndicator{heuristic, enhanced} {
		for _, ind := range set {
			existing, ok := byType[ind.Type]
			if !ok {
				byType[ind.Type] = ind
				order = append(order, ind.Type)
				continue
			}
			if ind.Confidence > existing.Confidence {
				merged := ind
				merged.Evidence = unionStrings(existing.Evidence, ind.Evidence)
				byType[ind.Type] = merged
			} else {
				existing.Evidence = unionStrings(existing.Evidence, ind.Evidence)
				byType[ind.Type] = existing
			}
		}
	}

	out := make([]models.BiasIndicator, 0, len(order))
	for _, t := range order {
		out = append(out, byType[t])
	}
	return out
}

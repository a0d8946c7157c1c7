package windows

import (
	"fmt"
	"math"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// trendMinMessages is the floor below which no trend is derived.
const trendMinMessages = 5

// AnalyzeTrend derives direction, velocity, and confidence of change inside a
// single window by comparing metric vectors for its two chronological halves.
// This is a two-point derivative estimate, cheap and explainable, not a
// regression.
func AnalyzeTrend(windowMessages []models.Message, def models.TimeWindow) models.TrendResult {
	if len(windowMessages) < trendMinMessages {
		return models.TrendResult{
			Direction:  models.TrendStable,
			Velocity:   0,
			Confidence: 0.3,
			Prediction: "Not enough recent activity to project a direction.",
		}
	}

	mid := len(windowMessages) / 2
	halfMinutes := float64(def.DurationMinutes) / 2
	first := computeVector(windowMessages[:mid], halfMinutes, 1)
	second := computeVector(windowMessages[mid:], halfMinutes, 1)

	qualityDelta := second.DecisionQuality - first.DecisionQuality
	biasDelta := second.BiasRiskLevel - first.BiasRiskLevel

	direction := models.TrendStable
	switch {
	case qualityDelta > 0.1 && biasDelta < 0:
		direction = models.TrendImproving
	case qualityDelta < -0.1 || biasDelta > 0.1:
		direction = models.TrendDeclining
	}

	hours := float64(def.DurationMinutes) / 60
	velocity := math.Abs(qualityDelta) / hours
	confidence := math.Min(1, float64(len(windowMessages))/20)

	return models.TrendResult{
		Direction:  direction,
		Velocity:   velocity,
		Confidence: confidence,
		Prediction: predictionText(direction, velocity),
	}
}

func predictionText(direction models.TrendDirection, velocity float64) string {
	switch direction {
	case models.TrendImproving:
		return fmt.Sprintf("Decision quality is climbing at %.2f points/hour; keep the current rhythm.", velocity)
	case models.TrendDeclining:
		return fmt.Sprintf("Decision quality is slipping at %.2f points/hour; a short sync may help.", velocity)
	default:
		return "Discussion quality is holding steady."
	}
}

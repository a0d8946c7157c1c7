package thresholds

import (
	"fmt"
	"math"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Base thresholds before maturity scaling.
const (
	baseBias          = 0.6
	baseConvergence   = 0.7
	baseParticipation = 0.4
)

// Adapt classifies team maturity from age and volume and scales the trigger
// thresholds accordingly. Newer teams get looser tolerance; expert teams get
// stricter thresholds in both directions. The function is idempotent over its
// inputs and never persisted.
//
// Tiers match on whichever condition holds first, age OR volume per tier.
// That keeps an old but quiet team classified as new indefinitely; the
// asymmetry is intentional and carried into the rationale text.
func Adapt(teamAgeDays, totalMessages int) models.AdaptiveThresholds {
	maturity, multiplier := classify(teamAgeDays, totalMessages)

	return models.AdaptiveThresholds{
		TeamMaturity:                   maturity,
		AdjustedBiasThreshold:          math.Min(1, baseBias*multiplier),
		AdjustedConvergenceThreshold:   math.Min(1, baseConvergence*multiplier),
		AdjustedParticipationThreshold: math.Max(0.2, baseParticipation/multiplier),
		Rationale: fmt.Sprintf(
			"Team classified %s (%d days old, %d messages); thresholds scaled by %.2f.",
			maturity, teamAgeDays, totalMessages, multiplier),
	}
}

func classify(ageDays, totalMessages int) (models.TeamMaturity, float64) {
	switch {
	case ageDays < 7 || totalMessages < 50:
		return models.MaturityNew, 1.3
	case ageDays < 30 || totalMessages < 200:
		return models.MaturityDeveloping, 1.15
	case ageDays < 90 || totalMessages < 1000:
		return models.MaturityMature, 1.0
	default:
		return models.MaturityExpert, 0.85
	}
}

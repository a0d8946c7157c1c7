package windows

import (
	"math"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Cyclical pattern kinds.
const (
	PatternActivitySpike = "activity_spike"
	PatternActivityDrop  = "activity_drop"
)

// Anomaly kinds flagged by the per-window threshold scan.
const (
	AnomalyBiasSpike       = "bias_spike"
	AnomalyParticipation   = "participation_imbalance"
	AnomalyCognitiveLoad   = "cognitive_overload"
	cyclicalConfidence     = 0.7
	spikeRatioThreshold    = 2.0
	dropRatioThreshold     = 0.3
	biasSpikeThreshold     = 0.7
	biasSpikeHighThreshold = 0.85
	participationThreshold = 0.3
	overloadThreshold      = 0.8
	overloadHighThreshold  = 0.9
)

// Correlator compares horizons pairwise for divergence, cyclical activity,
// and point anomalies.
type Correlator struct {
	catalog []models.TimeWindow
}

// NewCorrelator builds a correlator over the given catalog.
func NewCorrelator(catalog []models.TimeWindow) *Correlator {
	return &Correlator{catalog: catalog}
}

// Correlate inspects the aggregated windows and assembles the cross-horizon
// report. Anomaly rules are independent booleans; one window can contribute
// several anomalies.
func (c *Correlator) Correlate(windows []models.WindowedMetrics) models.CrossWindowReport {
	report := models.CrossWindowReport{
		CyclicalPatterns: []models.CyclicalPattern{},
		Anomalies:        []models.Anomaly{},
	}

	report.Divergence = c.divergence(windows)

	if pattern, ok := c.cyclical(windows); ok {
		report.CyclicalPatterns = append(report.CyclicalPatterns, pattern)
	}

	for _, w := range windows {
		report.Anomalies = append(report.Anomalies, scanAnomalies(w)...)
	}

	return report
}

// divergence is the mean absolute gap between the short and long horizons
// across the three stability metrics. Missing windows yield zero.
func (c *Correlator) divergence(windows []models.WindowedMetrics) float64 {
	short, okShort := findMetrics(windows, WindowShort)
	long, okLong := findMetrics(windows, WindowLong)
	if !okShort || !okLong {
		return 0
	}
	sum := math.Abs(short.Metrics.DiversityIndex-long.Metrics.DiversityIndex) +
		math.Abs(short.Metrics.BiasRiskLevel-long.Metrics.BiasRiskLevel) +
		math.Abs(short.Metrics.ParticipationBalance-long.Metrics.ParticipationBalance)
	return sum / 3
}

// cyclical compares the immediate message rate against the historical rate on
// a common hourly basis.
func (c *Correlator) cyclical(windows []models.WindowedMetrics) (models.CyclicalPattern, bool) {
	immediate, okImm := findMetrics(windows, WindowImmediate)
	historical, okHist := findMetrics(windows, WindowHistorical)
	if !okImm || !okHist || historical.MessageCount == 0 {
		return models.CyclicalPattern{}, false
	}

	immDef, okDef := findWindow(c.catalog, WindowImmediate)
	histDef, okHistDef := findWindow(c.catalog, WindowHistorical)
	if !okDef || !okHistDef {
		return models.CyclicalPattern{}, false
	}

	immediateHourly := float64(immediate.MessageCount) / (float64(immDef.DurationMinutes) / 60)
	historicalHourly := float64(historical.MessageCount) / (float64(histDef.DurationMinutes) / 60)
	if historicalHourly == 0 {
		return models.CyclicalPattern{}, false
	}

	ratio := immediateHourly / historicalHourly
	switch {
	case ratio > spikeRatioThreshold:
		return models.CyclicalPattern{Kind: PatternActivitySpike, RateRatio: ratio, Confidence: cyclicalConfidence}, true
	case ratio < dropRatioThreshold:
		return models.CyclicalPattern{Kind: PatternActivityDrop, RateRatio: ratio, Confidence: cyclicalConfidence}, true
	default:
		return models.CyclicalPattern{}, false
	}
}

func scanAnomalies(w models.WindowedMetrics) []models.Anomaly {
	anomalies := make([]models.Anomaly, 0, 3)

	if w.Metrics.BiasRiskLevel > biasSpikeThreshold {
		severity := models.SeverityMedium
		if w.Metrics.BiasRiskLevel > biasSpikeHighThreshold {
			severity = models.SeverityHigh
		}
		anomalies = append(anomalies, models.Anomaly{
			WindowID: w.WindowID,
			Kind:     AnomalyBiasSpike,
			Value:    w.Metrics.BiasRiskLevel,
			Severity: severity,
		})
	}

	if w.Metrics.ParticipationBalance < participationThreshold && w.ParticipantCount > 2 {
		anomalies = append(anomalies, models.Anomaly{
			WindowID: w.WindowID,
			Kind:     AnomalyParticipation,
			Value:    w.Metrics.ParticipationBalance,
			Severity: models.SeverityMedium,
		})
	}

	if w.Metrics.CognitiveLoad > overloadThreshold {
		severity := models.SeverityMedium
		if w.Metrics.CognitiveLoad > overloadHighThreshold {
			severity = models.SeverityHigh
		}
		anomalies = append(anomalies, models.Anomaly{
			WindowID: w.WindowID,
			Kind:     AnomalyCognitiveLoad,
			Value:    w.Metrics.CognitiveLoad,
			Severity: severity,
		})
	}

	return anomalies
}

func findMetrics(windows []models.WindowedMetrics, id string) (models.WindowedMetrics, bool) {
	for _, w := range windows {
		if w.WindowID == id {
			return w, true
		}
	}
	return models.WindowedMetrics{}, false
}

package windows

import (
	"math"
	"testing"

	"github.com/synapsestack/csaw-engine/internal/models"
)

func windowWith(id string, count, participants int, m models.MetricsVector) models.WindowedMetrics {
	return models.WindowedMetrics{WindowID: id, MessageCount: count, ParticipantCount: participants, Metrics: m}
}

func TestDivergence(t *testing.T) {
	c := NewCorrelator(DefaultCatalog())

	ws := []models.WindowedMetrics{
		windowWith(WindowShort, 10, 3, models.MetricsVector{DiversityIndex: 0.9, BiasRiskLevel: 0.5, ParticipationBalance: 1}),
		windowWith(WindowLong, 40, 4, models.MetricsVector{DiversityIndex: 0.3, BiasRiskLevel: 0.1, ParticipationBalance: 0.4}),
	}

	got := c.Correlate(ws).Divergence
	want := (0.6 + 0.4 + 0.6) / 3
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("divergence = %.4f, want %.4f", got, want)
	}
}

func TestDivergenceZeroWhenHorizonMissing(t *testing.T) {
	c := NewCorrelator(DefaultCatalog())
	ws := []models.WindowedMetrics{
		windowWith(WindowShort, 10, 3, models.MetricsVector{DiversityIndex: 0.9}),
	}
	if got := c.Correlate(ws).Divergence; got != 0 {
		t.Fatalf("divergence = %.4f, want 0 with long horizon missing", got)
	}
}

func TestCyclicalSpikeAndDrop(t *testing.T) {
	c := NewCorrelator(DefaultCatalog())

	// 5 messages in 5 minutes is 60/hour; 24 in a day is 1/hour.
	spike := []models.WindowedMetrics{
		windowWith(WindowImmediate, 5, 3, models.MetricsVector{}),
		windowWith(WindowHistorical, 24, 5, models.MetricsVector{}),
	}
	report := c.Correlate(spike)
	if len(report.CyclicalPatterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(report.CyclicalPatterns))
	}
	p := report.CyclicalPatterns[0]
	if p.Kind != PatternActivitySpike {
		t.Fatalf("kind = %s, want %s", p.Kind, PatternActivitySpike)
	}
	if math.Abs(p.RateRatio-60) > 1e-9 {
		t.Fatalf("ratio = %.2f, want 60", p.RateRatio)
	}

	// 0 immediate messages against steady history reads as a drop.
	drop := []models.WindowedMetrics{
		windowWith(WindowImmediate, 0, 0, NeutralVector()),
		windowWith(WindowHistorical, 480, 5, models.MetricsVector{}),
	}
	report = c.Correlate(drop)
	if len(report.CyclicalPatterns) != 1 || report.CyclicalPatterns[0].Kind != PatternActivityDrop {
		t.Fatalf("expected an activity drop, got %+v", report.CyclicalPatterns)
	}
}

func TestAnomalyScan(t *testing.T) {
	c := NewCorrelator(DefaultCatalog())
	ws := []models.WindowedMetrics{
		windowWith(WindowImmediate, 10, 4, models.MetricsVector{
			BiasRiskLevel:        0.9,
			ParticipationBalance: 0.2,
			CognitiveLoad:        0.95,
		}),
	}

	report := c.Correlate(ws)
	kinds := make(map[string]models.Severity)
	for _, a := range report.Anomalies {
		kinds[a.Kind] = a.Severity
	}

	if sev, ok := kinds[AnomalyBiasSpike]; !ok || sev != models.SeverityHigh {
		t.Fatalf("bias spike = %v, want high severity present", kinds)
	}
	if sev, ok := kinds[AnomalyParticipation]; !ok || sev != models.SeverityMedium {
		t.Fatalf("participation anomaly = %v, want medium severity present", kinds)
	}
	if sev, ok := kinds[AnomalyCognitiveLoad]; !ok || sev != models.SeverityHigh {
		t.Fatalf("overload anomaly = %v, want high severity present", kinds)
	}
}

func TestAnomalyParticipationNeedsThreeParticipants(t *testing.T) {
	c := NewCorrelator(DefaultCatalog())
	ws := []models.WindowedMetrics{
		windowWith(WindowImmediate, 10, 2, models.MetricsVector{ParticipationBalance: 0.1}),
	}
	for _, a := range c.Correlate(ws).Anomalies {
		if a.Kind == AnomalyParticipation {
			t.Fatal("participation anomaly fired with only two participants")
		}
	}
}

package alerts

import (
	"testing"
	"time"

	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/windows"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func latchInput(delta, participants int, evidence []models.BiasIndicator) TriggerInput {
	return TriggerInput{
		ProjectID:          "p1",
		TokenDelta:         delta,
		RecentParticipants: participants,
		BiasEvidence:       evidence,
		Now:                testNow,
	}
}

func countByType(alerts []models.Alert, t models.PingType) int {
	n := 0
	for _, a := range alerts {
		if a.Type == t {
			n++
		}
	}
	return n
}

func TestLatchFiresOncePerBand(t *testing.T) {
	engine := NewTriggerEngine(nil, nil)
	state := newState()

	// 100 tokens lands in the dominance band and fires it.
	got := engine.Evaluate(state, latchInput(100, 3, nil))
	if len(got) != 1 || got[0].Type != models.PingDominance {
		t.Fatalf("first crossing = %+v, want one dominance alert", got)
	}
	if state.LastLatchedTokenTotal != 100 {
		t.Fatalf("latch watermark = %d, want 100", state.LastLatchedTokenTotal)
	}

	// Staying inside the same band must not re-fire it.
	got = engine.Evaluate(state, latchInput(20, 3, nil))
	if countByType(got, models.PingDominance) != 0 {
		t.Fatalf("dominance re-fired inside its band: %+v", got)
	}
}

func TestLatchBiasBandNeedsEvidence(t *testing.T) {
	engine := NewTriggerEngine(nil, nil)
	state := newState()
	state.CumulativeTokenTotal = 100
	state.LastLatchedTokenTotal = 100

	// Total moves to 130, inside the bias band, but without collaborator
	// evidence the band is skipped for the cycle.
	got := engine.Evaluate(state, latchInput(30, 4, nil))
	if len(got) != 0 {
		t.Fatalf("bias band fired without evidence: %+v", got)
	}

	evidence := []models.BiasIndicator{{
		Type:           models.BiasAnchoring,
		Confidence:     0.8,
		Severity:       models.SeverityHigh,
		Evidence:       []string{"original estimate"},
		Recommendation: "Re-estimate from scratch.",
	}}
	got = engine.Evaluate(state, latchInput(0, 4, evidence))
	if len(got) != 1 || got[0].Type != models.PingBias {
		t.Fatalf("bias band with evidence = %+v, want one bias alert", got)
	}
	if got[0].BiasType != models.BiasAnchoring {
		t.Fatalf("bias type = %s, want anchoring", got[0].BiasType)
	}
}

func TestLatchParticipantGate(t *testing.T) {
	engine := NewTriggerEngine(nil, nil)
	state := newState()

	got := engine.Evaluate(state, latchInput(100, 2, nil))
	if len(got) != 0 {
		t.Fatalf("latch fired for a two-person thread: %+v", got)
	}
	// The token total still advances; only firing is gated.
	if state.CumulativeTokenTotal != 100 {
		t.Fatalf("token total = %d, want 100", state.CumulativeTokenTotal)
	}
	if state.LastLatchedTokenTotal != 0 {
		t.Fatalf("watermark moved without a firing: %d", state.LastLatchedTokenTotal)
	}

	// Once a third participant joins, the armed band fires.
	got = engine.Evaluate(state, latchInput(0, 3, nil))
	if len(got) != 1 || got[0].Type != models.PingDominance {
		t.Fatalf("armed band did not fire after gate lifted: %+v", got)
	}
}

func TestLatchSkipsOvershotBands(t *testing.T) {
	engine := NewTriggerEngine(nil, nil)
	state := newState()

	// A huge first delta jumps past the dominance and bias bands entirely.
	// Only the lowest armed band containing the total fires; its watermark
	// then disarms the overlapping higher band for this total.
	got := engine.Evaluate(state, latchInput(220, 5, nil))
	if len(got) != 1 || got[0].Type != models.PingGroupthink {
		t.Fatalf("overshoot = %+v, want one groupthink alert", got)
	}
	if countByType(got, models.PingCognitiveLock) != 0 {
		t.Fatalf("overlapping band double-fired: %+v", got)
	}
}

func TestWindowTriggers(t *testing.T) {
	engine := NewTriggerEngine(nil, nil)
	state := newState()

	in := TriggerInput{
		ProjectID: "p1",
		Windows: []models.WindowedMetrics{{
			WindowID:         windows.WindowImmediate,
			MessageCount:     12,
			ParticipantCount: 4,
			Metrics: models.MetricsVector{
				BiasRiskLevel:        0.9,
				ConvergenceRate:      0.95,
				ParticipationBalance: 0.1,
			},
			Trend: models.TrendResult{
				Direction:  models.TrendDeclining,
				Velocity:   0.4,
				Confidence: 0.6,
				Prediction: "slipping",
			},
		}},
		Report:     models.CrossWindowReport{Divergence: 0.5},
		Thresholds: models.AdaptiveThresholds{AdjustedBiasThreshold: 0.6, AdjustedConvergenceThreshold: 0.7, AdjustedParticipationThreshold: 0.4},
		Now:        testNow,
	}

	got := engine.Evaluate(state, in)
	for _, pt := range []models.PingType{
		models.PingBias, models.PingConvergence, models.PingParticipation,
		models.PingTrendDecline, models.PingDivergence,
	} {
		if countByType(got, pt) != 1 {
			t.Fatalf("expected one %s alert, got %+v", pt, got)
		}
	}
	for _, a := range got {
		if len(a.Evidence) < 2 {
			t.Fatalf("%s alert has %d evidence entries, want >= 2", a.Type, len(a.Evidence))
		}
		if a.CreatedAt != testNow {
			t.Fatalf("%s alert timestamp = %v, want %v", a.Type, a.CreatedAt, testNow)
		}
	}
}

func TestWindowTriggersQuietWindow(t *testing.T) {
	engine := NewTriggerEngine(nil, nil)
	state := newState()

	in := TriggerInput{
		ProjectID: "p1",
		Windows: []models.WindowedMetrics{{
			WindowID:     windows.WindowImmediate,
			MessageCount: 0,
			Metrics:      models.MetricsVector{BiasRiskLevel: 0.9},
		}},
		Thresholds: models.AdaptiveThresholds{AdjustedBiasThreshold: 0.6},
		Now:        testNow,
	}

	if got := engine.Evaluate(state, in); len(got) != 0 {
		t.Fatalf("alerts from an empty window: %+v", got)
	}
}

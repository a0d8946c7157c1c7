package alerts

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/synapsestack/csaw-engine/internal/metrics"
	"github.com/synapsestack/csaw-engine/internal/models"
)

func candidate(t models.PingType, sev models.Severity, confidence float64) models.Alert {
	return models.Alert{
		ID:         string(t) + "-test",
		Type:       t,
		Severity:   sev,
		Confidence: confidence,
		Title:      "title",
		Message:    "message",
		Evidence:   []string{"one", "two"},
		CreatedAt:  testNow,
	}
}

func TestSignificantGates(t *testing.T) {
	f := NewFilter(nil)
	th := DefaultThresholds()

	lowConfidence := candidate(models.PingBias, models.SeverityHigh, 0.5)
	lowSeverity := candidate(models.PingBias, models.SeverityLow, 0.9)
	thinEvidence := candidate(models.PingBias, models.SeverityHigh, 0.9)
	thinEvidence.Evidence = []string{"only one"}
	keeper := candidate(models.PingBias, models.SeverityHigh, 0.9)

	got := f.Significant([]models.Alert{lowConfidence, lowSeverity, thinEvidence, keeper}, th)
	if len(got) != 1 || got[0].ID != keeper.ID {
		t.Fatalf("Significant = %+v, want only the keeper", got)
	}
}

func TestPrioritizeOrdering(t *testing.T) {
	f := NewFilter(nil)

	in := []models.Alert{
		candidate(models.PingDivergence, models.SeverityHigh, 0.9),
		candidate(models.PingConvergence, models.SeverityMedium, 0.95),
		candidate(models.PingBias, models.SeverityHigh, 0.7),
		candidate(models.PingParticipation, models.SeverityMedium, 0.8),
	}

	got := f.Prioritize(in)
	wantOrder := []models.PingType{
		models.PingBias,          // high severity, impact 5
		models.PingDivergence,    // high severity, impact 1
		models.PingParticipation, // medium severity, impact 3
		models.PingConvergence,   // medium severity, impact 2
	}
	for i, want := range wantOrder {
		if got[i].Type != want {
			t.Fatalf("position %d = %s, want %s (full order %+v)", i, got[i].Type, want, got)
		}
	}
	if in[0].Type != models.PingDivergence {
		t.Fatal("Prioritize mutated its input")
	}
}

func TestApplyCooldown(t *testing.T) {
	f := NewFilter(nil)
	th := DefaultThresholds()
	state := newState()

	first := f.Apply([]models.Alert{candidate(models.PingBias, models.SeverityHigh, 0.9)}, th, state, testNow)
	if len(first) != 1 {
		t.Fatalf("first alert rejected: %+v", first)
	}

	// Same type ten minutes later: inside the 30 minute cooldown.
	later := testNow.Add(10 * time.Minute)
	second := f.Apply([]models.Alert{candidate(models.PingBias, models.SeverityHigh, 0.9)}, th, state, later)
	if len(second) != 0 {
		t.Fatalf("cooldown did not suppress: %+v", second)
	}

	// A different type is unaffected by the bias cooldown.
	other := f.Apply([]models.Alert{candidate(models.PingDominance, models.SeverityHigh, 0.9)}, th, state, later)
	if len(other) != 1 {
		t.Fatalf("unrelated type suppressed: %+v", other)
	}

	// After the cooldown expires the type may fire again.
	expired := testNow.Add(31 * time.Minute)
	third := f.Apply([]models.Alert{candidate(models.PingBias, models.SeverityHigh, 0.9)}, th, state, expired)
	if len(third) != 1 {
		t.Fatalf("alert rejected after cooldown expiry: %+v", third)
	}
}

func TestApplySessionCapKeepsHighestPriority(t *testing.T) {
	f := NewFilter(nil)
	th := DefaultThresholds()
	state := newState()

	in := []models.Alert{
		candidate(models.PingDivergence, models.SeverityHigh, 0.9),
		candidate(models.PingBias, models.SeverityHigh, 0.9),
		candidate(models.PingConvergence, models.SeverityHigh, 0.9),
		candidate(models.PingGroupthink, models.SeverityHigh, 0.9),
		candidate(models.PingDominance, models.SeverityHigh, 0.9),
	}

	got := f.Apply(in, th, state, testNow)
	if len(got) != th.MaxAlertsPerSession {
		t.Fatalf("accepted %d alerts, want session cap %d", len(got), th.MaxAlertsPerSession)
	}
	// Highest-impact types survive the cap.
	wantTypes := map[models.PingType]bool{models.PingBias: true, models.PingGroupthink: true, models.PingDominance: true}
	for _, a := range got {
		if !wantTypes[a.Type] {
			t.Fatalf("low-impact type %s accepted over higher-impact candidates", a.Type)
		}
	}
	if state.AlertCountThisSession != th.MaxAlertsPerSession {
		t.Fatalf("session count = %d, want %d", state.AlertCountThisSession, th.MaxAlertsPerSession)
	}
}

// suppressedCount reads the csaw_alerts_suppressed_total sample for one
// reason label. The collectors are process-global, so tests compare deltas.
func suppressedCount(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "csaw_alerts_suppressed_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "reason" && label.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestFilterCountsSuppressions(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("register metrics: %v", err)
	}

	f := NewFilter(nil)
	th := DefaultThresholds()
	state := newState()

	sigBefore := suppressedCount(t, reg, metrics.SuppressSignificance)
	cooldownBefore := suppressedCount(t, reg, metrics.SuppressCooldown)
	capBefore := suppressedCount(t, reg, metrics.SuppressSessionCap)

	f.Significant([]models.Alert{candidate(models.PingBias, models.SeverityHigh, 0.5)}, th)
	if got := suppressedCount(t, reg, metrics.SuppressSignificance); got != sigBefore+1 {
		t.Fatalf("significance suppressions = %.0f, want %.0f", got, sigBefore+1)
	}

	// Accept once, then hit the per-type cooldown.
	f.Apply([]models.Alert{candidate(models.PingBias, models.SeverityHigh, 0.9)}, th, state, testNow)
	f.Apply([]models.Alert{candidate(models.PingBias, models.SeverityHigh, 0.9)}, th, state, testNow.Add(time.Minute))
	if got := suppressedCount(t, reg, metrics.SuppressCooldown); got != cooldownBefore+1 {
		t.Fatalf("cooldown suppressions = %.0f, want %.0f", got, cooldownBefore+1)
	}

	state.AlertCountThisSession = th.MaxAlertsPerSession
	f.Apply([]models.Alert{candidate(models.PingDominance, models.SeverityHigh, 0.9)}, th, state, testNow)
	if got := suppressedCount(t, reg, metrics.SuppressSessionCap); got != capBefore+1 {
		t.Fatalf("session-cap suppressions = %.0f, want %.0f", got, capBefore+1)
	}
}

func TestSummarizeHealthy(t *testing.T) {
	f := NewFilter(nil)
	got := f.Summarize(nil)
	if got.HealthScore != 100 {
		t.Fatalf("health = %.1f, want 100", got.HealthScore)
	}
	if got.SignificantBias != 0 {
		t.Fatalf("significant count = %d, want 0", got.SignificantBias)
	}
	if got.Headline == "" || got.Guidance == "" {
		t.Fatal("healthy summary missing positive text")
	}
}

func TestSummarizeSingleConcern(t *testing.T) {
	f := NewFilter(nil)

	top := candidate(models.PingBias, models.SeverityHigh, 1)
	top.Title = "Watch for anchoring bias"
	top.Suggestions = []string{"Re-estimate from scratch."}
	lesser := candidate(models.PingConvergence, models.SeverityMedium, 0.8)

	got := f.Summarize([]models.Alert{lesser, top})
	// 100 - 25*1.0 - 15*0.8 = 63.
	if math.Abs(got.HealthScore-63) > 1e-9 {
		t.Fatalf("health = %.2f, want 63", got.HealthScore)
	}
	if got.Headline != top.Title {
		t.Fatalf("headline = %q, want the top concern only", got.Headline)
	}
	if got.SignificantBias != 2 {
		t.Fatalf("significant count = %d, want 2", got.SignificantBias)
	}
}

func TestRegistryResetSession(t *testing.T) {
	r := NewRegistry(nil)
	r.WithProject("p1", func(s *State) {
		s.AlertCountThisSession = 3
		s.CumulativeTokenTotal = 180
		s.LastLatchedTokenTotal = 150
		s.LastAlertTimeByType[models.PingBias] = testNow
	})

	r.ResetSession("p1")

	got := r.Snapshot("p1")
	if got.AlertCountThisSession != 0 {
		t.Fatalf("session count = %d, want 0", got.AlertCountThisSession)
	}
	if got.LastLatchedTokenTotal != 0 {
		t.Fatalf("latch watermark = %d, want re-armed at 0", got.LastLatchedTokenTotal)
	}
	if len(got.LastAlertTimeByType) != 0 {
		t.Fatalf("cooldowns survived reset: %+v", got.LastAlertTimeByType)
	}
	// The token total itself is history, not session state.
	if got.CumulativeTokenTotal != 180 {
		t.Fatalf("token total = %d, want preserved 180", got.CumulativeTokenTotal)
	}
}

package windows

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/synapsestack/csaw-engine/internal/models"
)

var mediumDef = models.TimeWindow{ID: WindowMedium, DurationMinutes: 60, RecencyWeight: 0.75}

func TestTrendRequiresFiveMessages(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		msg("t1", "a", "one", now, plainSignals(2)),
		msg("t2", "b", "two", now, plainSignals(2)),
	}

	got := AnalyzeTrend(msgs, mediumDef)
	if got.Direction != models.TrendStable {
		t.Fatalf("direction = %s, want stable", got.Direction)
	}
	if math.Abs(got.Confidence-0.3) > 1e-9 {
		t.Fatalf("confidence = %.2f, want 0.3", got.Confidence)
	}
	if got.Velocity != 0 {
		t.Fatalf("velocity = %.2f, want 0", got.Velocity)
	}
}

func TestTrendDecliningOnBiasRise(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]models.Message, 0, 10)
	// First half: clean, well-tokened discussion.
	for i := 0; i < 5; i++ {
		msgs = append(msgs, msg(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i%3), "careful reasoning",
			now.Add(time.Duration(i)*time.Minute), &models.SignalRecord{TokenCount: 8}))
	}
	// Second half: heavy bias signal.
	for i := 5; i < 10; i++ {
		msgs = append(msgs, msg(fmt.Sprintf("b%d", i), fmt.Sprintf("u%d", i%3), "obviously confirmed",
			now.Add(time.Duration(i)*time.Minute), &models.SignalRecord{
				TokenCount:     8,
				BiasIndicators: []models.BiasIndicator{{Type: models.BiasConfirmation, Confidence: 0.8}},
			}))
	}

	got := AnalyzeTrend(msgs, mediumDef)
	if got.Direction != models.TrendDeclining {
		t.Fatalf("direction = %s, want declining", got.Direction)
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Fatalf("confidence = %.2f outside (0,1]", got.Confidence)
	}
	if got.Prediction == "" {
		t.Fatal("declining trend has no prediction text")
	}
}

func TestTrendConfidenceScalesWithVolume(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	build := func(n int) []models.Message {
		out := make([]models.Message, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, msg(fmt.Sprintf("v%d", i), fmt.Sprintf("u%d", i%3), "steady",
				now.Add(time.Duration(i)*time.Minute), plainSignals(4)))
		}
		return out
	}

	small := AnalyzeTrend(build(6), mediumDef)
	large := AnalyzeTrend(build(30), mediumDef)
	if math.Abs(small.Confidence-0.3) > 1e-9 {
		t.Fatalf("6-message confidence = %.2f, want 0.3", small.Confidence)
	}
	if math.Abs(large.Confidence-1) > 1e-9 {
		t.Fatalf("30-message confidence = %.2f, want capped at 1", large.Confidence)
	}
}

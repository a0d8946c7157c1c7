package windows

import (
	"math"
	"sort"
	"time"

	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/signals"
)

// Aggregator computes per-horizon cognitive metrics over a message stream.
// Aggregate is a pure function of its inputs: identical messages and the same
// reference time always produce identical windowed metrics.
type Aggregator struct{}

// NewAggregator constructs the sliding-window aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate buckets messages into each catalog window ending at now and
// derives the metrics vector and trend per horizon.
func (a *Aggregator) Aggregate(messages []models.Message, now time.Time, catalog []models.TimeWindow) []models.WindowedMetrics {
	results := make([]models.WindowedMetrics, 0, len(catalog))
	for _, def := range catalog {
		selected := selectWindow(messages, now, def.Duration())
		results = append(results, models.WindowedMetrics{
			WindowID:         def.ID,
			MessageCount:     len(selected),
			ParticipantCount: uniqueAuthors(selected),
			Metrics:          computeVector(selected, float64(def.DurationMinutes), def.RecencyWeight),
			Trend:            AnalyzeTrend(selected, def),
		})
	}
	return results
}

func selectWindow(messages []models.Message, now time.Time, span time.Duration) []models.Message {
	cutoff := now.Add(-span)
	selected := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Timestamp.Before(cutoff) || m.Timestamp.After(now) {
			continue
		}
		selected = append(selected, m)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	return selected
}

// computeVector derives the eight-metric vector for one message bucket.
// An empty bucket yields the neutral vector rather than zeros so a quiet
// window does not read as a quality collapse downstream.
func computeVector(msgs []models.Message, durationMinutes, weight float64) models.MetricsVector {
	if len(msgs) == 0 {
		return NeutralVector()
	}

	v := models.MetricsVector{}

	authors := uniqueAuthors(msgs)
	tags := uniquePatternTags(msgs)
	v.DiversityIndex = weight * (0.6*math.Min(1, float64(authors)/5) + 0.4*math.Min(1, float64(tags)/10))

	v.CriticalThinkingScore = weight * math.Min(1, meanTokenCount(msgs)/8)

	agree, disagree := 0, 0
	for _, m := range msgs {
		a, d := signals.StanceHits(m.Content)
		agree += a
		disagree += d
	}
	if agree+disagree > 0 {
		v.ConvergenceRate = float64(agree) / float64(agree+disagree)
	} else {
		v.ConvergenceRate = 0.5
	}

	v.BiasRiskLevel = meanBiasConfidence(msgs)
	v.ParticipationBalance = participationBalance(msgs)

	perMinute := float64(len(msgs)) / math.Max(durationMinutes, 1)
	v.CognitiveLoad = 0.6*math.Min(1, perMinute/5) + 0.4*math.Min(1, meanMessageLength(msgs)/500)

	v.EmotionalTone = meanSentiment(msgs)
	v.DecisionQuality = decisionQuality(v)

	return clampVector(v)
}

// NeutralVector is the default metric set for windows with no messages.
func NeutralVector() models.MetricsVector {
	v := models.MetricsVector{
		DiversityIndex:        0.5,
		CriticalThinkingScore: 0.5,
		ConvergenceRate:       0.5,
		BiasRiskLevel:         0,
		ParticipationBalance:  1,
		CognitiveLoad:         0,
		EmotionalTone:         0,
	}
	v.DecisionQuality = decisionQuality(v)
	return v
}

// decisionQuality blends the four quality-bearing metrics at equal weight;
// bias risk enters inverted so higher risk drags quality down.
func decisionQuality(v models.MetricsVector) float64 {
	return 0.25*v.DiversityIndex +
		0.25*v.CriticalThinkingScore +
		0.25*v.ParticipationBalance +
		0.25*(1-v.BiasRiskLevel)
}

func uniqueAuthors(msgs []models.Message) int {
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m.AuthorID == "" {
			continue
		}
		seen[m.AuthorID] = struct{}{}
	}
	return len(seen)
}

func uniquePatternTags(msgs []models.Message) int {
	seen := make(map[string]struct{})
	for _, m := range msgs {
		if m.Signals == nil {
			continue
		}
		for _, tag := range m.Signals.CognitivePatterns {
			seen[tag] = struct{}{}
		}
	}
	return len(seen)
}

func meanTokenCount(msgs []models.Message) float64 {
	total, counted := 0, 0
	for _, m := range msgs {
		if m.Signals == nil {
			continue
		}
		total += m.Signals.TokenCount
		counted++
	}
	if counted == 0 {
		return 0
	}
	return float64(total) / float64(counted)
}

// meanBiasConfidence averages the strongest indicator per message across
// messages that carry any bias signal at all.
func meanBiasConfidence(msgs []models.Message) float64 {
	total, counted := 0.0, 0
	for _, m := range msgs {
		if m.Signals == nil || len(m.Signals.BiasIndicators) == 0 {
			continue
		}
		strongest := 0.0
		for _, ind := range m.Signals.BiasIndicators {
			if ind.Confidence > strongest {
				strongest = ind.Confidence
			}
		}
		total += strongest
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

// participationBalance measures how evenly authors share the conversation:
// 1 minus the mean absolute deviation of per-author counts over the ideal
// equal share, floored at zero. A window with at most one author is balanced
// by definition.
func participationBalance(msgs []models.Message) float64 {
	counts := make(map[string]int)
	for _, m := range msgs {
		if m.AuthorID == "" {
			continue
		}
		counts[m.AuthorID]++
	}
	if len(counts) <= 1 {
		return 1
	}

	ideal := float64(len(msgs)) / float64(len(counts))
	deviation := 0.0
	for _, c := range counts {
		deviation += math.Abs(float64(c) - ideal)
	}
	deviation /= float64(len(counts))

	return math.Max(0, 1-deviation/ideal)
}

func meanMessageLength(msgs []models.Message) float64 {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	return float64(total) / float64(len(msgs))
}

func meanSentiment(msgs []models.Message) float64 {
	total, counted := 0.0, 0
	for _, m := range msgs {
		if m.Signals == nil {
			continue
		}
		total += m.Signals.Sentiment
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func clampVector(v models.MetricsVector) models.MetricsVector {
	v.DiversityIndex = clamp(v.DiversityIndex, 0, 1)
	v.CriticalThinkingScore = clamp(v.CriticalThinkingScore, 0, 1)
	v.ConvergenceRate = clamp(v.ConvergenceRate, 0, 1)
	v.BiasRiskLevel = clamp(v.BiasRiskLevel, 0, 1)
	v.ParticipationBalance = clamp(v.ParticipationBalance, 0, 1)
	v.DecisionQuality = clamp(v.DecisionQuality, 0, 1)
	v.CognitiveLoad = clamp(v.CognitiveLoad, 0, 1)
	v.EmotionalTone = clamp(v.EmotionalTone, -1, 1)
	return v
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

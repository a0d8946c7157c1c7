package alerts

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/windows"
)

// TokenBand is a one-shot cumulative-token trigger range for one ping type.
type TokenBand struct {
	Type models.PingType
	Min  int
	Max  int
}

// DefaultBands returns the built-in latch bands, ordered by Min.
func DefaultBands() []TokenBand {
	return []TokenBand{
		{Type: models.PingDominance, Min: 80, Max: 150},
		{Type: models.PingBias, Min: 120, Max: 200},
		{Type: models.PingGroupthink, Min: 150, Max: 250},
		{Type: models.PingCognitiveLock, Min: 200, Max: 300},
	}
}

// latchMinParticipants gates every band: small threads never latch.
const latchMinParticipants = 3

// divergenceTriggerThreshold is the fixed cross-horizon breach level.
const divergenceTriggerThreshold = 0.4

// TriggerInput carries everything one trigger pass needs.
type TriggerInput struct {
	ProjectID          string
	Windows            []models.WindowedMetrics
	Report             models.CrossWindowReport
	Thresholds         models.AdaptiveThresholds
	TokenDelta         int
	RecentParticipants int
	BiasEvidence       []models.BiasIndicator
	Now                time.Time
}

// TriggerEngine produces candidate alerts from two independent families:
// instantaneous threshold breaches on the immediate window, and the
// cumulative-token one-shot latch.
type TriggerEngine struct {
	logger *slog.Logger
	bands  []TokenBand
}

// NewTriggerEngine constructs a trigger engine with the given bands; nil
// bands selects the defaults.
func NewTriggerEngine(logger *slog.Logger, bands []TokenBand) *TriggerEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	sorted := append([]TokenBand(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })
	return &TriggerEngine{logger: logger, bands: sorted}
}

// Evaluate runs both trigger families against the project state. The caller
// must hold the project lock (Registry.WithProject); Evaluate mutates the
// token counters on state.
func (e *TriggerEngine) Evaluate(state *State, in TriggerInput) []models.Alert {
	candidates := e.windowTriggers(in)
	candidates = append(candidates, e.latchTriggers(state, in)...)
	return candidates
}

func (e *TriggerEngine) windowTriggers(in TriggerInput) []models.Alert {
	immediate, ok := findWindow(in.Windows, windows.WindowImmediate)
	if !ok || immediate.MessageCount == 0 {
		return nil
	}

	m := immediate.Metrics
	th := in.Thresholds
	out := make([]models.Alert, 0, 4)

	if m.BiasRiskLevel > th.AdjustedBiasThreshold {
		out = append(out, e.newAlert(in.Now, models.PingBias, models.SeverityHigh, m.BiasRiskLevel,
			"Bias risk is elevated",
			"Recent messages show a concentration of bias markers. Worth a quick perspective check before the next decision.",
			[]string{"Ask a teammate to state the strongest counter-argument.", "Revisit the evidence behind the leading option."},
			evidencePair("bias risk", m.BiasRiskLevel, th.AdjustedBiasThreshold),
			&models.AlertStat{Label: "bias_risk", Value: m.BiasRiskLevel},
		))
	}

	if m.ConvergenceRate > th.AdjustedConvergenceThreshold {
		out = append(out, e.newAlert(in.Now, models.PingConvergence, models.SeverityMedium, m.ConvergenceRate,
			"The group is converging fast",
			"Agreement is outpacing discussion. Fast consensus can hide unexplored options.",
			[]string{"Spend five minutes listing alternatives before closing the topic."},
			evidencePair("convergence rate", m.ConvergenceRate, th.AdjustedConvergenceThreshold),
			&models.AlertStat{Label: "convergence_rate", Value: m.ConvergenceRate},
		))
	}

	if m.ParticipationBalance < th.AdjustedParticipationThreshold {
		out = append(out, e.newAlert(in.Now, models.PingParticipation, models.SeverityMedium, 1-m.ParticipationBalance,
			"Participation is uneven",
			"A small subset of the team is carrying the conversation.",
			[]string{"Invite quieter teammates to weigh in directly."},
			evidencePair("participation balance", m.ParticipationBalance, th.AdjustedParticipationThreshold),
			&models.AlertStat{Label: "participation_balance", Value: m.ParticipationBalance},
		))
	}

	if immediate.Trend.Direction == models.TrendDeclining && immediate.Trend.Confidence >= 0.5 {
		out = append(out, e.newAlert(in.Now, models.PingTrendDecline, models.SeverityMedium, immediate.Trend.Confidence,
			"Discussion quality is declining",
			immediate.Trend.Prediction,
			[]string{"Pause and restate the decision at hand.", "Summarise the open questions so far."},
			[]string{
				fmt.Sprintf("quality velocity %.2f/hour", immediate.Trend.Velocity),
				fmt.Sprintf("trend confidence %.2f", immediate.Trend.Confidence),
			},
			&models.AlertStat{Label: "trend_velocity", Value: immediate.Trend.Velocity},
		))
	}

	if in.Report.Divergence > divergenceTriggerThreshold {
		out = append(out, e.newAlert(in.Now, models.PingDivergence, models.SeverityLow, in.Report.Divergence,
			"Short-term behaviour diverges from the longer pattern",
			"The last few minutes look different from the team's recent norm.",
			[]string{"Check whether the topic or the participants changed."},
			evidencePair("horizon divergence", in.Report.Divergence, divergenceTriggerThreshold),
			&models.AlertStat{Label: "divergence", Value: in.Report.Divergence},
		))
	}

	for _, anomaly := range in.Report.Anomalies {
		if anomaly.WindowID != windows.WindowImmediate {
			continue
		}
		out = append(out, e.newAlert(in.Now, models.PingAnomaly, anomaly.Severity, anomaly.Value,
			fmt.Sprintf("Anomaly: %s", anomaly.Kind),
			fmt.Sprintf("The immediate window tripped the %s rule.", anomaly.Kind),
			nil,
			[]string{
				fmt.Sprintf("%s value %.2f", anomaly.Kind, anomaly.Value),
				fmt.Sprintf("window %s", anomaly.WindowID),
			},
			&models.AlertStat{Label: anomaly.Kind, Value: anomaly.Value},
		))
	}

	return out
}

// latchTriggers advances the cumulative-token total and fires at most one
// band per crossing. A fired band moves the watermark to the current total,
// disarming every band whose floor now sits below it.
func (e *TriggerEngine) latchTriggers(state *State, in TriggerInput) []models.Alert {
	if in.TokenDelta > 0 {
		state.CumulativeTokenTotal += in.TokenDelta
	}

	if in.RecentParticipants < latchMinParticipants {
		e.logger.Debug("latch gated on participant count",
			slog.String("project_id", in.ProjectID),
			slog.Int("participants", in.RecentParticipants))
		return nil
	}

	total := state.CumulativeTokenTotal
	out := make([]models.Alert, 0, 1)

	for _, band := range e.bands {
		if total < band.Min || total > band.Max {
			continue
		}
		if state.LastLatchedTokenTotal >= band.Min {
			continue
		}
		if band.Type == models.PingBias && len(in.BiasEvidence) == 0 {
			// Bias band needs collaborator-supplied evidence; degrade by
			// skipping just this band for the cycle.
			e.logger.Debug("bias band skipped, no evidence available",
				slog.String("project_id", in.ProjectID))
			continue
		}

		out = append(out, e.latchAlert(state, band, in))
		state.LastLatchedTokenTotal = total
	}

	return out
}

func (e *TriggerEngine) latchAlert(state *State, band TokenBand, in TriggerInput) models.Alert {
	stat := &models.AlertStat{Label: "cumulative_tokens", Value: float64(state.CumulativeTokenTotal)}
	evidence := []string{
		fmt.Sprintf("cumulative cognitive tokens %d", state.CumulativeTokenTotal),
		fmt.Sprintf("band %d-%d", band.Min, band.Max),
	}

	switch band.Type {
	case models.PingBias:
		top := in.BiasEvidence[0]
		for _, ind := range in.BiasEvidence[1:] {
			if ind.Confidence > top.Confidence {
				top = ind
			}
		}
		alert := e.newAlert(in.Now, models.PingBias, top.Severity, top.Confidence,
			fmt.Sprintf("Watch for %s bias", top.Type),
			top.Recommendation,
			[]string{top.Recommendation},
			append(evidence, top.Evidence...),
			stat,
		)
		alert.BiasType = top.Type
		return alert
	case models.PingGroupthink:
		return e.newAlert(in.Now, models.PingGroupthink, models.SeverityMedium, 0.7,
			"Groupthink check-in",
			"The conversation has accumulated enough weight that unchallenged consensus becomes a risk.",
			[]string{"Have each participant note one concern privately, then compare."},
			evidence, stat)
	case models.PingDominance:
		return e.newAlert(in.Now, models.PingDominance, models.SeverityMedium, 0.7,
			"Voice balance check-in",
			"A lot of discussion has happened; make sure it is not one voice steering it.",
			[]string{"Hand the next summary to someone who has not spoken recently."},
			evidence, stat)
	default:
		return e.newAlert(in.Now, models.PingCognitiveLock, models.SeverityMedium, 0.7,
			"Fresh-eyes check-in",
			"The thread is long enough that early framing may be locking the discussion in.",
			[]string{"Restate the problem from scratch in one sentence each."},
			evidence, stat)
	}
}

func (e *TriggerEngine) newAlert(now time.Time, t models.PingType, sev models.Severity, confidence float64,
	title, message string, suggestions, evidence []string, stat *models.AlertStat) models.Alert {
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return models.Alert{
		ID:          uuid.NewString(),
		Type:        t,
		Severity:    sev,
		Confidence:  confidence,
		Title:       title,
		Message:     message,
		Suggestions: suggestions,
		Evidence:    evidence,
		Stats:       stat,
		CreatedAt:   now,
	}
}

func evidencePair(name string, value, threshold float64) []string {
	return []string{
		fmt.Sprintf("%s %.2f", name, value),
		fmt.Sprintf("threshold %.2f", threshold),
	}
}

func findWindow(ws []models.WindowedMetrics, id string) (models.WindowedMetrics, bool) {
	for _, w := range ws {
		if w.WindowID == id {
			return w, true
		}
	}
	return models.WindowedMetrics{}, false
}

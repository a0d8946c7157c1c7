package alerts

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/synapsestack/csaw-engine/internal/metrics"
	"github.com/synapsestack/csaw-engine/internal/models"
)

// FilterThresholds control significance, rate limiting, and session caps.
type FilterThresholds struct {
	MinConfidence       float64         `yaml:"min_confidence"`
	MinSeverity         models.Severity `yaml:"min_severity"`
	MinEvidenceCount    int             `yaml:"min_evidence_count"`
	CooldownMinutes     int             `yaml:"cooldown_minutes"`
	MaxAlertsPerSession int             `yaml:"max_alerts_per_session"`
}

// DefaultThresholds returns the baseline filter configuration.
func DefaultThresholds() FilterThresholds {
	return FilterThresholds{
		MinConfidence:       0.6,
		MinSeverity:         models.SeverityMedium,
		MinEvidenceCount:    2,
		CooldownMinutes:     30,
		MaxAlertsPerSession: 3,
	}
}

// impactWeights rank each ping type by team impact, 1 (background) to 5
// (decision-threatening). Used as the secondary prioritisation key.
var impactWeights = map[models.PingType]int{
	models.PingBias:          5,
	models.PingGroupthink:    5,
	models.PingDominance:     4,
	models.PingCognitiveLock: 4,
	models.PingParticipation: 3,
	models.PingTrendDecline:  3,
	models.PingAnomaly:       3,
	models.PingConvergence:   2,
	models.PingDivergence:    1,
}

// severityPenalties feed the cognitive-health score.
var severityPenalties = map[models.Severity]float64{
	models.SeverityLow:    5,
	models.SeverityMedium: 15,
	models.SeverityHigh:   25,
}

// Filter deduplicates, rate-limits, and prioritises candidate alerts. Its
// defining rule: the user never sees more than one dominant concern at a
// time, however many were detected.
type Filter struct {
	logger *slog.Logger
}

// NewFilter constructs a smart filter.
func NewFilter(logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{logger: logger}
}

// Significant drops candidates that fail the significance gates; it does not
// touch state.
func (f *Filter) Significant(candidates []models.Alert, th FilterThresholds) []models.Alert {
	out := make([]models.Alert, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence < th.MinConfidence || c.Severity.Rank() < th.MinSeverity.Rank() || len(c.Evidence) < th.MinEvidenceCount {
			metrics.ObserveSuppression(metrics.SuppressSignificance)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Prioritize orders alerts by severity, then static team-impact weight, then
// confidence, all descending. The input slice is not modified.
func (f *Filter) Prioritize(candidates []models.Alert) []models.Alert {
	ordered := append([]models.Alert(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if impactWeights[a.Type] != impactWeights[b.Type] {
			return impactWeights[a.Type] > impactWeights[b.Type]
		}
		return a.Confidence > b.Confidence
	})
	return ordered
}

// Apply runs the full accept path: significance, prioritisation, then
// cooldown and session-cap checks in priority order. Accepted alerts are
// recorded on state; the caller must hold the project lock.
func (f *Filter) Apply(candidates []models.Alert, th FilterThresholds, state *State, now time.Time) []models.Alert {
	significant := f.Significant(candidates, th)
	ordered := f.Prioritize(significant)

	cooldown := time.Duration(th.CooldownMinutes) * time.Minute
	accepted := make([]models.Alert, 0, len(ordered))

	for _, alert := range ordered {
		if state.AlertCountThisSession >= th.MaxAlertsPerSession {
			f.logger.Debug("alert suppressed by session cap", slog.String("type", string(alert.Type)))
			metrics.ObserveSuppression(metrics.SuppressSessionCap)
			continue
		}
		if last, ok := state.LastAlertTimeByType[alert.Type]; ok && now.Sub(last) < cooldown {
			f.logger.Debug("alert suppressed by cooldown", slog.String("type", string(alert.Type)))
			metrics.ObserveSuppression(metrics.SuppressCooldown)
			continue
		}
		state.LastAlertTimeByType[alert.Type] = now
		state.AlertCountThisSession++
		accepted = append(accepted, alert)
	}

	return accepted
}

// Summarize condenses the significant findings into a single user-facing
// read with a cognitive-health score. When anything significant was found,
// only the top-priority concern is voiced; a raw list is never shown.
func (f *Filter) Summarize(significant []models.Alert) models.SmartSummary {
	score := 100.0
	for _, alert := range significant {
		score -= severityPenalties[alert.Severity] * alert.Confidence
	}
	if score < 0 {
		score = 0
	}

	if len(significant) == 0 {
		return models.SmartSummary{
			HealthScore:     score,
			Headline:        "Discussion health looks good",
			Guidance:        "No significant cognitive risks detected. Keep the conversation flowing.",
			SignificantBias: 0,
		}
	}

	top := f.Prioritize(significant)[0]
	return models.SmartSummary{
		HealthScore:     score,
		Headline:        top.Title,
		Guidance:        fmt.Sprintf("%s %s", top.Message, firstSuggestion(top)),
		SignificantBias: len(significant),
	}
}

func firstSuggestion(alert models.Alert) string {
	if len(alert.Suggestions) == 0 {
		return ""
	}
	return alert.Suggestions[0]
}

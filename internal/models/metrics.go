package models

import "time"

// TimeWindow defines one horizon in the sliding-window catalog.
type TimeWindow struct {
	ID              string  `json:"id"`
	DurationMinutes int     `json:"duration_minutes"`
	RecencyWeight   float64 `json:"recency_weight"`
}

// Duration returns the window span as a time.Duration.
func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.DurationMinutes) * time.Minute
}

// MetricsVector is the aggregate cognitive metric set for one window. All
// values live in [0,1] except EmotionalTone, which lives in [-1,1].
type MetricsVector struct {
	DiversityIndex        float64 `json:"diversity_index"`
	CriticalThinkingScore float64 `json:"critical_thinking_score"`
	ConvergenceRate       float64 `json:"convergence_rate"`
	BiasRiskLevel         float64 `json:"bias_risk_level"`
	ParticipationBalance  float64 `json:"participation_balance"`
	DecisionQuality       float64 `json:"decision_quality"`
	CognitiveLoad         float64 `json:"cognitive_load"`
	EmotionalTone         float64 `json:"emotional_tone"`
}

// TrendDirection labels the two-half trend estimate.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendStable    TrendDirection = "stable"
	TrendDeclining TrendDirection = "declining"
)

// TrendResult is the per-window direction/velocity/confidence estimate.
type TrendResult struct {
	Direction  TrendDirection `json:"direction"`
	Velocity   float64        `json:"velocity"`
	Confidence float64        `json:"confidence"`
	Prediction string         `json:"prediction"`
}

// WindowedMetrics is the derived aggregate for one catalog window.
type WindowedMetrics struct {
	WindowID         string        `json:"window_id"`
	MessageCount     int           `json:"message_count"`
	ParticipantCount int           `json:"participant_count"`
	Metrics          MetricsVector `json:"metrics"`
	Trend            TrendResult   `json:"trend"`
}

// CyclicalPattern marks a recurring activity rhythm found across horizons.
type CyclicalPattern struct {
	Kind       string  `json:"kind"`
	RateRatio  float64 `json:"rate_ratio"`
	Confidence float64 `json:"confidence"`
}

// Anomaly flags a single-window metric outside its absolute band.
type Anomaly struct {
	WindowID string   `json:"window_id"`
	Kind     string   `json:"kind"`
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
}

// CrossWindowReport is the correlator output across the full catalog.
type CrossWindowReport struct {
	Divergence       float64           `json:"divergence"`
	CyclicalPatterns []CyclicalPattern `json:"cyclical_patterns"`
	Anomalies        []Anomaly         `json:"anomalies"`
}

// TeamMaturity is the four-tier classification driving threshold scaling.
type TeamMaturity string

const (
	MaturityNew        TeamMaturity = "new"
	MaturityDeveloping TeamMaturity = "developing"
	MaturityMature     TeamMaturity = "mature"
	MaturityExpert     TeamMaturity = "expert"
)

// AdaptiveThresholds holds maturity-scaled trigger thresholds. Recomputed per
// analysis from team age and message volume; never persisted.
type AdaptiveThresholds struct {
	TeamMaturity                   TeamMaturity `json:"team_maturity"`
	AdjustedBiasThreshold          float64      `json:"adjusted_bias_threshold"`
	AdjustedConvergenceThreshold   float64      `json:"adjusted_convergence_threshold"`
	AdjustedParticipationThreshold float64      `json:"adjusted_participation_threshold"`
	Rationale                      string       `json:"rationale"`
}

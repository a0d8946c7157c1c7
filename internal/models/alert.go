package models

import "time"

// PingType enumerates the smart-ping categories the trigger engine emits.
type PingType string

const (
	PingBias          PingType = "bias"
	PingGroupthink    PingType = "groupthink"
	PingDominance     PingType = "dominance"
	PingCognitiveLock PingType = "cognitivelock"
	PingParticipation PingType = "participation"
	PingConvergence   PingType = "convergence"
	PingTrendDecline  PingType = "trend_decline"
	PingDivergence    PingType = "divergence"
	PingAnomaly       PingType = "anomaly"
)

// AlertStat is a small labelled figure attached to an alert for display.
type AlertStat struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Alert is a fully formed smart ping. Alerts are transient: the engine's
// obligation ends once a filtered alert is handed to the delivery collaborator.
type Alert struct {
	ID          string     `json:"id"`
	Type        PingType   `json:"type"`
	BiasType    BiasType   `json:"bias_type,omitempty"`
	Severity    Severity   `json:"severity"`
	Confidence  float64    `json:"confidence"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Suggestions []string   `json:"suggestions,omitempty"`
	Evidence    []string   `json:"evidence,omitempty"`
	Stats       *AlertStat `json:"stats,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SmartSummary condenses an analysis pass into one user-facing read. At most
// one dominant concern is ever surfaced, regardless of how many were detected.
type SmartSummary struct {
	HealthScore     float64 `json:"health_score"`
	Headline        string  `json:"headline"`
	Guidance        string  `json:"guidance"`
	SignificantBias int     `json:"significant_bias_count"`
}

// AnalysisRequest asks the engine for one pass over a project's history.
type AnalysisRequest struct {
	TeamID    string       `json:"team_id"`
	ProjectID string       `json:"project_id"`
	Messages  []Message    `json:"messages"`
	Context   *TeamContext `json:"context,omitempty"`
	Now       time.Time    `json:"now,omitempty"`
}

// AnalysisResult is the full output of one analysis pass.
type AnalysisResult struct {
	AnalysisID string                   `json:"analysis_id"`
	ProjectID  string                   `json:"project_id"`
	Windows    []WindowedMetrics        `json:"windows"`
	Report     CrossWindowReport        `json:"report"`
	Thresholds AdaptiveThresholds       `json:"thresholds"`
	Alerts     []Alert                  `json:"alerts"`
	Summary    SmartSummary             `json:"summary"`
	Signals    map[string]*SignalRecord `json:"signals,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/synapsestack/csaw-engine/internal/engine"
	"github.com/synapsestack/csaw-engine/internal/metrics"
	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/notify"
	"github.com/synapsestack/csaw-engine/internal/repo"
	"github.com/synapsestack/csaw-engine/internal/utils"
)

const defaultHistoryLimit = 200

// AnalyzeParams describes one analysis request at the service boundary.
// Messages may be supplied inline; when empty the configured context
// provider is consulted for recent history.
type AnalyzeParams struct {
	TeamID    string
	ProjectID string
	Preset    string
	Messages  []models.Message
	Limit     int
	Now       time.Time
}

// AnalysisService fronts the pipeline with history fetching, latency
// accounting, and push delivery of accepted pings.
type AnalysisService struct {
	logger   *slog.Logger
	pipeline *engine.Pipeline
	provider repo.ContextProvider
	notifier *notify.Registry
	latency  *utils.LatencyTracker
}

// NewAnalysisService wires the service. provider and notifier may be nil for
// inline-only, pull-only operation.
func NewAnalysisService(
	logger *slog.Logger,
	pipeline *engine.Pipeline,
	provider repo.ContextProvider,
	notifier *notify.Registry,
) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		logger:   logger,
		pipeline: pipeline,
		provider: provider,
		notifier: notifier,
		latency:  utils.NewLatencyTracker(512),
	}
}

// Analyze runs one pass for a project and pushes accepted pings to live
// subscribers. Context-provider failures degrade to zero-value team context
// rather than failing the pass.
func (s *AnalysisService) Analyze(ctx context.Context, params AnalyzeParams) (models.AnalysisResult, error) {
	started := time.Now()

	msgs := params.Messages
	if len(msgs) == 0 && s.provider != nil {
		fetched, err := s.provider.RecentMessages(ctx, params.ProjectID, s.historyLimit(params.Limit))
		if err != nil {
			metrics.ObserveAnalysis(time.Since(started), metrics.OutcomeError)
			return models.AnalysisResult{}, utils.NewAppError("services.Analyze", "fetch history", err)
		}
		msgs = fetched
	}

	teamCtx := s.teamContext(ctx, params.TeamID, params.ProjectID)

	result, err := s.pipeline.Analyze(ctx, models.AnalysisRequest{
		TeamID:    params.TeamID,
		ProjectID: params.ProjectID,
		Messages:  msgs,
		Context:   teamCtx,
		Now:       params.Now,
	}, params.Preset)

	elapsed := time.Since(started)
	s.latency.Observe(elapsed)

	if err != nil {
		metrics.ObserveAnalysis(elapsed, metrics.OutcomeError)
		return models.AnalysisResult{}, err
	}
	metrics.ObserveAnalysis(elapsed, metrics.OutcomeSuccess)

	if s.notifier != nil {
		for _, alert := range result.Alerts {
			s.notifier.PublishAlert(params.ProjectID, alert)
		}
		s.notifier.PublishSummary(params.ProjectID, result.Summary)
	}

	s.logger.Info("analysis pass complete",
		slog.String("project_id", params.ProjectID),
		slog.Int("messages", len(msgs)),
		slog.Int("alerts", len(result.Alerts)),
		slog.Duration("elapsed", elapsed),
		slog.Duration("p95", s.latency.Percentile(95)),
	)
	return result, nil
}

// ResetSession re-arms the token latch and session cap for a project.
func (s *AnalysisService) ResetSession(projectID string) {
	s.pipeline.Registry().ResetSession(projectID)
}

// Windows exposes the configured time-window catalog.
func (s *AnalysisService) Windows() []models.TimeWindow {
	return s.pipeline.Catalog()
}

func (s *AnalysisService) historyLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}

func (s *AnalysisService) teamContext(ctx context.Context, teamID, projectID string) *models.TeamContext {
	if s.provider == nil || teamID == "" {
		return nil
	}
	teamCtx, err := s.provider.TeamContext(ctx, teamID, projectID)
	if err != nil {
		s.logger.Warn("team context unavailable, using defaults",
			slog.String("team_id", teamID),
			slog.Any("error", err))
		return nil
	}
	return &teamCtx
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synapsestack/csaw-engine/internal/alerts"
	"github.com/synapsestack/csaw-engine/internal/enhance"
	"github.com/synapsestack/csaw-engine/internal/metrics"
	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/signals"
	"github.com/synapsestack/csaw-engine/internal/thresholds"
	"github.com/synapsestack/csaw-engine/internal/windows"
)

// conversationTail bounds how much history is sent to the enhancer.
const conversationTail = 20

// Enhancer is the optional enhanced-analysis collaborator. A nil Enhancer
// or any error from it leaves the heuristic path fully in charge.
type Enhancer interface {
	Analyze(ctx context.Context, conversation string) (*enhance.Insight, error)
}

// Pipeline runs one full analysis pass: extract, aggregate, trend, correlate,
// adapt, trigger, filter. It is stateless except for the alert registry,
// which is mutated only under the per-project lock.
type Pipeline struct {
	logger         *slog.Logger
	extractor      *signals.Extractor
	aggregator     *windows.Aggregator
	correlator     *windows.Correlator
	catalog        []models.TimeWindow
	trigger        *alerts.TriggerEngine
	filter         *alerts.Filter
	presets        *alerts.PresetStore
	registry       *alerts.Registry
	enhancer       Enhancer
	enhanceTimeout time.Duration
}

// NewPipeline wires the analysis pipeline. catalog may be nil for the
// default horizons; enhancer may be nil to run heuristic-only.
func NewPipeline(
	logger *slog.Logger,
	catalog []models.TimeWindow,
	registry *alerts.Registry,
	presets *alerts.PresetStore,
	enhancer Enhancer,
	enhanceTimeout time.Duration,
) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(catalog) == 0 {
		catalog = windows.DefaultCatalog()
	}
	if err := windows.ValidateCatalog(catalog); err != nil {
		return nil, fmt.Errorf("invalid window catalog: %w", err)
	}
	if registry == nil {
		registry = alerts.NewRegistry(logger)
	}
	if presets == nil {
		var err error
		presets, err = alerts.NewPresetStore("", logger)
		if err != nil {
			return nil, err
		}
	}
	if enhanceTimeout <= 0 {
		enhanceTimeout = 10 * time.Second
	}

	return &Pipeline{
		logger:         logger,
		extractor:      signals.NewExtractor(),
		aggregator:     windows.NewAggregator(),
		correlator:     windows.NewCorrelator(catalog),
		catalog:        catalog,
		trigger:        alerts.NewTriggerEngine(logger, nil),
		filter:         alerts.NewFilter(logger),
		presets:        presets,
		registry:       registry,
		enhancer:       enhancer,
		enhanceTimeout: enhanceTimeout,
	}, nil
}

// Catalog exposes the configured window catalog.
func (p *Pipeline) Catalog() []models.TimeWindow {
	return append([]models.TimeWindow(nil), p.catalog...)
}

// Registry exposes the alert-state registry for session management.
func (p *Pipeline) Registry() *alerts.Registry {
	return p.registry
}

// Analyze executes one sequential pass over the project's message history.
// Passes for different projects are independent; passes for the same project
// serialise on the registry's project lock during trigger and filter work.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalysisRequest, preset string) (models.AnalysisResult, error) {
	if req.ProjectID == "" {
		return models.AnalysisResult{}, fmt.Errorf("project id is required")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	msgs, extracted := p.attachSignals(req.Messages)
	biasEvidence := p.enhanceLatest(ctx, msgs, extracted)

	windowed := p.aggregator.Aggregate(msgs, now, p.catalog)
	report := p.correlator.Correlate(windowed)

	teamCtx := models.TeamContext{}
	if req.Context != nil {
		teamCtx = *req.Context
	}
	adapted := thresholds.Adapt(teamCtx.TeamAgeDays(now), teamCtx.TotalMessageCount)

	filterTh := p.presets.Resolve(preset)

	var accepted, significant []models.Alert
	p.registry.WithProject(req.ProjectID, func(state *alerts.State) {
		input := alerts.TriggerInput{
			ProjectID:          req.ProjectID,
			Windows:            windowed,
			Report:             report,
			Thresholds:         adapted,
			TokenDelta:         tokenDelta(state, msgs),
			RecentParticipants: recentParticipants(teamCtx, windowed),
			BiasEvidence:       biasEvidence,
			Now:                now,
		}
		advanceTokenWatermark(state, msgs)

		candidates := p.trigger.Evaluate(state, input)
		significant = p.filter.Significant(candidates, filterTh)
		accepted = p.filter.Apply(significant, filterTh, state, now)
	})

	for _, alert := range accepted {
		metrics.ObserveAlert(string(alert.Type))
	}

	return models.AnalysisResult{
		AnalysisID: uuid.NewString(),
		ProjectID:  req.ProjectID,
		Windows:    windowed,
		Report:     report,
		Thresholds: adapted,
		Alerts:     accepted,
		Summary:    p.filter.Summarize(significant),
		Signals:    extracted,
		CreatedAt:  now,
	}, nil
}

// attachSignals fills missing signal records heuristically and returns the
// records extracted this pass keyed by message id, for the caller to persist.
func (p *Pipeline) attachSignals(in []models.Message) ([]models.Message, map[string]*models.SignalRecord) {
	msgs := append([]models.Message(nil), in...)
	extracted := make(map[string]*models.SignalRecord)
	for i := range msgs {
		if msgs[i].Signals != nil {
			continue
		}
		record := p.extractor.Extract(msgs[i].Content)
		msgs[i].Signals = &record
		extracted[msgs[i].ID] = &record
	}
	return msgs, extracted
}

// enhanceLatest consults the collaborator over the conversation tail and
// blends the result into the newest message's record. Failure of any kind
// leaves the heuristic record untouched and yields no bias evidence, which
// in turn disarms the bias latch band for this cycle.
func (p *Pipeline) enhanceLatest(ctx context.Context, msgs []models.Message, extracted map[string]*models.SignalRecord) []models.BiasIndicator {
	if p.enhancer == nil || len(msgs) == 0 {
		return nil
	}

	enhanceCtx, cancel := context.WithTimeout(ctx, p.enhanceTimeout)
	defer cancel()

	insight, err := p.enhancer.Analyze(enhanceCtx, conversationText(msgs))
	if err != nil {
		metrics.ObserveEnhancerFallback()
		p.logger.Warn("enhanced analysis unavailable, using heuristics", slog.Any("error", err))
		return nil
	}

	latest := &msgs[len(msgs)-1]
	blended := enhance.Blend(*latest.Signals, insight)
	latest.Signals = &blended
	extracted[latest.ID] = &blended
	return insight.BiasIndicators
}

func conversationText(msgs []models.Message) string {
	start := 0
	if len(msgs) > conversationTail {
		start = len(msgs) - conversationTail
	}
	var b strings.Builder
	for _, m := range msgs[start:] {
		author := m.AuthorID
		if author == "" {
			author = "anonymous"
		}
		fmt.Fprintf(&b, "%s: %s\n", author, m.Content)
	}
	return b.String()
}

// tokenDelta sums cognitive tokens of messages newer than the project's
// counting watermark.
func tokenDelta(state *alerts.State, msgs []models.Message) int {
	delta := 0
	for _, m := range msgs {
		if !m.Timestamp.After(state.LastCountedMessageAt) {
			continue
		}
		if m.Signals == nil {
			continue
		}
		delta += m.Signals.TokenCount
	}
	return delta
}

func advanceTokenWatermark(state *alerts.State, msgs []models.Message) {
	for _, m := range msgs {
		if m.Timestamp.After(state.LastCountedMessageAt) {
			state.LastCountedMessageAt = m.Timestamp
		}
	}
}

// recentParticipants prefers the context provider's live count and falls
// back to the short window's distinct authors.
func recentParticipants(teamCtx models.TeamContext, windowed []models.WindowedMetrics) int {
	if teamCtx.ParticipantCount > 0 {
		return teamCtx.ParticipantCount
	}
	for _, w := range windowed {
		if w.WindowID == windows.WindowShort {
			return w.ParticipantCount
		}
	}
	return 0
}

package alerts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Named contextual presets. Each overrides a subset of the defaults.
const (
	PresetCriticalDecision = "critical_decision"
	PresetBrainstorming    = "brainstorming"
	PresetNewTeam          = "new_team"
	PresetExperiencedTeam  = "experienced_team"
)

func builtinPresets() map[string]FilterThresholds {
	base := DefaultThresholds()

	critical := base
	critical.MinConfidence = 0.5
	critical.MinSeverity = models.SeverityLow
	critical.MinEvidenceCount = 1
	critical.CooldownMinutes = 15
	critical.MaxAlertsPerSession = 5

	brainstorm := base
	brainstorm.MinConfidence = 0.75
	brainstorm.MinSeverity = models.SeverityHigh
	brainstorm.CooldownMinutes = 60
	brainstorm.MaxAlertsPerSession = 1

	newTeam := base
	newTeam.MinConfidence = 0.7
	newTeam.MinSeverity = models.SeverityHigh
	newTeam.MaxAlertsPerSession = 2

	experienced := base
	experienced.MinConfidence = 0.55
	experienced.CooldownMinutes = 20
	experienced.MaxAlertsPerSession = 4

	return map[string]FilterThresholds{
		PresetCriticalDecision: critical,
		PresetBrainstorming:    brainstorm,
		PresetNewTeam:          newTeam,
		PresetExperiencedTeam:  experienced,
	}
}

// presetOverride allows a pack file to override individual fields only.
type presetOverride struct {
	MinConfidence       *float64         `yaml:"min_confidence"`
	MinSeverity         *models.Severity `yaml:"min_severity"`
	MinEvidenceCount    *int             `yaml:"min_evidence_count"`
	CooldownMinutes     *int             `yaml:"cooldown_minutes"`
	MaxAlertsPerSession *int             `yaml:"max_alerts_per_session"`
}

type presetPackFile struct {
	Presets map[string]presetOverride `yaml:"presets"`
}

// PresetStore resolves filter thresholds by context name. Built-in presets
// are always available; a YAML pack can override subsets of them and can be
// hot-reloaded on file change.
type PresetStore struct {
	mu      sync.RWMutex
	presets map[string]FilterThresholds
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewPresetStore builds a store from the built-ins plus an optional pack
// file. An empty or missing path is not an error.
func NewPresetStore(path string, logger *slog.Logger) (*PresetStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &PresetStore{
		presets: builtinPresets(),
		path:    path,
		logger:  logger,
	}
	if path != "" {
		if err := store.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return store, nil
}

// Resolve returns the thresholds for a context name; unknown or empty names
// fall back to the defaults.
func (s *PresetStore) Resolve(name string) FilterThresholds {
	if name == "" {
		return DefaultThresholds()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if th, ok := s.presets[name]; ok {
		return th
	}
	return DefaultThresholds()
}

// Reload re-reads the pack file and overlays it onto the built-ins. Unknown
// preset names are rejected so typos surface instead of silently creating
// orphan contexts.
func (s *PresetStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var pack presetPackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("parse preset pack: %w", err)
	}

	fresh := builtinPresets()
	for name, override := range pack.Presets {
		th, ok := fresh[name]
		if !ok {
			return fmt.Errorf("preset pack names unknown preset %q", name)
		}
		applyOverride(&th, override)
		fresh[name] = th
	}

	s.mu.Lock()
	s.presets = fresh
	s.mu.Unlock()
	return nil
}

// Watch starts a background reload on pack-file changes. Stop ends it.
func (s *PresetStore) Watch() error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("preset watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					s.logger.Warn("preset pack reload failed", slog.Any("error", err))
				} else {
					s.logger.Info("preset pack reloaded", slog.String("path", s.path))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("preset watcher error", slog.Any("error", err))
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Stop ends the watch loop, if one was started.
func (s *PresetStore) Stop() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

func applyOverride(th *FilterThresholds, o presetOverride) {
	if o.MinConfidence != nil {
		th.MinConfidence = *o.MinConfidence
	}
	if o.MinSeverity != nil {
		th.MinSeverity = *o.MinSeverity
	}
	if o.MinEvidenceCount != nil {
		th.MinEvidenceCount = *o.MinEvidenceCount
	}
	if o.CooldownMinutes != nil {
		th.CooldownMinutes = *o.CooldownMinutes
	}
	if o.MaxAlertsPerSession != nil {
		th.MaxAlertsPerSession = *o.MaxAlertsPerSession
	}
}

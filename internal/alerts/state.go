package alerts

import (
	"log/slog"
	"sync"
	"time"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// State is the only engine-owned mutable state: cooldown timers, the session
// alert count, and the cumulative-token latch watermark for one project.
type State struct {
	LastAlertTimeByType   map[models.PingType]time.Time
	AlertCountThisSession int
	CumulativeTokenTotal  int
	LastLatchedTokenTotal int

	// LastCountedMessageAt marks the newest message timestamp already folded
	// into CumulativeTokenTotal, so re-analysing the same history never
	// double-counts tokens.
	LastCountedMessageAt time.Time
}

func newState() *State {
	return &State{LastAlertTimeByType: make(map[models.PingType]time.Time)}
}

// Registry owns per-project alert state. All trigger and filter evaluation
// for a project runs inside WithProject, so two near-simultaneous passes can
// never both observe a disarmed latch and double-fire a band.
type Registry struct {
	mu       sync.Mutex
	projects map[string]*projectEntry
	logger   *slog.Logger
}

type projectEntry struct {
	mu    sync.Mutex
	state *State
}

// NewRegistry constructs an empty alert-state registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		projects: make(map[string]*projectEntry),
		logger:   logger,
	}
}

// WithProject runs fn while holding the project's exclusive lock, creating
// state on first use.
func (r *Registry) WithProject(projectID string, fn func(*State)) {
	entry := r.entry(projectID)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(entry.state)
}

// Snapshot returns a copy of the project's current state for inspection.
func (r *Registry) Snapshot(projectID string) State {
	entry := r.entry(projectID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	copied := State{
		LastAlertTimeByType:   make(map[models.PingType]time.Time, len(entry.state.LastAlertTimeByType)),
		AlertCountThisSession: entry.state.AlertCountThisSession,
		CumulativeTokenTotal:  entry.state.CumulativeTokenTotal,
		LastLatchedTokenTotal: entry.state.LastLatchedTokenTotal,
		LastCountedMessageAt:  entry.state.LastCountedMessageAt,
	}
	for k, v := range entry.state.LastAlertTimeByType {
		copied.LastAlertTimeByType[k] = v
	}
	return copied
}

// ResetSession clears the session alert count and re-arms the token latch for
// a project. The latch watermark only ever resets here: within a session it
// is monotonic, and callers that model sprints or days invoke this at their
// boundary.
func (r *Registry) ResetSession(projectID string) {
	entry := r.entry(projectID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.state.AlertCountThisSession = 0
	entry.state.LastLatchedTokenTotal = 0
	entry.state.LastAlertTimeByType = make(map[models.PingType]time.Time)
	r.logger.Info("alert session reset", slog.String("project_id", projectID))
}

// Drop discards all state for a project when its context ends.
func (r *Registry) Drop(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects, projectID)
}

func (r *Registry) entry(projectID string) *projectEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.projects[projectID]
	if !ok {
		entry = &projectEntry{state: newState()}
		r.projects[projectID] = entry
	}
	return entry
}

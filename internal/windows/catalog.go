package windows

import (
	"fmt"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Canonical window IDs referenced by the correlator and trigger engine.
const (
	WindowImmediate  = "immediate"
	WindowShort      = "short"
	WindowMedium     = "medium"
	WindowLong       = "long"
	WindowHistorical = "historical"
)

// DefaultCatalog returns the five standard analysis horizons. Durations grow
// strictly and recency weights shrink with horizon length; the correlator's
// pairwise comparisons rely on that ordering.
func DefaultCatalog() []models.TimeWindow {
	return []models.TimeWindow{
		{ID: WindowImmediate, DurationMinutes: 5, RecencyWeight: 1.0},
		{ID: WindowShort, DurationMinutes: 15, RecencyWeight: 0.9},
		{ID: WindowMedium, DurationMinutes: 60, RecencyWeight: 0.75},
		{ID: WindowLong, DurationMinutes: 240, RecencyWeight: 0.6},
		{ID: WindowHistorical, DurationMinutes: 1440, RecencyWeight: 0.5},
	}
}

// ValidateCatalog enforces the catalog ordering invariant.
func ValidateCatalog(catalog []models.TimeWindow) error {
	if len(catalog) == 0 {
		return fmt.Errorf("window catalog is empty")
	}
	for i, w := range catalog {
		if w.ID == "" {
			return fmt.Errorf("window %d has no id", i)
		}
		if w.DurationMinutes <= 0 {
			return fmt.Errorf("window %q has non-positive duration", w.ID)
		}
		if w.RecencyWeight <= 0 || w.RecencyWeight > 1 {
			return fmt.Errorf("window %q weight %.2f outside (0,1]", w.ID, w.RecencyWeight)
		}
		if i == 0 {
			continue
		}
		prev := catalog[i-1]
		if w.DurationMinutes <= prev.DurationMinutes {
			return fmt.Errorf("window %q duration must exceed %q", w.ID, prev.ID)
		}
		if w.RecencyWeight > prev.RecencyWeight {
			return fmt.Errorf("window %q weight must not exceed %q", w.ID, prev.ID)
		}
	}
	return nil
}

func findWindow(catalog []models.TimeWindow, id string) (models.TimeWindow, bool) {
	for _, w := range catalog {
		if w.ID == id {
			return w, true
		}
	}
	return models.TimeWindow{}, false
}

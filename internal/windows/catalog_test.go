package windows

import (
	"testing"

	"github.com/synapsestack/csaw-engine/internal/models"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	if err := ValidateCatalog(DefaultCatalog()); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestValidateCatalogRejections(t *testing.T) {
	tests := []struct {
		name    string
		catalog []models.TimeWindow
	}{
		{"empty", nil},
		{"missing id", []models.TimeWindow{{DurationMinutes: 5, RecencyWeight: 1}}},
		{"zero duration", []models.TimeWindow{{ID: "a", DurationMinutes: 0, RecencyWeight: 1}}},
		{"weight above one", []models.TimeWindow{{ID: "a", DurationMinutes: 5, RecencyWeight: 1.2}}},
		{"non-increasing duration", []models.TimeWindow{
			{ID: "a", DurationMinutes: 10, RecencyWeight: 1},
			{ID: "b", DurationMinutes: 10, RecencyWeight: 0.9},
		}},
		{"increasing weight", []models.TimeWindow{
			{ID: "a", DurationMinutes: 5, RecencyWeight: 0.5},
			{ID: "b", DurationMinutes: 10, RecencyWeight: 0.9},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateCatalog(tt.catalog); err == nil {
				t.Fatalf("catalog %v accepted, want error", tt.catalog)
			}
		})
	}
}

package models

// SignalRecord is the fixed-shape per-message signal derived by the extractor.
type SignalRecord struct {
	Sentiment         float64         `json:"sentiment"`
	CognitivePatterns []string        `json:"cognitive_patterns"`
	BiasIndicators    []BiasIndicator `json:"bias_indicators"`
	TokenCount        int             `json:"token_count"`
}

// HasPattern reports whether the record carries the given cognitive tag.
func (s *SignalRecord) HasPattern(tag string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.CognitivePatterns {
		if p == tag {
			return true
		}
	}
	return false
}

// BiasType enumerates the cognitive biases the engine can name.
type BiasType string

const (
	BiasConfirmation   BiasType = "confirmation"
	BiasAnchoring      BiasType = "anchoring"
	BiasGroupthink     BiasType = "groupthink"
	BiasSunkCost       BiasType = "sunk_cost"
	BiasAvailability   BiasType = "availability"
	BiasAuthority      BiasType = "authority"
	BiasOverconfidence BiasType = "overconfidence"
	BiasRecency        BiasType = "recency"
	BiasFraming        BiasType = "framing"
)

// BiasTypes lists every known bias type in a stable order.
func BiasTypes() []BiasType {
	return []BiasType{
		BiasConfirmation,
		BiasAnchoring,
		BiasGroupthink,
		BiasSunkCost,
		BiasAvailability,
		BiasAuthority,
		BiasOverconfidence,
		BiasRecency,
		BiasFraming,
	}
}

// BiasIndicator names a detected bias with supporting evidence. Several
// indicators may exist per message and type is not unique within a message.
type BiasIndicator struct {
	Type           BiasType `json:"type"`
	Confidence     float64  `json:"confidence"`
	Evidence       []string `json:"evidence"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
}

// Severity captures impact levels for indicators and alerts.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for comparison; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

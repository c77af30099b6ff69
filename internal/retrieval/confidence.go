package retrieval

import "fmt"

// MatchConfidence is the calibrated trust tier attached to a final score.
// It is always derived from the score that produced it, never stored apart
// from it.
type MatchConfidence int

const (
	// ConfidenceNone means the score is below the partial threshold; the
	// result is at best a reference, not a suggested fix.
	ConfidenceNone MatchConfidence = iota

	// ConfidencePartial means the incident is similar enough to be worth a
	// look but the fix may not transfer directly.
	ConfidencePartial

	// ConfidenceExact means the incident almost certainly explains the
	// reported error and its resolution is trustworthy.
	ConfidenceExact
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceExact:
		return "EXACT"
	case ConfidencePartial:
		return "PARTIAL"
	default:
		return "NONE"
	}
}

// MarshalJSON renders the tier as its display string.
func (c MatchConfidence) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// Classifier maps a final score to a confidence tier. The two thresholds
// partition [0,1] into three contiguous ranges with no gaps or overlaps.
type Classifier struct {
	exact   float64
	partial float64
}

// NewClassifier validates the thresholds and returns a classifier. Threshold
// violations are configuration errors and never surface mid-query.
func NewClassifier(exact, partial float64) (Classifier, error) {
	if exact < 0 || exact > 1 {
		return Classifier{}, fmt.Errorf("exact threshold must be in [0,1], got %v", exact)
	}
	if partial < 0 || partial > 1 {
		return Classifier{}, fmt.Errorf("partial threshold must be in [0,1], got %v", partial)
	}
	if partial > exact {
		return Classifier{}, fmt.Errorf("partial threshold (%v) must not exceed exact threshold (%v)", partial, exact)
	}
	return Classifier{exact: exact, partial: partial}, nil
}

// Classify returns the confidence tier for a final score.
func (c Classifier) Classify(score float64) MatchConfidence {
	switch {
	case score >= c.exact:
		return ConfidenceExact
	case score >= c.partial:
		return ConfidencePartial
	default:
		return ConfidenceNone
	}
}

// ExactThreshold returns the lower bound of the EXACT tier.
func (c Classifier) ExactThreshold() float64 { return c.exact }

// PartialThreshold returns the lower bound of the PARTIAL tier.
func (c Classifier) PartialThreshold() float64 { return c.partial }

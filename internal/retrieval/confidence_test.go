package retrieval

import "testing"

func TestClassifier_Partition(t *testing.T) {
	c, err := NewClassifier(0.92, 0.70)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	tests := []struct {
		score float64
		want  MatchConfidence
	}{
		{0.0, ConfidenceNone},
		{0.69999, ConfidenceNone},
		{0.70, ConfidencePartial}, // boundary is inclusive
		{0.91999, ConfidencePartial},
		{0.92, ConfidenceExact}, // boundary is inclusive
		{1.0, ConfidenceExact},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestClassifier_EqualThresholds(t *testing.T) {
	// Equal thresholds collapse the PARTIAL tier to empty.
	c, err := NewClassifier(0.8, 0.8)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	if got := c.Classify(0.8); got != ConfidenceExact {
		t.Errorf("Classify(0.8) = %s, want EXACT", got)
	}
	if got := c.Classify(0.79); got != ConfidenceNone {
		t.Errorf("Classify(0.79) = %s, want NONE", got)
	}
}

func TestNewClassifier_Invalid(t *testing.T) {
	cases := []struct {
		name           string
		exact, partial float64
	}{
		{"exact above one", 1.1, 0.5},
		{"partial negative", 0.9, -0.1},
		{"partial above exact", 0.5, 0.9},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier(tt.exact, tt.partial); err == nil {
				t.Errorf("expected error for exact=%v partial=%v", tt.exact, tt.partial)
			}
		})
	}
}

func TestMatchConfidence_String(t *testing.T) {
	if ConfidenceExact.String() != "EXACT" ||
		ConfidencePartial.String() != "PARTIAL" ||
		ConfidenceNone.String() != "NONE" {
		t.Error("unexpected confidence tier strings")
	}
}

func TestMatchConfidence_MarshalJSON(t *testing.T) {
	data, err := ConfidencePartial.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(data) != `"PARTIAL"` {
		t.Errorf(`expected "PARTIAL", got %s`, data)
	}
}

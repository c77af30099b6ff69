package retrieval

import "testing"

func TestStageMetrics_ReductionRate(t *testing.T) {
	tests := []struct {
		name    string
		in, out int
		want    float64
	}{
		{"order of magnitude cut", 1000, 100, 0.9},
		{"no reduction", 50, 50, 0.0},
		{"everything filtered", 10, 0, 1.0},
		{"empty input", 0, 0, 0.0}, // no divide by zero
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := StageMetrics{CandidatesIn: tt.in, CandidatesOut: tt.out}
			if got := m.ReductionRate(); got != tt.want {
				t.Errorf("ReductionRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPassthroughMetrics(t *testing.T) {
	m := passthroughMetrics(StageRerank, 7)
	if m.Stage != StageRerank {
		t.Errorf("expected stage %s, got %s", StageRerank, m.Stage)
	}
	if m.Latency != 0 {
		t.Errorf("expected zero latency, got %v", m.Latency)
	}
	if m.CandidatesIn != 7 || m.CandidatesOut != 7 {
		t.Errorf("expected 7 in / 7 out, got %d/%d", m.CandidatesIn, m.CandidatesOut)
	}
	if m.ReductionRate() != 0 {
		t.Errorf("expected zero reduction, got %v", m.ReductionRate())
	}
}

package retrieval

import (
	"reflect"
	"testing"
)

func TestMatchReasons_FixedOrder(t *testing.T) {
	c := Candidate{
		KeywordScore:         0.95,
		SemanticScore:        0.95,
		LateInteractionScore: 0.95,
		RerankScore:          0.95,
	}
	want := []string{
		"strong keyword match",
		"high semantic similarity",
		"token-level precision match",
		"cross-encoder verified",
	}
	if got := MatchReasons(c); !reflect.DeepEqual(got, want) {
		t.Errorf("MatchReasons = %v, want %v", got, want)
	}
}

func TestMatchReasons_Thresholds(t *testing.T) {
	// Scores at the threshold do not qualify; strictly above does.
	c := Candidate{KeywordScore: 0.8, SemanticScore: 0.9}
	if got := MatchReasons(c); len(got) != 0 {
		t.Errorf("expected no reasons at threshold, got %v", got)
	}

	c = Candidate{KeywordScore: 0.81}
	if got := MatchReasons(c); len(got) != 1 || got[0] != "strong keyword match" {
		t.Errorf("expected single keyword reason, got %v", got)
	}
}

func TestMatchReasons_Deterministic(t *testing.T) {
	c := Candidate{SemanticScore: 0.92, RerankScore: 0.93}
	first := MatchReasons(c)
	second := MatchReasons(c)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical scores must yield identical reasons: %v vs %v", first, second)
	}
}

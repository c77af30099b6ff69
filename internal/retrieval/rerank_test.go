package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"
)

// fakeJointScorer returns a fixed score per text.
type fakeJointScorer struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeJointScorer) Score(_ context.Context, _ string, text string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[text], nil
}

func TestCrossEncoderStage_PositionBoost(t *testing.T) {
	// Equal raw scores: the positional decay must preserve input order.
	scorer := &fakeJointScorer{scores: map[string]float64{
		"first": 0.9, "second": 0.9, "third": 0.9,
	}}
	stage := NewCrossEncoderStage(scorer, WithRerankLogger(quietLogger()))

	in := []Candidate{
		{IncidentID: "INC-1", Title: "first"},
		{IncidentID: "INC-2", Title: "second"},
		{IncidentID: "INC-3", Title: "third"},
	}
	out, _, err := stage.Rerank(context.Background(), "query", in, 10)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	wantOrder := []string{"INC-1", "INC-2", "INC-3"}
	for i, want := range wantOrder {
		if out[i].IncidentID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, out[i].IncidentID)
		}
	}
	// score * (1 - 0.01*i)
	if math.Abs(out[0].RerankScore-0.9) > 1e-9 {
		t.Errorf("expected rank-0 score 0.9, got %v", out[0].RerankScore)
	}
	if math.Abs(out[1].RerankScore-0.9*0.99) > 1e-9 {
		t.Errorf("expected rank-1 score 0.891, got %v", out[1].RerankScore)
	}
}

func TestCrossEncoderStage_StrongDisagreementWins(t *testing.T) {
	// A clearly better later candidate overtakes the decay.
	scorer := &fakeJointScorer{scores: map[string]float64{
		"weak": 0.3, "strong": 0.95,
	}}
	stage := NewCrossEncoderStage(scorer, WithRerankLogger(quietLogger()))

	in := []Candidate{
		{IncidentID: "INC-1", Title: "weak"},
		{IncidentID: "INC-2", Title: "strong"},
	}
	out, _, err := stage.Rerank(context.Background(), "query", in, 10)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if out[0].IncidentID != "INC-2" {
		t.Errorf("expected INC-2 first, got %s", out[0].IncidentID)
	}
}

func TestCrossEncoderStage_TopKBoundsCost(t *testing.T) {
	scorer := &fakeJointScorer{scores: map[string]float64{}}
	stage := NewCrossEncoderStage(scorer,
		WithRerankTopK(5),
		WithRerankLogger(quietLogger()))

	in := make([]Candidate, 50)
	for i := range in {
		in[i] = Candidate{IncidentID: string(rune('A' + i)), Title: "t"}
	}
	_, metrics, err := stage.Rerank(context.Background(), "query", in, 10)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if scorer.calls != 5 {
		t.Errorf("expected exactly 5 joint scorings, got %d", scorer.calls)
	}
	if metrics.CandidatesIn != 50 || metrics.CandidatesOut != 5 {
		t.Errorf("expected 50 in / 5 out, got %d/%d", metrics.CandidatesIn, metrics.CandidatesOut)
	}
}

func TestCrossEncoderStage_DetailTextPreferred(t *testing.T) {
	scorer := &fakeJointScorer{scores: map[string]float64{
		"the full detail": 0.8,
	}}
	stage := NewCrossEncoderStage(scorer, WithRerankLogger(quietLogger()))

	in := []Candidate{{
		IncidentID: "INC-1",
		Title:      "short title",
		Payload:    map[string]string{"detail_text": "the full detail"},
	}}
	out, _, err := stage.Rerank(context.Background(), "query", in, 10)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if out[0].RerankScore != 0.8 {
		t.Errorf("expected detail text to be scored, got %v", out[0].RerankScore)
	}
}

func TestCrossEncoderStage_ScorerFailurePropagates(t *testing.T) {
	stage := NewCrossEncoderStage(
		&fakeJointScorer{err: errors.New("llm down")},
		WithRerankRetry(fastRetry(2)),
		WithRerankLogger(quietLogger()))

	_, _, err := stage.Rerank(context.Background(), "query",
		[]Candidate{{IncidentID: "INC-1", Title: "t"}}, 10)
	if err == nil {
		t.Fatal("expected joint scorer failure to propagate")
	}
}

func TestPassthroughRerankStage(t *testing.T) {
	in := []Candidate{
		{IncidentID: "INC-1", LateInteractionScore: 0.9},
		{IncidentID: "INC-2", LateInteractionScore: 0.7},
		{IncidentID: "INC-3", LateInteractionScore: 0.5},
	}
	out, metrics, err := NewPassthroughRerankStage().Rerank(context.Background(), "query", in, 2)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(out))
	}
	if out[0].RerankScore != 0.9 || out[1].RerankScore != 0.7 {
		t.Errorf("expected late-interaction scores copied, got %v/%v",
			out[0].RerankScore, out[1].RerankScore)
	}
	if metrics.CandidatesIn != 3 || metrics.CandidatesOut != 2 {
		t.Errorf("expected 3 in / 2 out, got %d/%d", metrics.CandidatesIn, metrics.CandidatesOut)
	}
}

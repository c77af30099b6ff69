package service

import (
	"context"
	"testing"
	"time"

	"github.com/incidentiq/matcher/internal/retrieval"
)

// fixedFilterStage returns the same candidates for every query and records
// the filters it was handed.
type fixedFilterStage struct {
	candidates []retrieval.Candidate
	filters    map[string]string
}

func (f *fixedFilterStage) Search(_ context.Context, _ string, filters map[string]string, _ int) ([]retrieval.Candidate, retrieval.StageMetrics, error) {
	f.filters = filters
	return f.candidates, retrieval.StageMetrics{}, nil
}

func newTestMatcher(t *testing.T, semantic *fixedFilterStage) *Matcher {
	t.Helper()
	pipeline, err := retrieval.NewPipeline(
		&fixedFilterStage{},
		semantic,
		retrieval.NewPassthroughScoringStage(),
		retrieval.NewPassthroughRerankStage(),
		retrieval.PipelineConfig{ExactThreshold: 0.90, PartialThreshold: 0.60})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return NewMatcher(pipeline, WithTimeout(time.Second))
}

func TestFindSimilarIncidents(t *testing.T) {
	semantic := &fixedFilterStage{candidates: []retrieval.Candidate{
		{
			IncidentID:    "INC-42",
			Title:         "database connection timeout",
			SemanticScore: 0.95,
			Payload: map[string]string{
				"service":                 "api",
				"error_type":              "ConnectionTimeout",
				"resolved_by":             "jordan",
				"resolution_summary":      "raised pool size",
				"resolution_commands":     "kubectl get pods\nkubectl rollout restart deploy/api",
				"resolution_time_minutes": "35",
				"runbook_url":             "https://runbooks.example/db-timeout",
				"created_at":              "2026-03-14T09:26:53Z",
			},
		},
		{IncidentID: "INC-7", Title: "unrelated", SemanticScore: 0.65},
	}}

	matcher := newTestMatcher(t, semantic)
	matches, err := matcher.FindSimilarIncidents(context.Background(), "db timeout", "api", 5)
	if err != nil {
		t.Fatalf("FindSimilarIncidents failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	// Service restriction becomes a hard filter for the stages.
	if semantic.filters["service"] != "api" {
		t.Errorf("expected service filter 'api', got %v", semantic.filters)
	}

	m := matches[0]
	if m.IncidentID != "INC-42" {
		t.Fatalf("expected INC-42 first, got %s", m.IncidentID)
	}
	// Passthrough stages copy the semantic score through:
	// 0.25*0.95 + 0.40*0.95 + 0.25*0.95 = 0.855 -> PARTIAL at 0.90/0.60.
	if m.Confidence != retrieval.ConfidencePartial {
		t.Errorf("expected PARTIAL confidence, got %s", m.Confidence)
	}
	if m.Service != "api" || m.ErrorType != "ConnectionTimeout" {
		t.Errorf("expected payload metadata mapped, got %+v", m)
	}
	if m.ResolvedBy != "jordan" || m.ResolutionSummary != "raised pool size" {
		t.Errorf("expected resolution metadata mapped, got %+v", m)
	}
	if len(m.ResolutionCommands) != 2 || m.ResolutionCommands[1] != "kubectl rollout restart deploy/api" {
		t.Errorf("expected commands split on newlines, got %v", m.ResolutionCommands)
	}
	if m.ResolutionTimeMinutes != 35 {
		t.Errorf("expected resolution time 35, got %d", m.ResolutionTimeMinutes)
	}
	if m.OccurredAt.IsZero() || m.OccurredAt.Year() != 2026 {
		t.Errorf("expected parsed occurred_at, got %v", m.OccurredAt)
	}
	if m.RunbookURL != "https://runbooks.example/db-timeout" {
		t.Errorf("expected runbook URL mapped, got %q", m.RunbookURL)
	}
}

func TestFindSimilarIncidents_EmptyQueryRejected(t *testing.T) {
	matcher := newTestMatcher(t, &fixedFilterStage{})
	if _, err := matcher.FindSimilarIncidents(context.Background(), "   ", "", 5); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestFindSimilarIncidents_NoServiceMeansNoFilter(t *testing.T) {
	semantic := &fixedFilterStage{}
	matcher := newTestMatcher(t, semantic)
	if _, err := matcher.FindSimilarIncidents(context.Background(), "db timeout", "", 5); err != nil {
		t.Fatalf("FindSimilarIncidents failed: %v", err)
	}
	if semantic.filters != nil {
		t.Errorf("expected no filters without a service, got %v", semantic.filters)
	}
}

func TestFindSimilarIncidents_DefaultLimit(t *testing.T) {
	semantic := &fixedFilterStage{}
	for i := 0; i < 10; i++ {
		semantic.candidates = append(semantic.candidates, retrieval.Candidate{
			IncidentID:    string(rune('A' + i)),
			SemanticScore: 0.9 - float64(i)*0.01,
		})
	}
	matcher := newTestMatcher(t, semantic)
	matches, err := matcher.FindSimilarIncidents(context.Background(), "db timeout", "", 0)
	if err != nil {
		t.Fatalf("FindSimilarIncidents failed: %v", err)
	}
	if len(matches) != DefaultLimit {
		t.Errorf("expected default limit %d matches, got %d", DefaultLimit, len(matches))
	}
}

func TestMatchFromCandidate_MalformedPayloadIgnored(t *testing.T) {
	classifier, err := retrieval.NewClassifier(0.9, 0.6)
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	m := matchFromCandidate(retrieval.Candidate{
		IncidentID: "INC-1",
		FinalScore: 0.5,
		Payload: map[string]string{
			"resolution_time_minutes": "soon",
			"created_at":              "yesterday",
		},
	}, classifier)

	if m.ResolutionTimeMinutes != 0 {
		t.Errorf("expected unparseable minutes ignored, got %d", m.ResolutionTimeMinutes)
	}
	if !m.OccurredAt.IsZero() {
		t.Errorf("expected unparseable timestamp ignored, got %v", m.OccurredAt)
	}
	if m.Confidence != retrieval.ConfidenceNone {
		t.Errorf("expected NONE confidence for 0.5, got %s", m.Confidence)
	}
}

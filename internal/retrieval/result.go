package retrieval

import (
	"log/slog"
	"time"
)

// PipelineResult is the outcome of one successful pipeline run. Matches are
// ordered descending by FinalScore; StageMetrics holds one record per stage
// actually executed, in execution order.
type PipelineResult struct {
	Matches      []Candidate
	StageMetrics []StageMetrics
	TotalLatency time.Duration

	// Classifier is the confidence classifier the run was configured with,
	// kept so derived views and consumers classify with the same thresholds
	// that produced the scores.
	Classifier Classifier
}

// ExactMatches returns the candidates whose final score reaches the EXACT
// tier.
func (r *PipelineResult) ExactMatches() []Candidate {
	return r.filterByConfidence(ConfidenceExact)
}

// PartialMatches returns the candidates in the PARTIAL tier.
func (r *PipelineResult) PartialMatches() []Candidate {
	return r.filterByConfidence(ConfidencePartial)
}

func (r *PipelineResult) filterByConfidence(want MatchConfidence) []Candidate {
	var out []Candidate
	for _, m := range r.Matches {
		if r.Classifier.Classify(m.FinalScore) == want {
			out = append(out, m)
		}
	}
	return out
}

// Summary is the consumer-facing metrics view of a run: counts, exact match
// rate and latency, without reaching into per-candidate internals.
type Summary struct {
	TotalMatches   int
	ExactMatches   int
	PartialMatches int
	ExactMatchRate float64
	TotalLatency   time.Duration
	Stages         []StageMetrics
}

// Summary computes the run summary.
func (r *PipelineResult) Summary() Summary {
	exact := len(r.ExactMatches())
	total := len(r.Matches)
	rate := 0.0
	if total > 0 {
		rate = float64(exact) / float64(total)
	}
	return Summary{
		TotalMatches:   total,
		ExactMatches:   exact,
		PartialMatches: len(r.PartialMatches()),
		ExactMatchRate: rate,
		TotalLatency:   r.TotalLatency,
		Stages:         r.StageMetrics,
	}
}

// LogValue implements slog.LogValuer for run summaries.
func (s Summary) LogValue() slog.Value {
	stages := make([]slog.Attr, 0, len(s.Stages))
	for _, m := range s.Stages {
		stages = append(stages, slog.Any(string(m.Stage), m))
	}
	return slog.GroupValue(
		slog.Int("total_matches", s.TotalMatches),
		slog.Int("exact_matches", s.ExactMatches),
		slog.Int("partial_matches", s.PartialMatches),
		slog.Float64("exact_match_rate", s.ExactMatchRate),
		slog.Int64("total_latency_ms", s.TotalLatency.Milliseconds()),
		slog.Attr{Key: "stages", Value: slog.GroupValue(stages...)},
	)
}

package retrieval

import (
	"log/slog"
	"time"
)

// StageName identifies one pipeline stage in metrics and errors.
type StageName string

const (
	StageKeywordFilter   StageName = "keyword_filter"
	StageSemanticFilter  StageName = "semantic_filter"
	StageLateInteraction StageName = "late_interaction"
	StageRerank          StageName = "rerank"

	// stageFinalize labels failures of the orchestrator's final scoring
	// step; it has no metrics record of its own.
	stageFinalize StageName = "finalize"
)

// StageMetrics captures one stage execution: its latency and how far it cut
// the candidate pool. Values are immutable once created.
type StageMetrics struct {
	Stage         StageName
	Latency       time.Duration
	CandidatesIn  int
	CandidatesOut int
	Timestamp     time.Time
}

// ReductionRate returns the fraction of candidates the stage filtered out,
// or 0 when the stage received no candidates.
func (m StageMetrics) ReductionRate() float64 {
	if m.CandidatesIn == 0 {
		return 0
	}
	return 1 - float64(m.CandidatesOut)/float64(m.CandidatesIn)
}

// LogValue implements slog.LogValuer so stage metrics log as a group.
func (m StageMetrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("stage", string(m.Stage)),
		slog.Int64("latency_ms", m.Latency.Milliseconds()),
		slog.Int("candidates_in", m.CandidatesIn),
		slog.Int("candidates_out", m.CandidatesOut),
		slog.Float64("reduction_rate", m.ReductionRate()),
	)
}

func newStageMetrics(stage StageName, start time.Time, in, out int) StageMetrics {
	return StageMetrics{
		Stage:         stage,
		Latency:       time.Since(start),
		CandidatesIn:  in,
		CandidatesOut: out,
		Timestamp:     time.Now().UTC(),
	}
}

// passthroughMetrics records a disabled stage: zero latency, no reduction.
func passthroughMetrics(stage StageName, count int) StageMetrics {
	return StageMetrics{
		Stage:         stage,
		Latency:       0,
		CandidatesIn:  count,
		CandidatesOut: count,
		Timestamp:     time.Now().UTC(),
	}
}

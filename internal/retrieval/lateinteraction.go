package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// DefaultLateInteractionBound caps how many merged candidates the
// late-interaction stage will score per query.
const DefaultLateInteractionBound = 50

// ScoringStage re-scores candidates produced by the first-tier filters.
type ScoringStage interface {
	Score(ctx context.Context, query string, candidates []Candidate, limit int) ([]Candidate, StageMetrics, error)
}

// DetailScorer scores one (query, candidate) pair against the candidate's
// detail-level representation. Implementations sit between single-vector
// similarity and full joint encoding in the cost/precision trade-off.
type DetailScorer interface {
	ScoreDetail(ctx context.Context, query string, c Candidate) (float64, error)
}

// LateInteractionStage re-scores the merged candidate set with detail-level
// precision before the expensive re-ranker runs. Only the top bound candidates
// of the input are scored; anything beyond the bound is dropped outright
// (precision over recall at this tier).
type LateInteractionStage struct {
	scorer DetailScorer
	bound  int
	retry  RetryPolicy
	logger *slog.Logger
}

// LateInteractionOption is a functional option for LateInteractionStage.
type LateInteractionOption func(*LateInteractionStage)

// WithLateInteractionBound caps how many input candidates are scored.
func WithLateInteractionBound(n int) LateInteractionOption {
	return func(s *LateInteractionStage) {
		if n > 0 {
			s.bound = n
		}
	}
}

// WithLateInteractionRetry sets the retry policy for scorer calls.
func WithLateInteractionRetry(p RetryPolicy) LateInteractionOption {
	return func(s *LateInteractionStage) {
		s.retry = p.normalize()
	}
}

// WithLateInteractionLogger sets the stage logger.
func WithLateInteractionLogger(l *slog.Logger) LateInteractionOption {
	return func(s *LateInteractionStage) {
		s.logger = l
	}
}

// NewLateInteractionStage creates the late-interaction scoring stage.
func NewLateInteractionStage(scorer DetailScorer, opts ...LateInteractionOption) *LateInteractionStage {
	s := &LateInteractionStage{
		scorer: scorer,
		bound:  DefaultLateInteractionBound,
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score assigns LateInteractionScore to the top bound input candidates, sorts
// descending by it, and truncates to limit.
func (s *LateInteractionStage) Score(ctx context.Context, query string, candidates []Candidate, limit int) ([]Candidate, StageMetrics, error) {
	start := time.Now()
	in := len(candidates)

	scored := candidates
	if len(scored) > s.bound {
		scored = scored[:s.bound]
	}

	out := make([]Candidate, len(scored))
	copy(out, scored)
	for i := range out {
		score, err := withRetry(ctx, s.retry, func() (float64, error) {
			return s.scorer.ScoreDetail(ctx, query, out[i])
		})
		if err != nil {
			return nil, newStageMetrics(StageLateInteraction, start, in, 0),
				fmt.Errorf("scoring candidate %s: %w", out[i].IncidentID, err)
		}
		out[i].LateInteractionScore = clamp01(score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LateInteractionScore > out[j].LateInteractionScore
	})
	if len(out) > limit {
		out = out[:limit]
	}

	metrics := newStageMetrics(StageLateInteraction, start, in, len(out))
	s.logger.Debug("late interaction complete", slog.Any("metrics", metrics))
	return out, metrics, nil
}

var _ ScoringStage = (*LateInteractionStage)(nil)

// PassthroughScoringStage is the null object for a disabled late-interaction
// stage: it copies SemanticScore into LateInteractionScore, returns every
// input candidate in order without truncation, and reports zero latency. The
// orchestrator's control flow never special-cases "disabled".
type PassthroughScoringStage struct{}

// NewPassthroughScoringStage creates the disabled-stage pass-through.
func NewPassthroughScoringStage() PassthroughScoringStage {
	return PassthroughScoringStage{}
}

// Score copies the semantic score into the late-interaction slot unchanged.
func (PassthroughScoringStage) Score(_ context.Context, _ string, candidates []Candidate, _ int) ([]Candidate, StageMetrics, error) {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].LateInteractionScore = out[i].SemanticScore
	}
	return out, passthroughMetrics(StageLateInteraction, len(out)), nil
}

var _ ScoringStage = PassthroughScoringStage{}

// EmbeddingDetailScorer approximates late interaction with a single
// detail-level vector per incident: it embeds the query and the candidate's
// detail text and returns their cosine similarity. A true multi-vector
// (token-level) scorer can be injected in its place behind DetailScorer.
// Pair it with a caching embedder so the query is only embedded once per run.
type EmbeddingDetailScorer struct {
	embedder Embedder
}

// NewEmbeddingDetailScorer creates the embedding-based detail scorer.
func NewEmbeddingDetailScorer(embedder Embedder) *EmbeddingDetailScorer {
	return &EmbeddingDetailScorer{embedder: embedder}
}

// ScoreDetail returns the cosine similarity between the query vector and the
// candidate's detail-text vector.
func (s *EmbeddingDetailScorer) ScoreDetail(ctx context.Context, query string, c Candidate) (float64, error) {
	detail := c.Payload["detail_text"]
	if detail == "" {
		detail = c.Title
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("embedding query: %w", err)
	}
	detailVec, err := s.embedder.Embed(ctx, detail)
	if err != nil {
		return 0, fmt.Errorf("embedding detail text: %w", err)
	}

	return CosineSimilarity(queryVec, detailVec), nil
}

var _ DetailScorer = (*EmbeddingDetailScorer)(nil)

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// either has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

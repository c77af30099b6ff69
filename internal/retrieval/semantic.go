package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Embedder is the embedding capability the pipeline depends on: given text,
// return a fixed-length vector. Implementations must be deterministic for
// identical input and model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the vector-search read capability: approximate
// nearest-neighbor search over pre-computed incident vectors.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]Document, error)
}

// SemanticFilterStage embeds the query and searches the summary-level vector
// index (one compact vector per incident: title + error type + service).
//
// Unlike the keyword filter, this stage is critical: losing the only semantic
// signal materially changes recall, so unavailability after retries is
// propagated as a stage failure rather than absorbed.
type SemanticFilterStage struct {
	embedder Embedder
	index    VectorIndex
	retry    RetryPolicy
	logger   *slog.Logger
}

// SemanticOption is a functional option for configuring SemanticFilterStage.
type SemanticOption func(*SemanticFilterStage)

// WithSemanticRetry sets the retry policy for embedding and index calls.
func WithSemanticRetry(p RetryPolicy) SemanticOption {
	return func(s *SemanticFilterStage) {
		s.retry = p.normalize()
	}
}

// WithSemanticLogger sets the stage logger.
func WithSemanticLogger(l *slog.Logger) SemanticOption {
	return func(s *SemanticFilterStage) {
		s.logger = l
	}
}

// NewSemanticFilterStage creates the semantic filter stage.
func NewSemanticFilterStage(embedder Embedder, index VectorIndex, opts ...SemanticOption) *SemanticFilterStage {
	s := &SemanticFilterStage{
		embedder: embedder,
		index:    index,
		retry:    DefaultRetryPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit candidates ordered by cosine similarity of the
// query vector against summary vectors. Each candidate carries only
// SemanticScore.
func (s *SemanticFilterStage) Search(ctx context.Context, query string, filters map[string]string, limit int) ([]Candidate, StageMetrics, error) {
	start := time.Now()

	vector, err := withRetry(ctx, s.retry, func() ([]float32, error) {
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, newStageMetrics(StageSemanticFilter, start, 0, 0), fmt.Errorf("embedding query: %w", err)
	}

	docs, err := withRetry(ctx, s.retry, func() ([]Document, error) {
		return s.index.Search(ctx, vector, filters, limit)
	})
	if err != nil {
		return nil, newStageMetrics(StageSemanticFilter, start, 0, 0), fmt.Errorf("searching summary vectors: %w", err)
	}

	candidates := make([]Candidate, len(docs))
	for i, doc := range docs {
		c := candidateFromDocument(doc)
		c.SemanticScore = clamp01(doc.Score)
		candidates[i] = c
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SemanticScore > candidates[j].SemanticScore
	})

	metrics := newStageMetrics(StageSemanticFilter, start, len(candidates), len(candidates))
	s.logger.Debug("semantic filter complete", slog.Any("metrics", metrics))
	return candidates, metrics, nil
}

var _ FilterStage = (*SemanticFilterStage)(nil)

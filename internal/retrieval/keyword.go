package retrieval

import (
	"context"
	"log/slog"
	"time"
)

// LexicalIndex is the keyword-search read capability the filter stage depends
// on. Filters are conjunctive equality constraints on payload fields.
type LexicalIndex interface {
	Search(ctx context.Context, query string, filters map[string]string, limit int) ([]Document, error)
}

// FilterStage is a first-tier recall filter: it produces candidates from an
// index rather than consuming them from a previous stage.
type FilterStage interface {
	Search(ctx context.Context, query string, filters map[string]string, limit int) ([]Candidate, StageMetrics, error)
}

// KeywordFilterStage is the cheapest stage: term-frequency keyword matching
// against the lexical index, intended to cut the candidate pool by roughly an
// order of magnitude before any vector math runs.
//
// The stage is non-critical. If the index stays unreachable after retries it
// returns an empty result instead of an error, so the pipeline can proceed on
// the semantic signal alone.
type KeywordFilterStage struct {
	index  LexicalIndex
	retry  RetryPolicy
	logger *slog.Logger
}

// KeywordOption is a functional option for configuring KeywordFilterStage.
type KeywordOption func(*KeywordFilterStage)

// WithKeywordRetry sets the retry policy for lexical index calls.
func WithKeywordRetry(p RetryPolicy) KeywordOption {
	return func(s *KeywordFilterStage) {
		s.retry = p.normalize()
	}
}

// WithKeywordLogger sets the stage logger.
func WithKeywordLogger(l *slog.Logger) KeywordOption {
	return func(s *KeywordFilterStage) {
		s.logger = l
	}
}

// NewKeywordFilterStage creates the keyword filter stage.
func NewKeywordFilterStage(index LexicalIndex, opts ...KeywordOption) *KeywordFilterStage {
	s := &KeywordFilterStage{
		index:  index,
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to limit candidates ordered by lexical score. Each
// candidate carries only KeywordScore; the other stage scores stay zero.
func (s *KeywordFilterStage) Search(ctx context.Context, query string, filters map[string]string, limit int) ([]Candidate, StageMetrics, error) {
	start := time.Now()

	docs, err := withRetry(ctx, s.retry, func() ([]Document, error) {
		return s.index.Search(ctx, query, filters, limit)
	})
	if err != nil {
		// Degraded but non-fatal: the pipeline continues with fewer signals.
		s.logger.Warn("keyword index unavailable, continuing without lexical signal",
			slog.String("stage", string(StageKeywordFilter)),
			slog.String("error", err.Error()))
		return nil, newStageMetrics(StageKeywordFilter, start, 0, 0), nil
	}

	candidates := make([]Candidate, len(docs))
	for i, doc := range docs {
		c := candidateFromDocument(doc)
		c.KeywordScore = clamp01(doc.Score)
		candidates[i] = c
	}

	metrics := newStageMetrics(StageKeywordFilter, start, len(candidates), len(candidates))
	s.logger.Debug("keyword filter complete", slog.Any("metrics", metrics))
	return candidates, metrics, nil
}

var _ FilterStage = (*KeywordFilterStage)(nil)

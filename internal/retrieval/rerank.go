package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// DefaultRerankTopK caps how many candidates the re-ranker jointly scores per
// query. This is the cost-control boundary of the whole pipeline.
const DefaultRerankTopK = 20

// positionBoostStep is the per-rank decay applied to rerank scores so that
// candidates already preferred by earlier stages win ties without overriding
// strong disagreement.
const positionBoostStep = 0.01

// RerankStage is the final, most expensive re-ranking step.
type RerankStage interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, limit int) ([]Candidate, StageMetrics, error)
}

// JointScorer encodes query and candidate text together and returns a
// relevance score. This is the most expensive signal in the pipeline.
type JointScorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// CrossEncoderStage jointly scores only the top topK of its input, regardless
// of how many candidates arrive, keeping per-query cost predictable for any
// corpus size.
type CrossEncoderStage struct {
	scorer JointScorer
	topK   int
	retry  RetryPolicy
	logger *slog.Logger
}

// CrossEncoderOption is a functional option for CrossEncoderStage.
type CrossEncoderOption func(*CrossEncoderStage)

// WithRerankTopK caps how many candidates are jointly scored.
func WithRerankTopK(n int) CrossEncoderOption {
	return func(s *CrossEncoderStage) {
		if n > 0 {
			s.topK = n
		}
	}
}

// WithRerankRetry sets the retry policy for joint scorer calls.
func WithRerankRetry(p RetryPolicy) CrossEncoderOption {
	return func(s *CrossEncoderStage) {
		s.retry = p.normalize()
	}
}

// WithRerankLogger sets the stage logger.
func WithRerankLogger(l *slog.Logger) CrossEncoderOption {
	return func(s *CrossEncoderStage) {
		s.logger = l
	}
}

// NewCrossEncoderStage creates the re-ranking stage.
func NewCrossEncoderStage(scorer JointScorer, opts ...CrossEncoderOption) *CrossEncoderStage {
	s := &CrossEncoderStage{
		scorer: scorer,
		topK:   DefaultRerankTopK,
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rerank scores the top slice of candidates jointly with the query, applies a
// small positional boost favoring candidates ranked earlier by prior stages,
// sorts descending by RerankScore, and truncates to limit.
func (s *CrossEncoderStage) Rerank(ctx context.Context, query string, candidates []Candidate, limit int) ([]Candidate, StageMetrics, error) {
	start := time.Now()
	in := len(candidates)

	top := candidates
	if len(top) > s.topK {
		top = top[:s.topK]
	}

	out := make([]Candidate, len(top))
	copy(out, top)
	for i := range out {
		text := out[i].Payload["detail_text"]
		if text == "" {
			text = out[i].Title
		}
		score, err := withRetry(ctx, s.retry, func() (float64, error) {
			return s.scorer.Score(ctx, query, text)
		})
		if err != nil {
			return nil, newStageMetrics(StageRerank, start, in, 0),
				fmt.Errorf("joint scoring candidate %s: %w", out[i].IncidentID, err)
		}
		out[i].RerankScore = clamp01(score) * (1 - positionBoostStep*float64(i))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	if len(out) > limit {
		out = out[:limit]
	}

	metrics := newStageMetrics(StageRerank, start, in, len(out))
	s.logger.Debug("rerank complete", slog.Any("metrics", metrics))
	return out, metrics, nil
}

var _ RerankStage = (*CrossEncoderStage)(nil)

// PassthroughRerankStage is the null object for a disabled re-ranker: the
// rerank score defaults to the last available score (late interaction) and
// the top limit candidates are returned unchanged in order.
type PassthroughRerankStage struct{}

// NewPassthroughRerankStage creates the disabled-stage pass-through.
func NewPassthroughRerankStage() PassthroughRerankStage {
	return PassthroughRerankStage{}
}

// Rerank copies the late-interaction score into the rerank slot and truncates.
func (PassthroughRerankStage) Rerank(_ context.Context, _ string, candidates []Candidate, limit int) ([]Candidate, StageMetrics, error) {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].RerankScore = out[i].LateInteractionScore
	}
	in := len(out)
	if len(out) > limit {
		out = out[:limit]
	}
	m := passthroughMetrics(StageRerank, in)
	m.CandidatesOut = len(out)
	return out, m, nil
}

var _ RerankStage = PassthroughRerankStage{}

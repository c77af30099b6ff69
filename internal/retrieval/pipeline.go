package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Weights are the fixed final-score weights for the four stage scores. They
// must sum to 1.0.
type Weights struct {
	Keyword         float64
	Semantic        float64
	LateInteraction float64
	Rerank          float64
}

// DefaultWeights returns the validated default weighting.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.10, Semantic: 0.25, LateInteraction: 0.40, Rerank: 0.25}
}

// Validate checks the weight invariants. Violations are configuration errors.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"keyword": w.Keyword, "semantic": w.Semantic,
		"late interaction": w.LateInteraction, "rerank": w.Rerank,
	} {
		if v < 0 {
			return fmt.Errorf("%s weight must not be negative, got %v", name, v)
		}
	}
	sum := w.Keyword + w.Semantic + w.LateInteraction + w.Rerank
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

func (w Weights) apply(c Candidate) float64 {
	return w.Keyword*c.KeywordScore +
		w.Semantic*c.SemanticScore +
		w.LateInteraction*c.LateInteractionScore +
		w.Rerank*c.RerankScore
}

// runState tracks a single query's progression through the pipeline. There
// are no backward transitions; an unabsorbed stage failure moves the run
// straight to runFailed.
type runState int

const (
	runInit runState = iota
	runFiltering
	runMerging
	runScoring
	runReranking
	runFinalizing
	runDone
	runFailed
)

func (s runState) String() string {
	switch s {
	case runInit:
		return "INIT"
	case runFiltering:
		return "FILTERING"
	case runMerging:
		return "MERGING"
	case runScoring:
		return "SCORING"
	case runReranking:
		return "RERANKING"
	case runFinalizing:
		return "FINALIZING"
	case runDone:
		return "DONE"
	case runFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// PipelineConfig holds the orchestrator's tunables. Zero values fall back to
// defaults at construction.
type PipelineConfig struct {
	Weights          Weights
	ExactThreshold   float64
	PartialThreshold float64

	// First-tier recall limits.
	KeywordLimit  int
	SemanticLimit int

	// How many candidates survive the late-interaction stage.
	LateInteractionLimit int
}

// Pipeline orchestrates the four stages for one query at a time. It holds no
// per-query mutable state: a Pipeline instance is shared safely across
// concurrent queries, each of which exclusively owns its own candidate set.
type Pipeline struct {
	keyword  FilterStage
	semantic FilterStage
	late     ScoringStage
	rerank   RerankStage

	weights    Weights
	classifier Classifier

	keywordLimit  int
	semanticLimit int
	lateLimit     int

	logger *slog.Logger
}

// PipelineOption is a functional option for Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the orchestrator logger.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline constructs the orchestrator. Weight and threshold violations
// are reported here, at composition time, never mid-query.
func NewPipeline(keyword, semantic FilterStage, late ScoringStage, rerank RerankStage, cfg PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	weights := cfg.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	exact, partial := cfg.ExactThreshold, cfg.PartialThreshold
	if exact == 0 && partial == 0 {
		exact, partial = 0.92, 0.70
	}
	classifier, err := NewClassifier(exact, partial)
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	p := &Pipeline{
		keyword:       keyword,
		semantic:      semantic,
		late:          late,
		rerank:        rerank,
		weights:       weights,
		classifier:    classifier,
		keywordLimit:  cfg.KeywordLimit,
		semanticLimit: cfg.SemanticLimit,
		lateLimit:     cfg.LateInteractionLimit,
		logger:        slog.Default(),
	}
	if p.keywordLimit <= 0 {
		p.keywordLimit = 100
	}
	if p.semanticLimit <= 0 {
		p.semanticLimit = 50
	}
	if p.lateLimit <= 0 {
		p.lateLimit = 20
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Classifier returns the confidence classifier this pipeline scores with.
func (p *Pipeline) Classifier() Classifier { return p.classifier }

// Search executes the full pipeline for one query and returns the ranked,
// classified, explained matches with per-stage metrics. filters are hard
// conjunctive equality constraints applied by both first-tier stages. limit
// caps the final result count.
//
// On failure the returned error is a *StageError or *TimeoutError carrying
// the metrics of every stage that completed before the run aborted.
func (p *Pipeline) Search(ctx context.Context, query string, filters map[string]string, limit int) (*PipelineResult, error) {
	start := time.Now()
	state := runInit
	var collected []StageMetrics

	fail := func(stage StageName, err error) error {
		state = runFailed
		p.logger.Error("pipeline run failed",
			slog.String("state", state.String()),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return &TimeoutError{Elapsed: time.Since(start), Partial: collected, Err: err}
		}
		return &StageError{Stage: stage, Partial: collected, Err: err}
	}

	// First tier: keyword and semantic filters hit independent indexes and
	// run concurrently. The keyword stage absorbs its own failures (including
	// a deadline elapsing mid-call) and contributes an empty set; a semantic
	// failure aborts the run.
	state = runFiltering
	var (
		keywordCands, semanticCands     []Candidate
		keywordMetrics, semanticMetrics StageMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywordCands, keywordMetrics, err = p.keyword.Search(gctx, query, filters, p.keywordLimit)
		return err
	})
	g.Go(func() error {
		var err error
		semanticCands, semanticMetrics, err = p.semantic.Search(gctx, query, filters, p.semanticLimit)
		return err
	})
	err := g.Wait()
	collected = append(collected, keywordMetrics)
	if err != nil {
		return nil, fail(StageSemanticFilter, err)
	}
	collected = append(collected, semanticMetrics)

	// Merge the two tiers, deduplicating by incident ID. First occurrence
	// wins for title and payload; later occurrences only contribute scores.
	state = runMerging
	merged := mergeCandidates(keywordCands, semanticCands)

	state = runScoring
	scored, lateMetrics, err := p.late.Score(ctx, query, merged, p.lateLimit)
	if err != nil {
		return nil, fail(StageLateInteraction, err)
	}
	collected = append(collected, lateMetrics)

	state = runReranking
	reranked, rerankMetrics, err := p.rerank.Rerank(ctx, query, scored, limit)
	if err != nil {
		return nil, fail(StageRerank, err)
	}
	collected = append(collected, rerankMetrics)

	// Final scoring is critical: an elapsed deadline here fails the run
	// rather than silently passing off a partially-scored result as complete.
	state = runFinalizing
	if err := ctx.Err(); err != nil {
		return nil, fail(stageFinalize, err)
	}

	for i := range reranked {
		reranked[i].FinalScore = p.weights.apply(reranked[i])
		reranked[i].MatchReasons = MatchReasons(reranked[i])
	}
	// Stable sort: ties keep input order, which already reflects
	// earlier-stage preference.
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].FinalScore > reranked[j].FinalScore
	})
	if len(reranked) > limit {
		reranked = reranked[:limit]
	}

	state = runDone
	result := &PipelineResult{
		Matches:      reranked,
		StageMetrics: collected,
		TotalLatency: time.Since(start),
		Classifier:   p.classifier,
	}
	p.logger.Info("pipeline run complete",
		slog.String("state", state.String()),
		slog.Any("summary", result.Summary()))
	return result, nil
}

// mergeCandidates concatenates the keyword-stage list and the semantic-stage
// list, deduplicating by incident ID. The merged order is keyword-first then
// semantic, each internally still in its stage's descending order; a
// duplicate keeps its first-seen position and only picks up missing scores.
// Merging is idempotent on incident ID.
func mergeCandidates(keyword, semantic []Candidate) []Candidate {
	merged := make([]Candidate, 0, len(keyword)+len(semantic))
	byID := make(map[string]int, len(keyword)+len(semantic))

	add := func(c Candidate) {
		if pos, seen := byID[c.IncidentID]; seen {
			combineScores(&merged[pos], c)
			return
		}
		byID[c.IncidentID] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range keyword {
		add(c)
	}
	for _, c := range semantic {
		add(c)
	}
	return merged
}

// combineScores copies stage scores the destination has not been assigned
// yet. Title and payload are never touched: first occurrence wins.
func combineScores(dst *Candidate, src Candidate) {
	if dst.KeywordScore == 0 {
		dst.KeywordScore = src.KeywordScore
	}
	if dst.SemanticScore == 0 {
		dst.SemanticScore = src.SemanticScore
	}
	if dst.LateInteractionScore == 0 {
		dst.LateInteractionScore = src.LateInteractionScore
	}
	if dst.RerankScore == 0 {
		dst.RerankScore = src.RerankScore
	}
}

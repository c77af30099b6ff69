package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/incidentiq/matcher/internal/config"
	"github.com/incidentiq/matcher/internal/embedder"
	"github.com/incidentiq/matcher/internal/incident"
	"github.com/incidentiq/matcher/internal/indexer"
	"github.com/incidentiq/matcher/internal/lexical"
	"github.com/incidentiq/matcher/internal/llm"
	"github.com/incidentiq/matcher/internal/reranker"
	"github.com/incidentiq/matcher/internal/retrieval"
	"github.com/incidentiq/matcher/internal/service"
	"github.com/incidentiq/matcher/internal/vectorstore"
)

const usage = `usage: matchctl <command> [flags]

commands:
  init    create the vector collections and the lexical index
  index   index incidents from a JSON file
  query   match an error report against the incident history
`

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("matchctl failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch os.Args[1] {
	case "init":
		return runInit(ctx, cfg, os.Args[2:])
	case "index":
		return runIndex(ctx, cfg, os.Args[2:])
	case "query":
		return runQuery(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func runInit(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	recreate := fs.Bool("recreate", false, "drop and recreate existing vector collections")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ix, closeFn, err := buildIndexer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := ix.EnsureIndexes(ctx, *recreate); err != nil {
		return err
	}
	slog.Info("indexes ready", "recreated", *recreate)
	return nil
}

func runIndex(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	file := fs.String("file", "", "path to a JSON array of incidents")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("index: -file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *file, err)
	}
	var incidents []incident.Incident
	if err := json.Unmarshal(data, &incidents); err != nil {
		return fmt.Errorf("parsing %s: %w", *file, err)
	}

	ix, closeFn, err := buildIndexer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := ix.EnsureIndexes(ctx, false); err != nil {
		return err
	}
	if err := ix.IndexAll(ctx, incidents); err != nil {
		return err
	}
	slog.Info("indexing complete", "incidents", len(incidents))
	return nil
}

func runQuery(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	query := fs.String("q", "", "error report text to match")
	svc := fs.String("service", "", "restrict matches to one service")
	limit := fs.Int("limit", service.DefaultLimit, "maximum matches to return")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*query) == "" {
		return fmt.Errorf("query: -q is required")
	}

	matcher, closeFn, err := buildMatcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	matches, err := matcher.FindSimilarIncidents(ctx, *query, *svc, *limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(matches)
}

// buildIndexer wires the write path: embedder, Qdrant and Meilisearch.
func buildIndexer(ctx context.Context, cfg *config.Config) (*indexer.Indexer, func(), error) {
	vectors, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	lex := lexical.New(cfg.MeiliURL, cfg.MeiliAPIKey, cfg.MeiliIndex)
	emb, err := cachedEmbedder(cfg)
	if err != nil {
		vectors.Close()
		return nil, nil, err
	}

	ix := indexer.New(emb, vectors, lex)
	return ix, func() { vectors.Close() }, nil
}

// buildMatcher wires the full read path: the four stages, the pipeline and
// the matcher service on top.
func buildMatcher(ctx context.Context, cfg *config.Config) (*service.Matcher, func(), error) {
	vectors, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	lex := lexical.New(cfg.MeiliURL, cfg.MeiliAPIKey, cfg.MeiliIndex)
	emb, err := cachedEmbedder(cfg)
	if err != nil {
		vectors.Close()
		return nil, nil, err
	}

	retry := retrieval.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}

	keyword := retrieval.NewKeywordFilterStage(lex, retrieval.WithKeywordRetry(retry))
	semantic := retrieval.NewSemanticFilterStage(emb, vectors.Collection(vectorstore.CollectionSummary),
		retrieval.WithSemanticRetry(retry))

	var late retrieval.ScoringStage = retrieval.NewPassthroughScoringStage()
	if cfg.LateInteractionEnabled {
		late = retrieval.NewLateInteractionStage(
			retrieval.NewEmbeddingDetailScorer(emb),
			retrieval.WithLateInteractionBound(cfg.LateInteractionBound),
			retrieval.WithLateInteractionRetry(retry),
		)
	}

	var rerank retrieval.RerankStage = retrieval.NewPassthroughRerankStage()
	if cfg.RerankEnabled {
		llmClient := llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.OllamaLLMModel),
		)
		rerank = retrieval.NewCrossEncoderStage(
			reranker.NewLLMScorer(llmClient),
			retrieval.WithRerankTopK(cfg.RerankTopK),
			retrieval.WithRerankRetry(retry),
		)
	}

	pipeline, err := retrieval.NewPipeline(keyword, semantic, late, rerank, retrieval.PipelineConfig{
		Weights: retrieval.Weights{
			Keyword:         cfg.WeightKeyword,
			Semantic:        cfg.WeightSemantic,
			LateInteraction: cfg.WeightLateInteraction,
			Rerank:          cfg.WeightRerank,
		},
		ExactThreshold:       cfg.ExactThreshold,
		PartialThreshold:     cfg.PartialThreshold,
		KeywordLimit:         cfg.KeywordLimit,
		SemanticLimit:        cfg.SemanticLimit,
		LateInteractionLimit: cfg.LateInteractionLimit,
	})
	if err != nil {
		vectors.Close()
		return nil, nil, err
	}

	matcher := service.NewMatcher(pipeline, service.WithTimeout(cfg.QueryTimeout))
	return matcher, func() { vectors.Close() }, nil
}

// cachedEmbedder builds the Ollama embedder behind the LRU cache.
func cachedEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	base := embedder.NewOllamaEmbedder(
		embedder.WithBaseURL(cfg.OllamaURL),
		embedder.WithModel(cfg.OllamaEmbeddingModel),
	)
	cached, err := embedder.NewCachingEmbedder(base, cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return cached, nil
}

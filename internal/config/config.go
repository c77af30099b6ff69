// Package config loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the incident matcher.
type Config struct {
	// Runtime
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Meilisearch (lexical index)
	MeiliURL    string `env:"MEILI_URL" envDefault:"http://localhost:7700"`
	MeiliAPIKey string `env:"MEILI_API_KEY" envDefault:""`
	MeiliIndex  string `env:"MEILI_INDEX" envDefault:"incidents"`

	// Qdrant (vector index)
	QdrantGRPCURL string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`

	// Ollama (embeddings + joint scorer)
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`
	EmbeddingCacheSize   int    `env:"EMBEDDING_CACHE_SIZE" envDefault:"1024"`

	// Confidence thresholds
	ExactThreshold   float64 `env:"EXACT_MATCH_THRESHOLD" envDefault:"0.92"`
	PartialThreshold float64 `env:"PARTIAL_MATCH_THRESHOLD" envDefault:"0.70"`

	// Final score weights (must sum to 1.0)
	WeightKeyword         float64 `env:"WEIGHT_KEYWORD" envDefault:"0.10"`
	WeightSemantic        float64 `env:"WEIGHT_SEMANTIC" envDefault:"0.25"`
	WeightLateInteraction float64 `env:"WEIGHT_LATE_INTERACTION" envDefault:"0.40"`
	WeightRerank          float64 `env:"WEIGHT_RERANK" envDefault:"0.25"`

	// Per-stage candidate limits
	KeywordLimit         int `env:"KEYWORD_LIMIT" envDefault:"100"`
	SemanticLimit        int `env:"SEMANTIC_LIMIT" envDefault:"50"`
	LateInteractionLimit int `env:"LATE_INTERACTION_LIMIT" envDefault:"20"`
	LateInteractionBound int `env:"LATE_INTERACTION_BOUND" envDefault:"50"`
	RerankTopK           int `env:"RERANK_TOP_K" envDefault:"20"`

	// Stage toggles
	LateInteractionEnabled bool `env:"LATE_INTERACTION_ENABLED" envDefault:"true"`
	RerankEnabled          bool `env:"RERANK_ENABLED" envDefault:"false"`

	// Collaborator retry policy
	RetryMaxAttempts     int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"100ms"`
	RetryMaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL" envDefault:"2s"`

	// Overall per-query deadline
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"10s"`
}

// Load loads configuration from .env file (if present) and environment variables.
// Invalid thresholds, weights or limits are configuration errors detected here,
// never mid-query.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the pipeline configuration invariants.
func (c *Config) Validate() error {
	if c.ExactThreshold < 0 || c.ExactThreshold > 1 {
		return fmt.Errorf("config: EXACT_MATCH_THRESHOLD must be in [0,1], got %v", c.ExactThreshold)
	}
	if c.PartialThreshold < 0 || c.PartialThreshold > 1 {
		return fmt.Errorf("config: PARTIAL_MATCH_THRESHOLD must be in [0,1], got %v", c.PartialThreshold)
	}
	if c.PartialThreshold > c.ExactThreshold {
		return fmt.Errorf("config: PARTIAL_MATCH_THRESHOLD (%v) must not exceed EXACT_MATCH_THRESHOLD (%v)",
			c.PartialThreshold, c.ExactThreshold)
	}

	sum := c.WeightKeyword + c.WeightSemantic + c.WeightLateInteraction + c.WeightRerank
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("config: stage weights must sum to 1.0, got %v", sum)
	}
	for name, w := range map[string]float64{
		"WEIGHT_KEYWORD":          c.WeightKeyword,
		"WEIGHT_SEMANTIC":         c.WeightSemantic,
		"WEIGHT_LATE_INTERACTION": c.WeightLateInteraction,
		"WEIGHT_RERANK":           c.WeightRerank,
	} {
		if w < 0 {
			return fmt.Errorf("config: %s must not be negative, got %v", name, w)
		}
	}

	for name, n := range map[string]int{
		"KEYWORD_LIMIT":          c.KeywordLimit,
		"SEMANTIC_LIMIT":         c.SemanticLimit,
		"LATE_INTERACTION_LIMIT": c.LateInteractionLimit,
		"LATE_INTERACTION_BOUND": c.LateInteractionBound,
		"RERANK_TOP_K":           c.RerankTopK,
	} {
		if n <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, n)
		}
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("config: QUERY_TIMEOUT must be positive, got %v", c.QueryTimeout)
	}

	return nil
}

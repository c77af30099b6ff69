package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		ExactThreshold:        0.92,
		PartialThreshold:      0.70,
		WeightKeyword:         0.10,
		WeightSemantic:        0.25,
		WeightLateInteraction: 0.40,
		WeightRerank:          0.25,
		KeywordLimit:          100,
		SemanticLimit:         50,
		LateInteractionLimit:  20,
		LateInteractionBound:  50,
		RerankTopK:            20,
		RetryMaxAttempts:      3,
		QueryTimeout:          10 * time.Second,
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"exact threshold above one", func(c *Config) { c.ExactThreshold = 1.5 }},
		{"partial threshold negative", func(c *Config) { c.PartialThreshold = -0.1 }},
		{"partial above exact", func(c *Config) { c.PartialThreshold = 0.95 }},
		{"weights not summing to one", func(c *Config) { c.WeightKeyword = 0.5 }},
		{"negative weight", func(c *Config) {
			c.WeightKeyword = -0.15
			c.WeightSemantic = 0.50
		}},
		{"zero keyword limit", func(c *Config) { c.KeywordLimit = 0 }},
		{"negative rerank top k", func(c *Config) { c.RerankTopK = -1 }},
		{"zero retry attempts", func(c *Config) { c.RetryMaxAttempts = 0 }},
		{"zero query timeout", func(c *Config) { c.QueryTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_EnvDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ExactThreshold != 0.92 {
		t.Errorf("expected default exact threshold 0.92, got %v", cfg.ExactThreshold)
	}
	if cfg.PartialThreshold != 0.70 {
		t.Errorf("expected default partial threshold 0.70, got %v", cfg.PartialThreshold)
	}
	if cfg.MeiliIndex != "incidents" {
		t.Errorf("expected default index name 'incidents', got %q", cfg.MeiliIndex)
	}
	if !cfg.LateInteractionEnabled {
		t.Error("expected late interaction enabled by default")
	}
	if cfg.RerankEnabled {
		t.Error("expected rerank disabled by default")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EXACT_MATCH_THRESHOLD", "0.85")
	t.Setenv("RERANK_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ExactThreshold != 0.85 {
		t.Errorf("expected overridden threshold 0.85, got %v", cfg.ExactThreshold)
	}
	if !cfg.RerankEnabled {
		t.Error("expected rerank enabled via env")
	}
}

func TestLoad_InvalidEnvRejected(t *testing.T) {
	t.Setenv("WEIGHT_KEYWORD", "0.9")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail when weights do not sum to 1.0")
	}
}

// Package reranker provides joint (cross-encoder style) relevance scoring for
// the final re-ranking stage.
//
// A joint scorer sees the query and a candidate's text together, which yields
// the most accurate relevance signal at the highest per-pair cost. The
// pipeline bounds how many pairs are scored per query; this package only
// scores the pairs it is handed.
package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/incidentiq/matcher/internal/llm"
	"github.com/incidentiq/matcher/internal/retrieval"
)

// LLMScorer scores (query, document) pairs jointly with an LLM at zero
// temperature. The model sees both texts in one prompt and must answer with
// strict JSON, keeping the score deterministic and parseable.
type LLMScorer struct {
	llmClient llm.LLM
	model     string
}

// LLMScorerOption is a functional option for configuring LLMScorer.
type LLMScorerOption func(*LLMScorer)

// WithModel sets the model to use for scoring.
func WithModel(model string) LLMScorerOption {
	return func(s *LLMScorer) {
		s.model = model
	}
}

// NewLLMScorer creates a new LLM-based joint scorer.
func NewLLMScorer(llmClient llm.LLM, opts ...LLMScorerOption) *LLMScorer {
	s := &LLMScorer{
		llmClient: llmClient,
		model:     "llama3.2", // Default model
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// relevanceScore represents the structured output from the LLM.
type relevanceScore struct {
	Score float64 `json:"score"`
}

// Score asks the LLM how relevant text is to query and returns a value in
// [0,1].
func (s *LLMScorer) Score(ctx context.Context, query, text string) (float64, error) {
	prompt := s.buildScorePrompt(query, text)

	opts := llm.GenerateOptions{
		Model:       s.model,
		Temperature: 0.0, // Deterministic scoring
		MaxTokens:   64,
	}

	response, err := s.llmClient.Generate(ctx, prompt, opts)
	if err != nil {
		return 0, fmt.Errorf("LLM joint scoring failed: %w", err)
	}

	score, err := parseScoreResponse(response)
	if err != nil {
		return 0, fmt.Errorf("parsing joint score: %w", err)
	}

	return score, nil
}

// buildScorePrompt constructs the prompt for one query-document pair.
func (s *LLMScorer) buildScorePrompt(query, text string) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system for incident search.\n\n")
	sb.WriteString("Reported error:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nPast incident:\n")

	// Truncate content to avoid token limits
	if len(text) > 1500 {
		text = text[:1500] + "..."
	}
	sb.WriteString(text)

	sb.WriteString(`

Score how likely this past incident explains the reported error, from 0.0 to 1.0.
Be strict: unrelated incidents score below 0.3, somewhat related 0.3-0.7, near-identical above 0.7.
Output ONLY valid JSON in this exact format, no explanation:
{"score": 0.85}`)

	return sb.String()
}

// parseScoreResponse extracts the score from the LLM response, tolerating
// markdown code fences, and clamps it to [0,1].
func parseScoreResponse(response string) (float64, error) {
	response = strings.TrimSpace(response)

	// Try to extract JSON from markdown code blocks if present
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + 7
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	} else if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}

	response = strings.TrimSpace(response)

	var parsed relevanceScore
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse score response: %w", err)
	}

	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return score, nil
}

// Ensure LLMScorer satisfies the pipeline's joint scorer contract.
var _ retrieval.JointScorer = (*LLMScorer)(nil)

// Package service exposes the consumer-facing matching API: given a new
// error report, return resolved past incidents that look like the same
// problem, scored and tiered by confidence.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/incidentiq/matcher/internal/incident"
	"github.com/incidentiq/matcher/internal/retrieval"
)

// DefaultQueryTimeout bounds a single matching query end to end.
const DefaultQueryTimeout = 10 * time.Second

// DefaultLimit is the number of matches returned when the caller does not
// ask for a specific count.
const DefaultLimit = 5

// Matcher answers similarity queries over the indexed incident history.
type Matcher struct {
	pipeline *retrieval.Pipeline
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		m.timeout = d
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// NewMatcher creates a Matcher over a configured pipeline.
func NewMatcher(pipeline *retrieval.Pipeline, opts ...Option) *Matcher {
	m := &Matcher{
		pipeline: pipeline,
		timeout:  DefaultQueryTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindSimilarIncidents matches a free-text error report against the incident
// history. service, when non-empty, restricts matches to that service. Up to
// limit matches are returned in descending score order.
func (m *Matcher) FindSimilarIncidents(ctx context.Context, query, service string, limit int) ([]incident.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var filters map[string]string
	if service != "" {
		filters = map[string]string{"service": service}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.pipeline.Search(ctx, query, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("matching query: %w", err)
	}

	matches := make([]incident.Match, 0, len(result.Matches))
	for _, c := range result.Matches {
		matches = append(matches, matchFromCandidate(c, result.Classifier))
	}

	m.logger.Info("query matched",
		slog.String("service", service),
		slog.Int("matches", len(matches)),
		slog.Any("summary", result.Summary()))

	return matches, nil
}

// matchFromCandidate converts a pipeline candidate into the consumer match
// view, parsing the typed fields out of the flat string payload.
func matchFromCandidate(c retrieval.Candidate, classifier retrieval.Classifier) incident.Match {
	match := incident.Match{
		IncidentID:   c.IncidentID,
		Title:        c.Title,
		Score:        c.FinalScore,
		Confidence:   classifier.Classify(c.FinalScore),
		MatchReasons: c.MatchReasons,

		Service:           c.Payload["service"],
		ErrorType:         c.Payload["error_type"],
		ResolvedBy:        c.Payload["resolved_by"],
		ResolvedByContact: c.Payload["resolved_by_contact"],
		ResolutionSummary: c.Payload["resolution_summary"],
		RCADocumentURL:    c.Payload["rca_document_url"],
		RunbookURL:        c.Payload["runbook_url"],
		ConversationURL:   c.Payload["conversation_url"],
	}

	if commands := c.Payload["resolution_commands"]; commands != "" {
		match.ResolutionCommands = strings.Split(commands, "\n")
	}
	if minutes, err := strconv.Atoi(c.Payload["resolution_time_minutes"]); err == nil {
		match.ResolutionTimeMinutes = minutes
	}
	if occurred, err := time.Parse(time.RFC3339, c.Payload["created_at"]); err == nil {
		match.OccurredAt = occurred
	}

	return match
}

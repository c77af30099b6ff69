package incident

import (
	"time"

	"github.com/incidentiq/matcher/internal/retrieval"
)

// Match is one suggested past incident as presented to consumers (bots, API
// handlers). It exposes the final score, its confidence tier and the
// deterministic match reasons, plus everything an operator needs to act on
// the suggestion. Internal per-stage scores are never exposed.
type Match struct {
	IncidentID string                    `json:"incident_id"`
	Title      string                    `json:"title"`
	Score      float64                   `json:"score"`
	Confidence retrieval.MatchConfidence `json:"confidence"`

	Service   string `json:"service,omitempty"`
	ErrorType string `json:"error_type,omitempty"`

	ResolvedBy            string   `json:"resolved_by,omitempty"`
	ResolvedByContact     string   `json:"resolved_by_contact,omitempty"`
	ResolutionSummary     string   `json:"resolution_summary,omitempty"`
	ResolutionCommands    []string `json:"resolution_commands,omitempty"`
	ResolutionTimeMinutes int      `json:"resolution_time_minutes,omitempty"`

	RCADocumentURL  string `json:"rca_document_url,omitempty"`
	RunbookURL      string `json:"runbook_url,omitempty"`
	ConversationURL string `json:"conversation_url,omitempty"`

	OccurredAt   time.Time `json:"occurred_at"`
	MatchReasons []string  `json:"match_reasons,omitempty"`
}

// ConfidenceLabel returns the confidence tier as its display string.
func (m Match) ConfidenceLabel() string {
	return m.Confidence.String()
}

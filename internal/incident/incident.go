// Package incident defines the incident record and the match type returned
// to consumers (bots, API handlers).
package incident

import (
	"strings"
	"time"
)

// Incident is one historical incident record as stored in the indexes.
type Incident struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ErrorMessage string `json:"error_message"`
	ErrorType    string `json:"error_type"`
	Service      string `json:"service"`
	Severity     string `json:"severity"`
	Status       string `json:"status"`

	ResolvedBy            string   `json:"resolved_by,omitempty"`
	ResolvedByContact     string   `json:"resolved_by_contact,omitempty"`
	ResolutionSummary     string   `json:"resolution_summary,omitempty"`
	ResolutionCommands    []string `json:"resolution_commands,omitempty"`
	ResolutionTimeMinutes int      `json:"resolution_time_minutes,omitempty"`

	RCADocumentURL  string `json:"rca_document_url,omitempty"`
	RunbookURL      string `json:"runbook_url,omitempty"`
	ConversationURL string `json:"conversation_url,omitempty"`
	ChannelID       string `json:"channel_id,omitempty"`

	Keywords []string `json:"keywords,omitempty"`
	Symptoms []string `json:"symptoms,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// SummaryText returns the compact representation embedded for the fast
// first-pass filter: what KIND of incident is this.
func (i Incident) SummaryText() string {
	return joinNonEmpty(" | ", i.Title, i.ErrorType, i.Service)
}

// DetailText returns the detail-level representation embedded for precision
// matching: what EXACTLY happened.
func (i Incident) DetailText() string {
	return joinNonEmpty(" ", i.Description, i.ErrorMessage, strings.Join(i.Symptoms, " "))
}

// ResolutionText returns the resolution-level representation: how it was fixed.
func (i Incident) ResolutionText() string {
	return joinNonEmpty(" ", i.ResolutionSummary, strings.Join(i.ResolutionCommands, " "))
}

// LexicalText returns the full text indexed for keyword search.
func (i Incident) LexicalText() string {
	return joinNonEmpty(" ",
		i.Title,
		i.Description,
		i.ErrorMessage,
		strings.Join(i.Keywords, " "),
		strings.Join(i.Symptoms, " "),
	)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

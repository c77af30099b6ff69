// Package indexer maintains the dual indexes the retrieval pipeline reads
// from: per-incident summary and detail vectors in Qdrant, and the full
// incident text in Meilisearch. Writes are idempotent; re-indexing an
// incident replaces its previous documents in place.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/incidentiq/matcher/internal/embedder"
	"github.com/incidentiq/matcher/internal/incident"
	"github.com/incidentiq/matcher/internal/lexical"
	"github.com/incidentiq/matcher/internal/vectorstore"
)

// Indexer writes incidents into the vector and lexical indexes.
type Indexer struct {
	embedder embedder.Embedder
	vectors  *vectorstore.QdrantStore
	lexical  *lexical.MeiliIndex
	logger   *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger used for index progress.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// New creates an Indexer over the given embedder and index backends.
func New(emb embedder.Embedder, vectors *vectorstore.QdrantStore, lex *lexical.MeiliIndex, opts ...Option) *Indexer {
	ix := &Indexer{
		embedder: emb,
		vectors:  vectors,
		lexical:  lex,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// EnsureIndexes creates the vector collections and the lexical index if they
// do not exist. With recreate set, existing vector collections are dropped
// first.
func (ix *Indexer) EnsureIndexes(ctx context.Context, recreate bool) error {
	if err := ix.vectors.EnsureCollections(ctx, ix.embedder.Dimension(), recreate); err != nil {
		return fmt.Errorf("ensuring vector collections: %w", err)
	}
	if err := ix.lexical.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensuring lexical index: %w", err)
	}
	return nil
}

// Index writes one incident into all indexes. The summary and detail texts
// are embedded separately so the pipeline can trade recall (summary) against
// precision (detail) per stage.
func (ix *Indexer) Index(ctx context.Context, inc incident.Incident) error {
	if inc.ID == "" {
		return fmt.Errorf("incident has no id")
	}

	summaryText := inc.SummaryText()
	detailText := inc.DetailText()
	if detailText == "" {
		detailText = summaryText
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, []string{summaryText, detailText})
	if err != nil {
		return fmt.Errorf("embedding incident %s: %w", inc.ID, err)
	}
	if len(vectors) != 2 {
		return fmt.Errorf("embedding incident %s: expected 2 vectors, got %d", inc.ID, len(vectors))
	}

	payload := incidentPayload(inc)
	payload["summary_text"] = summaryText
	payload["detail_text"] = detailText

	summaryPoint := vectorstore.Point{
		ID:      pointID(inc.ID, "summary"),
		Vector:  vectors[0],
		Payload: payload,
	}
	detailPoint := vectorstore.Point{
		ID:      pointID(inc.ID, "detail"),
		Vector:  vectors[1],
		Payload: payload,
	}

	if err := ix.vectors.Upsert(ctx, vectorstore.CollectionSummary, []vectorstore.Point{summaryPoint}); err != nil {
		return fmt.Errorf("upserting summary vector for %s: %w", inc.ID, err)
	}
	if err := ix.vectors.Upsert(ctx, vectorstore.CollectionDetail, []vectorstore.Point{detailPoint}); err != nil {
		return fmt.Errorf("upserting detail vector for %s: %w", inc.ID, err)
	}

	fields := incidentPayload(inc)
	fields["content"] = inc.LexicalText()
	if err := ix.lexical.IndexDocument(ctx, inc.ID, fields); err != nil {
		return fmt.Errorf("indexing lexical document for %s: %w", inc.ID, err)
	}

	ix.logger.Info("indexed incident",
		"incident_id", inc.ID,
		"service", inc.Service,
		"error_type", inc.ErrorType,
	)

	return nil
}

// IndexAll writes a batch of incidents, stopping at the first failure.
func (ix *Indexer) IndexAll(ctx context.Context, incidents []incident.Incident) error {
	for _, inc := range incidents {
		if err := ix.Index(ctx, inc); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes one incident from all indexes.
func (ix *Indexer) Delete(ctx context.Context, incidentID string) error {
	if err := ix.vectors.DeleteIncident(ctx, incidentID); err != nil {
		return fmt.Errorf("deleting vectors for %s: %w", incidentID, err)
	}
	if err := ix.lexical.DeleteDocument(ctx, incidentID); err != nil {
		return fmt.Errorf("deleting lexical document for %s: %w", incidentID, err)
	}
	return nil
}

// pointID derives a stable UUID for one incident's vector in one collection,
// so re-indexing overwrites rather than duplicates.
func pointID(incidentID, kind string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(incidentID+"_"+kind)).String()
}

// incidentPayload flattens an incident into string payload fields. The same
// payload rides on both vector points and the lexical document, so every
// stage produces candidates carrying identical metadata.
func incidentPayload(inc incident.Incident) map[string]string {
	payload := map[string]string{
		"incident_id":   inc.ID,
		"title":         inc.Title,
		"description":   inc.Description,
		"error_message": inc.ErrorMessage,
		"error_type":    inc.ErrorType,
		"service":       inc.Service,
		"severity":      inc.Severity,
		"status":        inc.Status,
	}

	if inc.ResolvedBy != "" {
		payload["resolved_by"] = inc.ResolvedBy
	}
	if inc.ResolvedByContact != "" {
		payload["resolved_by_contact"] = inc.ResolvedByContact
	}
	if inc.ResolutionSummary != "" {
		payload["resolution_summary"] = inc.ResolutionSummary
	}
	if len(inc.ResolutionCommands) > 0 {
		payload["resolution_commands"] = strings.Join(inc.ResolutionCommands, "\n")
	}
	if inc.ResolutionTimeMinutes > 0 {
		payload["resolution_time_minutes"] = strconv.Itoa(inc.ResolutionTimeMinutes)
	}
	if inc.RCADocumentURL != "" {
		payload["rca_document_url"] = inc.RCADocumentURL
	}
	if inc.RunbookURL != "" {
		payload["runbook_url"] = inc.RunbookURL
	}
	if inc.ConversationURL != "" {
		payload["conversation_url"] = inc.ConversationURL
	}
	if inc.ChannelID != "" {
		payload["channel_id"] = inc.ChannelID
	}
	if resolution := inc.ResolutionText(); resolution != "" {
		payload["resolution_text"] = resolution
	}
	if !inc.CreatedAt.IsZero() {
		payload["created_at"] = inc.CreatedAt.Format(time.RFC3339)
	}
	if !inc.ResolvedAt.IsZero() {
		payload["resolved_at"] = inc.ResolvedAt.Format(time.RFC3339)
	}

	return payload
}

// Package lexical implements the keyword-search capability over Meilisearch.
// It backs the pipeline's cheapest stage: term-frequency relevance over the
// full incident text, with hard equality filters on metadata fields.
package lexical

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"github.com/incidentiq/matcher/internal/retrieval"
)

// filterableAttributes are the payload fields usable as equality constraints.
var filterableAttributes = []string{"service", "error_type", "severity", "status"}

// indexTaskWait bounds how long index mutations wait for Meilisearch to
// acknowledge the task.
const indexTaskWait = 15 * 1000

// MeiliIndex adapts one Meilisearch index to the pipeline's lexical index
// contract. The client is a shared, read-mostly resource reused across
// queries.
type MeiliIndex struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
}

// New creates a lexical index client for the named Meilisearch index.
func New(url, apiKey, indexName string) *MeiliIndex {
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))
	return &MeiliIndex{
		client: client,
		index:  client.Index(indexName),
	}
}

// Search returns up to limit documents ranked by lexical relevance. filters
// are conjunctive equality constraints on filterable fields.
func (m *MeiliIndex) Search(ctx context.Context, query string, filters map[string]string, limit int) ([]retrieval.Document, error) {
	req := &meilisearch.SearchRequest{
		Limit:            int64(limit),
		ShowRankingScore: true,
	}
	if expr := buildFilterExpression(filters); expr != "" {
		req.Filter = expr
	}

	result, err := m.index.Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("meilisearch query failed: %w", err)
	}

	docs := make([]retrieval.Document, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		doc := retrieval.Document{
			ID:      getString(hitMap, "id"),
			Title:   getString(hitMap, "title"),
			Payload: make(map[string]string),
		}
		if score, ok := hitMap["_rankingScore"].(float64); ok {
			doc.Score = score
		}
		for k, v := range hitMap {
			if strings.HasPrefix(k, "_") || k == "id" {
				continue
			}
			if s, ok := v.(string); ok {
				doc.Payload[k] = s
			}
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// EnsureIndex makes sure the index exists and its filterable attributes are
// configured.
func (m *MeiliIndex) EnsureIndex(ctx context.Context) error {
	attrs := filterableAttributes
	task, err := m.index.UpdateFilterableAttributes(&attrs)
	if err != nil {
		return fmt.Errorf("failed to set filterable attributes: %w", err)
	}

	if _, err := m.index.WaitForTask(task.TaskUID, indexTaskWait); err != nil {
		return fmt.Errorf("failed to wait for index settings: %w", err)
	}

	return nil
}

// IndexDocument adds or replaces one incident document. fields must include
// the searchable text and any payload fields candidates should carry.
func (m *MeiliIndex) IndexDocument(ctx context.Context, id string, fields map[string]string) error {
	doc := make(map[string]interface{}, len(fields)+1)
	doc["id"] = id
	for k, v := range fields {
		doc[k] = v
	}

	task, err := m.index.AddDocuments([]map[string]interface{}{doc})
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", id, err)
	}

	if _, err := m.index.WaitForTask(task.TaskUID, indexTaskWait); err != nil {
		return fmt.Errorf("failed to wait for indexing task: %w", err)
	}

	return nil
}

// DeleteDocument removes one incident document.
func (m *MeiliIndex) DeleteDocument(ctx context.Context, id string) error {
	task, err := m.index.DeleteDocument(id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	if _, err := m.index.WaitForTask(task.TaskUID, indexTaskWait); err != nil {
		return fmt.Errorf("failed to wait for delete task: %w", err)
	}

	return nil
}

// Ensure MeiliIndex satisfies the pipeline's lexical index contract.
var _ retrieval.LexicalIndex = (*MeiliIndex)(nil)

// buildFilterExpression renders equality constraints as a conjunctive
// Meilisearch filter expression. Keys are sorted for determinism; values are
// quoted with embedded quotes escaped.
func buildFilterExpression(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := strings.ReplaceAll(filters[k], `"`, `\"`)
		parts = append(parts, fmt.Sprintf(`%s = "%s"`, k, v))
	}
	return strings.Join(parts, " AND ")
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

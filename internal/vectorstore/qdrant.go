// Package vectorstore implements the vector index read/write capability over
// Qdrant. Incidents are stored twice: a compact summary-level vector for the
// fast first-pass filter and a detail-level vector for precision matching.
package vectorstore

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/incidentiq/matcher/internal/retrieval"
)

const (
	// CollectionSummary holds one compact vector per incident (title +
	// error type + service).
	CollectionSummary = "incidents_summary"

	// CollectionDetail holds one detail-level vector per incident
	// (description + error message + symptoms).
	CollectionDetail = "incidents_detail"
)

// Point is one incident vector with its payload, ready to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// QdrantStore wraps a shared Qdrant client. It holds no per-query state and
// is safe to reuse across concurrent queries.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(ctx context.Context, url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// EnsureCollections creates the summary and detail collections if they do not
// exist. With recreate set, existing collections are dropped first (needed
// when the embedding dimension changes).
func (s *QdrantStore) EnsureCollections(ctx context.Context, dimension int, recreate bool) error {
	for _, name := range []string{CollectionSummary, CollectionDetail} {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check collection %s: %w", name, err)
		}

		if exists && recreate {
			if err := s.client.DeleteCollection(ctx, name); err != nil {
				return fmt.Errorf("failed to delete collection %s: %w", name, err)
			}
			exists = false
		}

		if !exists {
			err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(dimension),
					Distance: qdrant.Distance_Cosine,
				}),
			})
			if err != nil {
				return fmt.Errorf("failed to create collection %s: %w", name, err)
			}
		}
	}

	return nil
}

// Upsert inserts or updates incident points in the named collection.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = qdrant.NewValueString(v)
		}

		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search performs similarity search over the named collection. filters are
// conjunctive equality constraints on payload fields.
func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, filters map[string]string, limit int) ([]retrieval.Document, error) {
	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filters) > 0 {
		query.Filter = buildFilter(filters)
	}

	response, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]retrieval.Document, 0, len(response))
	for _, point := range response {
		doc := retrieval.Document{
			ID:      point.Id.GetUuid(),
			Score:   float64(point.Score),
			Payload: make(map[string]string),
		}

		for k, v := range point.Payload {
			doc.Payload[k] = v.GetStringValue()
		}
		if id, ok := doc.Payload["incident_id"]; ok {
			doc.ID = id
		}
		doc.Title = doc.Payload["title"]

		results = append(results, doc)
	}

	return results, nil
}

// DeleteIncident removes an incident's points from both collections.
func (s *QdrantStore) DeleteIncident(ctx context.Context, incidentID string) error {
	for _, name := range []string{CollectionSummary, CollectionDetail} {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{
							qdrant.NewMatch("incident_id", incidentID),
						},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete from %s: %w", name, err)
		}
	}

	return nil
}

// Collection returns a read view of one collection satisfying the pipeline's
// vector index contract.
func (s *QdrantStore) Collection(name string) *CollectionIndex {
	return &CollectionIndex{store: s, name: name}
}

// CollectionIndex adapts one Qdrant collection to retrieval.VectorIndex.
type CollectionIndex struct {
	store *QdrantStore
	name  string
}

// Search performs similarity search over the collection.
func (c *CollectionIndex) Search(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]retrieval.Document, error) {
	return c.store.Search(ctx, c.name, vector, filters, limit)
}

// Ensure CollectionIndex satisfies the pipeline's vector index contract.
var _ retrieval.VectorIndex = (*CollectionIndex)(nil)

// buildFilter converts equality constraints to a conjunctive Qdrant filter.
// Keys are sorted so identical constraints build identical filters.
func buildFilter(filters map[string]string) *qdrant.Filter {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	must := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		must = append(must, qdrant.NewMatch(k, filters[k]))
	}
	return &qdrant.Filter{Must: must}
}

package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["model"] != "nomic-embed-text" {
			t.Errorf("unexpected model %s", req["model"])
		}
		if req["prompt"] != "db timeout" {
			t.Errorf("unexpected prompt %q", req["prompt"])
		}
		fmt.Fprint(w, `{"embedding": [0.1, 0.2, 0.3]}`)
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(WithBaseURL(server.URL))
	vec, err := emb.Embed(context.Background(), "db timeout")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vec))
	}
	if vec[0] != 0.1 || vec[2] != 0.3 {
		t.Errorf("unexpected vector %v", vec)
	}
}

func TestOllamaEmbedder_EmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(WithBaseURL(server.URL))
	if _, err := emb.Embed(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestOllamaEmbedder_EmbedEmptyVectorRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"embedding": []}`)
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(WithBaseURL(server.URL))
	if _, err := emb.Embed(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestOllamaEmbedder_EmbedBatchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		// Encode the prompt length so order is verifiable.
		fmt.Fprintf(w, `{"embedding": [%d]}`, len(req["prompt"]))
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(WithBaseURL(server.URL), WithConcurrency(2))
	vecs, err := emb.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d = %v, want [%v]", i, vecs[i], want)
		}
	}
}

func TestOllamaEmbedder_EmbedBatchFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	emb := NewOllamaEmbedder(WithBaseURL(server.URL))
	if _, err := emb.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected batch failure to propagate")
	}
}

func TestOllamaEmbedder_Defaults(t *testing.T) {
	emb := NewOllamaEmbedder()
	if emb.Dimension() != 768 {
		t.Errorf("expected default dimension 768, got %d", emb.Dimension())
	}
	if emb.ModelName() != "nomic-embed-text" {
		t.Errorf("expected default model nomic-embed-text, got %s", emb.ModelName())
	}
}

func TestOllamaEmbedder_DimensionOverride(t *testing.T) {
	emb := NewOllamaEmbedder(WithModel("mxbai-embed-large"), WithDimension(1024))
	if emb.Dimension() != 1024 {
		t.Errorf("expected dimension 1024, got %d", emb.Dimension())
	}
	if emb.ModelName() != "mxbai-embed-large" {
		t.Errorf("expected overridden model, got %s", emb.ModelName())
	}
}

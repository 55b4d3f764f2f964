// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"

	"github.com/focusai/focus/pkg/core"
)

// VectorStore defines the interface for a vector database.
type VectorStore interface {
	// Upsert adds or updates points in the vector store.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search searches for the nearest vectors to the given vector.
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchResult, error)
	// CreateCollection creates a new collection if it doesn't exist.
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
}

// Point represents a data point in the vector store.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// SearchResult represents a result from a vector search.
type SearchResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Point Point   `json:"point"`
}

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	// Embed converts a text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorRetriever implements core.Retriever over a vector store and an
// embedder. Snippet text is expected under the "text" payload key.
type VectorRetriever struct {
	store      VectorStore
	embedder   Embedder
	collection string
	threshold  float32
}

// NewVectorRetriever creates a retriever over the given store and embedder.
func NewVectorRetriever(store VectorStore, embedder Embedder, collection string, threshold float32) *VectorRetriever {
	return &VectorRetriever{
		store:      store,
		embedder:   embedder,
		collection: collection,
		threshold:  threshold,
	}
}

// Retrieve implements core.Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]core.Snippet, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Search(ctx, r.collection, vector, k, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	snippets := make([]core.Snippet, 0, len(results))
	for _, res := range results {
		text, _ := res.Point.Payload["text"].(string)
		if text == "" {
			continue
		}
		source, _ := res.Point.Payload["source"].(string)
		snippets = append(snippets, core.Snippet{
			ID:     res.ID,
			Text:   text,
			Score:  res.Score,
			Source: source,
		})
	}
	return snippets, nil
}

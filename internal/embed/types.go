// Package embed generates text embeddings for chunk indexing and query
// search. The production implementation calls the OpenAI embeddings API; a
// deterministic hash-based embedder backs tests and offline development.
package embed

import (
	"context"
	"math"
)

// Defaults for the OpenAI embedder.
const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultBatchSize  = 128
	DefaultMaxRetries = 3

	// DefaultCacheSize bounds the query-embedding LRU. At 1536 dims * 4
	// bytes * 1000 entries this is about 6 MB.
	DefaultCacheSize = 1000
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed generates the embedding for a single text. Empty or
	// whitespace-only input yields a zero vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length so inner products equal cosine
// similarity. Zero vectors are returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

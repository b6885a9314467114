// Package embeddings defines the Generator interface for vector embedding backends.
//
// A generator wraps a service that maps text strings to dense float32 vectors
// (e.g., OpenAI text-embedding-3 or a local Ollama embedding model) bound to one
// model. The vectors feed similarity computation and the vector store.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Generator is the abstraction over any text-embedding backend bound to a
// single model.
//
// All vectors returned by a single Generator share the same dimensionality.
// Callers must not mix vectors from different models in one similarity
// computation.
type Generator interface {
	// Embed computes the embedding vector for a single text string.
	// Implementations issue a single-item batch request.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for texts in a single backend
	// call. The returned slice has the same length as texts and the i-th
	// element corresponds to texts[i]. On error the entire slice is nil.
	// An empty input returns (nil, nil) without a network request.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length produced by the model, or 0 when
	// it is not known without issuing a request.
	Dimensions() int

	// ModelID returns the backend model identifier (e.g.,
	// "text-embedding-3-small").
	ModelID() string
}

// Package mock provides a test double for the embeddings.Generator interface.
//
// Use Generator to return pre-canned embedding vectors without a live model
// and to verify that the correct texts are submitted for embedding.
//
// Example:
//
//	g := &mock.Generator{
//	    Vectors:         map[string][]float32{"cat": {1, 0}},
//	    DimensionsValue: 2,
//	    ModelIDValue:    "test-embed-v1",
//	}
//	vec, _ := g.Embed(ctx, "cat")
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
)

// EmbedBatchCall records a single backend call. Embed is recorded as a batch
// of one, matching how real generators issue it.
type EmbedBatchCall struct {
	// Ctx is the context passed to the call.
	Ctx context.Context
	// Texts is a copy of the input texts.
	Texts []string
}

// Generator is a mock implementation of embeddings.Generator.
type Generator struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Vectors maps input text to its vector. Texts missing from the map
	// produce an error unless Fallback is set.
	Vectors map[string][]float32

	// Fallback, if non-nil, computes vectors for texts missing from Vectors.
	Fallback func(text string) []float32

	// Err, if non-nil, is returned from every call.
	Err error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records ---

	// Calls records every backend call in order.
	Calls []EmbedBatchCall
}

// Embed records a single-item batch and returns its vector.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch records the call and looks up one vector per text, in order.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(texts) == 0 {
		return nil, nil
	}
	cp := make([]string, len(texts))
	copy(cp, texts)
	g.Calls = append(g.Calls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if g.Err != nil {
		return nil, g.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := g.Vectors[text]
		switch {
		case ok:
		case g.Fallback != nil:
			vec = g.Fallback(text)
		default:
			return nil, fmt.Errorf("mock embeddings: no vector for %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns DimensionsValue.
func (g *Generator) Dimensions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.DimensionsValue
}

// ModelID returns ModelIDValue.
func (g *Generator) ModelID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ModelIDValue
}

// CallCount returns the number of recorded backend calls.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = nil
}

// Ensure Generator implements embeddings.Generator at compile time.
var _ embeddings.Generator = (*Generator)(nil)

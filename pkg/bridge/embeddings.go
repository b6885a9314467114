package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// Embeddings is the embedding facade. It is safe for concurrent use.
type Embeddings struct {
	resolver
	options EmbeddingOptions
	metrics *observe.Metrics
}

// NewEmbeddings returns an embedding facade over reg.
func NewEmbeddings(reg *provider.Registry, opts ...Option) *Embeddings {
	return newEmbeddings(reg, newConfig(opts))
}

func newEmbeddings(reg *provider.Registry, cfg config) *Embeddings {
	return &Embeddings{
		resolver: resolver{reg: reg, defaultProvider: cfg.defaultProvider},
		options:  cfg.embeddings,
		metrics:  cfg.metrics,
	}
}

// Select returns a selection for the default provider and model.
func (e *Embeddings) Select() Selection { return Select(e.defaultProvider) }

// Options returns the facade's embedding options.
func (e *Embeddings) Options() EmbeddingOptions { return e.options }

// GenerateEmbedding embeds a single text.
func (e *Embeddings) GenerateEmbedding(ctx context.Context, sel Selection, text string) ([]float32, error) {
	vecs, err := e.GenerateEmbeddings(ctx, sel, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings embeds texts in one backend call. The i-th vector
// belongs to the i-th text. An empty input returns an empty result without
// contacting the backend.
func (e *Embeddings) GenerateEmbeddings(ctx context.Context, sel Selection, texts []string) ([][]float32, error) {
	sel, a, err := e.resolve(sel)
	if err != nil {
		return nil, err
	}
	gen := a.EmbeddingGenerator(sel.model)
	if gen == nil {
		return nil, fmt.Errorf("%w: provider %q, model %q", ErrGeneratorUnavailable, sel.provider, sel.model)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, span := observe.StartProviderSpan(ctx, observe.KindEmbeddings, sel.provider, gen.ModelID(), observe.AttrBatchSize.Int(len(texts)))
	start := time.Now()

	vecs, err := gen.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	if err != nil {
		err = fmt.Errorf("bridge: embeddings: provider %q: %w", sel.provider, err)
		observe.ProviderLogger(ctx, sel.provider, gen.ModelID()).Warn("embedding generation failed", "err", err)
	}
	e.metrics.RecordCall(ctx, sel.provider, observe.KindEmbeddings, start, err)
	observe.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordEmbedded(ctx, sel.provider, len(texts))
	return vecs, nil
}

// Generator returns the raw generator for sel, for callers that need its
// Dimensions or ModelID.
func (e *Embeddings) Generator(sel Selection) (embeddings.Generator, error) {
	sel, a, err := e.resolve(sel)
	if err != nil {
		return nil, err
	}
	gen := a.EmbeddingGenerator(sel.model)
	if gen == nil {
		return nil, fmt.Errorf("%w: provider %q, model %q", ErrGeneratorUnavailable, sel.provider, sel.model)
	}
	return gen, nil
}

// CalculateSimilarity returns the cosine similarity of a and b. It fails
// with [ErrUndefinedSimilarity] for empty or mismatched vectors and for
// vectors of zero magnitude.
func (e *Embeddings) CalculateSimilarity(a, b []float32) (float64, error) {
	return CalculateSimilarity(a, b)
}

// CalculateSimilarity is the package-level form of
// [Embeddings.CalculateSimilarity].
func CalculateSimilarity(a, b []float32) (float64, error) {
	score, ok := vectorstore.CosineSimilarity(a, b)
	if !ok {
		return 0, fmt.Errorf("%w: lengths %d and %d", ErrUndefinedSimilarity, len(a), len(b))
	}
	return score, nil
}

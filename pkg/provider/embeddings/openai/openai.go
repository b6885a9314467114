// Package openai provides an embedding generator backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
)

// DefaultModel is the default OpenAI embeddings model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// Ensure Generator implements the embeddings.Generator interface.
var _ embeddings.Generator = (*Generator)(nil)

// Generator implements embeddings.Generator using the OpenAI API.
type Generator struct {
	client     oai.Client
	model      string
	dimensions int
}

// New binds client to model. An empty model uses [DefaultModel]. A positive
// dimensions asks text-embedding-3 models to shorten their vectors.
func New(client oai.Client, model string, dimensions int) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model, dimensions: dimensions}
}

// Embed implements embeddings.Generator.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Generator.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := oai.EmbeddingNewParams{
		Model: g.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if g.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(g.dimensions))
	}

	resp, err := g.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if e.Index < 0 || int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: unexpected index %d", e.Index)
		}
		result[e.Index] = float64ToFloat32(e.Embedding)
	}
	return result, nil
}

// Dimensions implements embeddings.Generator.
func (g *Generator) Dimensions() int {
	if g.dimensions > 0 {
		return g.dimensions
	}
	return modelDimensions(g.model)
}

// ModelID implements embeddings.Generator.
func (g *Generator) ModelID() string {
	return g.model
}

// modelDimensions returns the embedding dimensions for known OpenAI models.
func modelDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "text-embedding-3-large"):
		return 3072
	case strings.Contains(lower, "text-embedding-3-small"),
		strings.Contains(lower, "text-embedding-ada-002"):
		return 1536
	default:
		return 0
	}
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

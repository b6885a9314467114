package bridge_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/provider"
	embmock "github.com/MrWong99/aibridge/pkg/provider/embeddings/mock"
	providermock "github.com/MrWong99/aibridge/pkg/provider/mock"
)

func TestGenerateEmbeddings_PreservesOrder(t *testing.T) {
	t.Parallel()

	gen := &embmock.Generator{
		Vectors: map[string][]float32{
			"cat": {1, 0},
			"dog": {0, 1},
			"cow": {0.5, 0.5},
		},
		DimensionsValue: 2,
	}
	svc := singleAdapter(t, &providermock.Adapter{Embedder: gen})

	vecs, err := svc.Embeddings.GenerateEmbeddings(context.Background(), bridge.Selection{}, []string{"dog", "cow", "cat"})
	if err != nil {
		t.Fatalf("GenerateEmbeddings: %v", err)
	}
	want := [][]float32{{0, 1}, {0.5, 0.5}, {1, 0}}
	if len(vecs) != len(want) {
		t.Fatalf("want %d vectors, got %d", len(want), len(vecs))
	}
	for i := range want {
		if vecs[i][0] != want[i][0] || vecs[i][1] != want[i][1] {
			t.Errorf("vector %d: want %v, got %v", i, want[i], vecs[i])
		}
	}
	if gen.CallCount() != 1 {
		t.Errorf("backend calls: want 1 batch, got %d", gen.CallCount())
	}
}

func TestGenerateEmbedding_Single(t *testing.T) {
	t.Parallel()

	gen := &embmock.Generator{Vectors: map[string][]float32{"hi": {3, 4}}}
	adapter := &providermock.Adapter{Embedder: gen}
	svc := singleAdapter(t, adapter)

	vec, err := svc.Embeddings.GenerateEmbedding(context.Background(), bridge.Selection{}.WithModel("e5"), "hi")
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	if len(vec) != 2 || vec[0] != 3 || vec[1] != 4 {
		t.Errorf("got %v", vec)
	}
	if adapter.EmbeddingGeneratorCalls[0] != "e5" {
		t.Errorf("model argument: want e5, got %q", adapter.EmbeddingGeneratorCalls[0])
	}
}

func TestGenerateEmbeddings_EmptyInput(t *testing.T) {
	t.Parallel()

	gen := &embmock.Generator{}
	svc := singleAdapter(t, &providermock.Adapter{Embedder: gen})

	vecs, err := svc.Embeddings.GenerateEmbeddings(context.Background(), bridge.Selection{}, nil)
	if err != nil {
		t.Fatalf("GenerateEmbeddings: %v", err)
	}
	if len(vecs) != 0 {
		t.Errorf("want no vectors, got %d", len(vecs))
	}
	if gen.CallCount() != 0 {
		t.Errorf("backend calls: want 0, got %d", gen.CallCount())
	}
}

func TestGenerateEmbeddings_Errors(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("quota exceeded")
	tests := []struct {
		name    string
		adapter *providermock.Adapter
		sel     bridge.Selection
		wantErr error
	}{
		{name: "no generator", adapter: &providermock.Adapter{}, wantErr: bridge.ErrGeneratorUnavailable},
		{name: "unknown provider", adapter: &providermock.Adapter{}, sel: bridge.Select("Nope"), wantErr: bridge.ErrProviderNotFound},
		{
			name:    "backend error",
			adapter: &providermock.Adapter{Embedder: &embmock.Generator{Err: backendErr}},
			wantErr: backendErr,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := singleAdapter(t, tc.adapter)
			_, err := svc.Embeddings.GenerateEmbeddings(context.Background(), tc.sel, []string{"x"})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCalculateSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "close", a: []float32{1, 0}, b: []float32{0.9, 0.1}, want: 0.9938837},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, wantErr: true},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, wantErr: true},
		{name: "empty", a: nil, b: nil, wantErr: true},
	}
	svc := singleAdapter(t, &providermock.Adapter{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Embeddings.CalculateSimilarity(tc.a, tc.b)
			if tc.wantErr {
				if !errors.Is(err, bridge.ErrUndefinedSimilarity) {
					t.Fatalf("want ErrUndefinedSimilarity, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestGenerateEmbeddings_CountsOnlyDelivered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gen  *embmock.Generator
		want int64
	}{
		{"success", &embmock.Generator{Vectors: map[string][]float32{"a": {1}, "b": {2}}}, 2},
		{"backend error", &embmock.Generator{Err: errors.New("down")}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			adapter := &providermock.Adapter{NameValue: testProvider, Embedder: tc.gen}
			svc, reader := newService(t, nil, []provider.Adapter{adapter})

			_, _ = svc.Embeddings.GenerateEmbeddings(context.Background(), bridge.Selection{}, []string{"a", "b"})
			if got := counterTotal(t, reader, "aibridge.embeddings.texts"); got != tc.want {
				t.Errorf("embedded texts: want %d, got %d", tc.want, got)
			}
		})
	}
}

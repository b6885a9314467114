package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func TestModelDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"some-future-model", 0},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := modelDimensions(tt.model); got != tt.want {
				t.Errorf("modelDimensions(%q) = %d, want %d", tt.model, got, tt.want)
			}
		})
	}
}

func testClient(baseURL string) oai.Client {
	return oai.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		dimensions int
		wantModel  string
		wantDims   int
	}{
		{"default model", "", 0, DefaultModel, 1536},
		{"large model", "text-embedding-3-large", 0, "text-embedding-3-large", 3072},
		{"shortened vectors", "text-embedding-3-large", 256, "text-embedding-3-large", 256},
		{"unknown model", "nomic-embed-text", 0, "nomic-embed-text", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(testClient("http://127.0.0.1:19999/v1/"), tt.model, tt.dimensions)
			if g.ModelID() != tt.wantModel {
				t.Errorf("ModelID() = %q, want %q", g.ModelID(), tt.wantModel)
			}
			if g.Dimensions() != tt.wantDims {
				t.Errorf("Dimensions() = %d, want %d", g.Dimensions(), tt.wantDims)
			}
		})
	}
}

// TestEmbedBatch_PreservesOrder verifies that results are placed by the
// index the API reports, not by arrival order.
func TestEmbedBatch_PreservesOrder(t *testing.T) {
	var gotInput []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Model      string   `json:"model"`
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotInput = req.Input
		if req.Dimensions != 2 {
			t.Errorf("dimensions: got %d, want 2", req.Dimensions)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 2, "embedding": []float64{0, 3}},
				{"object": "embedding", "index": 0, "embedding": []float64{0, 1}},
				{"object": "embedding", "index": 1, "embedding": []float64{0, 2}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	defer srv.Close()

	g := New(testClient(srv.URL+"/v1/"), "text-embedding-3-small", 2)
	texts := []string{"cat", "dog", "kitten"}
	got, err := g.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(gotInput) != 3 || gotInput[0] != "cat" {
		t.Errorf("request input: got %v", gotInput)
	}
	for i := range texts {
		if got[i][1] != float32(i+1) {
			t.Errorf("vec[%d]: got %v, want second component %d", i, got[i], i+1)
		}
	}
}

// TestEmbedBatch_Empty verifies that no request is issued for empty input.
func TestEmbedBatch_Empty(t *testing.T) {
	g := New(testClient("http://127.0.0.1:19999/v1/"), "", 0)
	got, err := g.EmbedBatch(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestFloat64ToFloat32(t *testing.T) {
	got := float64ToFloat32([]float64{0.5, -1, 2})
	want := []float32{0.5, -1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

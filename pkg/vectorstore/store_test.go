package vectorstore_test

import (
	"math"
	"testing"

	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		a, b   []float32
		want   float64
		wantOK bool
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, true},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1, true},
		{"close", []float32{1, 0}, []float32{0.9, 0.1}, 0.9938837, true},
		{"zero magnitude", []float32{0, 0}, []float32{1, 0}, 0, false},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0, false},
		{"empty", nil, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := vectorstore.CosineSimilarity(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("score: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTopK(t *testing.T) {
	for in, want := range map[int]int{-1: 5, 0: 5, 1: 1, 12: 12} {
		if got := vectorstore.NormalizeTopK(in); got != want {
			t.Errorf("NormalizeTopK(%d): got %d, want %d", in, got, want)
		}
	}
}

// Package vectorstore defines the pluggable storage contract behind the vector
// store facade, plus the shared cosine similarity helper.
//
// A [Store] owns named collections. Each [Collection] holds [Record] values
// keyed by a string and answers nearest-neighbour queries ordered by
// descending cosine similarity. Two implementations ship with the module:
// [github.com/MrWong99/aibridge/pkg/vectorstore/memory] and
// [github.com/MrWong99/aibridge/pkg/vectorstore/postgres].
package vectorstore

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrCollectionNotFound is returned when a collection is opened that was
	// never created with [Store.GetCollection].
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")

	// ErrDimensionMismatch is returned when a vector's length disagrees with
	// the collection definition, or when a collection is re-declared with a
	// different dimension.
	ErrDimensionMismatch = errors.New("vectorstore: dimension mismatch")

	// ErrNotFound is returned by [Collection.Get] and [Collection.Delete]
	// for unknown keys.
	ErrNotFound = errors.New("vectorstore: record not found")
)

// DefaultTopK is the number of results returned when a search passes a
// non-positive topK.
const DefaultTopK = 5

// Record is one stored entry.
type Record struct {
	// Key uniquely identifies the record within its collection.
	Key string `json:"key"`

	// Content is the source text the vector was computed from. Optional.
	Content string `json:"content,omitempty"`

	// Metadata holds arbitrary caller-supplied attributes.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Vector is the embedding.
	Vector []float32 `json:"vector"`
}

// Definition describes a collection's schema.
type Definition struct {
	// Dimensions is the vector length every record must have. Zero lets the
	// backend apply its configured default.
	Dimensions int `json:"dimensions"`
}

// SearchResult pairs a stored record with its similarity to the query.
type SearchResult struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// Collection is a handle on one named collection. Implementations are safe
// for concurrent use.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Definition returns the effective collection definition.
	Definition() Definition

	// Upsert inserts rec or replaces the record with the same key.
	Upsert(ctx context.Context, rec Record) error

	// Get returns the record stored under key or [ErrNotFound].
	Get(ctx context.Context, key string) (Record, error)

	// Delete removes the record stored under key or returns [ErrNotFound].
	Delete(ctx context.Context, key string) error

	// Search returns up to topK records ordered by non-increasing score.
	// A non-positive topK means [DefaultTopK].
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)
}

// Store owns named collections.
type Store interface {
	// GetCollection creates the collection if it does not exist yet and
	// returns a handle. Calling it again with the same definition is a no-op.
	GetCollection(ctx context.Context, name string, def Definition) (Collection, error)

	// Collection opens an existing collection or returns
	// [ErrCollectionNotFound].
	Collection(ctx context.Context, name string) (Collection, error)

	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by stores backed by a remote service that can be
// probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CosineSimilarity returns the cosine of the angle between a and b. ok is
// false when the vectors are empty, differ in length, or either has zero
// magnitude.
func CosineSimilarity(a, b []float32) (score float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// NormalizeTopK maps a non-positive topK to [DefaultTopK].
func NormalizeTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return topK
}

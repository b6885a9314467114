// Package memory provides an in-process [vectorstore.Store] that keeps every
// record in a map and answers searches by brute-force cosine similarity.
//
// It is the default backend and suits tests and small collections. Nothing is
// persisted.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// Compile-time interface checks.
var (
	_ vectorstore.Store      = (*Store)(nil)
	_ vectorstore.Collection = (*Collection)(nil)
)

// Store is an in-memory [vectorstore.Store]. The zero value is not usable;
// call [New].
type Store struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	defaultDims int
}

// New returns an empty Store. defaultDims is applied to collections declared
// with zero dimensions; zero disables the length check for them.
func New(defaultDims int) *Store {
	return &Store{
		collections: make(map[string]*Collection),
		defaultDims: defaultDims,
	}
}

// GetCollection implements [vectorstore.Store].
func (s *Store) GetCollection(_ context.Context, name string, def vectorstore.Definition) (vectorstore.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("memory: collection name must not be empty")
	}
	if def.Dimensions < 0 {
		return nil, fmt.Errorf("memory: collection %q: negative dimensions %d", name, def.Dimensions)
	}
	if def.Dimensions == 0 {
		def.Dimensions = s.defaultDims
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.def.Dimensions != def.Dimensions {
			return nil, fmt.Errorf("memory: collection %q has %d dimensions, requested %d: %w",
				name, c.def.Dimensions, def.Dimensions, vectorstore.ErrDimensionMismatch)
		}
		return c, nil
	}
	c := &Collection{name: name, def: def, records: make(map[string]vectorstore.Record)}
	s.collections[name] = c
	return c, nil
}

// Collection implements [vectorstore.Store].
func (s *Store) Collection(_ context.Context, name string) (vectorstore.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("memory: %q: %w", name, vectorstore.ErrCollectionNotFound)
	}
	return c, nil
}

// Close implements [vectorstore.Store]. It is a no-op.
func (s *Store) Close() error { return nil }

// Collection is one in-memory collection.
type Collection struct {
	name string
	def  vectorstore.Definition

	mu      sync.RWMutex
	records map[string]vectorstore.Record
}

// Name implements [vectorstore.Collection].
func (c *Collection) Name() string { return c.name }

// Definition implements [vectorstore.Collection].
func (c *Collection) Definition() vectorstore.Definition { return c.def }

// Len returns the number of stored records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Upsert implements [vectorstore.Collection].
func (c *Collection) Upsert(ctx context.Context, rec vectorstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Key == "" {
		return fmt.Errorf("memory: upsert into %q: record key must not be empty", c.name)
	}
	if c.def.Dimensions > 0 && len(rec.Vector) != c.def.Dimensions {
		return fmt.Errorf("memory: upsert %q into %q: vector has %d dimensions, want %d: %w",
			rec.Key, c.name, len(rec.Vector), c.def.Dimensions, vectorstore.ErrDimensionMismatch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.Key] = clone(rec)
	return nil
}

// Get implements [vectorstore.Collection].
func (c *Collection) Get(_ context.Context, key string) (vectorstore.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[key]
	if !ok {
		return vectorstore.Record{}, fmt.Errorf("memory: get %q from %q: %w", key, c.name, vectorstore.ErrNotFound)
	}
	return clone(rec), nil
}

// Delete implements [vectorstore.Collection].
func (c *Collection) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[key]; !ok {
		return fmt.Errorf("memory: delete %q from %q: %w", key, c.name, vectorstore.ErrNotFound)
	}
	delete(c.records, key)
	return nil
}

// Search implements [vectorstore.Collection]. Records whose similarity is
// undefined (zero vectors) are skipped. Equal scores are ordered by key.
func (c *Collection) Search(ctx context.Context, query []float32, topK int) ([]vectorstore.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.def.Dimensions > 0 && len(query) != c.def.Dimensions {
		return nil, fmt.Errorf("memory: search %q: query has %d dimensions, want %d: %w",
			c.name, len(query), c.def.Dimensions, vectorstore.ErrDimensionMismatch)
	}
	topK = vectorstore.NormalizeTopK(topK)

	c.mu.RLock()
	results := make([]vectorstore.SearchResult, 0, len(c.records))
	for _, rec := range c.records {
		score, ok := vectorstore.CosineSimilarity(query, rec.Vector)
		if !ok {
			continue
		}
		results = append(results, vectorstore.SearchResult{Record: clone(rec), Score: score})
	}
	c.mu.RUnlock()

	slices.SortFunc(results, func(a, b vectorstore.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.Record.Key, b.Record.Key)
		}
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func clone(rec vectorstore.Record) vectorstore.Record {
	rec.Vector = slices.Clone(rec.Vector)
	rec.Metadata = maps.Clone(rec.Metadata)
	return rec
}

package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// VectorStore is the vector search facade. It forwards to a pluggable
// [vectorstore.Store] and can embed text through the [Embeddings] facade
// before storing or searching.
type VectorStore struct {
	store       vectorstore.Store
	emb         *Embeddings
	metrics     *observe.Metrics
	defaultDims int
}

// NewVectorStore returns a vector store facade over store. emb may be nil,
// in which case the text variants fail with [ErrGeneratorUnavailable].
func NewVectorStore(store vectorstore.Store, emb *Embeddings, opts ...Option) *VectorStore {
	return newVectorStore(store, emb, newConfig(opts))
}

func newVectorStore(store vectorstore.Store, emb *Embeddings, cfg config) *VectorStore {
	return &VectorStore{
		store:       store,
		emb:         emb,
		metrics:     cfg.metrics,
		defaultDims: cfg.embeddings.DefaultDimensions,
	}
}

// GetCollection ensures the named collection exists and returns a handle.
// A zero def.Dimensions uses the embedding default dimensions.
func (v *VectorStore) GetCollection(ctx context.Context, name string, def vectorstore.Definition) (vectorstore.Collection, error) {
	if v.store == nil {
		return nil, errNoStore
	}
	if def.Dimensions == 0 {
		def.Dimensions = v.defaultDims
	}
	done := v.metrics.TimeVectorStoreOp(ctx, "get_collection")
	c, err := v.store.GetCollection(ctx, name, def)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("bridge: vectorstore: %w", err)
	}
	return c, nil
}

// Upsert inserts rec into the named collection or replaces the record with
// the same key. A missing collection is created with the default definition.
func (v *VectorStore) Upsert(ctx context.Context, name string, rec vectorstore.Record) error {
	c, err := v.ensure(ctx, name)
	if err != nil {
		return err
	}
	done := v.metrics.TimeVectorStoreOp(ctx, "upsert")
	err = c.Upsert(ctx, rec)
	done(err)
	if err != nil {
		return fmt.Errorf("bridge: vectorstore: upsert %q: %w", rec.Key, err)
	}
	return nil
}

// Search returns up to topK records nearest to query, highest score first.
// A non-positive topK means [vectorstore.DefaultTopK].
func (v *VectorStore) Search(ctx context.Context, name string, query []float32, topK int) ([]vectorstore.SearchResult, error) {
	c, err := v.collection(ctx, name)
	if err != nil {
		return nil, err
	}
	done := v.metrics.TimeVectorStoreOp(ctx, "search")
	res, err := c.Search(ctx, query, vectorstore.NormalizeTopK(topK))
	done(err)
	if err != nil {
		return nil, fmt.Errorf("bridge: vectorstore: search: %w", err)
	}
	return res, nil
}

// Get returns the record stored under key.
func (v *VectorStore) Get(ctx context.Context, name, key string) (vectorstore.Record, error) {
	c, err := v.collection(ctx, name)
	if err != nil {
		return vectorstore.Record{}, err
	}
	done := v.metrics.TimeVectorStoreOp(ctx, "get")
	rec, err := c.Get(ctx, key)
	done(err)
	if err != nil {
		return vectorstore.Record{}, fmt.Errorf("bridge: vectorstore: get %q: %w", key, err)
	}
	return rec, nil
}

// Delete removes the record stored under key.
func (v *VectorStore) Delete(ctx context.Context, name, key string) error {
	c, err := v.collection(ctx, name)
	if err != nil {
		return err
	}
	done := v.metrics.TimeVectorStoreOp(ctx, "delete")
	err = c.Delete(ctx, key)
	done(err)
	if err != nil {
		return fmt.Errorf("bridge: vectorstore: delete %q: %w", key, err)
	}
	return nil
}

// UpsertText embeds text with the provider named by sel and stores it under
// key together with metadata.
func (v *VectorStore) UpsertText(ctx context.Context, sel Selection, name, key, text string, metadata map[string]any) error {
	if v.store == nil {
		return errNoStore
	}
	vec, err := v.embed(ctx, sel, text)
	if err != nil {
		return err
	}
	return v.Upsert(ctx, name, vectorstore.Record{
		Key:      key,
		Content:  text,
		Metadata: metadata,
		Vector:   vec,
	})
}

// SearchText embeds text with the provider named by sel and searches with
// the resulting vector.
func (v *VectorStore) SearchText(ctx context.Context, sel Selection, name, text string, topK int) ([]vectorstore.SearchResult, error) {
	if v.store == nil {
		return nil, errNoStore
	}
	vec, err := v.embed(ctx, sel, text)
	if err != nil {
		return nil, err
	}
	return v.Search(ctx, name, vec, topK)
}

func (v *VectorStore) embed(ctx context.Context, sel Selection, text string) ([]float32, error) {
	if v.emb == nil {
		return nil, fmt.Errorf("%w: no embedding facade configured", ErrGeneratorUnavailable)
	}
	return v.emb.GenerateEmbedding(ctx, sel, text)
}

// ensure opens name, creating it when absent. Existing collections are used
// as they are so their dimensions are never re-checked against the default.
func (v *VectorStore) ensure(ctx context.Context, name string) (vectorstore.Collection, error) {
	c, err := v.collection(ctx, name)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return v.GetCollection(ctx, name, vectorstore.Definition{})
	}
	return c, err
}

func (v *VectorStore) collection(ctx context.Context, name string) (vectorstore.Collection, error) {
	if v.store == nil {
		return nil, errNoStore
	}
	c, err := v.store.Collection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("bridge: vectorstore: %w", err)
	}
	return c, nil
}

var errNoStore = fmt.Errorf("%w: no vector store configured", ErrUnsupportedCapability)

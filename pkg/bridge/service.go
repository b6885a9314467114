// Package bridge is the provider-independent facade over chat completion,
// embeddings, vision and vector search.
//
// Every facade is stateless. Which provider, model and generation options a
// call uses is decided by the [Selection] value passed with the call, so one
// facade instance can serve concurrent requests that target different
// providers:
//
//	svc := bridge.NewService(reg, store, bridge.WithDefaultProvider("OpenAI"))
//	sel := svc.Chat.Select().WithProvider("Ollama").WithModel("llava")
//	resp, err := svc.Chat.Complete(ctx, sel, "Hello")
//
// Errors wrap the sentinels in errors.go and can be matched with [errors.Is].
package bridge

import (
	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// EmbeddingOptions configures the embedding facade.
type EmbeddingOptions struct {
	// DefaultDimensions is the vector length used when creating collections
	// without an explicit dimension.
	DefaultDimensions int `yaml:"default_dimensions"`

	// BatchSize is the preferred number of texts per backend call. It is
	// exposed for callers; the facade forwards whole batches unchanged.
	BatchSize int `yaml:"batch_size"`
}

// DefaultEmbeddingOptions returns the built-in embedding defaults.
func DefaultEmbeddingOptions() EmbeddingOptions {
	return EmbeddingOptions{DefaultDimensions: 384, BatchSize: 100}
}

// config is the shared construction state of all facades.
type config struct {
	defaultProvider string
	chat            ChatOptions
	embeddings      EmbeddingOptions
	vision          VisionOptions
	metrics         *observe.Metrics
}

func newConfig(opts []Option) config {
	cfg := config{
		chat:       DefaultChatOptions(),
		embeddings: DefaultEmbeddingOptions(),
		vision:     DefaultVisionOptions(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	return cfg
}

// Option configures the facades.
type Option func(*config)

// WithDefaultProvider sets the provider used by selections that name none.
func WithDefaultProvider(name string) Option {
	return func(c *config) { c.defaultProvider = name }
}

// WithChatOptions overrides the default chat options.
func WithChatOptions(o ChatOptions) Option {
	return func(c *config) { c.chat = o }
}

// WithEmbeddingOptions overrides the default embedding options.
func WithEmbeddingOptions(o EmbeddingOptions) Option {
	return func(c *config) { c.embeddings = o }
}

// WithVisionOptions overrides the default vision options.
func WithVisionOptions(o VisionOptions) Option {
	return func(c *config) { c.vision = o }
}

// WithMetrics records facade metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// Service bundles the four facades over one registry and one store.
type Service struct {
	Chat        *Chat
	Embeddings  *Embeddings
	Vision      *Vision
	VectorStore *VectorStore

	registry *provider.Registry
}

// NewService builds every facade from reg and store with the same options.
// store may be nil, in which case the vector store facade reports every
// operation as unsupported.
func NewService(reg *provider.Registry, store vectorstore.Store, opts ...Option) *Service {
	cfg := newConfig(opts)
	emb := newEmbeddings(reg, cfg)
	return &Service{
		Chat:        newChat(reg, cfg),
		Embeddings:  emb,
		Vision:      newVision(reg, cfg),
		VectorStore: newVectorStore(store, emb, cfg),
		registry:    reg,
	}
}

// Registry returns the provider registry the service was built with.
func (s *Service) Registry() *provider.Registry { return s.registry }

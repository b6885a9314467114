// Package ollama provides the provider.Adapter for a local Ollama server.
//
// Chat goes through the any-llm-go Ollama backend and embeddings through the
// official api client. Ollama reports no reliable function-calling support
// for arbitrary models, so the adapter advertises vision and streaming only.
package ollama

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
	embollama "github.com/MrWong99/aibridge/pkg/provider/embeddings/ollama"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	"github.com/MrWong99/aibridge/pkg/provider/llm/anyllm"
)

const (
	// Name is the default registry name of the adapter.
	Name = "Ollama"

	// DefaultEndpoint is the address of a default local Ollama install.
	DefaultEndpoint = embollama.DefaultBaseURL

	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "llama3.2"

	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "all-minilm"
)

// Config configures an [Adapter].
type Config struct {
	// Name overrides the registry name. Default: [Name].
	Name string

	// Endpoint is the Ollama base URL. Default: [DefaultEndpoint].
	Endpoint string

	// Timeout bounds embedding requests. Zero means no timeout.
	Timeout time.Duration

	// Models holds the configured default models.
	Models provider.Models

	// KeepAlive controls how long Ollama keeps the embedding model loaded
	// (e.g. "5m"). Empty leaves the server default.
	KeepAlive string

	// HTTPClient replaces the embedding HTTP client. Mostly useful in tests.
	HTTPClient *http.Client
}

// Adapter implements provider.Adapter for Ollama.
type Adapter struct {
	cfg        Config
	backend    anyllmlib.Provider
	httpClient *http.Client
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

// New returns an Adapter for the Ollama server at cfg.Endpoint. The chat
// backend is created eagerly so configuration errors surface here.
func New(cfg Config) (*Adapter, error) {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := embollama.New(cfg.Endpoint, DefaultEmbeddingModel, embollama.WithKeepAlive(cfg.KeepAlive)); err != nil {
		return nil, fmt.Errorf("ollama: provider %q: %w", cfg.Name, err)
	}
	backend, err := anyllm.NewBackend("ollama", anyllmlib.WithBaseURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("ollama: provider %q: %w", cfg.Name, err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Adapter{cfg: cfg, backend: backend, httpClient: hc}, nil
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return a.cfg.Name }

// Capabilities implements provider.Adapter.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsFunctions: false,
		SupportsVision:    true,
		SupportsStreaming: true,
	}
}

// Models implements provider.Adapter.
func (a *Adapter) Models() provider.Models {
	return provider.Models{
		Chat:       provider.ResolveModel("", a.cfg.Models.Chat, DefaultChatModel),
		Embeddings: provider.ResolveModel("", a.cfg.Models.Embeddings, DefaultEmbeddingModel),
		Vision:     a.cfg.Models.Vision,
	}
}

// Endpoint returns the configured Ollama base URL.
func (a *Adapter) Endpoint() string { return a.cfg.Endpoint }

// ChatClient implements provider.Adapter.
func (a *Adapter) ChatClient(model string) llm.ChatClient {
	model = provider.ResolveModel(model, a.cfg.Models.Chat, DefaultChatModel)
	return anyllm.NewWithBackend(a.backend, model)
}

// EmbeddingGenerator implements provider.Adapter.
func (a *Adapter) EmbeddingGenerator(model string) embeddings.Generator {
	model = provider.ResolveModel(model, a.cfg.Models.Embeddings, DefaultEmbeddingModel)
	opts := []embollama.Option{embollama.WithHTTPClient(a.httpClient)}
	if a.cfg.KeepAlive != "" {
		opts = append(opts, embollama.WithKeepAlive(a.cfg.KeepAlive))
	}
	g, err := embollama.New(a.cfg.Endpoint, model, opts...)
	if err != nil {
		slog.Warn("ollama: embedding generator unavailable", "provider", a.cfg.Name, "model", model, "err", err)
		return nil
	}
	return g
}

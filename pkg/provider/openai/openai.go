// Package openai provides the provider.Adapter for the OpenAI API.
//
// The adapter supports function calling, vision and streaming. It requires an
// API key at construction time and shares one SDK client across every
// model-bound chat client and embedding generator it hands out.
package openai

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
	embopenai "github.com/MrWong99/aibridge/pkg/provider/embeddings/openai"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	llmopenai "github.com/MrWong99/aibridge/pkg/provider/llm/openai"
)

const (
	// Name is the default registry name of the adapter.
	Name = "OpenAI"

	// DefaultChatModel is used when neither the caller nor the configuration
	// names a chat model.
	DefaultChatModel = "gpt-4"

	// DefaultEmbeddingModel is used when neither the caller nor the
	// configuration names an embedding model.
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Config configures an [Adapter].
type Config struct {
	// Name overrides the registry name. Default: [Name].
	Name string

	// APIKey authenticates every request. Required.
	APIKey string

	// Endpoint overrides the API base URL, e.g. for Azure or a compatible
	// gateway.
	Endpoint string

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string

	// Timeout bounds every HTTP request. Zero means no timeout.
	Timeout time.Duration

	// Models holds the configured default models.
	Models provider.Models

	// EmbeddingDimensions shortens text-embedding-3 vectors when positive.
	EmbeddingDimensions int

	// MaxRetries is how often the SDK retries a failed request. The gateway
	// leaves retry policy to its callers, so the default is zero.
	MaxRetries int

	// HTTPClient replaces the shared HTTP client. Mostly useful in tests.
	HTTPClient *http.Client
}

// Adapter implements provider.Adapter for OpenAI.
type Adapter struct {
	cfg    Config
	client oai.Client
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

// New validates cfg and returns an Adapter. A missing API key is an error.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: provider %q: api key is required", nameOr(cfg.Name))
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("openai: provider %q: max retries must not be negative", nameOr(cfg.Name))
	}
	cfg.Name = nameOr(cfg.Name)
	return &Adapter{cfg: cfg, client: oai.NewClient(requestOptions(cfg)...)}, nil
}

// requestOptions translates cfg into SDK options shared by every request.
func requestOptions(cfg Config) []option.RequestOption {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	return opts
}

func nameOr(name string) string {
	if name == "" {
		return Name
	}
	return name
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return a.cfg.Name }

// Capabilities implements provider.Adapter.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsFunctions: true,
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

// ChatClient implements provider.Adapter.
func (a *Adapter) ChatClient(model string) llm.ChatClient {
	model = provider.ResolveModel(model, a.cfg.Models.Chat, DefaultChatModel)
	c, err := llmopenai.New(a.client, model)
	if err != nil {
		slog.Warn("openai: chat client unavailable", "provider", a.cfg.Name, "model", model, "err", err)
		return nil
	}
	return c
}

// EmbeddingGenerator implements provider.Adapter.
func (a *Adapter) EmbeddingGenerator(model string) embeddings.Generator {
	model = provider.ResolveModel(model, a.cfg.Models.Embeddings, DefaultEmbeddingModel)
	return embopenai.New(a.client, model, a.cfg.EmbeddingDimensions)
}

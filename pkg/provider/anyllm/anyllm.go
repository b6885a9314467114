// Package anyllm provides a provider.Adapter for the hosted and local
// backends reachable through github.com/mozilla-ai/any-llm-go.
//
// One adapter wraps one backend kind. The backend is constructed once in
// [New] and shared by every model-bound chat client. None of these backends
// expose an embedding API through any-llm-go, so EmbeddingGenerator always
// returns nil.
package anyllm

import (
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	"github.com/MrWong99/aibridge/pkg/provider/llm/anyllm"
)

// backendInfo describes one supported backend kind.
type backendInfo struct {
	displayName  string
	defaultModel string
	caps         provider.Capabilities
	needsKey     bool
}

var backends = map[string]backendInfo{
	"anthropic": {"Anthropic", "claude-3-5-sonnet-latest", provider.Capabilities{SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true}, true},
	"gemini":    {"Gemini", "gemini-2.0-flash", provider.Capabilities{SupportsFunctions: true, SupportsVision: true, SupportsStreaming: true}, true},
	"mistral":   {"Mistral", "mistral-large-latest", provider.Capabilities{SupportsFunctions: true, SupportsVision: false, SupportsStreaming: true}, true},
	"groq":      {"Groq", "llama-3.3-70b-versatile", provider.Capabilities{SupportsFunctions: true, SupportsVision: false, SupportsStreaming: true}, true},
	"deepseek":  {"DeepSeek", "deepseek-chat", provider.Capabilities{SupportsFunctions: true, SupportsVision: false, SupportsStreaming: true}, true},
	"llamacpp":  {"LlamaCpp", "default", provider.Capabilities{SupportsFunctions: false, SupportsVision: false, SupportsStreaming: true}, false},
	"llamafile": {"Llamafile", "default", provider.Capabilities{SupportsFunctions: false, SupportsVision: false, SupportsStreaming: true}, false},
}

// Kinds returns the backend kinds accepted by [New] in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(backends))
	for k := range backends {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Config configures an [Adapter].
type Config struct {
	// Kind selects the backend, one of [Kinds]. Required.
	Kind string

	// Name overrides the registry name. Default: the backend's display name
	// (e.g. "Anthropic").
	Name string

	// APIKey authenticates requests. Required for hosted backends.
	APIKey string

	// Endpoint overrides the backend base URL.
	Endpoint string

	// Models holds the configured default models. Models.Embeddings is
	// ignored.
	Models provider.Models

	// Capabilities overrides the built-in capability table when non-nil.
	Capabilities *provider.Capabilities
}

// Adapter implements provider.Adapter for one any-llm-go backend.
type Adapter struct {
	cfg     Config
	info    backendInfo
	backend anyllmlib.Provider
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

// New constructs the backend for cfg.Kind. Hosted backends without an API
// key fail here rather than on the first request.
func New(cfg Config) (*Adapter, error) {
	kind := strings.ToLower(cfg.Kind)
	info, ok := backends[kind]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend kind %q; supported: %s", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	if cfg.Name == "" {
		cfg.Name = info.displayName
	}
	if info.needsKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("anyllm: provider %q: api key is required for %s", cfg.Name, kind)
	}
	if cfg.Capabilities != nil {
		info.caps = *cfg.Capabilities
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.Endpoint))
	}
	backend, err := anyllm.NewBackend(kind, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: provider %q: %w", cfg.Name, err)
	}
	cfg.Kind = kind
	return &Adapter{cfg: cfg, info: info, backend: backend}, nil
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return a.cfg.Name }

// Kind returns the backend kind, e.g. "anthropic".
func (a *Adapter) Kind() string { return a.cfg.Kind }

// Capabilities implements provider.Adapter.
func (a *Adapter) Capabilities() provider.Capabilities { return a.info.caps }

// Models implements provider.Adapter.
func (a *Adapter) Models() provider.Models {
	return provider.Models{
		Chat:   provider.ResolveModel("", a.cfg.Models.Chat, a.info.defaultModel),
		Vision: a.cfg.Models.Vision,
	}
}

// ChatClient implements provider.Adapter.
func (a *Adapter) ChatClient(model string) llm.ChatClient {
	model = provider.ResolveModel(model, a.cfg.Models.Chat, a.info.defaultModel)
	return anyllm.NewWithBackend(a.backend, model)
}

// EmbeddingGenerator implements provider.Adapter. It always returns nil.
func (a *Adapter) EmbeddingGenerator(string) embeddings.Generator { return nil }

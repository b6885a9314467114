package bridge

import (
	"fmt"

	"github.com/MrWong99/aibridge/pkg/provider"
)

// ChatOptions are the per-request generation settings.
type ChatOptions struct {
	// MaxTokens caps the completion length. Default: 4000.
	MaxTokens int `json:"max_tokens" yaml:"default_max_tokens"`

	// Temperature controls sampling randomness. Default: 0.7.
	Temperature float64 `json:"temperature" yaml:"default_temperature"`

	// EnableStreaming permits CompleteStreaming. Default: true.
	EnableStreaming bool `json:"enable_streaming" yaml:"enable_streaming"`
}

// DefaultChatOptions returns the built-in chat defaults.
func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		MaxTokens:       4000,
		Temperature:     0.7,
		EnableStreaming: true,
	}
}

// Selection names the provider, model and options one request should use.
// It is an immutable value: the With methods return modified copies, so a
// Selection can be shared freely between goroutines.
//
// The zero Selection uses the facade's default provider, the provider's
// default model and the facade's default options.
type Selection struct {
	provider   string
	model      string
	options    ChatOptions
	hasOptions bool
}

// Select returns a Selection for the named provider.
func Select(providerName string) Selection {
	return Selection{provider: providerName}
}

// WithProvider returns a copy of s targeting providerName. An empty name
// means the facade default.
func (s Selection) WithProvider(providerName string) Selection {
	s.provider = providerName
	return s
}

// WithModel returns a copy of s targeting model. An empty model means the
// provider default.
func (s Selection) WithModel(model string) Selection {
	s.model = model
	return s
}

// WithOptions returns a copy of s carrying opts.
func (s Selection) WithOptions(opts ChatOptions) Selection {
	s.options = opts
	s.hasOptions = true
	return s
}

// Provider returns the selected provider name, possibly empty.
func (s Selection) Provider() string { return s.provider }

// Model returns the selected model name, possibly empty.
func (s Selection) Model() string { return s.model }

// Options returns the selected options and whether any were set.
func (s Selection) Options() (ChatOptions, bool) { return s.options, s.hasOptions }

// String implements fmt.Stringer for logging.
func (s Selection) String() string {
	if s.model == "" {
		return s.provider
	}
	return s.provider + "/" + s.model
}

// resolver maps a Selection to an adapter. It is embedded by every facade.
type resolver struct {
	reg             *provider.Registry
	defaultProvider string
}

// resolve fills in the default provider and looks it up.
func (r resolver) resolve(sel Selection) (Selection, provider.Adapter, error) {
	if sel.provider == "" {
		sel.provider = r.defaultProvider
	}
	a, ok := r.reg.Lookup(sel.provider)
	if !ok {
		return sel, nil, fmt.Errorf("%w: %q", ErrProviderNotFound, sel.provider)
	}
	return sel, a, nil
}

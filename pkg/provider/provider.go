// Package provider defines the Adapter contract that binds aibridge to one
// external AI backend, and the immutable Registry that holds every adapter
// configured at startup.
//
// An adapter owns the backend's native client handle and hands out model-bound
// capability objects: an [llm.ChatClient] for chat and vision, and an
// [embeddings.Generator] for embeddings. Adapters are constructed once from
// static configuration and never change afterwards, so they are safe to share
// across goroutines.
package provider

import (
	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
)

// Capabilities advertises the optional features of a backend. Callers check
// the relevant flag before issuing function-calling, vision or streaming
// requests.
type Capabilities struct {
	SupportsFunctions bool `json:"supports_functions"`
	SupportsVision    bool `json:"supports_vision"`
	SupportsStreaming bool `json:"supports_streaming"`
}

// Models names the configured default model per capability. Empty fields fall
// back to the adapter's hard-coded defaults.
type Models struct {
	Chat       string `json:"chat,omitempty"`
	Embeddings string `json:"embeddings,omitempty"`
	Vision     string `json:"vision,omitempty"`
}

// Adapter is the in-process binding to one provider's native client.
type Adapter interface {
	// Name is the stable identity used as the registry key.
	Name() string

	// Capabilities returns the adapter's static capability flags.
	Capabilities() Capabilities

	// ChatClient returns a chat client bound to model. An empty model falls
	// back to the configured default, then to the hard-coded default.
	// Returns nil when the backend cannot produce a chat client.
	ChatClient(model string) llm.ChatClient

	// EmbeddingGenerator returns a generator bound to model with the same
	// fallback policy as ChatClient. Returns nil when the backend has no
	// embeddings support.
	EmbeddingGenerator(model string) embeddings.Generator

	// Models returns the effective default model names.
	Models() Models
}

// ResolveModel picks the first non-empty name from the explicit argument, the
// configured default and the hard-coded default.
func ResolveModel(explicit, configured, fallback string) string {
	switch {
	case explicit != "":
		return explicit
	case configured != "":
		return configured
	default:
		return fallback
	}
}

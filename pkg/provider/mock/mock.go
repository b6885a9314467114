// Package mock provides a configurable provider.Adapter for facade tests.
//
// Example:
//
//	a := &mock.Adapter{
//	    NameValue: "Test",
//	    Caps:      provider.Capabilities{SupportsStreaming: true},
//	    Chat:      &llmmock.Client{CompleteResponse: &llm.CompletionResponse{Content: "hi"}},
//	}
package mock

import (
	"sync"

	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
)

// Adapter is a mock implementation of provider.Adapter. A nil Chat or
// Embedder makes the corresponding factory return nil, which lets tests
// exercise the unavailable-client paths.
type Adapter struct {
	mu sync.Mutex

	// NameValue is returned by Name.
	NameValue string

	// Caps is returned by Capabilities.
	Caps provider.Capabilities

	// DefaultModels is returned by Models.
	DefaultModels provider.Models

	// Chat is returned by ChatClient.
	Chat llm.ChatClient

	// Embedder is returned by EmbeddingGenerator.
	Embedder embeddings.Generator

	// --- Call records ---

	// ChatClientCalls records the model argument of every ChatClient call.
	ChatClientCalls []string

	// EmbeddingGeneratorCalls records the model argument of every
	// EmbeddingGenerator call.
	EmbeddingGeneratorCalls []string
}

// Name returns NameValue.
func (a *Adapter) Name() string { return a.NameValue }

// Capabilities returns Caps.
func (a *Adapter) Capabilities() provider.Capabilities { return a.Caps }

// Models returns DefaultModels.
func (a *Adapter) Models() provider.Models { return a.DefaultModels }

// ChatClient records the call and returns Chat.
func (a *Adapter) ChatClient(model string) llm.ChatClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ChatClientCalls = append(a.ChatClientCalls, model)
	if a.Chat == nil {
		return nil
	}
	return a.Chat
}

// EmbeddingGenerator records the call and returns Embedder.
func (a *Adapter) EmbeddingGenerator(model string) embeddings.Generator {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.EmbeddingGeneratorCalls = append(a.EmbeddingGeneratorCalls, model)
	if a.Embedder == nil {
		return nil
	}
	return a.Embedder
}

// ClientRequests returns the number of ChatClient and EmbeddingGenerator calls.
func (a *Adapter) ClientRequests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ChatClientCalls) + len(a.EmbeddingGeneratorCalls)
}

// Ensure Adapter implements provider.Adapter at compile time.
var _ provider.Adapter = (*Adapter)(nil)

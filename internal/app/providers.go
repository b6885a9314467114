package app

import (
	"log/slog"

	"github.com/MrWong99/aibridge/internal/config"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/anyllm"
	"github.com/MrWong99/aibridge/pkg/provider/ollama"
	"github.com/MrWong99/aibridge/pkg/provider/openai"
)

// RegisterBuiltins wires every adapter that ships with aibridge into reg.
// Each factory receives the provider's name and config entry and constructs
// the matching adapter.
func RegisterBuiltins(reg *config.Registry) {
	reg.Register(config.TypeOpenAI, func(name string, entry config.ProviderEntry) (provider.Adapter, error) {
		timeout, err := entry.Duration("timeout")
		if err != nil {
			return nil, err
		}
		retries, err := entry.Int("max_retries")
		if err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			Name:                name,
			APIKey:              entry.APIKey,
			Endpoint:            entry.Endpoint,
			Organization:        entry.Setting("organization"),
			Timeout:             timeout,
			Models:              entry.Models.Provider(),
			EmbeddingDimensions: entry.Models.EmbeddingDimensions,
			MaxRetries:          retries,
		})
	})

	// ollama is a local server; it uses Endpoint for the address, not an API key.
	reg.Register(config.TypeOllama, func(name string, entry config.ProviderEntry) (provider.Adapter, error) {
		timeout, err := entry.Duration("timeout")
		if err != nil {
			return nil, err
		}
		return ollama.New(ollama.Config{
			Name:      name,
			Endpoint:  entry.Endpoint,
			Timeout:   timeout,
			Models:    entry.Models.Provider(),
			KeepAlive: entry.Setting("keep_alive"),
		})
	})

	// The remaining chat-only backends share the any-llm-go pattern: optional
	// APIKey plus optional Endpoint.
	for _, t := range []config.ProviderType{
		config.TypeAnthropic, config.TypeGemini, config.TypeMistral,
		config.TypeGroq, config.TypeDeepSeek, config.TypeLlamaCpp, config.TypeLlamafile,
	} {
		reg.Register(t, func(name string, entry config.ProviderEntry) (provider.Adapter, error) {
			var caps *provider.Capabilities
			if entry.Capabilities != nil {
				c := entry.Capabilities.Provider()
				caps = &c
			}
			return anyllm.New(anyllm.Config{
				Kind:         string(t),
				Name:         name,
				APIKey:       entry.APIKey,
				Endpoint:     entry.Endpoint,
				Models:       entry.Models.Provider(),
				Capabilities: caps,
			})
		})
	}

	for _, t := range reg.Types() {
		slog.Debug("registered provider type", "type", t)
	}
}

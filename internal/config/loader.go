package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. ${VAR} and $VAR references are expanded from the
// process environment before decoding. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if r := cfg.Server.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("server.trace_sample_ratio %v must be within [0, 1]", r))
	}

	// Providers
	if len(cfg.Providers) == 0 {
		errs = append(errs, errors.New("providers: at least one provider must be configured"))
	}
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		entry := cfg.Providers[name]
		prefix := fmt.Sprintf("providers.%s", name)
		if name == "" {
			errs = append(errs, errors.New("providers: provider name must not be empty"))
		}
		if !entry.Type.IsValid() {
			errs = append(errs, fmt.Errorf("%s.type %q is invalid; valid values: %v", prefix, entry.Type, ProviderTypes))
		}
		if _, err := entry.Duration("timeout"); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if _, err := entry.Int("max_retries"); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if entry.Models.EmbeddingDimensions < 0 {
			errs = append(errs, fmt.Errorf("%s.models.embedding_dimensions must not be negative", prefix))
		}
		if entry.Type == TypeOpenAI && entry.APIKey == "" {
			slog.Warn("provider has no api_key; adapter construction will fail", "provider", name, "type", entry.Type)
		}
	}

	// Default provider
	switch {
	case cfg.DefaultProvider == "":
		errs = append(errs, errors.New("default_provider is required"))
	case len(cfg.Providers) > 0:
		if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
			errs = append(errs, fmt.Errorf("default_provider %q is not configured under providers (names are case-sensitive)", cfg.DefaultProvider))
		}
	}

	// Services
	chat := cfg.Services.Chat
	if chat.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("services.chat.default_max_tokens %d must not be negative", chat.MaxTokens))
	}
	if chat.Temperature < 0 || chat.Temperature > 2 {
		errs = append(errs, fmt.Errorf("services.chat.default_temperature %.2f is out of range [0, 2]", chat.Temperature))
	}
	if cfg.Services.Embeddings.DefaultDimensions < 0 {
		errs = append(errs, errors.New("services.embeddings.default_dimensions must not be negative"))
	}
	if cfg.Services.Embeddings.BatchSize < 0 {
		errs = append(errs, errors.New("services.embeddings.batch_size must not be negative"))
	}
	if _, err := cfg.Services.Vision.MaxImageBytes(); err != nil {
		errs = append(errs, fmt.Errorf("services.vision.max_image_size: %w", err))
	}

	// Vector store
	vs := cfg.VectorStore
	if vs.Backend != "" && !vs.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("vector_store.backend %q is invalid; valid values: memory, postgres", vs.Backend))
	}
	if vs.Backend == BackendPostgres && vs.PostgresDSN == "" {
		errs = append(errs, errors.New("vector_store.postgres_dsn is required when backend is postgres"))
	}
	if vs.Dimensions < 0 {
		errs = append(errs, errors.New("vector_store.dimensions must not be negative"))
	}

	return errors.Join(errs...)
}

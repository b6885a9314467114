// Package ollama generates embeddings through the /api/embed endpoint of an
// Ollama server, using the official api client.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/MrWong99/aibridge/pkg/provider/embeddings"
)

// DefaultBaseURL is where a stock local install listens.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Generator = (*Generator)(nil)

// Generator implements embeddings.Generator. It is safe for concurrent use.
type Generator struct {
	client     *api.Client
	model      string
	dimensions int
	keepAlive  *api.Duration
	truncate   *bool
}

type settings struct {
	httpClient *http.Client
	timeout    time.Duration
	dimensions int
	keepAlive  string
	truncate   *bool
}

// Option customises a Generator.
type Option func(*settings)

// WithHTTPClient sets the transport. It wins over WithTimeout.
func WithHTTPClient(hc *http.Client) Option { return func(s *settings) { s.httpClient = hc } }

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithDimensions overrides the dimension reported for models missing from
// the built-in table.
func WithDimensions(n int) Option { return func(s *settings) { s.dimensions = n } }

// WithKeepAlive sets how long the server keeps the model resident. It takes a
// Go duration ("5m") or whole seconds ("300"); any negative value pins the
// model indefinitely.
func WithKeepAlive(v string) Option { return func(s *settings) { s.keepAlive = v } }

// WithTruncate decides whether over-long inputs are cut (true) or rejected.
func WithTruncate(v bool) Option { return func(s *settings) { s.truncate = &v } }

// New returns a Generator for model at baseURL (DefaultBaseURL when empty).
func New(baseURL, model string, opts ...Option) (*Generator, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama embeddings: invalid base URL %q", baseURL)
	}

	keepAlive, err := parseKeepAlive(s.keepAlive)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}

	hc := s.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: max(s.timeout, 0)}
	}

	dims := s.dimensions
	if dims == 0 {
		dims = knownDimensions(model)
	}
	return &Generator{
		client:     api.NewClient(base, hc),
		model:      model,
		dimensions: dims,
		keepAlive:  keepAlive,
		truncate:   s.truncate,
	}, nil
}

func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request. Non-2xx answers surface as
// api.StatusError.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := g.client.Embed(ctx, &api.EmbedRequest{
		Model:     g.model,
		Input:     texts,
		KeepAlive: g.keepAlive,
		Truncate:  g.truncate,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %s: %w", g.model, err)
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: %s: %d inputs, %d vectors", g.model, len(texts), got)
	}
	return resp.Embeddings, nil
}

func (g *Generator) Dimensions() int { return g.dimensions }

func (g *Generator) ModelID() string { return g.model }

func parseKeepAlive(v string) (*api.Duration, error) {
	if v == "" {
		return nil, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return &api.Duration{Duration: time.Duration(secs) * time.Second}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("keep_alive %q: %w", v, err)
	}
	return &api.Duration{Duration: d}, nil
}

// knownDimensions covers the embedding models people commonly pull; 0 means
// the caller must supply the size.
func knownDimensions(model string) int {
	name, _, _ := strings.Cut(strings.ToLower(model), ":")
	name = name[strings.LastIndex(name, "/")+1:]
	switch name {
	case "nomic-embed-text", "embeddinggemma":
		return 768
	case "mxbai-embed-large", "bge-large", "bge-m3", "snowflake-arctic-embed":
		return 1024
	case "all-minilm":
		return 384
	}
	return 0
}

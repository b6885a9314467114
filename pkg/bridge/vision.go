package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	"github.com/MrWong99/aibridge/pkg/types"
)

// VisionOptions configures the vision facade.
type VisionOptions struct {
	// MaxImageSize is the largest accepted image, as a human-readable size
	// such as "5MB" or "8MiB". Empty disables the limit.
	MaxImageSize string `yaml:"max_image_size"`

	// SupportedFormats lists accepted short format names ("jpg", "png", ...).
	SupportedFormats []string `yaml:"supported_formats"`

	// EnforceFormats rejects images whose format is not in
	// SupportedFormats. When false the list is informational.
	EnforceFormats bool `yaml:"enforce_formats"`
}

// DefaultVisionOptions returns the built-in vision defaults.
func DefaultVisionOptions() VisionOptions {
	return VisionOptions{
		MaxImageSize:     "5MB",
		SupportedFormats: []string{"jpg", "png", "webp"},
	}
}

// MaxImageBytes parses MaxImageSize. Zero means no limit.
func (o VisionOptions) MaxImageBytes() (uint64, error) {
	if strings.TrimSpace(o.MaxImageSize) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(o.MaxImageSize)
	if err != nil {
		return 0, fmt.Errorf("bridge: invalid max image size %q: %w", o.MaxImageSize, err)
	}
	return n, nil
}

// Vision is the image analysis facade. It is safe for concurrent use.
type Vision struct {
	resolver
	options  VisionOptions
	chat     ChatOptions
	maxBytes uint64
	metrics  *observe.Metrics
}

// NewVision returns a vision facade over reg.
func NewVision(reg *provider.Registry, opts ...Option) *Vision {
	return newVision(reg, newConfig(opts))
}

func newVision(reg *provider.Registry, cfg config) *Vision {
	maxBytes, err := cfg.vision.MaxImageBytes()
	if err != nil {
		slog.Warn("vision: falling back to default image size limit", "err", err)
		maxBytes, _ = DefaultVisionOptions().MaxImageBytes()
	}
	return &Vision{
		resolver: resolver{reg: reg, defaultProvider: cfg.defaultProvider},
		options:  cfg.vision,
		chat:     cfg.chat,
		maxBytes: maxBytes,
		metrics:  cfg.metrics,
	}
}

// Select returns a selection for the default provider and model.
func (v *Vision) Select() Selection { return Select(v.defaultProvider) }

// Options returns the facade's vision options.
func (v *Vision) Options() VisionOptions { return v.options }

// AnalyzeImageFile reads the image at path, infers its MIME type from the
// extension and analyzes it.
func (v *Vision) AnalyzeImageFile(ctx context.Context, sel Selection, path, prompt string) (*types.VisionResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bridge: vision: read image: %w", err)
	}
	return v.AnalyzeImage(ctx, sel, data, prompt, MimeTypeFromPath(path))
}

// AnalyzeImage asks the model about an image. The prompt and the image are
// sent as two consecutive user messages. Providers without vision support
// fail with [ErrUnsupportedCapability] before anything else is checked.
func (v *Vision) AnalyzeImage(ctx context.Context, sel Selection, data []byte, prompt, mimeType string) (*types.VisionResponse, error) {
	msgs := []types.ChatMessage{
		types.UserMessage(prompt),
		{Role: types.RoleUser, Contents: []types.Content{types.DataContent(data, mimeType)}},
	}
	sel, client, err := v.prepare(sel, data, mimeType)
	if err != nil {
		return nil, err
	}
	resp, err := v.complete(ctx, sel, client, msgs, nil)
	if err != nil {
		return nil, err
	}
	return &types.VisionResponse{
		Content: resp.Message().Text(),
		Metadata: map[string]any{
			"provider":          sel.provider,
			"model":             client.Model(),
			"mime_type":         mimeType,
			"image_bytes":       len(data),
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"finish_reason":     resp.FinishReason,
		},
	}, nil
}

// AnalyzeImageStructured asks the model about an image and decodes the reply
// into T. The prompt and image travel in one user message together with the
// JSON schema of T. Decoding failures wrap [ErrStructuredParse].
func AnalyzeImageStructured[T any](ctx context.Context, v *Vision, sel Selection, data []byte, prompt, mimeType string) (T, error) {
	return AnalyzeImageStructuredWithSchemaFlag[T](ctx, v, sel, data, prompt, mimeType, true)
}

// AnalyzeImageStructuredFile reads the image at path, infers its MIME type
// from the extension and decodes the reply into T. The schema is sent only
// when useSchema is true.
func AnalyzeImageStructuredFile[T any](ctx context.Context, v *Vision, sel Selection, path, prompt string, useSchema bool) (T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("bridge: vision: read image: %w", err)
	}
	return AnalyzeImageStructuredWithSchemaFlag[T](ctx, v, sel, data, prompt, MimeTypeFromPath(path), useSchema)
}

// AnalyzeImageStructuredWithSchemaFlag is [AnalyzeImageStructured] with the
// response format made optional. Without it the reply is only decoded, not
// validated.
func AnalyzeImageStructuredWithSchemaFlag[T any](ctx context.Context, v *Vision, sel Selection, data []byte, prompt, mimeType string, useSchema bool) (T, error) {
	var zero T
	sel, client, err := v.prepare(sel, data, mimeType)
	if err != nil {
		return zero, err
	}
	var schema *structuredSchema
	var format *llm.ResponseFormat
	if useSchema {
		if schema, err = schemaFor[T](); err != nil {
			return zero, err
		}
		format = schema.format
	}
	msgs := []types.ChatMessage{{
		Role:     types.RoleUser,
		Contents: []types.Content{types.TextContent(prompt), types.DataContent(data, mimeType)},
	}}
	resp, err := v.complete(ctx, sel, client, msgs, format)
	if err != nil {
		return zero, err
	}
	if schema == nil {
		return parseStructured[T](resp.Content, nil)
	}
	return parseStructured[T](resp.Content, schema.resolved)
}

// prepare resolves the provider, checks capability and the image, and
// obtains a client. The model falls back to the provider's vision model.
func (v *Vision) prepare(sel Selection, data []byte, mimeType string) (Selection, llm.ChatClient, error) {
	sel, a, err := v.resolve(sel)
	if err != nil {
		return sel, nil, err
	}
	if !a.Capabilities().SupportsVision {
		return sel, nil, fmt.Errorf("%w: provider %q does not support vision", ErrUnsupportedCapability, sel.provider)
	}
	if err := v.checkImage(data, mimeType); err != nil {
		return sel, nil, err
	}
	if sel.model == "" {
		sel.model = a.Models().Vision
	}
	client := a.ChatClient(sel.model)
	if client == nil {
		return sel, nil, fmt.Errorf("%w: provider %q, model %q", ErrClientUnavailable, sel.provider, sel.model)
	}
	return sel, client, nil
}

func (v *Vision) checkImage(data []byte, mimeType string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidMessage)
	}
	if v.maxBytes > 0 && uint64(len(data)) > v.maxBytes {
		return fmt.Errorf("%w: %s exceeds limit of %s", ErrImageTooLarge,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(v.maxBytes))
	}
	if v.options.EnforceFormats && !slices.Contains(v.options.SupportedFormats, formatOf(mimeType)) {
		return fmt.Errorf("%w: image format %q not in %v", ErrInvalidMessage, formatOf(mimeType), v.options.SupportedFormats)
	}
	return nil
}

func (v *Vision) complete(ctx context.Context, sel Selection, client llm.ChatClient, msgs []types.ChatMessage, format *llm.ResponseFormat) (*llm.CompletionResponse, error) {
	ctx, span := observe.StartProviderSpan(ctx, observe.KindVision, sel.provider, client.Model())
	start := time.Now()

	opts := v.chat
	if o, ok := sel.Options(); ok {
		opts = o
	}
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Messages:       msgs,
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: format,
	})
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		err = fmt.Errorf("bridge: vision: provider %q: %w", sel.provider, err)
		observe.ProviderLogger(ctx, sel.provider, client.Model()).Warn("image analysis failed", "err", err)
	}
	v.metrics.RecordCall(ctx, sel.provider, observe.KindVision, start, err)
	if err == nil {
		v.metrics.RecordTokens(ctx, sel.provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	observe.EndSpan(span, err)
	return resp, err
}

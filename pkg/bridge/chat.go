package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/aibridge/pkg/observe"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	"github.com/MrWong99/aibridge/pkg/types"
)

// Chat is the chat completion facade. It is safe for concurrent use.
type Chat struct {
	resolver
	options ChatOptions
	metrics *observe.Metrics
}

// NewChat returns a chat facade over reg.
func NewChat(reg *provider.Registry, opts ...Option) *Chat {
	return newChat(reg, newConfig(opts))
}

func newChat(reg *provider.Registry, cfg config) *Chat {
	return &Chat{
		resolver: resolver{reg: reg, defaultProvider: cfg.defaultProvider},
		options:  cfg.chat,
		metrics:  cfg.metrics,
	}
}

// Select returns the default selection: default provider, provider default
// model and the facade's default options.
func (c *Chat) Select() Selection {
	return Select(c.defaultProvider).WithOptions(c.options)
}

// DefaultOptions returns the facade's default chat options.
func (c *Chat) DefaultOptions() ChatOptions { return c.options }

// Complete sends prompt as a single user message.
func (c *Chat) Complete(ctx context.Context, sel Selection, prompt string) (*types.ChatResponse, error) {
	return c.CompleteMessages(ctx, sel, []types.ChatMessage{types.UserMessage(prompt)})
}

// CompleteMessages sends the conversation msgs and returns the reply.
func (c *Chat) CompleteMessages(ctx context.Context, sel Selection, msgs []types.ChatMessage) (*types.ChatResponse, error) {
	return c.complete(ctx, sel, msgs, nil, nil)
}

// CompleteWithFunctions offers tools to the model. Tool calls in the reply
// are returned to the caller and never executed. Providers without function
// support fail with [ErrUnsupportedCapability] before any client is created.
func (c *Chat) CompleteWithFunctions(ctx context.Context, sel Selection, msgs []types.ChatMessage, tools []types.ToolDefinition) (*types.ChatResponse, error) {
	sel, a, err := c.resolve(sel)
	if err != nil {
		return nil, err
	}
	if !a.Capabilities().SupportsFunctions {
		return nil, fmt.Errorf("%w: provider %q does not support function calling", ErrUnsupportedCapability, sel.provider)
	}
	return c.complete(ctx, sel, msgs, tools, nil)
}

// CompleteStreaming streams the reply to prompt. Every element on the
// returned channel has IsComplete set. A failure after the stream opened is
// delivered as a final element carrying Err. The channel is closed when the
// backend finishes or ctx is cancelled.
//
// Streaming fails with [ErrUnsupportedCapability] when the provider lacks
// streaming support or the selected options disable it.
func (c *Chat) CompleteStreaming(ctx context.Context, sel Selection, prompt string) (<-chan types.StreamingChatResponse, error) {
	sel, a, err := c.resolve(sel)
	if err != nil {
		return nil, err
	}
	opts := c.optionsFor(sel)
	if !opts.EnableStreaming {
		return nil, fmt.Errorf("%w: streaming is disabled by the selected options", ErrUnsupportedCapability)
	}
	if !a.Capabilities().SupportsStreaming {
		return nil, fmt.Errorf("%w: provider %q does not support streaming", ErrUnsupportedCapability, sel.provider)
	}
	client, err := c.client(sel, a)
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartProviderSpan(ctx, observe.KindChat, sel.provider, client.Model(), attribute.Bool("aibridge.stream", true))
	start := time.Now()
	req := c.request([]types.ChatMessage{types.UserMessage(prompt)}, opts)
	chunks, err := client.StreamCompletion(ctx, req)
	if err != nil {
		err = fmt.Errorf("bridge: chat stream: provider %q: %w", sel.provider, err)
		c.metrics.RecordCall(ctx, sel.provider, observe.KindChat, start, err)
		observe.EndSpan(span, err)
		observe.ProviderLogger(ctx, sel.provider, client.Model()).Warn("chat stream failed to start", "err", err)
		return nil, err
	}

	out := make(chan types.StreamingChatResponse)
	streamDone := c.metrics.TrackStream(ctx)
	go func() {
		var streamErr error
		defer func() {
			streamDone()
			c.metrics.RecordCall(context.WithoutCancel(ctx), sel.provider, observe.KindChat, start, streamErr)
			observe.EndSpan(span, streamErr)
			close(out)
		}()
		for chunk := range chunks {
			var resp types.StreamingChatResponse
			switch {
			case chunk.FinishReason == llm.FinishReasonError:
				streamErr = fmt.Errorf("bridge: chat stream: provider %q: %s", sel.provider, chunk.Text)
				resp = types.StreamingChatResponse{IsComplete: true, Err: streamErr}
			default:
				resp = types.StreamingChatResponse{Content: chunk.Text, IsComplete: true}
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				streamErr = ctx.Err()
				return
			}
		}
		if streamErr == nil {
			streamErr = ctx.Err()
		}
	}()
	return out, nil
}

// complete is the shared non-streaming path. tools and format may be nil.
func (c *Chat) complete(ctx context.Context, sel Selection, msgs []types.ChatMessage, tools []types.ToolDefinition, format *llm.ResponseFormat) (*types.ChatResponse, error) {
	if err := validateMessages(msgs); err != nil {
		return nil, err
	}
	sel, a, err := c.resolve(sel)
	if err != nil {
		return nil, err
	}
	client, err := c.client(sel, a)
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartProviderSpan(ctx, observe.KindChat, sel.provider, client.Model())
	start := time.Now()

	req := c.request(msgs, c.optionsFor(sel))
	req.Tools = tools
	req.ResponseFormat = format

	observe.ProviderLogger(ctx, sel.provider, client.Model()).Debug("chat completion",
		"messages", len(msgs), "tools", len(tools), "structured", format != nil)

	resp, err := client.Complete(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		err = fmt.Errorf("bridge: chat: provider %q: %w", sel.provider, err)
		c.metrics.RecordCall(ctx, sel.provider, observe.KindChat, start, err)
		observe.EndSpan(span, err)
		observe.ProviderLogger(ctx, sel.provider, client.Model()).Warn("chat completion failed", "err", err)
		return nil, err
	}
	c.metrics.RecordCall(ctx, sel.provider, observe.KindChat, start, nil)
	c.metrics.RecordTokens(ctx, sel.provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	span.SetAttributes(
		attribute.Int("aibridge.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("aibridge.usage.completion_tokens", resp.Usage.CompletionTokens),
	)
	observe.EndSpan(span, nil)

	return &types.ChatResponse{
		Messages:     []types.ChatMessage{resp.Message()},
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

// client obtains the model-bound chat client for sel.
func (c *Chat) client(sel Selection, a provider.Adapter) (llm.ChatClient, error) {
	client := a.ChatClient(sel.model)
	if client == nil {
		return nil, fmt.Errorf("%w: provider %q, model %q", ErrClientUnavailable, sel.provider, sel.model)
	}
	return client, nil
}

// optionsFor returns the options carried by sel, or the facade defaults.
func (c *Chat) optionsFor(sel Selection) ChatOptions {
	if opts, ok := sel.Options(); ok {
		return opts
	}
	return c.options
}

func (c *Chat) request(msgs []types.ChatMessage, opts ChatOptions) llm.CompletionRequest {
	return llm.CompletionRequest{
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

// validateMessages rejects an empty conversation and malformed messages.
func validateMessages(msgs []types.ChatMessage) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidMessage)
	}
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: message %d: %w", ErrInvalidMessage, i, err)
		}
	}
	return nil
}

// CompleteStructured asks for a reply matching the JSON schema of T and
// decodes it. The schema is always sent to the backend.
func CompleteStructured[T any](ctx context.Context, c *Chat, sel Selection, prompt string) (T, error) {
	return CompleteStructuredWithSchemaFlag[T](ctx, c, sel, prompt, true)
}

// CompleteStructuredWithSchemaFlag decodes the reply to prompt into T. When
// useSchema is true the JSON schema of T is sent as the response format and
// the reply is validated against it; otherwise the request is a plain
// completion and only decoding applies. Decoding failures wrap
// [ErrStructuredParse].
func CompleteStructuredWithSchemaFlag[T any](ctx context.Context, c *Chat, sel Selection, prompt string, useSchema bool) (T, error) {
	var zero T
	var (
		format *llm.ResponseFormat
		schema *structuredSchema
	)
	if useSchema {
		s, err := schemaFor[T]()
		if err != nil {
			return zero, err
		}
		schema, format = s, s.format
	}

	resp, err := c.complete(ctx, sel, []types.ChatMessage{types.UserMessage(prompt)}, nil, format)
	if err != nil {
		return zero, err
	}
	if schema == nil {
		return parseStructured[T](resp.LastText(), nil)
	}
	return parseStructured[T](resp.LastText(), schema.resolved)
}

// Package anyllm provides a universal chat client backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	c, err := anyllm.New("ollama", "llama3.2", anyllmlib.WithBaseURL("http://localhost:11434"))
//	c, err := anyllm.New("anthropic", "claude-3-5-sonnet-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//
// Structured output is prompt-guided: a [llm.ResponseFormat] is rendered as a
// system instruction because not every backend exposes a schema parameter.
package anyllm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/aibridge/pkg/provider/llm"
	"github.com/MrWong99/aibridge/pkg/types"
)

// Compile-time assertion that Client satisfies llm.ChatClient.
var _ llm.ChatClient = (*Client)(nil)

// Backends lists the backend names accepted by [New].
var Backends = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Client implements llm.ChatClient by wrapping github.com/mozilla-ai/any-llm-go.
type Client struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a new Client backed by the named any-llm-go backend.
//
// backendName is one of [Backends]. model is the specific model to use.
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend falls
// back to its environment variable (e.g., ANTHROPIC_API_KEY).
func New(backendName string, model string, opts ...anyllmlib.Option) (*Client, error) {
	if backendName == "" {
		return nil, fmt.Errorf("anyllm: backendName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := NewBackend(backendName, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{backend: backend, model: model}, nil
}

// NewWithBackend binds an already constructed backend to model. Adapters use
// it to share one backend across several models.
func NewWithBackend(backend anyllmlib.Provider, model string) *Client {
	return &Client{backend: backend, model: model}
}

// NewBackend creates the underlying any-llm-go provider for backendName.
func NewBackend(backendName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	var (
		backend anyllmlib.Provider
		err     error
	)
	switch strings.ToLower(backendName) {
	case "openai":
		backend, err = anyllmoai.New(opts...)
	case "anthropic":
		backend, err = anthropic.New(opts...)
	case "gemini":
		backend, err = gemini.New(opts...)
	case "ollama":
		backend, err = ollama.New(opts...)
	case "deepseek":
		backend, err = deepseek.New(opts...)
	case "mistral":
		backend, err = mistral.New(opts...)
	case "groq":
		backend, err = groq.New(opts...)
	case "llamacpp":
		backend, err = llamacpp.New(opts...)
	case "llamafile":
		backend, err = llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("anyllm: unsupported backend %q; supported: %s", backendName, strings.Join(Backends, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backendName, err)
	}
	return backend, nil
}

// Model implements llm.ChatClient.
func (c *Client) Model() string { return c.model }

// StreamCompletion implements llm.ChatClient.
func (c *Client) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	backendChunks, backendErrs := c.backend.CompletionStream(ctx, params)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		// Accumulated tool calls keyed by index.
		toolCallAccum := map[int]*types.ToolCall{}

		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			delta := choice.Delta

			out := llm.Chunk{
				Text:         delta.Content,
				FinishReason: choice.FinishReason,
			}

			for i, tc := range delta.ToolCalls {
				existing, ok := toolCallAccum[i]
				if !ok {
					existing = &types.ToolCall{}
					toolCallAccum[i] = existing
				}
				if tc.ID != "" {
					existing.ID = tc.ID
				}
				if tc.Function.Name != "" {
					existing.Name = tc.Function.Name
				}
				existing.Arguments += tc.Function.Arguments
			}

			if choice.FinishReason == anyllmlib.FinishReasonToolCalls ||
				(choice.FinishReason != "" && len(toolCallAccum) > 0) {
				for i := 0; i < len(toolCallAccum); i++ {
					if tc, ok := toolCallAccum[i]; ok {
						out.ToolCalls = append(out.ToolCalls, *tc)
					}
				}
			}

			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}

		if err := <-backendErrs; err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: llm.FinishReasonError, Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Complete implements llm.ChatClient.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	choice := resp.Choices[0]
	result := &llm.CompletionResponse{
		Content:      choice.Message.ContentString(),
		FinishReason: choice.FinishReason,
	}
	if resp.Usage != nil {
		result.Usage = types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

// buildParams converts our CompletionRequest into anyllm CompletionParams.
func (c *Client) buildParams(req llm.CompletionRequest) (anyllmlib.CompletionParams, error) {
	var messages []anyllmlib.Message

	system := req.SystemPrompt
	if req.ResponseFormat != nil {
		instr, err := llm.SchemaInstruction(req.ResponseFormat)
		if err != nil {
			return anyllmlib.CompletionParams{}, fmt.Errorf("anyllm: %w", err)
		}
		if system != "" {
			system += "\n\n"
		}
		system += instr
	}
	if system != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: system,
		})
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return anyllmlib.CompletionParams{}, err
		}
		messages = append(messages, msg...)
	}

	params := anyllmlib.CompletionParams{
		Model:    c.model,
		Messages: messages,
	}

	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}

	return params, nil
}

// convertMessage converts a types.ChatMessage into anyllm messages. Messages
// carrying binary parts use the multimodal content-part form; tool messages
// expand to one message per tool result.
func convertMessage(m types.ChatMessage) ([]anyllmlib.Message, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("anyllm: %w", err)
	}

	if m.Role == types.RoleTool {
		var out []anyllmlib.Message
		for _, c := range m.Contents {
			if c.Kind != types.ContentToolResult {
				continue
			}
			out = append(out, anyllmlib.Message{
				Role:       string(types.RoleTool),
				Content:    c.Text,
				ToolCallID: c.ToolCallID,
			})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("anyllm: tool message carries no tool result")
		}
		return out, nil
	}

	msg := anyllmlib.Message{
		Role: string(m.Role),
		Name: m.Name,
	}

	if m.HasData() {
		parts := make([]anyllmlib.ContentPart, 0, len(m.Contents))
		for _, c := range m.Contents {
			switch c.Kind {
			case types.ContentText:
				parts = append(parts, anyllmlib.ContentPart{Type: "text", Text: c.Text})
			case types.ContentData:
				if !strings.HasPrefix(c.MediaType, "image/") {
					return nil, fmt.Errorf("anyllm: unsupported media type %q", c.MediaType)
				}
				parts = append(parts, anyllmlib.ContentPart{
					Type: "image_url",
					ImageURL: &anyllmlib.ImageURL{
						URL: "data:" + c.MediaType + ";base64," + base64.StdEncoding.EncodeToString(c.Data),
					},
				})
			}
		}
		msg.Content = parts
	} else {
		msg.Content = m.Text()
	}

	for _, tc := range m.ToolCalls() {
		msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: anyllmlib.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	return []anyllmlib.Message{msg}, nil
}

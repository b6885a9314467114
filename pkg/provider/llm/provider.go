// Package llm defines the ChatClient interface for chat-completion backends.
//
// A ChatClient wraps a remote or local model API (e.g., OpenAI GPT-4o or a local
// Ollama instance) bound to one model, and exposes a uniform interface for the
// facades in package bridge to perform completions without coupling to any
// specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/MrWong99/aibridge/pkg/types"
)

// FinishReasonError marks the terminal [Chunk] of a stream that failed after
// it was opened. The chunk's Text carries the error message.
const FinishReasonError = "error"

// ResponseFormat constrains a completion to JSON matching Schema.
type ResponseFormat struct {
	// Name identifies the schema to the backend. Must match ^[a-zA-Z0-9_-]+$.
	Name string

	// Description is an optional hint included with the schema.
	Description string

	// Schema is the JSON Schema document, already decoded into generic maps.
	Schema map[string]any

	// Strict asks the backend to enforce the schema exactly. Only set it for
	// schemas in which every property is required.
	Strict bool
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []types.ChatMessage

	// Tools is the set of function/tool definitions offered to the model.
	// Callers should check the adapter's SupportsFunctions flag first.
	Tools []types.ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means use the
	// provider default.
	MaxTokens int

	// SystemPrompt is an optional instruction injected before the
	// conversation history as a "system"-role message.
	SystemPrompt string

	// ResponseFormat, when non-nil, requests schema-guided JSON output.
	// Clients whose backend has no native support fall back to a system
	// instruction carrying the schema.
	ResponseFormat *ResponseFormat
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty if the
	// chunk carries only ToolCalls or a FinishReason.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped: "stop", "length", "tool_calls", [FinishReasonError], or "" for
	// non-final chunks.
	FinishReason string

	// ToolCalls contains accumulated tool invocations, emitted on the final
	// chunk.
	ToolCalls []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply. Empty when the model
	// responds exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model.
	ToolCalls []types.ToolCall

	FinishReason string

	Usage types.Usage
}

// Message converts the response into an assistant [types.ChatMessage]. The
// message always carries at least one content part.
func (r *CompletionResponse) Message() types.ChatMessage {
	msg := types.ChatMessage{Role: types.RoleAssistant}
	if r.Content != "" || len(r.ToolCalls) == 0 {
		msg.Contents = append(msg.Contents, types.TextContent(r.Content))
	}
	for _, tc := range r.ToolCalls {
		msg.Contents = append(msg.Contents, types.ToolCallContent(tc))
	}
	return msg
}

// ChatClient is a chat-completion backend bound to one model.
type ChatClient interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values in arrival order. The channel is closed when
	// generation finishes or ctx is cancelled.
	//
	// Errors that occur after the channel is opened are surfaced as a Chunk
	// with FinishReason [FinishReasonError]; the error return is non-nil only
	// for failures that prevent the stream from starting.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Model returns the model identifier the client is bound to.
	Model() string
}

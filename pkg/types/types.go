// Package types defines the shared records used across all aibridge packages.
//
// These types form the lingua franca between provider clients, facades, and
// the HTTP gateway. They are intentionally minimal: each package defines its
// own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a [ChatMessage].
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// IsValid reports whether r is one of the four known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ContentKind enumerates the kinds of [Content] parts.
type ContentKind int

const (
	// ContentText is a plain text fragment.
	ContentText ContentKind = iota

	// ContentData is a binary payload tagged with a MIME type (e.g. an image).
	ContentData

	// ContentToolCall is a tool invocation requested by the assistant.
	ContentToolCall

	// ContentToolResult is the caller-provided result of a tool invocation.
	ContentToolResult
)

// String returns the lower-case name of the content kind.
func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentData:
		return "data"
	case ContentToolCall:
		return "tool_call"
	case ContentToolResult:
		return "tool_result"
	default:
		return "unknown"
	}
}

// Content is a single part of a [ChatMessage]. Exactly the fields relevant to
// Kind are populated.
type Content struct {
	Kind ContentKind

	// Text is set for ContentText and ContentToolResult.
	Text string

	// Data and MediaType are set for ContentData.
	Data      []byte
	MediaType string

	// ToolCall is set for ContentToolCall.
	ToolCall *ToolCall

	// ToolCallID is set for ContentToolResult and names the call being answered.
	ToolCallID string
}

// TextContent returns a text part.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// DataContent returns a binary part tagged with mediaType.
func DataContent(data []byte, mediaType string) Content {
	return Content{Kind: ContentData, Data: data, MediaType: mediaType}
}

// ToolCallContent returns a part carrying an assistant tool invocation.
func ToolCallContent(tc ToolCall) Content {
	return Content{Kind: ContentToolCall, ToolCall: &tc}
}

// ToolResultContent returns a part carrying the result for callID.
func ToolResultContent(callID, result string) Content {
	return Content{Kind: ContentToolResult, ToolCallID: callID, Text: result}
}

// ErrEmptyMessage is returned by [ChatMessage.Validate] when a message carries
// no content parts.
var ErrEmptyMessage = errors.New("types: message has no content")

// ChatMessage is one turn of a conversation: a role plus an ordered, non-empty
// list of content parts.
type ChatMessage struct {
	Role     Role
	Contents []Content

	// Name is an optional participant name.
	Name string
}

// NewTextMessage returns a message with a single text part.
func NewTextMessage(role Role, text string) ChatMessage {
	return ChatMessage{Role: role, Contents: []Content{TextContent(text)}}
}

// UserMessage is shorthand for NewTextMessage(RoleUser, text).
func UserMessage(text string) ChatMessage {
	return NewTextMessage(RoleUser, text)
}

// Validate checks the role and that at least one content part is present.
func (m ChatMessage) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("types: invalid role %q", m.Role)
	}
	if len(m.Contents) == 0 {
		return ErrEmptyMessage
	}
	return nil
}

// Text concatenates all text parts of the message in order.
func (m ChatMessage) Text() string {
	var sb strings.Builder
	for _, c := range m.Contents {
		if c.Kind == ContentText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns every tool invocation carried by the message.
func (m ChatMessage) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, c := range m.Contents {
		if c.Kind == ContentToolCall && c.ToolCall != nil {
			calls = append(calls, *c.ToolCall)
		}
	}
	return calls
}

// HasData reports whether any part of the message is a binary payload.
func (m ChatMessage) HasData() bool {
	for _, c := range m.Contents {
		if c.Kind == ContentData {
			return true
		}
	}
	return false
}

// ToolCall represents a tool/function invocation requested by the model.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string `json:"id"`

	// Name is the tool/function name.
	Name string `json:"name"`

	// Arguments is the JSON-encoded arguments string.
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool that can be offered to a model.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string `json:"name"`

	// Description explains what the tool does (included in model prompts).
	Description string `json:"description,omitempty"`

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Usage holds token accounting information returned by a backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the normalised result of a chat completion. Messages holds
// every message the backend produced; the last one is the conventional answer.
type ChatResponse struct {
	Messages     []ChatMessage
	FinishReason string
	Usage        Usage
}

// LastMessage returns the final produced message and false when there is none.
func (r *ChatResponse) LastMessage() (ChatMessage, bool) {
	if r == nil || len(r.Messages) == 0 {
		return ChatMessage{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}

// LastText returns the text of the final message, or "" when absent.
func (r *ChatResponse) LastText() string {
	m, ok := r.LastMessage()
	if !ok {
		return ""
	}
	return m.Text()
}

// StreamingChatResponse is one incremental unit of a streamed completion.
type StreamingChatResponse struct {
	// Content is the text fragment carried by this unit.
	Content string `json:"content"`

	// IsComplete is the completion flag reported for this unit.
	IsComplete bool `json:"is_complete"`

	// Err is non-nil on the terminal unit of a stream that failed.
	Err error `json:"-"`
}

// VisionResponse is the result of an image analysis.
type VisionResponse struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

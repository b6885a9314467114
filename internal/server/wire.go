package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/types"
	"github.com/MrWong99/aibridge/pkg/vectorstore"
)

// selector is embedded by every request that talks to a provider.
type selector struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Options overrides individual chat options on top of the facade
	// defaults; absent fields keep their default values.
	Options json.RawMessage `json:"options,omitempty"`
}

// apply narrows base to the request's provider, model and options.
func (s selector) apply(base bridge.Selection) (bridge.Selection, error) {
	if s.Provider != "" {
		base = base.WithProvider(s.Provider)
	}
	if s.Model != "" {
		base = base.WithModel(s.Model)
	}
	if len(s.Options) > 0 && !bytes.Equal(s.Options, []byte("null")) {
		opts, _ := base.Options()
		if err := json.Unmarshal(s.Options, &opts); err != nil {
			return base, fmt.Errorf("%w: options: %v", errBadRequest, err)
		}
		base = base.WithOptions(opts)
	}
	return base, nil
}

// imagePart is an inline image. Data is base64 in JSON.
type imagePart struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// message is the JSON form of [types.ChatMessage].
type message struct {
	Role       types.Role       `json:"role"`
	Content    string           `json:"content,omitempty"`
	Images     []imagePart      `json:"images,omitempty"`
	ToolCalls  []types.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

// toMessage converts m. A tool message with a call ID becomes a tool result
// part; otherwise text, images and tool calls are appended in that order.
func (m message) toMessage() types.ChatMessage {
	out := types.ChatMessage{Role: m.Role, Name: m.Name}
	if m.Role == types.RoleTool && m.ToolCallID != "" {
		out.Contents = append(out.Contents, types.ToolResultContent(m.ToolCallID, m.Content))
		return out
	}
	if m.Content != "" {
		out.Contents = append(out.Contents, types.TextContent(m.Content))
	}
	for _, img := range m.Images {
		out.Contents = append(out.Contents, types.DataContent(img.Data, img.MimeType))
	}
	for _, tc := range m.ToolCalls {
		out.Contents = append(out.Contents, types.ToolCallContent(tc))
	}
	return out
}

func fromMessage(m types.ChatMessage) message {
	out := message{Role: m.Role, Name: m.Name, Content: m.Text(), ToolCalls: m.ToolCalls()}
	for _, c := range m.Contents {
		switch c.Kind {
		case types.ContentData:
			out.Images = append(out.Images, imagePart{Data: c.Data, MimeType: c.MediaType})
		case types.ContentToolResult:
			out.ToolCallID = c.ToolCallID
			out.Content = c.Text
		}
	}
	return out
}

func toMessages(in []message) []types.ChatMessage {
	out := make([]types.ChatMessage, len(in))
	for i, m := range in {
		out[i] = m.toMessage()
	}
	return out
}

type chatRequest struct {
	selector
	Prompt   string    `json:"prompt,omitempty"`
	Messages []message `json:"messages,omitempty"`
}

type functionsRequest struct {
	selector
	Messages []message             `json:"messages"`
	Tools    []types.ToolDefinition `json:"tools"`
}

type chatResponse struct {
	Content      string      `json:"content"`
	Messages     []message   `json:"messages"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        types.Usage `json:"usage"`
}

func newChatResponse(resp *types.ChatResponse) chatResponse {
	out := chatResponse{
		Content:      resp.LastText(),
		Messages:     make([]message, len(resp.Messages)),
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
	}
	for i, m := range resp.Messages {
		out.Messages[i] = fromMessage(m)
	}
	return out
}

type embeddingsRequest struct {
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	Texts    []string `json:"texts"`
}

type embeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
}

type similarityRequest struct {
	A []float32 `json:"a"`
	B []float32 `json:"b"`
}

type similarityResponse struct {
	Similarity float64 `json:"similarity"`
}

type visionRequest struct {
	selector
	Image    []byte `json:"image"`
	MimeType string `json:"mime_type,omitempty"`
	Prompt   string `json:"prompt"`
}

type collectionRequest struct {
	Dimensions int `json:"dimensions,omitempty"`
}

type collectionResponse struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
}

type upsertRequest struct {
	Provider string               `json:"provider,omitempty"`
	Model    string               `json:"model,omitempty"`
	Records  []vectorstore.Record `json:"records"`
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
}

type searchRequest struct {
	Provider string    `json:"provider,omitempty"`
	Model    string    `json:"model,omitempty"`
	Vector   []float32 `json:"vector,omitempty"`
	Text     string    `json:"text,omitempty"`
	TopK     int       `json:"top_k,omitempty"`
}

type searchResponse struct {
	Results []vectorstore.SearchResult `json:"results"`
}

type providerInfo struct {
	Name         string                `json:"name"`
	Default      bool                  `json:"default,omitempty"`
	Capabilities provider.Capabilities `json:"capabilities"`
	Models       provider.Models       `json:"models"`
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

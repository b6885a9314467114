// Package openai provides a chat client backed by the OpenAI API or any
// endpoint that speaks its chat completions protocol.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/aibridge/pkg/provider/llm"
	"github.com/MrWong99/aibridge/pkg/types"
)

// Compile-time assertion that Client satisfies llm.ChatClient.
var _ llm.ChatClient = (*Client)(nil)

// Client implements llm.ChatClient using the OpenAI API.
type Client struct {
	client oai.Client
	model  string
}

// New binds client to model. The SDK client carries credentials, base URL
// and transport, so one client can back any number of models.
func New(client oai.Client, model string) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}
	return &Client{client: client, model: model}, nil
}

// Model implements llm.ChatClient.
func (c *Client) Model() string { return c.model }

// StreamCompletion implements llm.ChatClient.
func (c *Client) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai: start stream: %w", err)
	}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		// accumulated tool calls keyed by index
		toolCallAccum := map[int]*types.ToolCall{}

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			delta := choice.Delta

			out := llm.Chunk{
				Text:         delta.Content,
				FinishReason: choice.FinishReason,
			}

			for _, tc := range delta.ToolCalls {
				idx := int(tc.Index)
				existing, ok := toolCallAccum[idx]
				if !ok {
					existing = &types.ToolCall{}
					toolCallAccum[idx] = existing
				}
				if tc.ID != "" {
					existing.ID = tc.ID
				}
				if tc.Function.Name != "" {
					existing.Name = tc.Function.Name
				}
				existing.Arguments += tc.Function.Arguments
			}

			if choice.FinishReason != "" && len(toolCallAccum) > 0 {
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

		if err := stream.Err(); err != nil {
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
		return nil, fmt.Errorf("openai: build params: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" && choice.Message.Content == "" {
		return nil, fmt.Errorf("openai: model refused: %s", choice.Message.Refusal)
	}
	result := &llm.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: types.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
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

// buildParams converts a CompletionRequest into OpenAI SDK params.
func (c *Client) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	var messages []oai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg...)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}

	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	for _, td := range req.Tools {
		toolParam := oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       td.Name,
				Parameters: shared.FunctionParameters(td.Parameters),
			},
		}
		if td.Description != "" {
			toolParam.Function.Description = param.NewOpt(td.Description)
		}
		params.Tools = append(params.Tools, toolParam)
	}

	if rf := req.ResponseFormat; rf != nil {
		schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   rf.Name,
			Schema: rf.Schema,
		}
		if rf.Strict {
			schema.Strict = param.NewOpt(true)
		}
		if rf.Description != "" {
			schema.Description = param.NewOpt(rf.Description)
		}
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}
	}

	return params, nil
}

// convertMessage converts a types.ChatMessage to OpenAI SDK message params.
// Tool messages expand to one param per tool result part.
func convertMessage(m types.ChatMessage) ([]oai.ChatCompletionMessageParamUnion, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	switch m.Role {
	case types.RoleSystem:
		return []oai.ChatCompletionMessageParamUnion{oai.SystemMessage(m.Text())}, nil

	case types.RoleUser:
		if !m.HasData() {
			return []oai.ChatCompletionMessageParamUnion{oai.UserMessage(m.Text())}, nil
		}
		parts := make([]oai.ChatCompletionContentPartUnionParam, 0, len(m.Contents))
		for _, c := range m.Contents {
			switch c.Kind {
			case types.ContentText:
				parts = append(parts, oai.TextContentPart(c.Text))
			case types.ContentData:
				if !strings.HasPrefix(c.MediaType, "image/") {
					return nil, fmt.Errorf("openai: unsupported media type %q", c.MediaType)
				}
				parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL(c.Data, c.MediaType),
				}))
			}
		}
		return []oai.ChatCompletionMessageParamUnion{oai.UserMessage(parts)}, nil

	case types.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		if text := m.Text(); text != "" {
			asst.Content.OfString = oai.String(text)
		}
		if m.Name != "" {
			asst.Name = oai.String(m.Name)
		}
		for _, tc := range m.ToolCalls() {
			asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: oai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return []oai.ChatCompletionMessageParamUnion{{OfAssistant: &asst}}, nil

	case types.RoleTool:
		var out []oai.ChatCompletionMessageParamUnion
		for _, c := range m.Contents {
			if c.Kind != types.ContentToolResult {
				continue
			}
			out = append(out, oai.ToolMessage(c.Text, c.ToolCallID))
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("openai: tool message carries no tool result")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("openai: unknown message role %q", m.Role)
	}
}

// dataURL encodes data as an RFC 2397 data URL.
func dataURL(data []byte, mediaType string) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

package bridge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/aibridge/pkg/bridge"
	"github.com/MrWong99/aibridge/pkg/provider"
	"github.com/MrWong99/aibridge/pkg/provider/llm"
	llmmock "github.com/MrWong99/aibridge/pkg/provider/llm/mock"
	providermock "github.com/MrWong99/aibridge/pkg/provider/mock"
	"github.com/MrWong99/aibridge/pkg/types"
)

func TestComplete_ReturnsLastText(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{
		ModelName: "m1",
		CompleteResponse: &llm.CompletionResponse{
			Content:      "Hello there",
			FinishReason: "stop",
			Usage:        types.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		},
	}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	resp, err := svc.Chat.Complete(context.Background(), svc.Chat.Select(), "Hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := resp.LastText(); got != "Hello there" {
		t.Errorf("LastText: want %q, got %q", "Hello there", got)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("Usage.TotalTokens: want 5, got %d", resp.Usage.TotalTokens)
	}
	if len(client.CompleteCalls) != 1 {
		t.Fatalf("Complete calls: want 1, got %d", len(client.CompleteCalls))
	}
	msgs := client.CompleteCalls[0].Req.Messages
	if len(msgs) != 1 || msgs[0].Role != types.RoleUser || msgs[0].Text() != "Hi" {
		t.Errorf("request messages: got %+v", msgs)
	}
}

func TestComplete_SelectionOptionsReachRequest(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	adapter := &providermock.Adapter{Caps: allCaps, Chat: client}
	svc := singleAdapter(t, adapter, bridge.WithChatOptions(bridge.ChatOptions{MaxTokens: 100, Temperature: 0.2}))
	ctx := context.Background()

	// Facade defaults.
	if _, err := svc.Chat.Complete(ctx, bridge.Selection{}, "a"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// Per-request override.
	sel := svc.Chat.Select().WithModel("big").WithOptions(bridge.ChatOptions{MaxTokens: 7, Temperature: 1.5})
	if _, err := svc.Chat.Complete(ctx, sel, "b"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	tests := []struct {
		name     string
		call     int
		maxTok   int
		temp     float64
		modelArg string
	}{
		{name: "defaults", call: 0, maxTok: 100, temp: 0.2, modelArg: ""},
		{name: "override", call: 1, maxTok: 7, temp: 1.5, modelArg: "big"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := client.CompleteCalls[tc.call].Req
			if req.MaxTokens != tc.maxTok {
				t.Errorf("MaxTokens: want %d, got %d", tc.maxTok, req.MaxTokens)
			}
			if req.Temperature != tc.temp {
				t.Errorf("Temperature: want %v, got %v", tc.temp, req.Temperature)
			}
			if got := adapter.ChatClientCalls[tc.call]; got != tc.modelArg {
				t.Errorf("ChatClient model: want %q, got %q", tc.modelArg, got)
			}
		})
	}
}

func TestSelection_IsImmutable(t *testing.T) {
	t.Parallel()

	base := bridge.Select("A")
	other := base.WithProvider("B").WithModel("m").WithOptions(bridge.DefaultChatOptions())

	if base.Provider() != "A" || base.Model() != "" {
		t.Errorf("base changed: %v", base)
	}
	if _, ok := base.Options(); ok {
		t.Error("base unexpectedly carries options")
	}
	if other.Provider() != "B" || other.Model() != "m" {
		t.Errorf("other: got %v", other)
	}
	if other.String() != "B/m" {
		t.Errorf("String: want %q, got %q", "B/m", other.String())
	}
}

func TestComplete_RoutesByProvider(t *testing.T) {
	t.Parallel()

	a := &llmmock.Client{CompleteResponse: &llm.CompletionResponse{Content: "from A"}}
	b := &llmmock.Client{CompleteResponse: &llm.CompletionResponse{Content: "from B"}}
	svc, _ := newService(t, nil, []provider.Adapter{
		&providermock.Adapter{NameValue: testProvider, Chat: a},
		&providermock.Adapter{NameValue: "Other", Chat: b},
	})
	ctx := context.Background()

	got, err := svc.Chat.Complete(ctx, bridge.Select("Other"), "x")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.LastText() != "from B" {
		t.Errorf("want reply from B, got %q", got.LastText())
	}
	got, err = svc.Chat.Complete(ctx, bridge.Selection{}, "x")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.LastText() != "from A" {
		t.Errorf("want reply from default provider, got %q", got.LastText())
	}
}

func TestComplete_Errors(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("rate limited")
	tests := []struct {
		name    string
		adapter *providermock.Adapter
		sel     bridge.Selection
		msgs    []types.ChatMessage
		wantErr error
	}{
		{
			name:    "unknown provider",
			adapter: &providermock.Adapter{Chat: &llmmock.Client{}},
			sel:     bridge.Select("Nope"),
			msgs:    []types.ChatMessage{types.UserMessage("x")},
			wantErr: bridge.ErrProviderNotFound,
		},
		{
			name:    "provider name is case sensitive",
			adapter: &providermock.Adapter{Chat: &llmmock.Client{}},
			sel:     bridge.Select(strings.ToLower(testProvider)),
			msgs:    []types.ChatMessage{types.UserMessage("x")},
			wantErr: bridge.ErrProviderNotFound,
		},
		{
			name:    "no client",
			adapter: &providermock.Adapter{},
			msgs:    []types.ChatMessage{types.UserMessage("x")},
			wantErr: bridge.ErrClientUnavailable,
		},
		{
			name:    "backend error is wrapped",
			adapter: &providermock.Adapter{Chat: &llmmock.Client{CompleteErr: backendErr}},
			msgs:    []types.ChatMessage{types.UserMessage("x")},
			wantErr: backendErr,
		},
		{
			name:    "empty conversation",
			adapter: &providermock.Adapter{Chat: &llmmock.Client{}},
			wantErr: bridge.ErrInvalidMessage,
		},
		{
			name:    "message without parts",
			adapter: &providermock.Adapter{Chat: &llmmock.Client{}},
			msgs:    []types.ChatMessage{{Role: types.RoleUser}},
			wantErr: bridge.ErrInvalidMessage,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := singleAdapter(t, tc.adapter)
			_, err := svc.Chat.CompleteMessages(context.Background(), tc.sel, tc.msgs)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestComplete_RecordsMetrics(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{CompleteErr: errors.New("boom")}
	svc, reader := newService(t, nil, []provider.Adapter{
		&providermock.Adapter{NameValue: testProvider, Chat: client},
	})
	_, _ = svc.Chat.Complete(context.Background(), bridge.Selection{}, "x")

	if got := counterTotal(t, reader, "aibridge.provider.requests"); got != 1 {
		t.Errorf("provider.requests: want 1, got %d", got)
	}
	if got := counterTotal(t, reader, "aibridge.provider.errors"); got != 1 {
		t.Errorf("provider.errors: want 1, got %d", got)
	}
}

func TestCompleteWithFunctions_UnsupportedMakesNoClient(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{}
	adapter := &providermock.Adapter{
		Caps: provider.Capabilities{SupportsVision: true, SupportsStreaming: true},
		Chat: client,
	}
	svc := singleAdapter(t, adapter)

	_, err := svc.Chat.CompleteWithFunctions(context.Background(), bridge.Selection{},
		[]types.ChatMessage{types.UserMessage("weather?")},
		[]types.ToolDefinition{{Name: "get_weather"}})
	if !errors.Is(err, bridge.ErrUnsupportedCapability) {
		t.Fatalf("want ErrUnsupportedCapability, got %v", err)
	}
	if n := adapter.ClientRequests(); n != 0 {
		t.Errorf("adapter client requests: want 0, got %d", n)
	}
	if n := client.CallCount(); n != 0 {
		t.Errorf("client calls: want 0, got %d", n)
	}
}

func TestCompleteWithFunctions_ReturnsToolCalls(t *testing.T) {
	t.Parallel()

	call := types.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Oslo"}`}
	client := &llmmock.Client{CompleteResponse: &llm.CompletionResponse{
		ToolCalls:    []types.ToolCall{call},
		FinishReason: "tool_calls",
	}}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	tools := []types.ToolDefinition{{
		Name:       "get_weather",
		Parameters: map[string]any{"type": "object"},
	}}
	resp, err := svc.Chat.CompleteWithFunctions(context.Background(), bridge.Selection{},
		[]types.ChatMessage{types.UserMessage("weather in Oslo?")}, tools)
	if err != nil {
		t.Fatalf("CompleteWithFunctions: %v", err)
	}
	if got := client.CompleteCalls[0].Req.Tools; len(got) != 1 || got[0].Name != "get_weather" {
		t.Errorf("tools not forwarded: %+v", got)
	}
	last, ok := resp.LastMessage()
	if !ok {
		t.Fatal("no message in response")
	}
	calls := last.ToolCalls()
	if len(calls) != 1 || calls[0] != call {
		t.Errorf("tool calls: want [%+v], got %+v", call, calls)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason: want tool_calls, got %q", resp.FinishReason)
	}
}

// ─── streaming ───────────────────────────────────────────────────────────────

func drain(ch <-chan types.StreamingChatResponse) []types.StreamingChatResponse {
	var out []types.StreamingChatResponse
	for r := range ch {
		out = append(out, r)
	}
	return out
}

// TestCompleteStreaming_MarksEveryChunkComplete pins the observable contract
// that every streamed element reports IsComplete, not only the last one.
func TestCompleteStreaming_MarksEveryChunkComplete(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{StreamChunks: []llm.Chunk{
		{Text: "Hel"},
		{Text: "lo"},
		{Text: "!", FinishReason: "stop"},
	}}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	ch, err := svc.Chat.CompleteStreaming(context.Background(), svc.Chat.Select(), "greet")
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}
	got := drain(ch)
	want := []string{"Hel", "lo", "!"}
	if len(got) != len(want) {
		t.Fatalf("chunks: want %d, got %d (%+v)", len(want), len(got), got)
	}
	for i, r := range got {
		if r.Content != want[i] {
			t.Errorf("chunk %d: want %q, got %q", i, want[i], r.Content)
		}
		if !r.IsComplete {
			t.Errorf("chunk %d: IsComplete is false", i)
		}
		if r.Err != nil {
			t.Errorf("chunk %d: unexpected error %v", i, r.Err)
		}
	}
}

func TestCompleteStreaming_KeepsEmptyChunks(t *testing.T) {
	t.Parallel()

	// Role-only opener and finish-only closer, as OpenAI streams them.
	client := &llmmock.Client{StreamChunks: []llm.Chunk{
		{Text: ""},
		{Text: "Hi"},
		{Text: "", FinishReason: "stop"},
	}}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	ch, err := svc.Chat.CompleteStreaming(context.Background(), bridge.Selection{}, "x")
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}
	got := drain(ch)
	want := []string{"", "Hi", ""}
	if len(got) != len(want) {
		t.Fatalf("elements: want %d, got %d (%+v)", len(want), len(got), got)
	}
	for i, r := range got {
		if r.Content != want[i] || !r.IsComplete || r.Err != nil {
			t.Errorf("element %d: got %+v", i, r)
		}
	}
}

func TestCompleteStreaming_ErrorChunk(t *testing.T) {
	t.Parallel()

	client := &llmmock.Client{StreamChunks: []llm.Chunk{
		{Text: "partial"},
		{Text: "connection reset", FinishReason: llm.FinishReasonError},
	}}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	ch, err := svc.Chat.CompleteStreaming(context.Background(), bridge.Selection{}, "x")
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}
	got := drain(ch)
	if len(got) != 2 {
		t.Fatalf("want 2 elements, got %d", len(got))
	}
	last := got[1]
	if last.Err == nil || !strings.Contains(last.Err.Error(), "connection reset") {
		t.Errorf("final element error: got %v", last.Err)
	}
	if !last.IsComplete {
		t.Error("final element IsComplete is false")
	}
}

func TestCompleteStreaming_Unsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		caps provider.Capabilities
		opts bridge.ChatOptions
	}{
		{
			name: "provider lacks streaming",
			caps: provider.Capabilities{SupportsFunctions: true},
			opts: bridge.DefaultChatOptions(),
		},
		{
			name: "options disable streaming",
			caps: allCaps,
			opts: bridge.ChatOptions{MaxTokens: 10, EnableStreaming: false},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := &llmmock.Client{StreamChunks: []llm.Chunk{{Text: "x"}}}
			adapter := &providermock.Adapter{Caps: tc.caps, Chat: client}
			svc := singleAdapter(t, adapter)

			_, err := svc.Chat.CompleteStreaming(context.Background(),
				bridge.Selection{}.WithOptions(tc.opts), "x")
			if !errors.Is(err, bridge.ErrUnsupportedCapability) {
				t.Fatalf("want ErrUnsupportedCapability, got %v", err)
			}
			if n := adapter.ClientRequests(); n != 0 {
				t.Errorf("adapter client requests: want 0, got %d", n)
			}
		})
	}
}

func TestCompleteStreaming_StartError(t *testing.T) {
	t.Parallel()

	startErr := errors.New("dial tcp: refused")
	client := &llmmock.Client{StreamErr: startErr}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	ch, err := svc.Chat.CompleteStreaming(context.Background(), bridge.Selection{}, "x")
	if !errors.Is(err, startErr) {
		t.Fatalf("want wrapped start error, got %v", err)
	}
	if ch != nil {
		t.Error("want nil channel on start error")
	}
}

func TestCompleteStreaming_CancelClosesChannel(t *testing.T) {
	t.Parallel()

	chunks := make([]llm.Chunk, 100)
	for i := range chunks {
		chunks[i] = llm.Chunk{Text: "x"}
	}
	client := &llmmock.Client{StreamChunks: chunks}
	svc := singleAdapter(t, &providermock.Adapter{Caps: allCaps, Chat: client})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := svc.Chat.CompleteStreaming(ctx, bridge.Selection{}, "x")
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}
	<-ch
	cancel()
	got := drain(ch)
	if len(got) >= len(chunks) {
		t.Errorf("stream did not stop after cancel: %d elements", len(got)+1)
	}
}

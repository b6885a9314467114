package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/aibridge/pkg/provider/llm"
)

func TestComplete_Precedence(t *testing.T) {
	errBoom := errors.New("boom")
	c := &Client{
		Replies: []Reply{
			{Resp: &llm.CompletionResponse{Content: "first"}},
			{Err: errBoom},
		},
		CompleteResponse: &llm.CompletionResponse{Content: "fallback"},
	}
	ctx := context.Background()

	resp, err := c.Complete(ctx, llm.CompletionRequest{})
	if err != nil || resp.Content != "first" {
		t.Fatalf("call 1: got %v, %v", resp, err)
	}
	if _, err := c.Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, errBoom) {
		t.Fatalf("call 2: want errBoom, got %v", err)
	}
	resp, err = c.Complete(ctx, llm.CompletionRequest{})
	if err != nil || resp.Content != "fallback" {
		t.Fatalf("call 3: got %v, %v", resp, err)
	}

	c.CompleteFunc = func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "func"}, nil
	}
	resp, _ = c.Complete(ctx, llm.CompletionRequest{})
	if resp.Content != "func" {
		t.Errorf("call 4: want func, got %q", resp.Content)
	}
	if c.CallCount() != 4 {
		t.Errorf("CallCount: want 4, got %d", c.CallCount())
	}
}

func TestStreamCompletion(t *testing.T) {
	c := &Client{StreamChunks: []llm.Chunk{{Text: "a"}, {Text: "b"}}}
	ch, err := c.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var got string
	for chunk := range ch {
		got += chunk.Text
	}
	if got != "ab" {
		t.Errorf("want ab, got %q", got)
	}

	c.StreamErr = errors.New("down")
	if _, err := c.StreamCompletion(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Error("want StreamErr")
	}
	if len(c.StreamCalls) != 2 {
		t.Errorf("StreamCalls: want 2, got %d", len(c.StreamCalls))
	}
}

// Package mock is a scriptable llm.ChatClient for facade tests.
//
//	c := &mock.Client{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
//
// Replies, when set, is consumed one entry per Complete call before falling
// back to CompleteFunc and then CompleteResponse/CompleteErr.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/aibridge/pkg/provider/llm"
)

// Call is one recorded request.
type Call struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Reply is a scripted Complete result.
type Reply struct {
	Resp *llm.CompletionResponse
	Err  error
}

// Client implements llm.ChatClient. Configure the exported fields before the
// first call.
type Client struct {
	mu sync.Mutex

	ModelName string

	// Streaming.
	StreamChunks []llm.Chunk
	StreamErr    error

	// Non-streaming, in order of precedence.
	Replies          []Reply
	CompleteFunc     func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	StreamCalls   []Call
	CompleteCalls []Call
}

var _ llm.ChatClient = (*Client)(nil)

func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ModelName
}

// StreamCompletion replays StreamChunks on a buffered channel, stopping early
// when ctx is cancelled.
func (c *Client) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	c.mu.Lock()
	c.StreamCalls = append(c.StreamCalls, Call{Ctx: ctx, Req: req})
	if err := c.StreamErr; err != nil {
		c.mu.Unlock()
		return nil, err
	}
	script := append([]llm.Chunk(nil), c.StreamChunks...)
	c.mu.Unlock()

	out := make(chan llm.Chunk, len(script))
	go func() {
		defer close(out)
		for i := range script {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- script[i]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	c.CompleteCalls = append(c.CompleteCalls, Call{Ctx: ctx, Req: req})
	if len(c.Replies) > 0 {
		next := c.Replies[0]
		c.Replies = c.Replies[1:]
		c.mu.Unlock()
		return next.Resp, next.Err
	}
	fn, resp, err := c.CompleteFunc, c.CompleteResponse, c.CompleteErr
	c.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// CallCount counts both kinds of calls.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CompleteCalls) + len(c.StreamCalls)
}

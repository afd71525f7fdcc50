// Package llmtest provides a scripted inference client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmin-pingu/ihcl/internal/llm"
)

// Responder produces the raw response for one prompt.
type Responder func(prompt llm.Prompt) (string, error)

// Call records one request seen by the client.
type Call struct {
	Prompt llm.Prompt
	Tier   llm.ModelTier
}

// Client answers prompts by Prompt.Name. It is safe for concurrent use.
type Client struct {
	mu         sync.Mutex
	responders map[string]Responder
	calls      []Call
	closed     bool
}

var _ llm.Client = (*Client)(nil)

// New returns a client with no responders; unscripted prompts fail.
func New() *Client {
	return &Client{responders: make(map[string]Responder)}
}

// On registers r for prompts named name.
func (c *Client) On(name string, r Responder) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responders[name] = r
	return c
}

// Reply always answers prompts named name with v. Strings are sent verbatim;
// anything else is JSON-encoded.
func (c *Client) Reply(name string, v any) *Client {
	body := JSON(v)
	return c.On(name, func(llm.Prompt) (string, error) { return body, nil })
}

// Fail always answers prompts named name with err.
func (c *Client) Fail(name string, err error) *Client {
	return c.On(name, func(llm.Prompt) (string, error) { return "", err })
}

// GenerateJSON implements llm.Client.
func (c *Client) GenerateJSON(ctx context.Context, prompt llm.Prompt, tier llm.ModelTier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{Prompt: prompt, Tier: tier})
	responder, ok := c.responders[prompt.Name]
	c.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("llmtest: no responder for prompt %q", prompt.Name)
	}
	return responder(prompt)
}

// GetModel implements llm.Client.
func (c *Client) GetModel(tier llm.ModelTier) string {
	return "fake-" + string(tier)
}

// Close implements llm.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Calls returns the recorded requests named name, in arrival order.
func (c *Client) Calls(name string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.calls {
		if call.Prompt.Name == name {
			out = append(out, call)
		}
	}
	return out
}

// Count returns how many requests named name were received.
func (c *Client) Count(name string) int {
	return len(c.Calls(name))
}

// JSON encodes v for use as a scripted response. Strings pass through unchanged.
func JSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("llmtest: cannot encode response: %v", err))
	}
	return string(data)
}

// Package llm - ratelimit.go throttles calls to a shared inference client.
package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token bucket shared by every caller.
type RateLimitedClient struct {
	Client
	limiter *rate.Limiter
}

// NewRateLimitedClient limits client to requestsPerSecond with the given burst.
// A non-positive rate returns client unchanged.
func NewRateLimitedClient(client Client, requestsPerSecond float64, burst int) Client {
	if requestsPerSecond <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// GenerateJSON waits for a token, then delegates.
func (c *RateLimitedClient) GenerateJSON(ctx context.Context, prompt Prompt, tier ModelTier) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.Client.GenerateJSON(ctx, prompt, tier)
}

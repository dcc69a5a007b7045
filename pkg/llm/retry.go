package llm

import (
	"context"

	"github.com/furnbridge/orderdesk/internal/resilience"
)

// retryingClient wraps a Client with transport-level retries and a circuit
// breaker shared across the three call kinds. Only transient failures (429,
// 5xx, network timeouts) are retried; malformed model output is passed
// through for the caller's own retry budget.
type retryingClient struct {
	inner   Client
	cfg     resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// WithRetry decorates a client with transient-error retries and circuit
// breaking.
func WithRetry(inner Client, cfg resilience.RetryConfig) Client {
	return &retryingClient{
		inner:   inner,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

func (r *retryingClient) call(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) (string, error) {
	cfg := r.cfg
	cfg.OnRetry = resilience.RetryLogger("anthropic", operation)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, r.breaker, fn)
	})
}

func (r *retryingClient) Extract(ctx context.Context, req ExtractRequest) (string, error) {
	return r.call(ctx, "extract", func(ctx context.Context) (string, error) {
		return r.inner.Extract(ctx, req)
	})
}

func (r *retryingClient) Classify(ctx context.Context, systemPrompt, userText string) (string, error) {
	return r.call(ctx, "classify", func(ctx context.Context) (string, error) {
		return r.inner.Classify(ctx, systemPrompt, userText)
	})
}

func (r *retryingClient) Verify(ctx context.Context, systemPrompt, userText string) (string, error) {
	return r.call(ctx, "verify", func(ctx context.Context) (string, error) {
		return r.inner.Verify(ctx, systemPrompt, userText)
	})
}

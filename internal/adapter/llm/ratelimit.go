package llm

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"penny/internal/domain"
	"penny/internal/infra/config"
)

// RateLimitedProvider wraps an LLMProvider with a token bucket so a chatty
// loop cannot burn through the provider's request quota. Wait blocks until
// a token is available or the context is cancelled, which keeps backpressure
// inside the process instead of surfacing as 429s.
type RateLimitedProvider struct {
	inner   domain.LLMProvider
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimitedProvider wraps inner with a requests-per-minute token bucket.
func NewRateLimitedProvider(inner domain.LLMProvider, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimitedProvider {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rpm)/60.0, burst),
		logger:  logger,
	}
}

// Chat implements domain.LLMProvider. It blocks until the limiter grants a
// token, then delegates to the wrapped provider.
func (p *RateLimitedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if p.limiter.Tokens() < 1 {
		p.logger.Debug("llm request throttled", "provider", p.inner.Name())
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return p.inner.Chat(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

var _ domain.LLMProvider = (*RateLimitedProvider)(nil)

package usecase

import (
	"log/slog"

	"penny/internal/domain"
	"penny/internal/infra/config"
)

// ContextGuard watches prompt size so an oversized transcript is caught
// here, with a clear error, instead of as a provider 400. There is no
// compression in a single-turn budget conversation; when the transcript is
// genuinely too large the turn fails with ErrContextOverflow.
type ContextGuard struct {
	maxTokens     int
	reserveTokens int
	safetyMargin  float64
	counter       domain.TokenCounter
	logger        *slog.Logger
}

// NewContextGuard creates a context guard from config.
func NewContextGuard(cfg config.ContextGuardConfig, counter domain.TokenCounter, logger *slog.Logger) *ContextGuard {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 0.15
	}
	if cfg.SafetyMargin > 0.5 {
		cfg.SafetyMargin = 0.5
	}
	if cfg.ReserveTokens <= 0 {
		cfg.ReserveTokens = 1000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200000
	}
	return &ContextGuard{
		maxTokens:     cfg.MaxTokens,
		reserveTokens: cfg.ReserveTokens,
		safetyMargin:  cfg.SafetyMargin,
		counter:       counter,
		logger:        logger,
	}
}

// Check estimates the token footprint of the prompt about to be sent.
// Within the soft limit it returns nil (logging a warning when past the
// safety margin); past the hard limit it returns ErrContextOverflow.
func (g *ContextGuard) Check(messages []domain.Message) error {
	tokens := g.counter.CountMessages(messages)
	hard := g.maxTokens - g.reserveTokens
	soft := int(float64(hard) * (1 - g.safetyMargin))

	switch {
	case tokens > hard:
		g.logger.Error("prompt exceeds context window",
			"tokens", tokens, "limit", hard)
		return domain.NewDomainError("ContextGuard.Check", domain.ErrContextOverflow,
			"prompt too large for the model's context window")
	case tokens > soft:
		g.logger.Warn("prompt approaching context window",
			"tokens", tokens, "soft_limit", soft, "limit", hard)
	}
	return nil
}

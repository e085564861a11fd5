package usecase

import (
	"errors"
	"strings"
	"testing"

	"penny/internal/domain"
	"penny/internal/infra/config"
)

// charCounter counts one token per content character, making limits easy to
// hit in tests.
type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }
func (charCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	return total
}

func guardWith(maxTokens, reserve int) *ContextGuard {
	return NewContextGuard(config.ContextGuardConfig{
		MaxTokens:     maxTokens,
		ReserveTokens: reserve,
		SafetyMargin:  0.2,
	}, charCounter{}, newTestLogger())
}

func TestContextGuardWithinLimit(t *testing.T) {
	g := guardWith(1000, 100)
	msgs := []domain.Message{{Content: strings.Repeat("a", 100)}}
	if err := g.Check(msgs); err != nil {
		t.Fatalf("small prompt should pass: %v", err)
	}
}

func TestContextGuardSoftLimitStillPasses(t *testing.T) {
	g := guardWith(1000, 100)
	// hard = 900, soft = 720; 800 is over soft but under hard.
	msgs := []domain.Message{{Content: strings.Repeat("a", 800)}}
	if err := g.Check(msgs); err != nil {
		t.Fatalf("prompt under the hard limit should pass: %v", err)
	}
}

func TestContextGuardHardLimitFails(t *testing.T) {
	g := guardWith(1000, 100)
	msgs := []domain.Message{{Content: strings.Repeat("a", 950)}}
	err := g.Check(msgs)
	if err == nil {
		t.Fatal("oversized prompt should fail")
	}
	if !errors.Is(err, domain.ErrContextOverflow) {
		t.Fatalf("expected ErrContextOverflow, got %v", err)
	}
}

func TestContextGuardDefaults(t *testing.T) {
	g := NewContextGuard(config.ContextGuardConfig{}, charCounter{}, newTestLogger())
	if g.maxTokens != 200000 || g.reserveTokens != 1000 {
		t.Errorf("defaults not applied: max=%d reserve=%d", g.maxTokens, g.reserveTokens)
	}
	if g.safetyMargin != 0.15 {
		t.Errorf("default safety margin not applied: %v", g.safetyMargin)
	}
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"penny/internal/domain"
)

// roundTripFunc is a function type that implements http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// errorReadCloser is an io.ReadCloser whose Read always returns an error.
type errorReadCloser struct{}

func (e *errorReadCloser) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated body read error")
}

func (e *errorReadCloser) Close() error {
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.Default()
}

// mockProvider is a scriptable domain.LLMProvider.
type mockProvider struct {
	name     string
	chatFunc func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error)
}

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return m.chatFunc(ctx, req)
}
func (m *mockProvider) Name() string { return m.name }

// --- mapHTTPError tests ---

func TestMapHTTPError429(t *testing.T) {
	err := mapHTTPError(http.StatusTooManyRequests, []byte(`{"error":"rate limit exceeded"}`))
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
	if got := err.Error(); got == "" {
		t.Error("error message should not be empty")
	}
}

func TestMapHTTPError401(t *testing.T) {
	err := mapHTTPError(http.StatusUnauthorized, []byte(`{"error":"invalid api key"}`))
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("expected ErrAuthInvalid, got %v", err)
	}
}

func TestMapHTTPError403(t *testing.T) {
	err := mapHTTPError(http.StatusForbidden, []byte(`{"error":"forbidden"}`))
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("expected ErrAuthInvalid, got %v", err)
	}
}

func TestMapHTTPError413(t *testing.T) {
	err := mapHTTPError(http.StatusRequestEntityTooLarge, []byte(`{"error":"context too long"}`))
	if !errors.Is(err, domain.ErrContextOverflow) {
		t.Errorf("expected ErrContextOverflow, got %v", err)
	}
}

func TestMapHTTPError400PromptTooLong(t *testing.T) {
	// Anthropic reports an oversized prompt as a 400 invalid_request_error,
	// not a 413.
	body := []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 200001 tokens > 200000 maximum"}}`)
	err := mapHTTPError(http.StatusBadRequest, body)
	if !errors.Is(err, domain.ErrContextOverflow) {
		t.Errorf("expected ErrContextOverflow, got %v", err)
	}
}

func TestMapHTTPError400Generic(t *testing.T) {
	err := mapHTTPError(http.StatusBadRequest, []byte(`{"error":{"message":"model not specified"}}`))
	if errors.Is(err, domain.ErrContextOverflow) {
		t.Errorf("plain 400 must not map to overflow, got %v", err)
	}
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMapHTTPError500(t *testing.T) {
	err := mapHTTPError(http.StatusInternalServerError, []byte(`{"error":"internal server error"}`))
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable (retryable), got %v", err)
	}
}

func TestMapHTTPError529(t *testing.T) {
	err := mapHTTPError(529, []byte(`{"error":"overloaded"}`))
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable (retryable), got %v", err)
	}
}

func TestMapHTTPErrorUnknownStatus(t *testing.T) {
	err := mapHTTPError(418, []byte(`I'm a teapot`))
	if err == nil {
		t.Fatal("expected error")
	}
	// Should not wrap any known sentinel.
	if errors.Is(err, domain.ErrRateLimit) || errors.Is(err, domain.ErrAuthInvalid) ||
		errors.Is(err, domain.ErrContextOverflow) || errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected no sentinel wrapping for unknown status, got %v", err)
	}
}

func TestMapHTTPErrorIncludesStatusAndBody(t *testing.T) {
	err := mapHTTPError(http.StatusTooManyRequests, []byte(`{"error":{"message":"detailed info"}}`))
	msg := err.Error()
	for _, want := range []string{"API error 429", "detailed info"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should contain %q", msg, want)
		}
	}
}

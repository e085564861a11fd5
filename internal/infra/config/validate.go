package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateLLM(cfg, ve)
	validateStorage(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.MaxSteps <= 0 {
		ve.Add("agent.max_steps must be > 0")
	}
	if cfg.Agent.Timeout <= 0 {
		ve.Add("agent.timeout must be > 0")
	}
	if cfg.Agent.ContextGuard.Enabled {
		g := cfg.Agent.ContextGuard
		if g.MaxTokens <= 0 {
			ve.Add("agent.context_guard.max_tokens must be > 0 when the guard is enabled")
		}
		if g.ReserveTokens < 0 {
			ve.Add("agent.context_guard.reserve_tokens must be >= 0")
		}
		if g.SafetyMargin < 0 || g.SafetyMargin >= 1 {
			ve.Add("agent.context_guard.safety_margin must be in [0, 1)")
		}
	}
}

var validProviderTypes = map[string]bool{
	"anthropic": true,
	"bedrock":   true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}

	if len(cfg.LLM.Providers) == 0 {
		return
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: anthropic, bedrock)", i, p.Type)
		}
		if p.APIKey == "" && p.Type != "bedrock" {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via PENNY_LLM_PROVIDER_%s_API_KEY or ANTHROPIC_API_KEY)",
				i, p.Name, strings.ToUpper(p.Name))
		}
		if p.Type == "bedrock" && p.Region == "" {
			ve.Add("llm.providers[%d] (%s): region is required for bedrock provider", i, p.Name)
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d] (%s): model must not be empty", i, p.Name)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}

	if cfg.LLM.RateLimit.Enabled {
		if cfg.LLM.RateLimit.RequestsPerMinute <= 0 {
			ve.Add("llm.rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if cfg.LLM.RateLimit.Burst <= 0 {
			ve.Add("llm.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}
	if cfg.LLM.CircuitBreaker.Enabled && cfg.LLM.CircuitBreaker.MaxFailures == 0 {
		ve.Add("llm.circuit_breaker.max_failures must be > 0 when the breaker is enabled")
	}
}

func validateStorage(cfg *Config, ve *ValidationError) {
	if cfg.Storage.Path == "" {
		ve.Add("storage.path must not be empty")
	}
	if cfg.Storage.SampleRows <= 0 || cfg.Storage.SampleRows > 100 {
		ve.Add("storage.sample_rows must be in 1..100")
	}
	if cfg.Storage.BusyTimeout < 0 {
		ve.Add("storage.busy_timeout must be >= 0")
	}
}

var validLogFormats = map[string]bool{"": true, "text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

var validExporters = map[string]bool{"": true, "noop": true, "stdout": true}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}

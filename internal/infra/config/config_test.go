package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want 10", cfg.Agent.MaxSteps)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %q, want anthropic", cfg.LLM.DefaultProvider)
	}
	if len(cfg.LLM.Providers) != 1 || cfg.LLM.Providers[0].Type != "anthropic" {
		t.Fatalf("expected a single anthropic provider, got %+v", cfg.LLM.Providers)
	}
	if cfg.Storage.Path != filepath.Join("data", "budget.db") {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.SampleRows != 5 {
		t.Errorf("SampleRows = %d, want 5", cfg.Storage.SampleRows)
	}
	if !cfg.LLM.CircuitBreaker.Enabled {
		t.Error("circuit breaker should be enabled by default")
	}
	if cfg.LLM.RateLimit.Enabled {
		t.Error("rate limit should be disabled by default")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want default 10", cfg.Agent.MaxSteps)
	}
	if cfg.LLM.Providers[0].APIKey != "test-key" {
		t.Errorf("APIKey = %q, want env fill", cfg.LLM.Providers[0].APIKey)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	yamlBody := `
agent:
  max_steps: 3
  timeout: 30s
llm:
  default_provider: main
  providers:
    - name: main
      type: anthropic
      base_url: https://api.anthropic.com
      api_key: from-file
      model: claude-sonnet-4-20250514
      max_tokens: 1024
      conn_timeout: 10s
      resp_timeout: 60s
storage:
  path: /tmp/other.db
  sample_rows: 2
logger:
  level: debug
  format: json
`
	path := filepath.Join(t.TempDir(), "penny.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.MaxSteps != 3 {
		t.Errorf("MaxSteps = %d, want 3", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Agent.Timeout)
	}
	if cfg.LLM.DefaultProvider != "main" {
		t.Errorf("DefaultProvider = %q", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.Providers[0].APIKey != "from-file" {
		t.Errorf("APIKey = %q", cfg.LLM.Providers[0].APIKey)
	}
	if cfg.Storage.Path != "/tmp/other.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.SampleRows != 2 {
		t.Errorf("SampleRows = %d", cfg.Storage.SampleRows)
	}
	if cfg.Logger.Level != "debug" || cfg.Logger.Format != "json" {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "penny.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  max_steps: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// WriteFile mode passes through umask; Chmod does not.
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for world-writable config")
	}
	if !strings.Contains(err.Error(), "insecure permissions") {
		t.Errorf("error = %v, want permissions complaint", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PENNY_AGENT_MAX_STEPS", "7")
	t.Setenv("PENNY_STORAGE_PATH", "/tmp/env.db")
	t.Setenv("PENNY_LOGGER_LEVEL", "warn")
	t.Setenv("PENNY_TRACER_ENABLED", "true")
	t.Setenv("PENNY_TRACER_EXPORTER", "stdout")
	t.Setenv("PENNY_LLM_PROVIDER_ANTHROPIC_API_KEY", "env-key")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Agent.MaxSteps != 7 {
		t.Errorf("MaxSteps = %d, want 7", cfg.Agent.MaxSteps)
	}
	if cfg.Storage.Path != "/tmp/env.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
	if !cfg.Tracer.Enabled || cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer = %+v", cfg.Tracer)
	}
	if cfg.LLM.Providers[0].APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.LLM.Providers[0].APIKey)
	}
}

func TestApplyEnvOverridesInvalidNumbersIgnored(t *testing.T) {
	t.Setenv("PENNY_AGENT_MAX_STEPS", "zero")
	t.Setenv("PENNY_STORAGE_SAMPLE_ROWS", "-3")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want untouched default", cfg.Agent.MaxSteps)
	}
	if cfg.Storage.SampleRows != 5 {
		t.Errorf("SampleRows = %d, want untouched default", cfg.Storage.SampleRows)
	}
}

func TestAnthropicKeyFillsEmptyOnly(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "fallback-key")

	cfg := Defaults()
	cfg.LLM.Providers[0].APIKey = "explicit"
	ApplyEnvOverrides(cfg)

	if cfg.LLM.Providers[0].APIKey != "explicit" {
		t.Errorf("APIKey = %q, explicit key should win", cfg.LLM.Providers[0].APIKey)
	}
}

// --- secret encryption ---

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptValue("sk-secret-value", "passphrase")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if strings.Contains(encrypted, "sk-secret-value") {
		t.Fatal("ciphertext leaks plaintext")
	}

	decrypted, err := DecryptValue(encrypted, "passphrase")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != "sk-secret-value" {
		t.Errorf("decrypted = %q", decrypted)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptValue(encrypted, "wrong"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptBadFormat(t *testing.T) {
	if _, err := DecryptValue("no-separator", "p"); err == nil {
		t.Error("expected error for malformed value")
	}
	if _, err := DecryptValue("zz:zz", "p"); err == nil {
		t.Error("expected error for non-hex value")
	}
}

func TestLoadDecryptsProviderKey(t *testing.T) {
	encrypted, err := EncryptValue("sk-real-key", "vault-pass")
	if err != nil {
		t.Fatal(err)
	}

	yamlBody := `
llm:
  default_provider: anthropic
  providers:
    - name: anthropic
      type: anthropic
      api_key: "enc:` + encrypted + `"
      model: claude-sonnet-4-20250514
`
	path := filepath.Join(t.TempDir(), "penny.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PENNY_CONFIG_KEY", "vault-pass")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers[0].APIKey != "sk-real-key" {
		t.Errorf("APIKey = %q, want decrypted value", cfg.LLM.Providers[0].APIKey)
	}
}

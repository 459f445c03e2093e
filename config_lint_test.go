package keynotify

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigNoHighWarnings(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("default config should not fail AsError(LintHigh): %v", err)
	}
}

func TestLint_PlaintextBaseURL(t *testing.T) {
	cfg := validTestConfig()
	cfg.BaseURL = "http://api.example.com"
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "base_url_plaintext") {
		t.Error("expected base_url_plaintext warning")
	}
	for _, w := range ws {
		if w.Code == "base_url_plaintext" && w.Severity != LintHigh {
			t.Errorf("base_url_plaintext should be HIGH, got %s", w.Severity)
		}
	}
	if cfg.Lint().AsError(LintHigh) == nil {
		t.Error("expected AsError(LintHigh) to fail")
	}
}

func TestLint_LoopbackHTTPAllowed(t *testing.T) {
	cfg := validTestConfig()
	cfg.BaseURL = "http://127.0.0.1:8080"
	if containsCode(cfg.Lint().Codes(), "base_url_plaintext") {
		t.Error("loopback http should not warn")
	}
}

func TestLint_UnsealedFileStorage(t *testing.T) {
	cfg := validTestConfig()
	if !containsCode(cfg.Lint().Codes(), "durable_token_unsealed") {
		t.Error("expected durable_token_unsealed warning")
	}
	cfg.Storage.Passphrase = "correct horse"
	if containsCode(cfg.Lint().Codes(), "durable_token_unsealed") {
		t.Error("sealed storage should not warn")
	}
}

func TestLint_RetriesDisabled(t *testing.T) {
	cfg := validTestConfig()
	cfg.Retry.MaxRetries = 0
	if !containsCode(cfg.Lint().Codes(), "retries_disabled") {
		t.Error("expected retries_disabled warning")
	}
}

func TestLint_LongWorstCase(t *testing.T) {
	cfg := validTestConfig()
	cfg.Timeout = 2 * time.Minute
	cfg.Retry.MaxRetries = 10
	if !containsCode(cfg.Lint().Codes(), "call_duration_long") {
		t.Error("expected call_duration_long warning")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := validTestConfig()
	cfg.BaseURL = "http://api.example.com"
	cfg.Retry.MaxRetries = 0

	high := cfg.Lint().BySeverity(LintHigh)
	if len(high) != 1 {
		t.Fatalf("expected one HIGH warning, got %d", len(high))
	}
	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		if w.Severity < LintWarn {
			t.Errorf("BySeverity(LintWarn) returned %s", w.Severity)
		}
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

package keynotify

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "INFO"
	}
}

// LintWarning is a configuration that validates but is probably not intended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing the warnings at or above min, or nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	hits := ws.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass Validate but deserve a second look.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if u, err := url.Parse(c.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		add("base_url_plaintext", LintHigh, "bearer tokens would be sent over plain http")
	}
	if c.Storage.Backend == StorageFile && c.Storage.Passphrase == "" {
		add("durable_token_unsealed", LintWarn, "durable token is stored unencrypted on disk")
	}
	if c.Storage.Backend == StorageMemory {
		add("durable_tier_volatile", LintInfo, "remembered logins do not survive a restart")
	}
	if c.Storage.Backend == StorageRedis && c.Storage.RedisTTL == 0 {
		add("redis_token_no_ttl", LintInfo, "stored tokens never expire in redis")
	}
	if c.Retry.MaxRetries == 0 {
		add("retries_disabled", LintWarn, "transient failures surface on the first attempt")
	}
	if c.Timeout > 0 && c.Timeout < time.Second {
		add("timeout_short", LintWarn, "per-attempt timeout under one second")
	}
	if worst := c.worstCaseCall(); worst > 10*time.Minute {
		add("call_duration_long", LintWarn, fmt.Sprintf("a single call may take up to %s", worst))
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session transitions are not audited")
	}
	return ws
}

// worstCaseCall is the longest a call can take: every attempt timing out plus
// every retry wait.
func (c Config) worstCaseCall() time.Duration {
	n := c.Retry.MaxRetries
	total := time.Duration(n+1) * c.Timeout
	for i := 1; i <= n; i++ {
		total += time.Duration(i) * c.Retry.Step
	}
	return total
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

package keynotify

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/keynotify/credential"
	"github.com/jonboulle/clockwork"
)

type testEnv struct {
	client  *Client
	server  *httptest.Server
	clock   *clockwork.FakeClock
	durable *credential.MemoryBackend
	session *credential.MemoryBackend
	nav     *ViewTracker
	hits    atomic.Int64
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:   clockwork.NewFakeClock(),
		durable: credential.NewMemoryBackend(),
		session: credential.NewMemoryBackend(),
		nav:     NewViewTracker("/"),
	}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(env.server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = env.server.URL
	cfg.Storage.Backend = StorageMemory
	cfg.Timeout = 2 * time.Second
	for _, m := range mutate {
		m(&cfg)
	}

	client, err := New().
		WithConfig(cfg).
		WithBackends(env.durable, env.session).
		WithClock(env.clock).
		WithNavigator(env.nav).
		WithLogger(discardLogger()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	env.client = client
	return env
}

func (e *testEnv) storeDurable(t *testing.T, token string) {
	t.Helper()
	if err := e.durable.Set(t.Context(), credential.DefaultKey, token); err != nil {
		t.Fatalf("seed durable: %v", err)
	}
}

func (e *testEnv) tierValue(t *testing.T, b *credential.MemoryBackend) string {
	t.Helper()
	v, _, err := b.Get(t.Context(), credential.DefaultKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func okEnvelope(data any) map[string]any {
	return map[string]any{
		"success":    true,
		"message":    "ok",
		"data":       data,
		"error_code": nil,
		"errors":     nil,
		"timestamp":  nil,
	}
}

func failEnvelope(code, message string) map[string]any {
	return map[string]any{
		"success":    false,
		"message":    message,
		"data":       nil,
		"error_code": code,
		"errors":     nil,
		"timestamp":  nil,
	}
}

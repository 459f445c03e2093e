package loginflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/keynotify"
	"github.com/MrEthical07/keynotify/credential"
	"github.com/jonboulle/clockwork"
)

type harness struct {
	flow    *Flow
	client  *keynotify.Client
	clock   *clockwork.FakeClock
	session *credential.MemoryBackend
	durable *credential.MemoryBackend

	mu        sync.Mutex
	checked   []string
	loginBody map[string]any
}

func (h *harness) checkedNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.checked...)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func envelope(data any) map[string]any {
	return map[string]any{"success": true, "message": "ok", "data": data, "error_code": nil}
}

func newHarness(t *testing.T, check http.HandlerFunc, login http.HandlerFunc) *harness {
	t.Helper()
	h := &harness{
		clock:   clockwork.NewFakeClock(),
		session: credential.NewMemoryBackend(),
		durable: credential.NewMemoryBackend(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/check-status", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.checked = append(h.checked, r.URL.Query().Get("username"))
		h.mu.Unlock()
		check(w, r)
	})
	mux.HandleFunc("/api/v1/auth/login-or-register", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var parsed map[string]any
		_ = json.Unmarshal(body, &parsed)
		h.mu.Lock()
		h.loginBody = parsed
		h.mu.Unlock()
		login(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := keynotify.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Storage.Backend = keynotify.StorageMemory
	cfg.Timeout = 2 * time.Second

	client, err := keynotify.New().
		WithConfig(cfg).
		WithBackends(h.durable, h.session).
		WithClock(h.clock).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	h.client = client
	h.flow = New(client)
	t.Cleanup(h.flow.Close)
	return h
}

func registered(is bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope(map[string]any{"isRegistered": is}))
	}
}

func issueToken(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope(map[string]any{"access_token": token, "token_type": "bearer"}))
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func settled(f *Flow) func() bool {
	return func() bool {
		s := f.Snapshot()
		return !f.Pending() && !s.Checking && (s.Registered != nil || s.InviteEnabled)
	}
}

func TestDebounceIssuesOneCheckForLastInput(t *testing.T) {
	h := newHarness(t, registered(false), issueToken("tok"))

	h.flow.SetUsername("al")
	h.clock.Advance(100 * time.Millisecond)
	h.flow.SetUsername("alice")
	h.clock.Advance(299 * time.Millisecond)
	if got := h.checkedNames(); len(got) != 0 {
		t.Fatalf("expected no check before the window elapsed, got %v", got)
	}
	h.clock.Advance(time.Millisecond)

	waitFor(t, "check to settle", settled(h.flow))
	got := h.checkedNames()
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected exactly one check for alice, got %v", got)
	}
	snap := h.flow.Snapshot()
	if !snap.InviteEnabled || snap.Registered == nil || *snap.Registered {
		t.Fatalf("expected unregistered user with invite enabled, got %+v", snap)
	}
	if v := h.client.Metrics().Value(keynotify.MetricUsernameCheck); v != 1 {
		t.Fatalf("expected one username check metric, got %d", v)
	}
}

func TestRegisteredUserDisablesInvite(t *testing.T) {
	h := newHarness(t, registered(true), issueToken("tok"))

	h.flow.SetUsername("bob")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "check to settle", func() bool {
		s := h.flow.Snapshot()
		return s.Registered != nil
	})
	if snap := h.flow.Snapshot(); snap.InviteEnabled || !*snap.Registered {
		t.Fatalf("expected registered user with invite disabled, got %+v", snap)
	}
}

func TestCheckFailureFailsOpen(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad"})
	}, issueToken("tok"))

	h.flow.SetUsername("carol")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "fail-open", func() bool { return h.flow.Snapshot().InviteEnabled })

	snap := h.flow.Snapshot()
	if snap.Registered != nil || snap.Checking {
		t.Fatalf("expected unknown registration after failure, got %+v", snap)
	}
}

func TestEmptyUsernameCancelsAndDisables(t *testing.T) {
	h := newHarness(t, registered(false), issueToken("tok"))

	h.flow.SetUsername("dave")
	h.flow.SetUsername("  ")
	h.clock.Advance(time.Second)

	if h.flow.Pending() {
		t.Fatal("expected pending check to be cancelled")
	}
	time.Sleep(20 * time.Millisecond)
	if got := h.checkedNames(); len(got) != 0 {
		t.Fatalf("expected no checks, got %v", got)
	}
	if h.flow.Snapshot().InviteEnabled {
		t.Fatal("expected invite disabled for empty username")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	var slowStarted atomic.Bool
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "al" {
			slowStarted.Store(true)
			<-release
			writeJSON(w, http.StatusOK, envelope(map[string]any{"isRegistered": false}))
			return
		}
		writeJSON(w, http.StatusOK, envelope(map[string]any{"isRegistered": true}))
	}, issueToken("tok"))
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	h.flow.SetUsername("al")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "slow check to start", slowStarted.Load)

	h.flow.SetUsername("alice")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "fresh check to settle", func() bool {
		s := h.flow.Snapshot()
		return s.Registered != nil && *s.Registered
	})

	close(release)
	waitFor(t, "stale metric", func() bool {
		return h.client.Metrics().Value(keynotify.MetricUsernameCheckStale) == 1
	})

	snap := h.flow.Snapshot()
	if snap.Registered == nil || !*snap.Registered || snap.InviteEnabled {
		t.Fatalf("stale response overwrote the latest result: %+v", snap)
	}
}

func TestOnChangeObservesTransitions(t *testing.T) {
	h := newHarness(t, registered(false), issueToken("tok"))

	var mu sync.Mutex
	var seen []Snapshot
	h.flow.OnChange(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	h.flow.SetUsername("erin")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "check to settle", settled(h.flow))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 3 {
		t.Fatalf("expected typed, checking and result snapshots, got %d", len(seen))
	}
	if !seen[1].Checking {
		t.Fatalf("expected second snapshot to be checking, got %+v", seen[1])
	}
	if last := seen[len(seen)-1]; last.Checking || !last.InviteEnabled {
		t.Fatalf("unexpected final snapshot %+v", last)
	}
}

func TestSubmitStoresTokenInSelectedTier(t *testing.T) {
	h := newHarness(t, registered(false), issueToken("issued-token"))
	ctx := context.Background()

	if err := h.flow.Submit(ctx, Form{Username: "frank", Password: "pw"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !h.client.State().Authenticated() {
		t.Fatal("expected authenticated session after submit")
	}
	v, ok, err := h.session.Get(ctx, credential.DefaultKey)
	if err != nil || !ok || v != "issued-token" {
		t.Fatalf("expected token in session tier, got %q ok=%v err=%v", v, ok, err)
	}
	if _, ok, _ := h.durable.Get(ctx, credential.DefaultKey); ok {
		t.Fatal("expected durable tier empty without remember")
	}

	if err := h.flow.Submit(ctx, Form{Username: "frank", Password: "pw", Remember: true}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if v, ok, _ := h.durable.Get(ctx, credential.DefaultKey); !ok || v != "issued-token" {
		t.Fatalf("expected token in durable tier, got %q", v)
	}
	if _, ok, _ := h.session.Get(ctx, credential.DefaultKey); ok {
		t.Fatal("expected session tier cleared by the durable write")
	}
}

func (h *harness) sentInvite() (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	code, ok := h.loginBody["inviteCode"]
	return code, ok
}

func onlyRegistered(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		is := false
		for _, n := range names {
			if r.URL.Query().Get("username") == n {
				is = true
			}
		}
		writeJSON(w, http.StatusOK, envelope(map[string]any{"isRegistered": is}))
	}
}

func TestSubmitWithholdsInviteForCheckedRegisteredUser(t *testing.T) {
	h := newHarness(t, onlyRegistered("gina"), issueToken("tok"))

	h.flow.SetUsername("gina")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "check to settle", settled(h.flow))

	if err := h.flow.Submit(context.Background(), Form{Username: " gina ", Password: "pw", InviteCode: "INV"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, sent := h.sentInvite(); sent {
		t.Fatal("invite code must not be sent for a username checked as registered")
	}
}

func TestSubmitSendsInviteWhileCheckPending(t *testing.T) {
	h := newHarness(t, onlyRegistered(), issueToken("tok"))

	h.flow.SetUsername("newbie")
	if !h.flow.Pending() {
		t.Fatal("expected a scheduled check")
	}
	if err := h.flow.Submit(context.Background(), Form{Username: "newbie", Password: "pw", InviteCode: "INV-1"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if code, _ := h.sentInvite(); code != "INV-1" {
		t.Fatalf("expected invite code INV-1 before the check resolved, got %v", code)
	}
}

func TestSubmitSendsInviteForDifferentUsername(t *testing.T) {
	h := newHarness(t, onlyRegistered("gina"), issueToken("tok"))

	h.flow.SetUsername("gina")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "check to settle", settled(h.flow))

	if err := h.flow.Submit(context.Background(), Form{Username: "ginny", Password: "pw", InviteCode: "INV-2"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if code, _ := h.sentInvite(); code != "INV-2" {
		t.Fatalf("expected invite code for an unchecked username, got %v", code)
	}
}

func TestRenameDiscardsInFlightCheck(t *testing.T) {
	release := make(chan struct{})
	var slowStarted atomic.Bool
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "gina" {
			slowStarted.Store(true)
			<-release
		}
		onlyRegistered("gina")(w, r)
	}, issueToken("tok"))

	h.flow.SetUsername("gina")
	h.clock.Advance(DefaultDebounce)
	waitFor(t, "slow check to start", slowStarted.Load)

	h.flow.SetUsername("hugo")
	close(release)
	waitFor(t, "stale metric", func() bool {
		return h.client.Metrics().Value(keynotify.MetricUsernameCheckStale) == 1
	})

	snap := h.flow.Snapshot()
	if snap.Registered != nil || snap.Checking {
		t.Fatalf("answer for the previous name landed on the new one: %+v", snap)
	}
	if err := h.flow.Submit(context.Background(), Form{Username: "hugo", Password: "pw", InviteCode: "INV-3"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if code, _ := h.sentInvite(); code != "INV-3" {
		t.Fatalf("expected invite code for the new name, got %v", code)
	}
}

func TestSubmitMissingFields(t *testing.T) {
	h := newHarness(t, registered(false), issueToken("tok"))

	err := h.flow.Submit(context.Background(), Form{Username: "", Password: "pw"})
	if !errors.Is(err, keynotify.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if keynotify.KindOf(err) != keynotify.KindValidation {
		t.Fatalf("expected validation kind, got %v", keynotify.KindOf(err))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loginBody != nil {
		t.Fatal("expected no request for a locally invalid form")
	}
}

func TestSubmitSurfacesServerMessage(t *testing.T) {
	h := newHarness(t, registered(false), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    false,
			"message":    "邀請碼無效",
			"data":       nil,
			"error_code": "INVITE_INVALID",
		})
	})

	err := h.flow.Submit(context.Background(), Form{Username: "hank", Password: "pw"})
	if err == nil || err.Error() != "邀請碼無效" {
		t.Fatalf("expected server message verbatim, got %v", err)
	}
	if h.client.State().Authenticated() {
		t.Fatal("session must not authenticate on failure")
	}
}

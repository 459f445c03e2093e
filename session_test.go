package keynotify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/keynotify/credential"
)

func noServer(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	}
}

func TestSessionLoginRememberWritesDurable(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	ctx := context.Background()
	s := env.client.Session()

	if err := s.Login(ctx, "abc", true); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got := env.tierValue(t, env.durable); got != "abc" {
		t.Fatalf("expected durable=abc, got %q", got)
	}
	if env.session.Len() != 0 {
		t.Fatal("expected session tier empty")
	}
	if !s.IsAuthenticated() || s.IsLoading() {
		t.Fatalf("expected authenticated and not loading, got %+v", s.State())
	}
}

func TestSessionLoginWithoutRememberWritesSessionTier(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	ctx := context.Background()
	s := env.client.Session()

	if err := s.Login(ctx, "first", true); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := s.Login(ctx, "second", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if env.durable.Len() != 0 {
		t.Fatal("expected durable tier cleared")
	}
	if got := env.tierValue(t, env.session); got != "second" {
		t.Fatalf("expected session=second, got %q", got)
	}
	if got := s.GetToken(ctx); got != "second" {
		t.Fatalf("expected GetToken=second, got %q", got)
	}
}

func TestSessionLoginEmptyToken(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	err := env.client.Session().Login(context.Background(), "", true)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if env.client.State().Status != StatusUnknown {
		t.Fatalf("expected no transition, got %s", env.client.State().Status)
	}
}

func TestSessionLoginStorageFailureKeepsState(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	broken := &brokenBackend{}
	env.client.slot = credential.NewSlot(broken, env.session)
	env.client.session.slot = env.client.slot

	if err := env.client.Session().Login(context.Background(), "abc", true); err == nil {
		t.Fatal("expected storage error")
	}
	if env.client.State().Status != StatusUnknown {
		t.Fatalf("expected no transition on storage failure, got %s", env.client.State().Status)
	}
}

func TestSessionLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	ctx := context.Background()
	s := env.client.Session()

	if err := s.Login(ctx, "abc", true); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Logout(ctx); err != nil {
			t.Fatalf("Logout %d failed: %v", i, err)
		}
		if s.State().Status != StatusUnauthenticated {
			t.Fatalf("Logout %d: expected unauthenticated, got %s", i, s.State().Status)
		}
		if env.durable.Len() != 0 || env.session.Len() != 0 {
			t.Fatalf("Logout %d: expected both tiers empty", i)
		}
	}
}

func TestSessionRevocationForcesUnauthenticated(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, failEnvelope(CodeTokenExpired, "expired"))
	})
	ctx := context.Background()
	s := env.client.Session()

	if err := s.Login(ctx, "abc", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, _ = env.client.GetNotifySettings(ctx)

	if s.IsAuthenticated() {
		t.Fatal("expected revocation to clear authentication")
	}
	if s.GetToken(ctx) != "" {
		t.Fatal("expected token purged")
	}
	if got := env.client.MetricsSnapshot().Counters[MetricSessionRevoked]; got != 1 {
		t.Fatalf("expected one revocation applied, got %d", got)
	}
}

func TestSessionSubscribeAndUnsubscribe(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	ctx := context.Background()
	s := env.client.Session()

	var mu sync.Mutex
	var seen []Status
	unsubscribe := s.Subscribe(func(st SessionState) {
		mu.Lock()
		seen = append(seen, st.Status)
		mu.Unlock()
	})

	_ = s.Login(ctx, "abc", false)
	_ = s.Logout(ctx)
	unsubscribe()
	_ = s.Login(ctx, "abc", false)

	mu.Lock()
	defer mu.Unlock()
	want := []Status{StatusAuthenticated, StatusUnauthenticated}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
}

func TestSessionWaitBlocksUntilResolved(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	s := env.client.Session()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Wait(ctx); err == nil {
		t.Fatal("expected Wait to time out while Unknown")
	}

	done := make(chan SessionState, 1)
	go func() {
		st, _ := s.Wait(context.Background())
		done <- st
	}()
	_ = s.Logout(context.Background())

	select {
	case st := <-done:
		if st.Status != StatusUnauthenticated {
			t.Fatalf("expected unauthenticated, got %s", st.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestSessionBeginWithoutToken(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	s := env.client.Session()

	token, err := s.Begin(context.Background())
	if err != nil || token != "" {
		t.Fatalf("expected no token, got %q %v", token, err)
	}
	if s.State().Status != StatusUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", s.State().Status)
	}
}

func TestSessionBeginWithToken(t *testing.T) {
	env := newTestEnv(t, noServer(t))
	env.storeDurable(t, "stored")
	s := env.client.Session()

	token, err := s.Begin(context.Background())
	if err != nil || token != "stored" {
		t.Fatalf("expected stored token, got %q %v", token, err)
	}
	if s.State().Status != StatusVerifying || !s.IsLoading() {
		t.Fatalf("expected verifying, got %s", s.State().Status)
	}

	// A second Begin does not move the session.
	if _, err := s.Begin(context.Background()); err != nil {
		t.Fatalf("second Begin failed: %v", err)
	}
	if s.State().Status != StatusVerifying {
		t.Fatalf("expected still verifying, got %s", s.State().Status)
	}
}

type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (brokenBackend) Set(context.Context, string, string) error {
	return credential.ErrBackendUnavailable
}
func (brokenBackend) Delete(context.Context, string) error { return nil }

package keynotify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrEthical07/keynotify/credential"
)

// Status is the position of a Session in its lifecycle.
type Status uint8

const (
	// StatusUnknown is the initial state, before Begin.
	StatusUnknown Status = iota
	// StatusVerifying means a stored token is being checked against the server.
	StatusVerifying
	// StatusAuthenticated means the client holds a usable token.
	StatusAuthenticated
	// StatusUnauthenticated means the client holds no token.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusVerifying:
		return "verifying"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// SessionState is a point-in-time copy of the session.
type SessionState struct {
	Status Status
	// Degraded is set when the session was kept authenticated because the
	// startup check failed for a reason other than a rejected token.
	Degraded bool
}

// Authenticated reports whether the session holds a usable token.
func (s SessionState) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Loading reports whether an access decision must wait.
func (s SessionState) Loading() bool {
	return s.Status == StatusUnknown || s.Status == StatusVerifying
}

type sessionSub struct {
	id uint64
	fn func(SessionState)
}

// Session is the single authentication state of a Client.
//
// Transitions are login, logout, the startup verification outcomes and the
// revocation signal published by the transport. Session is safe for
// concurrent use.
type Session struct {
	mu      sync.Mutex
	state   SessionState
	changed chan struct{}
	subs    []sessionSub
	nextSub uint64

	slot    *credential.Slot
	logger  *slog.Logger
	metrics *Metrics
	emit    func(context.Context, AuditEvent)
}

func newSession(slot *credential.Slot, logger *slog.Logger, metrics *Metrics, emit func(context.Context, AuditEvent)) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(context.Context, AuditEvent) {}
	}
	return &Session{
		changed: make(chan struct{}),
		slot:    slot,
		logger:  logger,
		metrics: metrics,
		emit:    emit,
	}
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthenticated reports whether the session holds a usable token.
func (s *Session) IsAuthenticated() bool {
	return s.State().Authenticated()
}

// IsLoading reports whether the startup check has not finished.
func (s *Session) IsLoading() bool {
	return s.State().Loading()
}

// GetToken returns the stored token, durable tier first. It returns "" when
// no token is stored or the backend cannot be read.
func (s *Session) GetToken(ctx context.Context) string {
	return s.slot.Token(ctx)
}

// Subscribe registers fn to run after every state change and returns a
// function that removes it. fn runs on the goroutine that made the change.
func (s *Session) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, sessionSub{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Wait blocks until the session is no longer loading or ctx is done.
func (s *Session) Wait(ctx context.Context) (SessionState, error) {
	for {
		s.mu.Lock()
		state := s.state
		ch := s.changed
		s.mu.Unlock()

		if !state.Loading() {
			return state, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Begin moves an Unknown session to Verifying when a token is stored, or to
// Unauthenticated when none is. It returns the stored token. Calls after the
// first return the stored token without a transition.
func (s *Session) Begin(ctx context.Context) (string, error) {
	token, tier, err := s.slot.Read(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read stored credentials", "error", err)
		token = ""
	}

	s.mu.Lock()
	if s.state.Status != StatusUnknown {
		s.mu.Unlock()
		return token, err
	}
	next := SessionState{Status: StatusUnauthenticated}
	if token != "" {
		next.Status = StatusVerifying
	}
	prev, subs := s.setLocked(next)
	s.mu.Unlock()

	s.notify(ctx, prev, next, subs, AuditEvent{
		Type: auditEventVerifyStart,
		Tier: tier.String(),
	})
	return token, err
}

// Login stores token in the durable tier when remember is set, else in the
// session tier, and marks the session authenticated. No server call is made.
// If the token cannot be stored the state is left unchanged.
func (s *Session) Login(ctx context.Context, token string, remember bool) error {
	if token == "" {
		return validationError(ErrEmptyToken)
	}

	tier := credential.TierSession
	if remember {
		tier = credential.TierDurable
	}
	if err := s.slot.Write(ctx, tier, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to store credentials", "tier", tier.String(), "error", err)
		s.emit(ctx, AuditEvent{Type: auditEventLoginFailure, Tier: tier.String(), Error: err.Error()})
		return err
	}

	s.mu.Lock()
	next := SessionState{Status: StatusAuthenticated}
	prev, subs := s.setLocked(next)
	s.mu.Unlock()

	s.metrics.Inc(MetricLogin)
	s.notify(ctx, prev, next, subs, AuditEvent{
		Type:    auditEventLogin,
		Tier:    tier.String(),
		Success: true,
	})
	return nil
}

// Logout clears both tiers and marks the session unauthenticated. The
// transition happens even when a backend fails to clear; that error is
// returned. Logout is idempotent.
func (s *Session) Logout(ctx context.Context) error {
	err := s.slot.Clear(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clear stored credentials", "error", err)
	}

	s.mu.Lock()
	next := SessionState{Status: StatusUnauthenticated}
	prev, subs := s.setLocked(next)
	s.mu.Unlock()

	s.metrics.Inc(MetricLogout)
	s.notify(ctx, prev, next, subs, AuditEvent{
		Type:    auditEventLogout,
		Success: err == nil,
		Error:   errString(err),
	})
	return err
}

// revoked applies a transport revocation. Storage was already cleared.
func (s *Session) revoked(r Revocation) {
	ctx := context.Background()

	s.mu.Lock()
	next := SessionState{Status: StatusUnauthenticated}
	prev, subs := s.setLocked(next)
	s.mu.Unlock()

	s.metrics.Inc(MetricSessionRevoked)
	s.logger.Info("session revoked", "path", r.Path, "code", r.Code, "request_id", r.RequestID)
	s.notify(ctx, prev, next, subs, AuditEvent{
		Type:      auditEventRevoked,
		RequestID: r.RequestID,
		Success:   true,
		Metadata:  map[string]string{"path": r.Path, "code": r.Code},
	})
}

// verified completes a Verifying session as authenticated.
func (s *Session) verified(ctx context.Context) bool {
	return s.finishVerify(ctx, SessionState{Status: StatusAuthenticated}, auditEventVerifySuccess, nil)
}

// rejected purges the stored token and completes a Verifying session as
// unauthenticated.
func (s *Session) rejected(ctx context.Context, cause error) {
	if err := s.slot.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "failed to purge rejected token", "error", err)
	}
	s.finishVerify(ctx, SessionState{Status: StatusUnauthenticated}, auditEventVerifyRejected, cause)
}

// degraded keeps a Verifying session authenticated after a check that failed
// for a reason other than a rejected token. When the token is gone by then
// (a 401 with another code already purged it) the session stays
// unauthenticated. It reports whether the session ended authenticated.
func (s *Session) degraded(ctx context.Context, cause error) bool {
	if s.slot.Token(context.WithoutCancel(ctx)) == "" {
		s.finishVerify(ctx, SessionState{Status: StatusUnauthenticated}, auditEventVerifyRejected, cause)
		return false
	}
	return s.finishVerify(ctx, SessionState{Status: StatusAuthenticated, Degraded: true}, auditEventVerifyDegraded, cause)
}

// finishVerify applies next only if the session is still Verifying. Login,
// logout or a revocation during the check win over the check's outcome.
func (s *Session) finishVerify(ctx context.Context, next SessionState, eventType string, cause error) bool {
	s.mu.Lock()
	if s.state.Status != StatusVerifying {
		final := s.state
		s.mu.Unlock()
		return final.Authenticated()
	}
	prev, subs := s.setLocked(next)
	s.mu.Unlock()

	s.notify(ctx, prev, next, subs, AuditEvent{
		Type:    eventType,
		Success: cause == nil,
		Error:   auditErr(cause),
	})
	return next.Authenticated()
}

func (s *Session) setLocked(next SessionState) (SessionState, []sessionSub) {
	prev := s.state
	s.state = next
	close(s.changed)
	s.changed = make(chan struct{})

	subs := make([]sessionSub, len(s.subs))
	copy(subs, s.subs)
	return prev, subs
}

func (s *Session) notify(ctx context.Context, prev, next SessionState, subs []sessionSub, event AuditEvent) {
	if prev.Status != next.Status {
		s.logger.DebugContext(ctx, "session state changed", "from", prev.Status.String(), "to", next.Status.String())
	}
	event.From = prev.Status.String()
	event.To = next.Status.String()
	s.emit(ctx, event)

	for _, sub := range subs {
		sub.fn(next)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

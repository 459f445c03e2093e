package keynotify

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/keynotify/jwt"
)

// VerifyOutcome is how the startup check ended.
type VerifyOutcome uint8

const (
	// VerifyNoToken means nothing was stored; no request was made.
	VerifyNoToken VerifyOutcome = iota
	// VerifyConfirmed means the server accepted the stored token.
	VerifyConfirmed
	// VerifyRejected means the token was purged and the session is unauthenticated.
	VerifyRejected
	// VerifyDegraded means the check failed transiently and the token was kept.
	VerifyDegraded
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifyConfirmed:
		return "confirmed"
	case VerifyRejected:
		return "rejected"
	case VerifyDegraded:
		return "degraded"
	default:
		return "no_token"
	}
}

// VerifyResult is returned by every Verifier.Run call.
type VerifyResult struct {
	Outcome VerifyOutcome
	// User is the whoami record when Outcome is VerifyConfirmed.
	User *User
	// Err is the whoami failure for VerifyRejected and VerifyDegraded.
	Err error
}

// Verifier reconciles a stored token with the server once per Client.
type Verifier struct {
	client *Client
	once   sync.Once
	result VerifyResult
}

func newVerifier(c *Client) *Verifier {
	return &Verifier{client: c}
}

// Run performs the startup check. Only the first call does any work; every
// call, concurrent or later, returns the first call's result.
func (v *Verifier) Run(ctx context.Context) VerifyResult {
	v.once.Do(func() {
		v.result = v.run(ctx)
	})
	return v.result
}

func (v *Verifier) run(ctx context.Context) VerifyResult {
	c := v.client
	s := c.session

	token, _ := s.Begin(ctx)
	if token == "" {
		c.logger.DebugContext(ctx, "no stored token, starting unauthenticated")
		c.emitAudit(ctx, AuditEvent{Type: auditEventVerifyNoToken, Success: true, To: StatusUnauthenticated.String()})
		return VerifyResult{Outcome: VerifyNoToken}
	}

	if claims, err := jwt.Inspect(token); err == nil && claims.Expired(c.clock.Now()) {
		c.logger.DebugContext(ctx, "stored token is past its expiry, asking the server anyway",
			"expired_at", claims.ExpiresAt,
			"subject", claims.Subject,
		)
	}

	user, err := c.Me(ctx)
	if err == nil {
		c.setUser(user)
		s.verified(ctx)
		c.metrics.Inc(MetricVerifySuccess)
		c.logger.InfoContext(ctx, "stored token verified", "username", user.Username)
		return VerifyResult{Outcome: VerifyConfirmed, User: user}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.TokenRejected() {
		s.rejected(ctx, err)
		c.metrics.Inc(MetricVerifyRejected)
		c.logger.InfoContext(ctx, "stored token rejected", "code", apiErr.Code)
		return VerifyResult{Outcome: VerifyRejected, Err: err}
	}

	if !s.degraded(ctx, err) {
		c.metrics.Inc(MetricVerifyRejected)
		return VerifyResult{Outcome: VerifyRejected, Err: err}
	}
	c.metrics.Inc(MetricVerifyDegraded)
	c.logger.WarnContext(ctx, "token check failed, keeping session",
		"kind", KindOf(err).String(),
		"error", err,
	)
	return VerifyResult{Outcome: VerifyDegraded, Err: err}
}

package keynotify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/MrEthical07/keynotify/credential"
	"github.com/MrEthical07/keynotify/internal/audit"
	"github.com/jonboulle/clockwork"
)

// Client defines a public type used by keynotify APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	slot       *credential.Slot
	bus        *RevocationBus
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *Metrics
	audit      *audit.Dispatcher
	session    *Session
	verifier   *Verifier

	navMu sync.RWMutex
	nav   Navigator

	userMu sync.RWMutex
	user   *User

	closers     []func() error
	unsubscribe func()
	closeOnce   sync.Once
	closeErr    error
}

// Close stops the audit dispatcher and releases owned connections.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.audit.Close()
		var errs []error
		for _, fn := range c.closers {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// Config returns a copy of the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// Session returns the client's session store.
func (c *Client) Session() *Session {
	return c.session
}

// State returns the current session state. It makes *Client a StateSource.
func (c *Client) State() SessionState {
	if c == nil || c.session == nil {
		return SessionState{}
	}
	return c.session.State()
}

// Verify runs the startup token check. See Verifier.Run.
func (c *Client) Verify(ctx context.Context) VerifyResult {
	return c.verifier.Run(ctx)
}

// Revocations returns the bus the transport publishes 401s on.
func (c *Client) Revocations() *RevocationBus {
	return c.bus
}

// Slot returns the credential slot.
func (c *Client) Slot() *credential.Slot {
	return c.slot
}

// Logger returns the logger the client writes to.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Clock returns the clock used for retry waits and timestamps.
func (c *Client) Clock() clockwork.Clock {
	return c.clock
}

// SetNavigator replaces the navigator moved to LoginPath on a 401.
func (c *Client) SetNavigator(nav Navigator) {
	c.navMu.Lock()
	defer c.navMu.Unlock()
	c.nav = nav
}

func (c *Client) navigator() Navigator {
	c.navMu.RLock()
	defer c.navMu.RUnlock()
	return c.nav
}

// User returns the record cached by a confirmed verification, or nil.
func (c *Client) User() *User {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) setUser(u *User) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.user = u
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// Metrics returns the live counters. Packages layered on the client record into it.
func (c *Client) Metrics() *Metrics {
	if c == nil {
		return nil
	}
	return c.metrics
}

// MetricsSnapshot returns a copy of the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

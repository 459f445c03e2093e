package loginflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/keynotify"
	"github.com/MrEthical07/keynotify/internal/debounce"
)

// DefaultDebounce is used when the client config leaves LoginFlow.Debounce at zero.
const DefaultDebounce = 300 * time.Millisecond

// Form is one login-or-register submission.
type Form struct {
	Username   string
	Password   string
	InviteCode string
	Remember   bool
}

// Snapshot is a point-in-time copy of the form state.
type Snapshot struct {
	Username      string
	InviteEnabled bool
	Checking      bool
	// Registered is nil until a check for the current username succeeds.
	Registered *bool
}

// Flow is the username availability state machine. It is safe for concurrent use.
type Flow struct {
	client   *keynotify.Client
	logger   *slog.Logger
	metrics  *keynotify.Metrics
	debounce *debounce.Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	username   string
	seq        uint64
	checking   bool
	registered *bool
	checkedFor string // trimmed username registered belongs to
	invite     bool
	observers  []func(Snapshot)
}

// New returns a flow bound to client. Call Close to stop pending checks.
func New(client *keynotify.Client) *Flow {
	wait := client.Config().LoginFlow.Debounce
	if wait <= 0 {
		wait = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Flow{
		client:   client,
		logger:   client.Logger().With("component", "loginflow"),
		metrics:  client.Metrics(),
		debounce: debounce.New(client.Clock(), wait),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnChange registers fn to run after every state change.
func (f *Flow) OnChange(fn func(Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, fn)
}

// Snapshot returns the current form state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// SetUsername records the username field and schedules a check once input
// settles. Any check still in flight is discarded when it answers. An empty
// username cancels the pending check and disables the invite code field.
func (f *Flow) SetUsername(name string) {
	f.mu.Lock()
	f.username = name
	f.seq++
	f.checking = false
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		f.debounce.Cancel()
		f.registered = nil
		f.checkedFor = ""
		f.invite = false
		snap, obs := f.snapshotLocked(), f.observersLocked()
		f.mu.Unlock()
		emit(obs, snap)
		return
	}
	if trimmed != f.checkedFor {
		f.registered = nil
		f.checkedFor = ""
	}
	snap, obs := f.snapshotLocked(), f.observersLocked()
	f.mu.Unlock()

	f.debounce.Trigger(func() { f.check(name) })
	emit(obs, snap)
}

// Pending reports whether a check is scheduled but not yet issued.
func (f *Flow) Pending() bool {
	return f.debounce.Pending()
}

func (f *Flow) check(name string) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.checking = true
	snap, obs := f.snapshotLocked(), f.observersLocked()
	f.mu.Unlock()
	emit(obs, snap)

	f.metrics.Inc(keynotify.MetricUsernameCheck)
	status, err := f.client.CheckUserStatus(f.ctx, name)

	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		f.metrics.Inc(keynotify.MetricUsernameCheckStale)
		f.logger.Debug("discarding stale username check", "seq", seq)
		return
	}
	f.checking = false
	if err != nil {
		f.registered = nil
		f.checkedFor = ""
		f.invite = true
		f.logger.Warn("username check failed, enabling invite code", "error", err)
	} else {
		registered := status.IsRegistered
		f.registered = &registered
		f.checkedFor = strings.TrimSpace(name)
		f.invite = !registered
	}
	snap, obs = f.snapshotLocked(), f.observersLocked()
	f.mu.Unlock()
	emit(obs, snap)
}

// Submit posts the form. A typed invite code is sent unless a completed check
// for this exact username found it registered, so an unresolved or failed
// check never costs a new user their invite. On success the token is stored
// in the tier Remember selects and the session becomes authenticated. A server
// rejection is returned with the server message unchanged.
func (f *Flow) Submit(ctx context.Context, form Form) error {
	req := keynotify.LoginOrRegisterRequest{
		Username: strings.TrimSpace(form.Username),
		Password: form.Password,
	}

	f.mu.Lock()
	known := f.registered != nil && *f.registered && f.checkedFor == req.Username
	f.mu.Unlock()
	if code := strings.TrimSpace(form.InviteCode); code != "" && !known {
		req.InviteCode = &code
	}

	pair, err := f.client.LoginOrRegister(ctx, req)
	if err != nil {
		return err
	}
	return f.client.Session().Login(ctx, pair.AccessToken, form.Remember)
}

// Close cancels any scheduled or in-flight check.
func (f *Flow) Close() {
	f.debounce.Cancel()
	f.cancel()
}

func (f *Flow) snapshotLocked() Snapshot {
	s := Snapshot{
		Username:      f.username,
		InviteEnabled: f.invite,
		Checking:      f.checking,
	}
	if f.registered != nil {
		r := *f.registered
		s.Registered = &r
	}
	return s
}

func (f *Flow) observersLocked() []func(Snapshot) {
	if len(f.observers) == 0 {
		return nil
	}
	out := make([]func(Snapshot), len(f.observers))
	copy(out, f.observers)
	return out
}

func emit(observers []func(Snapshot), s Snapshot) {
	for _, fn := range observers {
		fn(s)
	}
}

package keynotify

import (
	"sync"
	"time"
)

// LoginPath is the view a client is sent to when its session is revoked.
const LoginPath = "/login"

// HomePath is the view a client lands on after a successful login.
const HomePath = "/home"

// Revocation describes a 401 observed by the transport.
type Revocation struct {
	Status    int
	Code      string
	Path      string
	RequestID string
	At        time.Time
}

type revocationSub struct {
	id uint64
	fn func(Revocation)
}

// RevocationBus delivers session-revoked signals from the transport to its
// subscribers, synchronously and in subscription order.
type RevocationBus struct {
	mu   sync.RWMutex
	next uint64
	subs []revocationSub
}

func NewRevocationBus() *RevocationBus {
	return &RevocationBus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *RevocationBus) Subscribe(fn func(Revocation)) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, revocationSub{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish calls every subscriber with r.
func (b *RevocationBus) Publish(r Revocation) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]revocationSub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(r)
	}
}

// Navigator is the view the client is currently showing. The transport sends
// it to LoginPath on a 401.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// ViewTracker is a Navigator that records the current view and how it got there.
type ViewTracker struct {
	mu        sync.Mutex
	current   string
	redirects int
	onChange  func(from, to string)
}

// NewViewTracker starts at path.
func NewViewTracker(path string) *ViewTracker {
	return &ViewTracker{current: path}
}

// OnChange registers a callback run after each navigation.
func (v *ViewTracker) OnChange(fn func(from, to string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

func (v *ViewTracker) CurrentPath() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *ViewTracker) Navigate(path string) {
	v.mu.Lock()
	from := v.current
	v.current = path
	v.redirects++
	fn := v.onChange
	v.mu.Unlock()

	if fn != nil {
		fn(from, path)
	}
}

// Navigations returns how many times Navigate was called.
func (v *ViewTracker) Navigations() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redirects
}

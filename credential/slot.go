package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultKey is the key under which the bearer token is stored in either tier.
const DefaultKey = "authToken"

// Tier names one of the two persistence locations of a [Slot].
type Tier uint8

const (
	// TierNone means no tier holds a token.
	TierNone Tier = iota
	// TierDurable survives process restarts.
	TierDurable
	// TierSession lives only as long as the client process.
	TierSession
)

func (t Tier) String() string {
	switch t {
	case TierDurable:
		return "durable"
	case TierSession:
		return "session"
	default:
		return "none"
	}
}

// ErrUnknownTier is returned when a write names neither tier.
var ErrUnknownTier = errors.New("unknown credential tier")

// Slot holds at most one token across a durable and a session-scoped backend.
//
//	Invariant: after any Slot method returns, at most one tier holds the key.
type Slot struct {
	mu      sync.Mutex
	key     string
	durable Backend
	session Backend
}

// SlotOption configures a [Slot].
type SlotOption func(*Slot)

// WithKey overrides [DefaultKey].
func WithKey(key string) SlotOption {
	return func(s *Slot) {
		if key != "" {
			s.key = key
		}
	}
}

// NewSlot creates a slot over the two tiers. Nil backends are replaced with
// in-memory ones.
func NewSlot(durable, session Backend, opts ...SlotOption) *Slot {
	if durable == nil {
		durable = NewMemoryBackend()
	}
	if session == nil {
		session = NewMemoryBackend()
	}
	s := &Slot{
		key:     DefaultKey,
		durable: durable,
		session: session,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key used in both tiers.
func (s *Slot) Key() string {
	return s.key
}

func (s *Slot) backend(tier Tier) (Backend, Backend, error) {
	switch tier {
	case TierDurable:
		return s.durable, s.session, nil
	case TierSession:
		return s.session, s.durable, nil
	default:
		return nil, nil, ErrUnknownTier
	}
}

// Write stores token in tier and clears the other tier. The other tier is
// cleared first so that no reader can observe both tiers populated.
func (s *Slot) Write(ctx context.Context, tier Tier, token string) error {
	target, other, err := s.backend(tier)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := other.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear %s tier: %w", otherTier(tier), err)
	}
	if err := target.Set(ctx, s.key, token); err != nil {
		return fmt.Errorf("write %s tier: %w", tier, err)
	}
	return nil
}

// Read returns the stored token and the tier it came from. The durable tier is
// consulted first. An empty value counts as absent.
func (s *Slot) Read(ctx context.Context) (string, Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.durable.Get(ctx, s.key)
	if err != nil {
		return "", TierNone, fmt.Errorf("read durable tier: %w", err)
	}
	if ok && v != "" {
		return v, TierDurable, nil
	}

	v, ok, err = s.session.Get(ctx, s.key)
	if err != nil {
		return "", TierNone, fmt.Errorf("read session tier: %w", err)
	}
	if ok && v != "" {
		return v, TierSession, nil
	}
	return "", TierNone, nil
}

// Token is Read without the tier. Backend errors read as "no token".
func (s *Slot) Token(ctx context.Context) string {
	v, _, err := s.Read(ctx)
	if err != nil {
		return ""
	}
	return v
}

// Clear removes the token from both tiers. Both deletes are attempted even if
// the first fails.
func (s *Slot) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.durable.Delete(ctx, s.key); err != nil {
		errs = append(errs, fmt.Errorf("clear durable tier: %w", err))
	}
	if err := s.session.Delete(ctx, s.key); err != nil {
		errs = append(errs, fmt.Errorf("clear session tier: %w", err))
	}
	return errors.Join(errs...)
}

// Reseal asks each tier that implements [Resealer] to rewrite the stored
// token under its current sealing parameters. It reports whether any tier
// was rewritten.
func (s *Slot) Reseal(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rewritten bool
		errs      []error
	)
	for _, tier := range []Tier{TierDurable, TierSession} {
		target, _, err := s.backend(tier)
		if err != nil {
			return false, err
		}
		r, ok := target.(Resealer)
		if !ok {
			continue
		}
		done, err := r.Reseal(ctx, s.key)
		if err != nil {
			errs = append(errs, fmt.Errorf("reseal %s tier: %w", tier, err))
			continue
		}
		rewritten = rewritten || done
	}
	return rewritten, errors.Join(errs...)
}

func otherTier(t Tier) Tier {
	if t == TierDurable {
		return TierSession
	}
	return TierDurable
}

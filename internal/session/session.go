// ABOUTME: Session store holding the current identity with auth-state fan-out
// ABOUTME: Last-write-wins notifications; sign-out hook fires once per transition

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/parlor-chat/parlor/internal/store"
)

// authState tracks which side of the authenticated/unauthenticated line
// the store is on. The zero value means no notification has arrived yet.
type authState int

const (
	stateUnknown authState = iota
	stateAuthenticated
	stateUnauthenticated
)

// Store tracks the current authenticated identity. Every Set replaces the
// stored identity wholesale (last-write-wins over any sequence of
// notifications) and fans the new value out to subscribers. When a
// notification lands the store in the unauthenticated state, the sign-out
// hook fires exactly once per transition into that state; repeated nil
// notifications do not re-fire it.
type Store struct {
	mu      sync.RWMutex
	current *store.User
	state   authState
	subs    map[string]chan *store.User

	// onSignedOut is the navigation hook: the consuming surface sends
	// the client back to the login entry point.
	onSignedOut func()

	logger *slog.Logger
}

// NewStore creates a session store. onSignedOut may be nil.
func NewStore(onSignedOut func(), logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		subs:        make(map[string]chan *store.User),
		onSignedOut: onSignedOut,
		logger:      logger.With("component", "session"),
	}
}

// Current returns the stored identity, or nil when unauthenticated.
func (s *Store) Current() *store.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set replaces the stored identity. A nil user means signed out.
func (s *Store) Set(user *store.User) {
	s.mu.Lock()

	s.current = user
	prev := s.state
	if user == nil {
		s.state = stateUnauthenticated
	} else {
		s.state = stateAuthenticated
	}
	fireSignOut := s.state == stateUnauthenticated && prev != stateUnauthenticated

	// Sends are non-blocking, so they happen under the lock; this also
	// means a concurrent unsubscribe cannot close a channel mid-send.
	for _, ch := range s.subs {
		select {
		case ch <- user:
		default:
			// Subscriber not draining: replace the stale buffered
			// value so the latest identity wins.
			drainOne(ch)
			select {
			case ch <- user:
			default:
			}
		}
	}
	s.mu.Unlock()

	if fireSignOut {
		s.logger.Debug("signed out, navigating to login")
		if s.onSignedOut != nil {
			s.onSignedOut()
		}
	}
}

// drainOne discards at most one buffered value so a fresher one can be
// queued in its place.
func drainOne(ch chan *store.User) {
	select {
	case <-ch:
	default:
	}
}

// Subscribe registers for auth-state notifications. Each notification
// carries the new identity (nil for signed out). The subscription is
// removed when ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context) (<-chan *store.User, func()) {
	subID := uuid.New().String()
	ch := make(chan *store.User, 1)

	s.mu.Lock()
	s.subs[subID] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[subID]; ok {
			delete(s.subs, subID)
			close(existing)
		}
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

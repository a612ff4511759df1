package memory

import (
	"sync"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/internal/dispatch"
	"github.com/google/uuid"
)

// Persister mirrors every accepted change to durable storage. Persist runs
// before the in-memory pair changes; a failure aborts the Save.
type Persister interface {
	Persist(token string, identity authsync.Identity) error
	Erase() error
}

// Store is a thread-safe in-memory implementation of
// authsync.CredentialStore. Listeners are called in registration order and
// see changes in the order they were applied. A listener may call Save or
// Clear; that change is delivered after the current one finishes. When
// another goroutine is already delivering, Save and Clear return once the
// change is committed and leave delivery to that goroutine.
type Store struct {
	mu        sync.RWMutex
	token     string
	identity  authsync.Identity
	listeners []listener

	// serializes persist + mutation; changes are queued before it is
	// released so delivery follows commit order
	emitMu  sync.Mutex
	changes dispatch.Queue[change]

	persister Persister
	logger    authsync.Logger
}

type listener struct {
	id uuid.UUID
	fn authsync.ChangeListener
}

type change struct {
	token    string
	identity authsync.Identity
}

var _ authsync.CredentialStore = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithPersister mirrors changes through p
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithLogger sets the logger used to report persistence errors on Clear
func WithLogger(logger authsync.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPair seeds the store without notifying anyone. Incomplete pairs are
// ignored.
func WithPair(token string, identity authsync.Identity) Option {
	return func(s *Store) {
		if token == "" || identity == nil {
			return
		}
		s.token = token
		s.identity = identity
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: authsync.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Token returns the current token, "" when absent
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns the current identity, nil when absent
func (s *Store) Identity() authsync.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Save replaces the pair and notifies listeners.
func (s *Store) Save(token string, identity authsync.Identity) error {
	if token == "" || identity == nil {
		return authsync.ErrIncompletePair
	}

	s.emitMu.Lock()
	if s.persister != nil {
		if err := s.persister.Persist(token, identity); err != nil {
			s.emitMu.Unlock()
			return err
		}
	}

	s.mu.Lock()
	s.token = token
	s.identity = identity
	s.mu.Unlock()

	s.changes.Push(change{token: token, identity: identity})
	s.emitMu.Unlock()

	s.changes.Drain(s.dispatch)
	return nil
}

// Clear resets the pair to absent and notifies listeners.
// Persistence errors are logged; the in-memory pair is always cleared.
func (s *Store) Clear() {
	s.emitMu.Lock()
	if s.persister != nil {
		if err := s.persister.Erase(); err != nil {
			s.logger.Error("credential store erase error: %v", err)
		}
	}

	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	s.changes.Push(change{})
	s.emitMu.Unlock()

	s.changes.Drain(s.dispatch)
}

// OnChange registers fn. The returned function removes it and may be
// called from within a listener.
func (s *Store) OnChange(fn authsync.ChangeListener) authsync.UnsubscribeFunc {
	if fn == nil {
		return func() {}
	}

	id := uuid.New()

	s.mu.Lock()
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Count returns the number of registered listeners.
// Useful for observability and testing.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *Store) dispatch(c change) {
	s.mu.RLock()
	listeners := make([]listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.fn(c.token, c.identity)
	}
}

// Package session owns the current authenticated identity and publishes it
// to the rest of the client.
package session

import (
	"log/slog"
	"sync"

	"github.com/Novip1906/taskmaster/internal/identity"
	"github.com/Novip1906/taskmaster/internal/models"
)

type State int

const (
	Pending State = iota
	SignedOut
	SignedIn
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case SignedOut:
		return "signed_out"
	case SignedIn:
		return "signed_in"
	}
	return "unknown"
}

// Value is the observable session state. Identity is set only when State is
// SignedIn.
type Value struct {
	State    State
	Identity *models.Identity
}

type Navigation int

const (
	NavigateMain Navigation = iota + 1
	NavigateLogin
)

func (n Navigation) String() string {
	switch n {
	case NavigateMain:
		return "main"
	case NavigateLogin:
		return "login"
	}
	return "none"
}

type Option func(*Store)

// WithNavigator installs the callback that receives navigation signals.
func WithNavigator(fn func(Navigation)) Option {
	return func(s *Store) {
		s.navigate = fn
	}
}

type Store struct {
	provider identity.Provider
	navigate func(Navigation)
	log      *slog.Logger

	mu          sync.Mutex
	value       Value
	listeners   map[int]func(Value)
	nextID      int
	unsubscribe func()
	started     bool
	closed      bool

	// dispatchMu serializes listener delivery. Listeners run outside mu.
	dispatchMu sync.Mutex
}

func New(provider identity.Provider, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		provider:  provider,
		log:       log.With(slog.String("component", "session")),
		value:     Value{State: Pending},
		listeners: make(map[int]func(Value)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers with the provider's auth state notifications. Calling it
// more than once, or after Close, does nothing.
func (s *Store) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	unsubscribe := s.provider.OnAuthStateChange(s.handle)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

func (s *Store) Value() Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Identity returns the signed-in identity or nil.
func (s *Store) Identity() *models.Identity {
	return s.Value().Identity
}

// Subscribe calls fn with the current value and then with every change.
// Calls are serialized. fn must not call Subscribe or Close.
func (s *Store) Subscribe(fn func(Value)) (unsubscribe func()) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.value
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) handle(user *models.Identity) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.value
	next := Value{State: SignedOut}
	if user != nil {
		u := *user
		next = Value{State: SignedIn, Identity: &u}
	}
	s.value = next
	listeners := make([]func(Value), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.log.Debug("auth state changed", slog.String("from", prev.State.String()), slog.String("to", next.State.String()))

	if nav := navigation(prev.State, next.State); nav != 0 && s.navigate != nil {
		s.navigate(nav)
	}
	for _, fn := range listeners {
		fn(next)
	}
}

func navigation(prev, next State) Navigation {
	switch {
	case next == SignedIn && prev != SignedIn:
		return NavigateMain
	case next == SignedOut && prev != SignedOut:
		return NavigateLogin
	}
	return 0
}

// Close releases the provider registration. It is safe to call repeatedly.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.listeners = make(map[int]func(Value))
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

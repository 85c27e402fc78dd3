package session

import (
	"sync"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Factory creates a session.
type Factory func() (Session, error)

// Shared is a lazily created session shared by every adapter that uses it.
// The session is created on the first successful Get and lives until Reset.
// A failed creation is not remembered; the next Get tries again.
type Shared struct {
	mu      sync.Mutex
	factory Factory
	session Session
}

// NewShared returns a Shared that builds its session with factory.
func NewShared(factory Factory) *Shared {
	return &Shared{factory: factory}
}

// SetFactory replaces the factory. A session that already exists is kept until Reset.
func (s *Shared) SetFactory(factory Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory = factory
}

// Get returns the shared session, creating it if there is none yet.
func (s *Shared) Get() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.session, nil
	}
	if s.factory == nil {
		return nil, wlerr.ErrNoSession
	}

	created, err := s.factory()
	if err != nil {
		return nil, err
	}
	s.session = created
	return created, nil
}

// Reset closes the current session, if any, and arranges for the next Get to create a new one.
func (s *Shared) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

package replica

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"go-ripple/debug"
	"go-ripple/save"
)

// ErrNotOwner is returned when writing a profile that isn't the local one
var ErrNotOwner = errors.New("replica: profile belongs to another peer")

// Gateway is the persistence contract the app depends on. Get and GetAll
// return raw documents: other peers wrote them, so callers validate.
type Gateway interface {
	Get(id string) ([]byte, bool, error)
	GetAll() ([][]byte, error)
	Set(p save.Profile) error
	OnChange(fn func(id string))
	PublicKey() string
}

// Backend stores raw profile documents by id
type Backend interface {
	Load(id string) ([]byte, bool, error)
	LoadAll() ([][]byte, error)
	Store(id string, raw []byte) error
}

// Store is the Gateway over a Backend. Local writes are restricted to the
// identity's own profile; peer documents arrive through Put.
type Store struct {
	backend  Backend
	identity Identity
	log      log.FieldLogger

	mu       sync.Mutex
	handlers []func(id string)
	publish  func(raw []byte) // outbound hook for the relay, may be nil
}

// NewStore creates a gateway for identity over backend
func NewStore(backend Backend, identity Identity) *Store {
	return &Store{
		backend:  backend,
		identity: identity,
		log:      debug.Fields("replica"),
	}
}

// PublicKey returns the local identity's key
func (s *Store) PublicKey() string {
	return s.identity.PublicKey()
}

// Get returns a raw profile document
func (s *Store) Get(id string) ([]byte, bool, error) {
	return s.backend.Load(id)
}

// GetAll returns every raw profile document
func (s *Store) GetAll() ([][]byte, error) {
	return s.backend.LoadAll()
}

// Set signs the local profile, writes it and publishes it
func (s *Store) Set(p save.Profile) error {
	if p.ID != s.PublicKey() {
		return fmt.Errorf("set %q: %w", p.ID, ErrNotOwner)
	}
	p, err := s.identity.Sign(p)
	if err != nil {
		return err
	}
	raw, err := save.Encode(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.backend.Store(p.ID, raw); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}

	s.mu.Lock()
	publish := s.publish
	s.mu.Unlock()
	if publish != nil {
		publish(raw)
	}

	s.notify(p.ID)
	return nil
}

// Put stores a document received from a peer. It must be valid and signed
// by the key its id names. Copies of the local profile are dropped.
func (s *Store) Put(raw []byte) error {
	p, err := save.Verify(raw)
	if err != nil {
		return err
	}
	if p.ID == s.PublicKey() {
		s.log.Debug("ignoring relayed copy of the local profile")
		return nil
	}
	if err := s.backend.Store(p.ID, raw); err != nil {
		return fmt.Errorf("store peer profile: %w", err)
	}
	s.notify(p.ID)
	return nil
}

// Local returns the raw local profile, if one has been written
func (s *Store) Local() ([]byte, bool, error) {
	return s.backend.Load(s.PublicKey())
}

// OnChange subscribes to profile writes, local and remote. Handlers run on
// the writer's goroutine; post to the loop before touching app state.
func (s *Store) OnChange(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// SetPublisher installs the outbound hook used for local writes
func (s *Store) SetPublisher(fn func(raw []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish = fn
}

func (s *Store) notify(id string) {
	s.mu.Lock()
	handlers := make([]func(string), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(id)
	}
}

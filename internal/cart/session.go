package cart

import (
	"fmt"
	"sync"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/pricing"
)

// Load rehydrates the cart stored under key. A missing or malformed payload
// yields an empty cart; only storage failures are returned.
func Load(storage Storage, key string) (*Cart, error) {
	data, ok, err := storage.Get(key)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}
	if !ok {
		return &Cart{}, nil
	}
	return Decode(data), nil
}

// Save writes the cart under key.
func Save(storage Storage, key string, c *Cart) error {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := storage.Set(key, data); err != nil {
		return fmt.Errorf("save cart %s: %w", key, err)
	}
	return nil
}

// Session is a cart bound to its storage key. Every mutation is persisted
// before it returns.
type Session struct {
	mu      sync.Mutex
	key     string
	storage Storage
	cart    *Cart
}

// Open loads the cart under key into a Session.
func Open(storage Storage, key string) (*Session, error) {
	c, err := Load(storage, key)
	if err != nil {
		return nil, err
	}
	return &Session{key: key, storage: storage, cart: c}, nil
}

// Key is the storage key of the session.
func (s *Session) Key() string { return s.key }

// Items returns a copy of the current line items.
func (s *Session) Items() []catalog.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

// Summary prices the current cart.
func (s *Session) Summary() pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Summary()
}

// Add adds item and persists.
func (s *Session) Add(item catalog.LineItem) error {
	return s.mutate(func(c *Cart) (bool, error) {
		return true, c.Add(item)
	})
}

// Remove drops the line with id and persists. It reports whether the line
// existed.
func (s *Session) Remove(id string) (bool, error) {
	var found bool
	err := s.mutate(func(c *Cart) (bool, error) {
		found = c.Remove(id)
		return found, nil
	})
	return found, err
}

// SetQuantity updates a line and persists. It reports whether the line
// existed.
func (s *Session) SetQuantity(id string, qty int) (bool, error) {
	var found bool
	err := s.mutate(func(c *Cart) (bool, error) {
		found = c.SetQuantity(id, qty)
		return found, nil
	})
	return found, err
}

// Clear empties the cart and persists the empty cart.
func (s *Session) Clear() error {
	return s.mutate(func(c *Cart) (bool, error) {
		c.Clear()
		return true, nil
	})
}

// mutate applies fn to a copy so the in-memory cart only changes when the
// write succeeds.
func (s *Session) mutate(fn func(*Cart) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Cart{items: s.cart.Items()}
	changed, err := fn(next)
	if err != nil || !changed {
		return err
	}
	if err := Save(s.storage, s.key, next); err != nil {
		return err
	}
	s.cart = next
	return nil
}

// discard drops the cached contents without touching storage.
func (s *Session) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = &Cart{}
}

// Sessions hands out one Session per cart id over a shared Storage. A
// session is kept only while some caller holds it; the next Get after the
// last release reloads it from storage.
type Sessions struct {
	storage Storage
	mu      sync.Mutex
	open    map[string]*heldSession
}

type heldSession struct {
	sess *Session
	refs int
}

// NewSessions returns a session registry over storage.
func NewSessions(storage Storage) *Sessions {
	return &Sessions{storage: storage, open: make(map[string]*heldSession)}
}

// Get returns the session for cartID and a release func the caller must
// call once done with it. Concurrent callers for the same cart share one
// Session.
func (s *Sessions) Get(cartID string) (*Session, func(), error) {
	key := Key(cartID)
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := s.open[key]
	if !ok {
		sess, err := Open(s.storage, key)
		if err != nil {
			return nil, nil, err
		}
		held = &heldSession{sess: sess}
		s.open[key] = held
	}
	held.refs++

	var once sync.Once
	release := func() {
		once.Do(func() { s.release(key, held) })
	}
	return held.sess, release, nil
}

func (s *Sessions) release(key string, held *heldSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held.refs--
	if held.refs <= 0 && s.open[key] == held {
		delete(s.open, key)
	}
}

// Held reports how many carts currently have a session in use.
func (s *Sessions) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Reset empties every stored cart, including those held right now.
func (s *Sessions) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.storage.(interface{ Clear() error }); ok {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("reset carts: %w", err)
		}
		for _, held := range s.open {
			held.sess.discard()
		}
		return nil
	}
	var firstErr error
	for _, held := range s.open {
		if err := held.sess.Clear(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package state

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Well-known record keys.
const (
	KeyCart        = "cart"
	KeyOrders      = "orders"
	KeyPreferences = "userPreferences"
)

// Store abstracts the local key/value backend. Each key is written
// independently; there are no multi-key transactions.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key string, value string) error
	Remove(key string) error
	ClearAll() error
	Range(fn func(key string, value string) error) error
	LoadAll(all map[string]string) error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendBadger = "badger"
)

// Opened is a Store that owns resources released by Close.
type Opened interface {
	Store
	Close() error
}

// Open returns the store for backend rooted at dir. Memory ignores dir.
func Open(backend string, dir string) (Opened, error) {
	switch backend {
	case "", BackendMemory:
		return NewInMemoryStore(), nil
	case BackendPebble:
		return NewPebbleStore(dir)
	case BackendBadger:
		return NewBadgerStore(dir)
	}
	return nil, errors.Newf("unknown state backend %q", backend)
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]string)}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *InMemoryStore) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *InMemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemoryStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	return nil
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *InMemoryStore) LoadAll(all map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string, len(all))
	for k, v := range all {
		s.data[k] = v
	}
	return nil
}

func (s *InMemoryStore) Range(fn func(key string, value string) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return errors.Wrap(err, "range callback failed")
		}
	}
	return nil
}

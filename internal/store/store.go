// Package store provides the key-value persistence layer for GoNote.
// In the browser the store is localStorage (adapted in cmd/wasm); natively
// it is SQLite. Everything above this package goes through the Store
// interface so tests can substitute the in-memory implementation.
package store

import "sync"

// Store is a synchronous string key-value store.
// Get distinguishes "absent" from "empty" via the bool return.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
	Keys() []string
}

// Notifier is implemented by stores that can observe writes made by another
// handle on the same underlying storage (e.g. another browser tab). The
// callback receives the changed key. Subscribe returns a cancel function.
type Notifier interface {
	Subscribe(fn func(key string)) (cancel func())
}

// MemoryStore is an in-process Store used by tests and as the default when
// no durable backend is configured. Thread-safe.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string

	subMu   sync.Mutex
	subs    map[int]func(key string)
	nextSub int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
		subs: make(map[int]func(key string)),
	}
}

// Get returns the value for key and whether it exists.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set writes value under key. Never fails for the in-memory store.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Keys returns all stored keys in unspecified order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers fn to be called on EmitExternal.
func (s *MemoryStore) Subscribe(fn func(key string)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// EmitExternal simulates a write performed by another handle on the same
// storage (the browser "storage" event). Tests use it to exercise the
// external-change path.
func (s *MemoryStore) EmitExternal(key string) {
	s.subMu.Lock()
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

// Compile-time interface checks
var (
	_ Store    = (*MemoryStore)(nil)
	_ Notifier = (*MemoryStore)(nil)
)

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrKeyNotFound is returned by Storage.Get for absent keys
var ErrKeyNotFound = errors.New("session: key not found")

// Storage is a string key-value store scoped to one visitor
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
}

// Provider hands out the Storage scope of a visitor
type Provider interface {
	Scope(visitorID string) Storage
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStorage keeps values in process memory, namespaced per visitor.
// A zero ttl keeps values until they are deleted.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string]map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStorage creates an in-memory storage provider
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string]map[string]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Scope returns the Storage of one visitor
func (m *MemoryStorage) Scope(visitorID string) Storage {
	return &memoryScope{parent: m, ns: visitorID}
}

// Sweep removes expired values and empty namespaces
func (m *MemoryStorage) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	for ns, entries := range m.data {
		for key, e := range entries {
			if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
				delete(entries, key)
				removed++
			}
		}
		if len(entries) == 0 {
			delete(m.data, ns)
		}
	}
	return removed
}

type memoryScope struct {
	parent *MemoryStorage
	ns     string
}

func (s *memoryScope) Get(key string) (string, error) {
	m := s.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.data[s.ns][key]
	if !ok {
		return "", ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.data[s.ns], key)
		return "", ErrKeyNotFound
	}
	return e.value, nil
}

func (s *memoryScope) Set(key, value string) error {
	m := s.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.data[s.ns]
	if !ok {
		entries = make(map[string]memoryEntry)
		m.data[s.ns] = entries
	}
	e := memoryEntry{value: value}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	entries[key] = e
	return nil
}

func (s *memoryScope) Delete(key string) error {
	m := s.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[s.ns], key)
	return nil
}

func (s *memoryScope) Clear() error {
	m := s.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, s.ns)
	return nil
}

// move copies keys from one scope to another and then removes them from
// the source. Absent keys are skipped.
func move(from, to Storage, keys ...string) error {
	for _, key := range keys {
		value, err := from.Get(key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if err := to.Set(key, value); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	var errs []error
	for _, key := range keys {
		errs = append(errs, from.Delete(key))
	}
	return errors.Join(errs...)
}

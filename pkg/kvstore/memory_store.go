package kvstore

import (
	"sync"
)

// MemoryStore keeps values in a map. Failures can be injected to exercise
// the storage-unavailable paths of callers.
type MemoryStore struct {
	data map[string]string
	mu   sync.RWMutex

	// Error injection for testing
	GetError    error
	SetError    error
	RemoveError error

	setCalls int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the stored value for key
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetError != nil {
		return "", false, unavailable("get", key, m.GetError)
	}
	value, ok := m.data[key]
	return value, ok, nil
}

// Set stores value under key
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setCalls++
	if key == "" {
		return ErrEmptyKey
	}
	if m.SetError != nil {
		return unavailable("set", key, m.SetError)
	}
	m.data[key] = value
	return nil
}

// Remove deletes key; removing a missing key is not an error
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RemoveError != nil {
		return unavailable("remove", key, m.RemoveError)
	}
	delete(m.data, key)
	return nil
}

// Snapshot returns a copy of all stored values
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// SetCalls returns how many times Set has been called
func (m *MemoryStore) SetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setCalls
}

// SetErrors configures failure injection for all operations
func (m *MemoryStore) SetErrors(get, set, remove error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetError = get
	m.SetError = set
	m.RemoveError = remove
}

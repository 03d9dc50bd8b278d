package vault

import "sync"

// MemoryVault keeps tokens in process memory. Used by tests and by
// short-lived runs that pass tokens through the environment.
type MemoryVault struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMemory creates an empty in-memory vault.
func NewMemory() *MemoryVault {
	return &MemoryVault{store: make(map[string]string)}
}

func (m *MemoryVault) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *MemoryVault) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.store[key]
	if !ok {
		return "", notFound(key)
	}
	return val, nil
}

func (m *MemoryVault) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[key]; !ok {
		return notFound(key)
	}
	delete(m.store, key)
	return nil
}

package storage

import (
	"errors"
	"sync"
)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes map[string]int

	// FailName makes Write fail for that file, for exercising
	// persistence failure paths.
	FailName string
}

func NewMemStore() *MemStore {
	return &MemStore{
		files:  make(map[string][]byte),
		writes: make(map[string]int),
	}
}

func (m *MemStore) Read(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *MemStore) Write(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailName != "" && m.FailName == name {
		return errors.New("storage: write disabled for " + name)
	}
	b := make([]byte, len(data))
	copy(b, data)
	m.files[name] = b
	m.writes[name]++
	return nil
}

func (m *MemStore) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

func (m *MemStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

// Writes reports how many times a file has been written, letting tests
// observe debounce coalescing.
func (m *MemStore) Writes(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[name]
}

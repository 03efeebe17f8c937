package replica

import (
	"sort"
	"sync"
)

// Memory is a Backend held in a map
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// Load returns a copy of a document
func (m *Memory) Load(id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.docs[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

// LoadAll returns every document, ordered by id
func (m *Memory) LoadAll() ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = append([]byte(nil), m.docs[id]...)
	}
	return out, nil
}

// Store replaces a document
func (m *Memory) Store(id string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = append([]byte(nil), raw...)
	return nil
}

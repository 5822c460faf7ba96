package mem

import (
	"context"
	"maps"

	"machinebarter.dev/barter/internal/credentials"
)

// MemoryStore answers every lookup with the same values, regardless of filter.
type MemoryStore struct {
	secrets map[string]any
}

func NewMemoryStore() *MemoryStore {
	secrets := make(map[string]any)
	return &MemoryStore{secrets}
}

func (m *MemoryStore) Lookup(_ context.Context, _ credentials.Filter) (map[string]any, error) {
	return maps.Clone(m.secrets), nil
}

func (m *MemoryStore) Add(key, value string) {
	m.secrets[key] = value
}

func (m *MemoryStore) Len() int {
	return len(m.secrets)
}

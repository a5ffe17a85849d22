package tenant

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Writes are atomic with respect to
// concurrent reads, which is what the auth gate relies on when keys are
// rotated while a subscriber is live.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*Tenant)}
}

func (s *MemoryStore) FindOrCreate(
	_ context.Context,
	id, defaultPrefix string,
) (*Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tenants[id]; ok {
		return copyTenant(t), nil
	}

	t := &Tenant{ID: id, Prefix: defaultPrefix, Keys: []string{}}
	s.tenants[id] = t
	return copyTenant(t), nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTenant(t), nil
}

func (s *MemoryStore) Save(_ context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants[t.ID] = copyTenant(t)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenants := make([]*Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		tenants = append(tenants, copyTenant(t))
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants, nil
}

func copyTenant(t *Tenant) *Tenant {
	keys := make([]string, len(t.Keys))
	copy(keys, t.Keys)
	return &Tenant{
		ID:         t.ID,
		Prefix:     t.Prefix,
		APIEnabled: t.APIEnabled,
		Keys:       keys,
	}
}

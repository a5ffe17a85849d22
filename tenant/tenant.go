package tenant

import (
	"context"
	"errors"
)

// Tenant is the per-guild configuration record: command prefix, API flag,
// and the salted hashes of every issued API key. Plaintext keys are never
// stored.
type Tenant struct {
	ID         string
	Prefix     string
	APIEnabled bool
	Keys       []string
}

var ErrNotFound = errors.New("tenant not found")

// Store persists tenants. FindOrCreate has upsert semantics: a missing
// tenant is created with the given default prefix, an existing one is
// returned untouched.
type Store interface {
	FindOrCreate(ctx context.Context, id, defaultPrefix string) (*Tenant, error)
	Find(ctx context.Context, id string) (*Tenant, error)
	Save(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}

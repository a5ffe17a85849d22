package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"scribe/tenant"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrAPIDisabled    = errors.New("tenant has API disabled")
	ErrInvalidKey     = errors.New("API key invalid")
)

// Gate authorizes presented API keys against the tenant store. Verify is
// called on every protected operation, not just at subscribe time, so
// disabling the API or wiping keys revokes access immediately.
type Gate struct {
	store tenant.Store
}

func NewGate(store tenant.Store) *Gate {
	return &Gate{store: store}
}

// Verify fails closed: unknown tenant, disabled API, and non-matching key
// each return a distinct error. A key matches if it compares equal against
// any stored hash.
func (g *Gate) Verify(ctx context.Context, tenantID, presented string) error {
	t, err := g.store.Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return ErrTenantNotFound
		}
		return err
	}

	if !t.APIEnabled {
		return ErrAPIDisabled
	}

	for _, hash := range t.Keys {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)) == nil {
			return nil
		}
	}

	return ErrInvalidKey
}

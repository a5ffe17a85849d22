package session

import (
	"errors"
	"sync"
)

var ErrAlreadyActive = errors.New("tenant already has an active session")

// Registry is the process-wide map from tenant id to its single live
// session. Cross-session work is never serialized through session locks;
// the registry lock only guards the map itself.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	teardown map[string]func()
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		teardown: make(map[string]func()),
	}
}

// Create registers a new session for the tenant. The teardown hook runs
// inside Remove, before the registry entry disappears.
func (r *Registry) Create(
	tenantID, botUserID string,
	participants []Participant,
	teardown func(),
) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[tenantID]; ok {
		return nil, ErrAlreadyActive
	}

	s := New(tenantID, botUserID, participants)
	r.sessions[tenantID] = s
	if teardown != nil {
		r.teardown[tenantID] = teardown
	}
	return s, nil
}

// Find returns the tenant's live session, or nil.
func (r *Registry) Find(tenantID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[tenantID]
}

// FindBySubscriberConn locates the session whose subscriber is bound to
// the given connection id. Used on transport disconnect, where the socket
// layer knows connection ids but not tenants.
func (r *Registry) FindBySubscriberConn(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if sub := s.Subscriber(); sub != nil && sub.Conn.ID() == connID {
			return s
		}
	}
	return nil
}

// Remove tears the session down and drops it from the registry. Teardown
// and removal happen under the registry lock, so callers never observe a
// registered session that is already torn down.
func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tenantID]
	if !ok {
		return
	}

	if fn := r.teardown[tenantID]; fn != nil {
		fn()
	}
	s.Close()
	delete(r.sessions, tenantID)
	delete(r.teardown, tenantID)
}

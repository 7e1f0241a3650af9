package session

import (
	"errors"
	"sort"
	"sync"
)

// Registry defines the concurrency-safe contract for tracking live sessions.
type Registry interface {
	// Add registers s. It fails if a session with the same ID exists.
	Add(s *Session) error

	// Get returns the session with the given ID.
	Get(id SessionID) (*Session, bool)

	// Remove unregisters the session and returns it. Removing an unknown
	// session reports false and is not an error.
	Remove(id SessionID) (*Session, bool)

	// List returns every registered session ordered by creation time.
	List() []*Session

	// ActiveSessionCount returns the number of registered sessions.
	// Used for metrics.
	ActiveSessionCount() int
}

// ErrDuplicateSession is returned by Add when the ID is already registered.
var ErrDuplicateSession = errors.New("session already registered")

// InMemoryRegistry is a concurrency-safe Registry backed by a Store; by
// default that is an InMemoryStore.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRegistry constructs a registry with a default in-memory store.
func NewInMemoryRegistry() *InMemoryRegistry {
	return NewInMemoryRegistryWithStore(NewInMemoryStore())
}

// NewInMemoryRegistryWithStore constructs a registry that uses the given Store.
func NewInMemoryRegistryWithStore(store Store) *InMemoryRegistry {
	return &InMemoryRegistry{store: store}
}

// Add implements Registry.Add.
func (r *InMemoryRegistry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetSession(s.ID); exists {
		return ErrDuplicateSession
	}
	r.store.SetSession(s)
	return nil
}

// Get implements Registry.Get.
func (r *InMemoryRegistry) Get(id SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.GetSession(id)
}

// Remove implements Registry.Remove.
func (r *InMemoryRegistry) Remove(id SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.store.GetSession(id)
	if !exists {
		return nil, false
	}
	r.store.DeleteSession(id)
	return s, true
}

// List implements Registry.List.
func (r *InMemoryRegistry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListSessionIDs()
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.store.GetSession(id); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveSessionCount implements Registry.ActiveSessionCount.
func (r *InMemoryRegistry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListSessionIDs())
}

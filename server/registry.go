package server

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

var ErrRegistryFull = errors.New("session registry at capacity")

// Registry is the capacity-bounded set of live sessions, keyed by a
// server-assigned id that is never derived from the socket descriptor.
// New connections are refused once at capacity, not queued.
type Registry struct {
	capacity int
	nextID   atomic.Uint32

	mu       sync.RWMutex
	sessions map[uint32]*Session
}

func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		sessions: make(map[uint32]*Session),
	}
}

// NextID returns the next session id. Ids increase monotonically for the
// process lifetime, so a closed session's id is never reused.
func (r *Registry) NextID() uint32 {
	return r.nextID.Add(1)
}

func (r *Registry) Insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.capacity {
		return ErrRegistryFull
	}
	r.sessions[s.ID()] = s
	return nil
}

func (r *Registry) Remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Get(id uint32) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ByUsername returns the authenticated session bound to the given username,
// if any. At most one live session holds a username at a time.
func (r *Registry) ByUsername(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if user, ok := s.Identity(); ok && user == username {
			return s, true
		}
	}
	return nil, false
}

// Bind authenticates sess under username, unless another live session
// already holds that username. The check and the state change happen under
// one lock, so two concurrent logins for the same account cannot both win.
func (r *Registry) Bind(sess *Session, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.sessions {
		if other.ID() == sess.ID() {
			continue
		}
		if user, ok := other.Identity(); ok && user == username {
			return false
		}
	}

	sess.Authenticate(username)
	return true
}

// Snapshot returns the live sessions in ascending id order. Iteration over
// a snapshot never holds the registry lock across socket writes.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID() < sessions[j].ID()
	})
	return sessions
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

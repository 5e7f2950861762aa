package sessions

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory session store. State does not survive process
// restarts and is not shared across instances; production deployments should
// use the Redis-backed store instead.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{sessions: make(map[string]*Session)}
}

func (r *InMemoryRepo) Create(session *Session) error {
	if session.ID == "" {
		return errors.New("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *InMemoryRepo) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, NotFoundErr
	}
	copied := *session
	return &copied, nil
}

func (r *InMemoryRepo) Touch(sessionID string, now time.Time, extend time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return NotFoundErr
	}
	session.LastActivityAt = now
	if extend > 0 {
		session.ExpiresAt = now.Add(extend)
	}
	return nil
}

func (r *InMemoryRepo) Invalidate(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return NotFoundErr
	}
	session.Status = StatusInvalidated
	return nil
}

func (r *InMemoryRepo) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *InMemoryRepo) DeleteExpired(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.ExpiredAt(now) || session.Status == StatusInvalidated {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

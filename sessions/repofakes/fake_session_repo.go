package fakesessionrepo

import (
	"sync"
	"time"

	"github.com/netvista/portal-auth/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory sessions.Repo for tests with optional
// error injection to exercise failure paths.
type FakeSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*sessions.Session

	// ForcedErr, when set, is returned by every mutating call.
	ForcedErr error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{sessions: make(map[string]*sessions.Session)}
}

func (r *FakeSessionRepo) Create(session *sessions.Session) error {
	if r.ForcedErr != nil {
		return r.ForcedErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *FakeSessionRepo) Get(sessionID string) (*sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, sessions.NotFoundErr
	}
	copied := *session
	return &copied, nil
}

func (r *FakeSessionRepo) Touch(sessionID string, now time.Time, extend time.Duration) error {
	if r.ForcedErr != nil {
		return r.ForcedErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return sessions.NotFoundErr
	}
	session.LastActivityAt = now
	if extend > 0 {
		session.ExpiresAt = now.Add(extend)
	}
	return nil
}

func (r *FakeSessionRepo) Invalidate(sessionID string) error {
	if r.ForcedErr != nil {
		return r.ForcedErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return sessions.NotFoundErr
	}
	session.Status = sessions.StatusInvalidated
	return nil
}

func (r *FakeSessionRepo) Delete(sessionID string) error {
	if r.ForcedErr != nil {
		return r.ForcedErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *FakeSessionRepo) DeleteExpired(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.ExpiredAt(now) || session.Status == sessions.StatusInvalidated {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

package refresh

import (
	"sync"

	"github.com/pkg/errors"
)

var NotFoundErr = errors.New("refresh token not found")

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory refresh token store. Alongside the live token
// per session it retains the most recently retired one, so a replay of a
// rotated-out token can be recognized instead of looking merely unknown.
type InMemoryRepo struct {
	mu       sync.RWMutex
	tokens   map[string]*StoredRefreshToken
	sessions map[string]string // sessionID -> live token
	consumed map[string]string // sessionID -> last retired token
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		tokens:   make(map[string]*StoredRefreshToken),
		sessions: make(map[string]string),
		consumed: make(map[string]string),
	}
}

func (r *InMemoryRepo) Upsert(refreshToken *StoredRefreshToken) error {
	if refreshToken.Token == "" {
		return errors.New("token is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *refreshToken
	r.tokens[refreshToken.Token] = &copied
	if refreshToken.SessionID == "" {
		return nil
	}

	if refreshToken.Consumed {
		if prev, ok := r.consumed[refreshToken.SessionID]; ok && prev != refreshToken.Token {
			delete(r.tokens, prev)
		}
		r.consumed[refreshToken.SessionID] = refreshToken.Token
		if r.sessions[refreshToken.SessionID] == refreshToken.Token {
			delete(r.sessions, refreshToken.SessionID)
		}
		return nil
	}

	r.sessions[refreshToken.SessionID] = refreshToken.Token
	return nil
}

func (r *InMemoryRepo) Get(token string) (*StoredRefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.tokens[token]
	if !ok {
		return nil, NotFoundErr
	}
	copied := *stored
	return &copied, nil
}

func (r *InMemoryRepo) GetBySessionID(sessionID string) (*StoredRefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.sessions[sessionID]
	if !ok {
		return nil, NotFoundErr
	}
	stored, ok := r.tokens[token]
	if !ok {
		return nil, NotFoundErr
	}
	copied := *stored
	return &copied, nil
}

func (r *InMemoryRepo) Delete(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tokens[token]
	if !ok {
		return nil // Already gone
	}
	if stored.SessionID != "" {
		if r.sessions[stored.SessionID] == token {
			delete(r.sessions, stored.SessionID)
		}
		if r.consumed[stored.SessionID] == token {
			delete(r.consumed, stored.SessionID)
		}
	}
	delete(r.tokens, token)
	return nil
}

func (r *InMemoryRepo) DeleteBySessionID(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token, ok := r.sessions[sessionID]; ok {
		delete(r.tokens, token)
		delete(r.sessions, sessionID)
	}
	if token, ok := r.consumed[sessionID]; ok {
		delete(r.tokens, token)
		delete(r.consumed, sessionID)
	}
	return nil
}

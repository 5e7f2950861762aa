package sessions

import (
	"time"

	"github.com/pkg/errors"
)

var NotFoundErr = errors.New("session not found")

// Repo is the session store contract. The in-memory implementation only
// covers single-process deployments; the redisrepo implementation backs
// multi-instance deployments with the same interface.
type Repo interface {
	Create(session *Session) error
	Get(sessionID string) (*Session, error)
	// Touch updates last-activity and, when extend is non-zero, pushes the
	// session expiry out to now+extend.
	Touch(sessionID string, now time.Time, extend time.Duration) error
	Invalidate(sessionID string) error
	Delete(sessionID string) error
	DeleteExpired(now time.Time) (int, error)
}

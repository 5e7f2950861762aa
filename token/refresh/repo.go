package refresh

import (
	"time"

	"github.com/netvista/portal-auth/portals"
)

// StoredRefreshToken is the server-side record behind an opaque refresh
// token. The client only ever sees the Token string; everything else is
// metadata used during refresh validation.
type StoredRefreshToken struct {
	Token      string
	UserID     string
	PortalID   portals.ID
	SessionID  string
	RememberMe bool
	Consumed   bool // Set when rotation retires the token; presenting it again is treated as theft
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the token's own lifetime has lapsed at now.
func (t *StoredRefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Repo manages server-side refresh token records keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetBySessionID(sessionID string) (*StoredRefreshToken, error)
	DeleteBySessionID(sessionID string) error
}

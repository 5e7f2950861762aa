package sessions

import (
	"time"

	"github.com/netvista/portal-auth/portals"
)

// Status is the server-side lifecycle state of a session record.
type Status string

const (
	StatusActive      Status = "active"
	StatusExpired     Status = "expired"
	StatusInvalidated Status = "invalidated"
)

// Session is the server-side record created at login. It outlives individual
// access tokens and is the authority for invalidation: a physically present,
// cryptographically valid cookie must still be refused once the session has
// been invalidated.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	PortalID       portals.ID `json:"portalId"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	Status         Status     `json:"status"`
}

// ExpiredAt reports whether the session's own expiry has passed at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// OlderThan reports whether the session was created more than cap ago.
// Refreshing is refused past this point regardless of token expiries.
func (s *Session) OlderThan(cap time.Duration, now time.Time) bool {
	return now.Sub(s.CreatedAt) > cap
}

// Usable reports whether the session can still authorize requests at now.
func (s *Session) Usable(now time.Time) bool {
	return s.Status == StatusActive && !s.ExpiredAt(now)
}

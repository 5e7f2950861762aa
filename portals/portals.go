package portals

import (
	"time"

	"github.com/pkg/errors"
)

// ID identifies one of the portal frontends served by the platform.
type ID string

const (
	Admin      ID = "admin"
	Customer   ID = "customer"
	Reseller   ID = "reseller"
	Technician ID = "technician"
	Management ID = "management"
)

// Portal holds the session-lifecycle policy for a single portal. All cookie
// names are derived from CookiePrefix so portals never clobber each other's
// cookies when served from the same host.
type Portal struct {
	ID                   ID
	CookiePrefix         string        // Prefix for every auth cookie the portal owns
	AccessTokenTTL       time.Duration // Lifetime of the signed access token
	RefreshTokenTTL      time.Duration // Default refresh token lifetime
	RememberMeRefreshTTL time.Duration // Refresh lifetime when "remember me" is set
	RotateRefreshTokens  bool          // Whether each refresh consumes and reissues the refresh token
	SessionAbsoluteCap   time.Duration // Hard cap on session age, bounds indefinite renewal chains
	NearExpiryWindow     time.Duration // Buffer before access expiry that triggers proactive refresh
	CSRFTokenTTL         time.Duration
}

// Cookie name helpers. The access token cookie is scoped site-wide, the
// refresh token cookie is restricted to the portal's auth path (see
// server/cookies.go).

func (p Portal) AccessCookie() string  { return p.CookiePrefix + "-auth-token" }
func (p Portal) RefreshCookie() string { return p.CookiePrefix + "-refresh-token" }
func (p Portal) SessionCookie() string { return p.CookiePrefix + "-session" }
func (p Portal) CSRFCookie() string    { return p.CookiePrefix + "-csrf-token" }
func (p Portal) MarkerCookie() string  { return p.CookiePrefix + "-portal" }

// RefreshTTL returns the refresh token lifetime for the given remember-me choice.
func (p Portal) RefreshTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return p.RememberMeRefreshTTL
	}
	return p.RefreshTokenTTL
}

var UnknownPortalErr = errors.New("unknown portal")

// Registry resolves portal IDs to their lifecycle policy.
type Registry struct {
	portals map[ID]Portal
}

// NewRegistry creates a registry containing the given portals.
func NewRegistry(portals ...Portal) *Registry {
	r := &Registry{portals: make(map[ID]Portal)}
	for _, p := range portals {
		r.portals[p.ID] = p
	}
	return r
}

// Get returns the portal configuration for id.
func (r *Registry) Get(id ID) (Portal, error) {
	p, ok := r.portals[id]
	if !ok {
		return Portal{}, errors.Wrapf(UnknownPortalErr, "[Registry.Get] %q", id)
	}
	return p, nil
}

// All returns every registered portal.
func (r *Registry) All() []Portal {
	all := make([]Portal, 0, len(r.portals))
	for _, p := range r.portals {
		all = append(all, p)
	}
	return all
}

// Defaults returns the five built-in portals. TTLs follow the platform
// policy: short-lived access tokens, day-scale refresh tokens extended up to
// 30 days under remember-me, and a 7 day absolute session cap. Rotation is
// enabled everywhere; portals that need the legacy non-rotating behaviour can
// override it through configuration.
func Defaults() []Portal {
	base := Portal{
		AccessTokenTTL:       30 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		RememberMeRefreshTTL: 30 * 24 * time.Hour,
		RotateRefreshTokens:  true,
		SessionAbsoluteCap:   7 * 24 * time.Hour,
		NearExpiryWindow:     5 * time.Minute,
		CSRFTokenTTL:         time.Hour,
	}

	admin := base
	admin.ID = Admin
	admin.CookiePrefix = "admin"
	admin.AccessTokenTTL = 15 * time.Minute
	admin.RefreshTokenTTL = 24 * time.Hour
	admin.RememberMeRefreshTTL = 24 * time.Hour // remember-me is ignored for admins

	customer := base
	customer.ID = Customer
	customer.CookiePrefix = "secure"

	reseller := base
	reseller.ID = Reseller
	reseller.CookiePrefix = "reseller"

	technician := base
	technician.ID = Technician
	technician.CookiePrefix = "tech"
	technician.AccessTokenTTL = time.Hour

	management := base
	management.ID = Management
	management.CookiePrefix = "mgmt"
	management.AccessTokenTTL = 15 * time.Minute
	management.RefreshTokenTTL = 24 * time.Hour

	return []Portal{admin, customer, reseller, technician, management}
}

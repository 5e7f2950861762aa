package server

import (
	"net/http"
	"time"

	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/token"
)

// Cookie layout per portal: the access token cookie is site-wide, the refresh
// token cookie is scoped to the portal's auth path to shrink its exposure
// surface, and the session cookie tracks the server-side session id. The CSRF
// cookie and the portal marker must stay readable by frontend scripts, so
// they are the only two without HttpOnly.

func refreshCookiePath(portal portals.Portal) string {
	return "/" + string(portal.ID) + "/auth"
}

func (s *Server) setCookie(w http.ResponseWriter, name, value, path string, expires time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: httpOnly,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

// writeAuthCookies persists a freshly issued token set. The full set is
// written for every transition; failure paths call clearAuthCookies instead
// so no partial rotation is ever observable.
func (s *Server) writeAuthCookies(w http.ResponseWriter, portal portals.Portal, sessionID string, issued *token.IssuedTokens) {
	s.setCookie(w, portal.AccessCookie(), issued.AccessToken, "/", issued.AccessExpiry, true)
	if issued.RefreshToken != "" {
		s.setCookie(w, portal.RefreshCookie(), issued.RefreshToken, refreshCookiePath(portal), issued.RefreshExpiry, true)
		s.setCookie(w, portal.SessionCookie(), sessionID, "/", issued.RefreshExpiry, true)
	}
	s.setCookie(w, portal.MarkerCookie(), string(portal.ID), "/", issued.AccessExpiry, false)
}

// writeCSRFCookie stores a fresh nonce, readable by scripts so the client can
// echo it back in the X-CSRF-Token header.
func (s *Server) writeCSRFCookie(w http.ResponseWriter, portal portals.Portal, nonce string, now time.Time) {
	s.setCookie(w, portal.CSRFCookie(), nonce, "/", now.Add(portal.CSRFTokenTTL), false)
}

// clearAuthCookies expires every auth-related cookie with a past expiry and
// matching path. Idempotent.
func (s *Server) clearAuthCookies(w http.ResponseWriter, portal portals.Portal) {
	past := time.Unix(0, 0)
	s.setCookie(w, portal.AccessCookie(), "", "/", past, true)
	s.setCookie(w, portal.RefreshCookie(), "", refreshCookiePath(portal), past, true)
	s.setCookie(w, portal.SessionCookie(), "", "/", past, true)
	s.setCookie(w, portal.CSRFCookie(), "", "/", past, false)
	s.setCookie(w, portal.MarkerCookie(), "", "/", past, false)
}

// cookieValue reads a request cookie, returning "" when absent.
func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

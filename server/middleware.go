package server

import (
	"context"
	"net/http"
	"time"

	"github.com/netvista/portal-auth/auth"
	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/token"
	"github.com/rs/zerolog/log"
)

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// APIMiddleware is the default stack for every JSON route.
func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chained := []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.CorsMiddleware,
	}
	return append(chained, mw...)
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// RecoverMiddleware converts handler panics into a JSON 500 so no failure in
// these flows escapes to a bare stack trace.
func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next(w, r)
	}
}

func (s *Server) CorsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// No Origin header = same-origin request, no CORS headers needed
		if origin == "" {
			next(w, r)
			return
		}

		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.Origins() {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

// CSRFGuardMiddleware enforces the double-submit check on state-changing
// requests: the nonce stored in the portal's CSRF cookie must be echoed in
// the X-CSRF-Token header (or csrf_token form field). Rejection happens
// before the protected handler runs.
func (s *Server) CSRFGuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		supplied := r.Header.Get("X-CSRF-Token")
		if supplied == "" {
			supplied = r.FormValue("csrf_token")
		}

		if err := auth.ValidateCSRFToken(cookieValue(r, portal.CSRFCookie()), supplied); err != nil {
			writeError(w, http.StatusForbidden, "csrf token missing or mismatched")
			return
		}
		next(w, r)
	}
}

type contextKey string

const principalKey contextKey = "principal"

// Principal returns the validated access token claims stored by
// RequireSession, or nil when the request was not authenticated.
func Principal(ctx context.Context) *token.Introspection {
	claims, _ := ctx.Value(principalKey).(*token.Introspection)
	return claims
}

// RequireSession gates a handler on a usable session. Expired sessions get a
// 401 so the client can attempt a refresh; invalidated ones additionally have
// their cookies cleared.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		validation, err := s.auth.Validate(portal.ID, cookieValue(r, portal.AccessCookie()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "session validation failed")
			return
		}

		switch validation.State {
		case auth.StateValid, auth.StateNearExpiry:
			ctx := context.WithValue(r.Context(), principalKey, validation.Claims)
			next(w, r.WithContext(ctx))
		case auth.StateInvalidated:
			s.clearAuthCookies(w, portal)
			writeRequiresLogin(w, "session invalidated")
		case auth.StateExpired:
			writeError(w, http.StatusUnauthorized, "session expired")
		default:
			writeRequiresLogin(w, "authentication required")
		}
	}
}

// portalFromRequest resolves the {portal} path parameter, writing a 404 when
// it names no registered portal.
func (s *Server) portalFromRequest(w http.ResponseWriter, r *http.Request) (portals.Portal, bool) {
	portal, err := s.auth.Portal(portals.ID(r.PathValue("portal")))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown portal")
		return portals.Portal{}, false
	}
	return portal, true
}

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/netvista/portal-auth/auth"
	"github.com/netvista/portal-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type userPayload struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions,omitempty"`
	TenantID      string   `json:"tenantId,omitempty"`
	AccountNumber string   `json:"accountNumber,omitempty"`
}

type loginResponse struct {
	Success   bool        `json:"success"`
	User      userPayload `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func userToPayload(u *users.User) userPayload {
	return userPayload{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          string(u.Role),
		Permissions:   u.Permissions,
		TenantID:      u.TenantID,
		AccountNumber: u.AccountNumber,
	}
}

// LoginHandler verifies credentials and establishes the session, writing the
// full cookie set in one response.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := s.auth.Login(portal.ID, req.Email, req.Password, req.RememberMe)
		if err != nil {
			switch {
			case errors.Is(err, auth.InvalidCredentialFormatErr):
				writeError(w, http.StatusBadRequest, "invalid email or password format")
			case errors.Is(err, auth.InvalidCredentialsErr):
				writeError(w, http.StatusUnauthorized, "invalid credentials")
			default:
				log.Error().Err(err).Str("portal", string(portal.ID)).Msg("login failed")
				writeError(w, http.StatusInternalServerError, "login failed")
			}
			return
		}

		nonce, err := auth.GenerateCSRFToken()
		if err != nil {
			log.Error().Err(err).Msg("csrf generation failed")
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}

		s.writeAuthCookies(w, portal, result.Session.ID, result.Tokens)
		s.writeCSRFCookie(w, portal, nonce, time.Now())

		writeJSON(w, http.StatusOK, loginResponse{
			Success:   true,
			User:      userToPayload(result.User),
			ExpiresAt: result.Tokens.AccessExpiry,
		})
	}
}

// LogoutHandler invalidates the session and expires every auth cookie.
// Calling it without a session is not an error.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		sessionID := cookieValue(r, portal.SessionCookie())
		refreshToken := cookieValue(r, portal.RefreshCookie())

		if err := s.auth.Logout(portal.ID, sessionID, refreshToken); err != nil {
			log.Error().Err(err).Str("portal", string(portal.ID)).Msg("logout failed")
			s.clearAuthCookies(w, portal)
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}

		s.clearAuthCookies(w, portal)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// RefreshHandler exchanges the refresh cookie for a new token set. Any
// failure clears the complete cookie set and demands a fresh login; a
// rejected refresh is never retried.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		result, err := s.auth.Refresh(portal.ID, cookieValue(r, portal.RefreshCookie()))
		if err != nil {
			s.clearAuthCookies(w, portal)
			switch {
			case errors.Is(err, auth.MissingRefreshTokenErr):
				writeRequiresLogin(w, "no refresh token")
			case errors.Is(err, auth.InvalidRefreshTokenErr), errors.Is(err, auth.SessionTooOldErr):
				writeRequiresLogin(w, "refresh rejected")
			default:
				log.Error().Err(err).Str("portal", string(portal.ID)).Msg("refresh failed")
				writeError(w, http.StatusInternalServerError, "refresh failed")
			}
			return
		}

		s.writeAuthCookies(w, portal, result.Session.ID, result.Tokens)
		writeJSON(w, http.StatusOK, loginResponse{
			Success:   true,
			User:      userToPayload(result.User),
			ExpiresAt: result.Tokens.AccessExpiry,
		})
	}
}

type validateResponse struct {
	State         string       `json:"state"`
	Authenticated bool         `json:"authenticated"`
	User          *userPayload `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

// ValidateHandler reports the state machine classification of the caller's
// access token. When the token is near expiry and a refresh token is present,
// it rotates proactively and the response carries the fresh expiry.
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		validation, err := s.auth.Validate(portal.ID, cookieValue(r, portal.AccessCookie()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "validation failed")
			return
		}

		switch validation.State {
		case auth.StateValid:
			expiry := validation.Claims.ExpiresAt()
			writeJSON(w, http.StatusOK, validateResponse{
				State:         string(validation.State),
				Authenticated: true,
				User:          claimsToPayload(validation),
				ExpiresAt:     &expiry,
			})

		case auth.StateNearExpiry:
			expiry := validation.Claims.ExpiresAt()
			resp := validateResponse{
				State:         string(validation.State),
				Authenticated: true,
				User:          claimsToPayload(validation),
				ExpiresAt:     &expiry,
			}
			// Proactive rotation; the current token still works if it fails.
			if refreshToken := cookieValue(r, portal.RefreshCookie()); refreshToken != "" {
				if result, err := s.auth.Refresh(portal.ID, refreshToken); err == nil {
					s.writeAuthCookies(w, portal, result.Session.ID, result.Tokens)
					resp.ExpiresAt = &result.Tokens.AccessExpiry
				} else {
					log.Warn().Err(err).Str("portal", string(portal.ID)).Msg("proactive refresh failed")
				}
			}
			writeJSON(w, http.StatusOK, resp)

		case auth.StateExpired:
			writeJSON(w, http.StatusUnauthorized, validateResponse{State: string(validation.State)})

		case auth.StateInvalidated:
			s.clearAuthCookies(w, portal)
			writeJSON(w, http.StatusUnauthorized, validateResponse{State: string(validation.State)})

		default:
			writeJSON(w, http.StatusUnauthorized, validateResponse{State: string(auth.StateUnauthenticated)})
		}
	}
}

func claimsToPayload(v *auth.Validation) *userPayload {
	return &userPayload{
		ID:          v.Claims.Sub,
		Email:       v.Claims.Email,
		Role:        v.Claims.Role,
		Permissions: v.Claims.Permissions,
		TenantID:    v.Claims.Tenant,
	}
}

// CSRFHandler issues a fresh nonce. Tokens are reissued rather than renewed,
// so clients call this again after expiry.
func (s *Server) CSRFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portal, ok := s.portalFromRequest(w, r)
		if !ok {
			return
		}

		nonce, err := auth.GenerateCSRFToken()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "csrf generation failed")
			return
		}

		s.writeCSRFCookie(w, portal, nonce, time.Now())
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": nonce})
	}
}

// ProfileHandler returns the authenticated principal, demonstrating the
// RequireSession guard for downstream portal endpoints.
func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := Principal(r.Context())
		if claims == nil {
			writeRequiresLogin(w, "authentication required")
			return
		}

		user, err := s.userRepo.GetByID(claims.Sub)
		if err != nil {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, userToPayload(user))
	}
}

// HealthHandler is a liveness probe.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/sessions"
	"github.com/netvista/portal-auth/token"
	"github.com/netvista/portal-auth/users"
	"github.com/pkg/errors"
)

// SessionState is the state machine classification of an incoming request's
// credentials. Transitions are driven purely by wall-clock comparison against
// the token and session expiries; there is no background timer.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateValid           SessionState = "authenticated-valid"
	StateNearExpiry      SessionState = "authenticated-near-expiry"
	StateExpired         SessionState = "expired"
	StateInvalidated     SessionState = "invalidated"
)

// Repos holds all repository dependencies for the SessionService.
type Repos struct {
	Users    users.UserRepo
	Sessions sessions.Repo
}

// LoginResult is the outcome of a successful login or refresh.
type LoginResult struct {
	User    *users.User
	Session *sessions.Session
	Tokens  *token.IssuedTokens
}

// Validation is the outcome of classifying an access token.
type Validation struct {
	State  SessionState
	Claims *token.Introspection // Populated for every state except unauthenticated
}

// Authenticated reports whether the request may proceed.
func (v *Validation) Authenticated() bool {
	return v.State == StateValid || v.State == StateNearExpiry
}

// SessionService is the consolidated session lifecycle: one state machine
// parameterized by portal identity, replacing the per-portal reimplementations
// it was extracted from.
type SessionService struct {
	repos   Repos
	tokens  *token.Manager
	portals *portals.Registry
	nowTime func() time.Time
}

// SessionServiceOption defines a function type to modify the SessionService instance.
type SessionServiceOption func(*SessionService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		s.nowTime = nowFunc
	}
}

// NewSessionService initializes a new SessionService with required dependencies.
func NewSessionService(repos Repos, tokens *token.Manager, registry *portals.Registry, options ...SessionServiceOption) (*SessionService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewSessionService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewSessionService] Sessions repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewSessionService] token manager is required")
	}
	if registry == nil {
		return nil, errors.New("[NewSessionService] portal registry is required")
	}

	service := &SessionService{
		repos:   repos,
		tokens:  tokens,
		portals: registry,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// Portal resolves the lifecycle policy for a portal ID.
func (s *SessionService) Portal(portalID portals.ID) (portals.Portal, error) {
	return s.portals.Get(portalID)
}

// Login verifies credentials and, on success, creates a session and mints the
// token set. Format failures happen before any directory lookup. Unknown
// user, wrong password and inactive account all surface as
// InvalidCredentialsErr.
func (s *SessionService) Login(portalID portals.ID, email, password string, rememberMe bool) (*LoginResult, error) {
	portal, err := s.portals.Get(portalID)
	if err != nil {
		return nil, err
	}

	if err := ValidateLoginInput(email, password); err != nil {
		return nil, err
	}

	user, err := s.repos.Users.GetByEmail(email)
	if err != nil {
		return nil, errors.Wrap(InvalidCredentialsErr, "[SessionService.Login] user lookup")
	}
	if !user.Active {
		return nil, errors.Wrap(InvalidCredentialsErr, "[SessionService.Login] inactive account")
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, errors.Wrap(InvalidCredentialsErr, "[SessionService.Login] password mismatch")
	}

	now := s.nowTime()
	session := &sessions.Session{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		PortalID:       portal.ID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(portal.RefreshTTL(rememberMe)),
		Status:         sessions.StatusActive,
	}
	if err := s.repos.Sessions.Create(session); err != nil {
		return nil, errors.Wrap(err, "[SessionService.Login] create session")
	}

	issued, err := s.tokens.Issue(user, portal, session.ID, rememberMe)
	if err != nil {
		// Token issue failure is fatal to the login attempt; leave no
		// half-created session behind.
		_ = s.repos.Sessions.Delete(session.ID)
		return nil, errors.Wrap(err, "[SessionService.Login] issue tokens")
	}

	_ = s.repos.Users.SetLastLogin(user.Email) // Bookkeeping, not an auth decision

	return &LoginResult{User: user, Session: session, Tokens: issued}, nil
}

// Validate classifies a raw access token against the state machine. The
// session store is authoritative: a valid token whose session is invalidated
// or unknown reports invalidated, and the caller is expected to clear
// cookies.
func (s *SessionService) Validate(portalID portals.ID, rawAccessToken string) (*Validation, error) {
	portal, err := s.portals.Get(portalID)
	if err != nil {
		return nil, err
	}

	if rawAccessToken == "" {
		return &Validation{State: StateUnauthenticated}, nil
	}

	intro, err := s.tokens.Introspect(rawAccessToken)
	if err != nil || intro.SessionID == "" || intro.Portal != portal.ID {
		// Unparseable or foreign tokens are treated as absent.
		return &Validation{State: StateUnauthenticated}, nil
	}

	session, sessErr := s.repos.Sessions.Get(intro.SessionID)
	if sessErr != nil || session.Status == sessions.StatusInvalidated {
		return &Validation{State: StateInvalidated, Claims: intro}, nil
	}

	now := s.nowTime()
	if !intro.Active || session.ExpiredAt(now) {
		return &Validation{State: StateExpired, Claims: intro}, nil
	}

	_ = s.repos.Sessions.Touch(session.ID, now, 0)

	if intro.ExpiresAt().Sub(now) <= portal.NearExpiryWindow {
		return &Validation{State: StateNearExpiry, Claims: intro}, nil
	}
	return &Validation{State: StateValid, Claims: intro}, nil
}

// Refresh exchanges a refresh token for a new access token, rotating the
// refresh token when the portal's policy says so. Every failure is hard: the
// HTTP layer clears the full cookie set and the client must log in again.
func (s *SessionService) Refresh(portalID portals.ID, rawRefreshToken string) (*LoginResult, error) {
	portal, err := s.portals.Get(portalID)
	if err != nil {
		return nil, err
	}

	if rawRefreshToken == "" {
		return nil, MissingRefreshTokenErr
	}

	stored, err := s.tokens.GetRefreshToken(rawRefreshToken)
	if err != nil || stored.PortalID != portal.ID {
		return nil, errors.Wrap(InvalidRefreshTokenErr, "[SessionService.Refresh] unknown token")
	}
	if stored.Consumed {
		// A rotated-out token resurfacing means a stale copy is in play,
		// so the whole session chain is revoked.
		_ = s.repos.Sessions.Invalidate(stored.SessionID)
		s.tokens.InvalidateSessionTokens(stored.SessionID)
		return nil, errors.Wrap(InvalidRefreshTokenErr, "[SessionService.Refresh] token already consumed")
	}

	now := s.nowTime()
	if stored.Expired(now) {
		s.tokens.InvalidateRefreshToken(stored.Token)
		return nil, errors.Wrap(InvalidRefreshTokenErr, "[SessionService.Refresh] token expired")
	}

	session, err := s.repos.Sessions.Get(stored.SessionID)
	if err != nil {
		s.tokens.InvalidateRefreshToken(stored.Token)
		return nil, errors.Wrap(InvalidRefreshTokenErr, "[SessionService.Refresh] session missing")
	}
	if session.Status == sessions.StatusInvalidated {
		s.tokens.InvalidateRefreshToken(stored.Token)
		return nil, errors.Wrap(InvalidRefreshTokenErr, "[SessionService.Refresh] session invalidated")
	}
	if session.OlderThan(portal.SessionAbsoluteCap, now) {
		// The absolute cap bounds indefinite renewal chains regardless of
		// individual token expiries.
		s.tokens.InvalidateSessionTokens(session.ID)
		_ = s.repos.Sessions.Invalidate(session.ID)
		return nil, errors.Wrap(SessionTooOldErr, "[SessionService.Refresh] absolute cap")
	}

	user, err := s.repos.Users.GetByID(stored.UserID)
	if err != nil || !user.Active {
		s.tokens.InvalidateSessionTokens(session.ID)
		_ = s.repos.Sessions.Invalidate(session.ID)
		return nil, errors.Wrap(InvalidRefreshTokenErr, "[SessionService.Refresh] user unavailable")
	}

	accessToken, accessExpiry, err := s.tokens.CreateAccessToken(user, portal, session.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[SessionService.Refresh] create access token")
	}

	issued := &token.IssuedTokens{
		AccessToken:   accessToken,
		AccessExpiry:  accessExpiry,
		RefreshToken:  stored.Token,
		RefreshExpiry: stored.ExpiresAt,
	}

	if portal.RotateRefreshTokens {
		rotated, err := s.tokens.CreateRefreshToken(user, portal, session.ID, stored.RememberMe)
		if err != nil {
			return nil, errors.Wrap(err, "[SessionService.Refresh] rotate refresh token")
		}
		issued.RefreshToken = rotated.Token
		issued.RefreshExpiry = rotated.ExpiresAt
		_ = s.repos.Sessions.Touch(session.ID, now, portal.RefreshTTL(stored.RememberMe))
	} else {
		_ = s.repos.Sessions.Touch(session.ID, now, 0)
	}

	return &LoginResult{User: user, Session: session, Tokens: issued}, nil
}

// Logout invalidates the session and discards its refresh token. It is
// idempotent: logging out an already-absent session succeeds.
func (s *SessionService) Logout(portalID portals.ID, sessionID, rawRefreshToken string) error {
	if _, err := s.portals.Get(portalID); err != nil {
		return err
	}

	if sessionID != "" {
		if err := s.repos.Sessions.Invalidate(sessionID); err != nil && !errors.Is(err, sessions.NotFoundErr) {
			return errors.Wrap(err, "[SessionService.Logout] invalidate session")
		}
		s.tokens.InvalidateSessionTokens(sessionID)
	}
	if rawRefreshToken != "" {
		s.tokens.InvalidateRefreshToken(rawRefreshToken)
	}
	return nil
}

// SweepExpiredSessions removes expired and invalidated sessions from the
// store. Intended to be run periodically by the host process.
func (s *SessionService) SweepExpiredSessions() (int, error) {
	return s.repos.Sessions.DeleteExpired(s.nowTime())
}

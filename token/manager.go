package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/token/refresh"
	"github.com/netvista/portal-auth/users"
	"github.com/pkg/errors"
)

// Introspection is the decoded, verified view of an access token. If Active
// is false the remaining fields may be unpopulated.
type Introspection struct {
	Active      bool       `json:"active"`
	Sub         string     `json:"sub,omitempty"`    // User ID
	Email       string     `json:"email,omitempty"`  // User email
	Role        string     `json:"role,omitempty"`   // Portal role
	Permissions []string   `json:"permissions,omitempty"`
	Tenant      string     `json:"tenant,omitempty"`
	Portal      portals.ID `json:"portal,omitempty"`
	SessionID   string     `json:"sid,omitempty"`
	Iat         int64      `json:"iat,omitempty"`
	Exp         int64      `json:"exp,omitempty"`
	Jti         string     `json:"jti,omitempty"`
}

// ExpiresAt returns the token expiry as a time.
func (i *Introspection) ExpiresAt() time.Time {
	return time.Unix(i.Exp, 0)
}

// IssuedTokens is the result of minting a token set for a login or refresh.
type IssuedTokens struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string // Empty when the portal issues no refresh token
	RefreshExpiry time.Time
}

// Manager mints and verifies access tokens and owns the server-side refresh
// token records. Per-portal lifetimes come from the portal policy at call
// time rather than being fixed at construction.
type Manager struct {
	signer      Signer
	refreshRepo refresh.Repo
	issuer      string
	nowFunc     func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(refreshRepo refresh.Repo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:      signer,
		refreshRepo: refreshRepo,
		issuer:      "portal-auth",
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// CreateAccessToken mints a signed access token for user on the given portal
// and session, using the portal's access TTL.
func (m *Manager) CreateAccessToken(user *users.User, portal portals.Portal, sessionID string) (string, time.Time, error) {
	now := m.nowFunc()
	expiry := now.Add(portal.AccessTokenTTL)

	claims := jwt.MapClaims{
		"iss":         m.issuer,
		"sub":         user.ID,
		"email":       user.Email,
		"role":        string(user.Role),
		"permissions": user.Permissions,
		"tenant":      user.TenantID,
		"portal":      string(portal.ID),
		"sid":         sessionID,
		"iat":         now.Unix(),
		"exp":         expiry.Unix(),
		"jti":         uuid.New().String(),
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Manager.CreateAccessToken] sign")
	}
	return signed, expiry, nil
}

// CreateRefreshToken mints an opaque refresh token bound to the session and
// persists the server-side record. Any previous token for the session is
// retired first so at most one refresh token is live per session; the retired
// record is kept so a replay of a rotated-out token can be recognized.
func (m *Manager) CreateRefreshToken(user *users.User, portal portals.Portal, sessionID string, rememberMe bool) (*refresh.StoredRefreshToken, error) {
	prev, err := m.refreshRepo.GetBySessionID(sessionID)
	switch {
	case err == nil:
		prev.Consumed = true
		if err := m.refreshRepo.Upsert(prev); err != nil {
			return nil, errors.Wrap(err, "[Manager.CreateRefreshToken] retire previous")
		}
	case !errors.Is(err, refresh.NotFoundErr):
		return nil, errors.Wrap(err, "[Manager.CreateRefreshToken] load previous")
	}

	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, errors.Wrap(err, "[Manager.CreateRefreshToken] rand.Read")
	}

	now := m.nowFunc()
	stored := &refresh.StoredRefreshToken{
		Token:      hex.EncodeToString(tokenBytes),
		UserID:     user.ID,
		PortalID:   portal.ID,
		SessionID:  sessionID,
		RememberMe: rememberMe,
		IssuedAt:   now,
		ExpiresAt:  now.Add(portal.RefreshTTL(rememberMe)),
	}
	if err := m.refreshRepo.Upsert(stored); err != nil {
		return nil, errors.Wrap(err, "[Manager.CreateRefreshToken] upsert")
	}
	return stored, nil
}

// Issue mints the full token set for a login: access token always, refresh
// token when the portal has a refresh lifetime configured.
func (m *Manager) Issue(user *users.User, portal portals.Portal, sessionID string, rememberMe bool) (*IssuedTokens, error) {
	accessToken, accessExpiry, err := m.CreateAccessToken(user, portal, sessionID)
	if err != nil {
		return nil, err
	}

	issued := &IssuedTokens{AccessToken: accessToken, AccessExpiry: accessExpiry}

	if portal.RefreshTTL(rememberMe) > 0 {
		stored, err := m.CreateRefreshToken(user, portal, sessionID, rememberMe)
		if err != nil {
			return nil, err
		}
		issued.RefreshToken = stored.Token
		issued.RefreshExpiry = stored.ExpiresAt
	}
	return issued, nil
}

// Introspect parses and verifies a raw access token. An expired or
// unverifiable token yields Active=false; expiry is always checked against
// the manager's clock, never trusted implicitly.
func (m *Manager) Introspect(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, nil
	}

	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc))
	if err != nil || !parsed.Valid {
		// jwt.Parse rejects expired tokens; still surface the claims so the
		// validator can distinguish "expired" from "garbage".
		if errors.Is(err, jwt.ErrTokenExpired) {
			return m.expiredIntrospection(rawToken)
		}
		return &Introspection{Active: false}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return &Introspection{Active: false}, errors.New("error extracting claims from token")
	}

	intro := introspectionFromClaims(claims)
	intro.Active = m.nowFunc().Unix() <= intro.Exp
	return intro, nil
}

// GetRefreshToken loads the server-side record for an opaque refresh token.
func (m *Manager) GetRefreshToken(rawToken string) (*refresh.StoredRefreshToken, error) {
	return m.refreshRepo.Get(rawToken)
}

// InvalidateRefreshToken discards a refresh token record. Unknown tokens are
// not an error, which keeps logout idempotent.
func (m *Manager) InvalidateRefreshToken(rawToken string) {
	_ = m.refreshRepo.Delete(rawToken)
}

// InvalidateSessionTokens discards the session's refresh token records,
// live and retired alike.
func (m *Manager) InvalidateSessionTokens(sessionID string) {
	_ = m.refreshRepo.DeleteBySessionID(sessionID)
}

// expiredIntrospection extracts claims from a token that failed verification
// solely due to expiry. The signature is re-checked manually so forged tokens
// never reach the expired classification.
func (m *Manager) expiredIntrospection(rawToken string) (*Introspection, error) {
	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return &Introspection{Active: false}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return &Introspection{Active: false}, errors.New("error extracting claims from token")
	}
	intro := introspectionFromClaims(claims)
	intro.Active = false
	return intro, nil
}

func introspectionFromClaims(claims jwt.MapClaims) *Introspection {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	tenant, _ := claims["tenant"].(string)
	portal, _ := claims["portal"].(string)
	sid, _ := claims["sid"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	var permissions []string
	if claimPerms, ok := claims["permissions"].([]interface{}); ok {
		permissions = interfaceArrayToString(claimPerms)
	}

	return &Introspection{
		Sub:         sub,
		Email:       email,
		Role:        role,
		Permissions: permissions,
		Tenant:      tenant,
		Portal:      portals.ID(portal),
		SessionID:   sid,
		Iat:         int64(iat),
		Exp:         int64(exp),
		Jti:         jti,
	}
}

func interfaceArrayToString(iArray []interface{}) []string {
	stringSlice := make([]string, 0)
	for _, v := range iArray {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

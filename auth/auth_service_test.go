package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/netvista/portal-auth/auth"
	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/sessions"
	fakesessionrepo "github.com/netvista/portal-auth/sessions/repofakes"
	"github.com/netvista/portal-auth/token"
	fakerefreshrepo "github.com/netvista/portal-auth/token/refresh/repofake"
	"github.com/netvista/portal-auth/users"
	fakeuserrepo "github.com/netvista/portal-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testSecret       = "test-signing-secret"
	testUserID       = "user-1"
	testUserEmail    = "customer@example.com"
	testUserPassword = "Password123"
	testAccountNo    = "ACC-100200"
)

// testFixture holds all test dependencies
type testFixture struct {
	userRepo    *fakeuserrepo.FakeUserRepo
	sessionRepo *fakesessionrepo.FakeSessionRepo
	refreshRepo *fakerefreshrepo.FakeRefreshTokenRepo
	tokens      *token.Manager
	registry    *portals.Registry
	service     *auth.SessionService
	now         time.Time
}

// setupTestFixture creates a service wired to fakes with a controllable clock.
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		userRepo:    fakeuserrepo.NewFakeUserRepo(),
		sessionRepo: fakesessionrepo.NewFakeSessionRepo(),
		refreshRepo: fakerefreshrepo.NewFakeRefreshTokenRepo(),
		registry:    portals.NewRegistry(portals.Defaults()...),
		now:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	nowFunc := func() time.Time { return f.now }
	f.tokens = token.New(f.refreshRepo, token.NewHMACSigner(testSecret), token.WithNowFunc(nowFunc))

	service, err := auth.NewSessionService(
		auth.Repos{Users: f.userRepo, Sessions: f.sessionRepo},
		f.tokens,
		f.registry,
		auth.WithNowTime(nowFunc),
	)
	require.NoError(t, err)
	f.service = service

	return f
}

// advance moves the fixture clock forward.
func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// createTestUser creates and stores the default customer user.
func (f *testFixture) createTestUser(t *testing.T) *users.User {
	t.Helper()

	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)

	user := &users.User{
		ID:            testUserID,
		Email:         testUserEmail,
		Name:          "Pat Customer",
		Role:          users.RoleCustomer,
		Permissions:   []string{"billing:read", "tickets:create"},
		TenantID:      "tenant-1",
		AccountNumber: testAccountNo,
		PasswordHash:  hash,
		Active:        true,
	}
	require.NoError(t, f.userRepo.Upsert(user))
	return user
}

func (f *testFixture) login(t *testing.T, rememberMe bool) *auth.LoginResult {
	t.Helper()

	result, err := f.service.Login(portals.Customer, testUserEmail, testUserPassword, rememberMe)
	require.NoError(t, err)
	return result
}

func TestSessionService_Login(t *testing.T) {
	t.Run("success returns future expiry", func(t *testing.T) {
		f := setupTestFixture(t)
		user := f.createTestUser(t)

		result := f.login(t, false)
		require.Equal(t, user.ID, result.User.ID)
		require.Equal(t, testAccountNo, result.User.AccountNumber)
		require.NotEmpty(t, result.Tokens.AccessToken)
		require.NotEmpty(t, result.Tokens.RefreshToken)
		require.True(t, result.Tokens.AccessExpiry.After(f.now))
		require.True(t, result.Tokens.RefreshExpiry.After(f.now))
		require.Equal(t, sessions.StatusActive, result.Session.Status)
	})

	t.Run("malformed email rejected before lookup", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		lookupsBefore := f.userRepo.Lookups()

		_, err := f.service.Login(portals.Customer, "not-an-email", testUserPassword, false)
		require.ErrorIs(t, err, auth.InvalidCredentialFormatErr)
		require.Equal(t, lookupsBefore, f.userRepo.Lookups(), "no directory lookup for malformed input")
	})

	t.Run("short password rejected before lookup", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		lookupsBefore := f.userRepo.Lookups()

		_, err := f.service.Login(portals.Customer, testUserEmail, "short", false)
		require.ErrorIs(t, err, auth.InvalidCredentialFormatErr)
		require.Equal(t, lookupsBefore, f.userRepo.Lookups())
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)

		_, errUnknown := f.service.Login(portals.Customer, "ghost@example.com", "whatever-password", false)
		_, errWrongPw := f.service.Login(portals.Customer, testUserEmail, "wrong-password", false)
		require.ErrorIs(t, errUnknown, auth.InvalidCredentialsErr)
		require.ErrorIs(t, errWrongPw, auth.InvalidCredentialsErr)
	})

	t.Run("inactive user rejected generically", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		require.NoError(t, f.userRepo.SetActive(testUserEmail, false))

		_, err := f.service.Login(portals.Customer, testUserEmail, testUserPassword, false)
		require.ErrorIs(t, err, auth.InvalidCredentialsErr)
	})

	t.Run("unknown portal", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)

		_, err := f.service.Login("billing", testUserEmail, testUserPassword, false)
		require.ErrorIs(t, err, portals.UnknownPortalErr)
	})

	t.Run("remember me extends refresh expiry", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)

		short := f.login(t, false)
		long := f.login(t, true)
		require.True(t, long.Tokens.RefreshExpiry.After(short.Tokens.RefreshExpiry))
	})

	t.Run("token issue failure is fatal and leaves no session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		f.refreshRepo.ForcedErr = errForced

		result, err := f.service.Login(portals.Customer, testUserEmail, testUserPassword, false)
		require.Error(t, err)
		require.Nil(t, result)
	})
}

var errForced = errors.New("forced failure")

func TestSessionService_Validate(t *testing.T) {
	t.Run("no token is unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)

		v, err := f.service.Validate(portals.Customer, "")
		require.NoError(t, err)
		require.Equal(t, auth.StateUnauthenticated, v.State)
		require.False(t, v.Authenticated())
	})

	t.Run("garbage token is unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)

		v, err := f.service.Validate(portals.Customer, "not-a-token")
		require.NoError(t, err)
		require.Equal(t, auth.StateUnauthenticated, v.State)
	})

	t.Run("fresh token is valid", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		v, err := f.service.Validate(portals.Customer, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, auth.StateValid, v.State)
		require.True(t, v.Authenticated())
		require.Equal(t, testUserID, v.Claims.Sub)
		require.Equal(t, result.Session.ID, v.Claims.SessionID)
	})

	t.Run("token within window is near-expiry", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		// Customer access TTL is 30m, near-expiry window 5m.
		f.advance(26 * time.Minute)

		v, err := f.service.Validate(portals.Customer, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, auth.StateNearExpiry, v.State)
		require.True(t, v.Authenticated())
	})

	t.Run("expired token is expired, never valid", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		f.advance(31 * time.Minute)

		v, err := f.service.Validate(portals.Customer, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, auth.StateExpired, v.State)
		require.False(t, v.Authenticated())
		require.Equal(t, result.Session.ID, v.Claims.SessionID)
	})

	t.Run("invalidated session beats a valid token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		require.NoError(t, f.sessionRepo.Invalidate(result.Session.ID))

		v, err := f.service.Validate(portals.Customer, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, auth.StateInvalidated, v.State)
	})

	t.Run("token from another portal is unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		v, err := f.service.Validate(portals.Admin, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, auth.StateUnauthenticated, v.State)
	})

	t.Run("valid token updates session activity", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		f.advance(10 * time.Minute)
		_, err := f.service.Validate(portals.Customer, result.Tokens.AccessToken)
		require.NoError(t, err)

		session, err := f.sessionRepo.Get(result.Session.ID)
		require.NoError(t, err)
		require.Equal(t, f.now, session.LastActivityAt)
	})
}

func TestSessionService_Refresh(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Refresh(portals.Customer, "")
		require.ErrorIs(t, err, auth.MissingRefreshTokenErr)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.service.Refresh(portals.Customer, "deadbeef")
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)
	})

	t.Run("success rotates the refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		f.advance(time.Hour)

		refreshed, err := f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, refreshed.Tokens.AccessToken)
		require.NotEqual(t, result.Tokens.AccessToken, refreshed.Tokens.AccessToken)
		require.NotEqual(t, result.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)

		// The rotated token keeps working.
		_, err = f.service.Refresh(portals.Customer, refreshed.Tokens.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("replaying a rotated-out token revokes the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		refreshed, err := f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.NoError(t, err)

		// Presenting the retired token again is rejected and kills the
		// session, not just the request.
		_, err = f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)

		session, err := f.sessionRepo.Get(result.Session.ID)
		require.NoError(t, err)
		require.Equal(t, sessions.StatusInvalidated, session.Status)

		// The legitimately rotated token dies with it.
		_, err = f.service.Refresh(portals.Customer, refreshed.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		f.advance(8 * 24 * time.Hour)

		_, err := f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)
	})

	t.Run("absolute cap rejects old sessions despite valid tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, true) // 30 day refresh TTL

		// Keep refreshing within token lifetimes; the 7 day cap still bites.
		f.advance(7*24*time.Hour + time.Minute)

		_, err := f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.SessionTooOldErr)

		// The session is invalidated, not merely refused.
		session, err := f.sessionRepo.Get(result.Session.ID)
		require.NoError(t, err)
		require.Equal(t, sessions.StatusInvalidated, session.Status)
	})

	t.Run("invalidated session refuses refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		require.NoError(t, f.sessionRepo.Invalidate(result.Session.ID))

		_, err := f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)
	})

	t.Run("deactivated user refuses refresh and kills session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)
		require.NoError(t, f.userRepo.SetActive(testUserEmail, false))

		_, err := f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)

		session, err := f.sessionRepo.Get(result.Session.ID)
		require.NoError(t, err)
		require.Equal(t, sessions.StatusInvalidated, session.Status)
	})

	t.Run("token issued for another portal", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		_, err := f.service.Refresh(portals.Admin, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)
	})
}

func TestSessionService_Logout(t *testing.T) {
	t.Run("invalidates session and consumes refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		require.NoError(t, f.service.Logout(portals.Customer, result.Session.ID, result.Tokens.RefreshToken))

		v, err := f.service.Validate(portals.Customer, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, auth.StateInvalidated, v.State)

		_, err = f.service.Refresh(portals.Customer, result.Tokens.RefreshToken)
		require.ErrorIs(t, err, auth.InvalidRefreshTokenErr)
	})

	t.Run("idempotent", func(t *testing.T) {
		f := setupTestFixture(t)
		f.createTestUser(t)
		result := f.login(t, false)

		require.NoError(t, f.service.Logout(portals.Customer, result.Session.ID, result.Tokens.RefreshToken))
		require.NoError(t, f.service.Logout(portals.Customer, result.Session.ID, result.Tokens.RefreshToken))
		require.NoError(t, f.service.Logout(portals.Customer, "", ""))
	})
}

func TestSessionService_SweepExpiredSessions(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t)
	result := f.login(t, false)

	require.NoError(t, f.service.Logout(portals.Customer, result.Session.ID, result.Tokens.RefreshToken))

	removed, err := f.service.SweepExpiredSessions()
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}

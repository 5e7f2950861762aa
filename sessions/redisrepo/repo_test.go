package redisrepo_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/sessions"
	"github.com/netvista/portal-auth/sessions/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *redisrepo.Repo {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.New(client)
}

func newTestSession() *sessions.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &sessions.Session{
		ID:             uuid.New().String(),
		UserID:         "user-1",
		PortalID:       portals.Customer,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
		Status:         sessions.StatusActive,
	}
}

func TestRepo_Lifecycle(t *testing.T) {
	repo := newTestRepo(t)
	session := newTestSession()

	require.NoError(t, repo.Create(session))
	t.Cleanup(func() { _ = repo.Delete(session.ID) })

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)
	require.Equal(t, sessions.StatusActive, got.Status)

	later := session.LastActivityAt.Add(10 * time.Minute)
	require.NoError(t, repo.Touch(session.ID, later, time.Hour))
	got, err = repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, later, got.LastActivityAt)
	require.Equal(t, later.Add(time.Hour), got.ExpiresAt)

	require.NoError(t, repo.Invalidate(session.ID))
	got, err = repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusInvalidated, got.Status)

	require.NoError(t, repo.Delete(session.ID))
	_, err = repo.Get(session.ID)
	require.ErrorIs(t, err, sessions.NotFoundErr)
}

func TestRepo_UpdateUnknownSession(t *testing.T) {
	repo := newTestRepo(t)

	require.ErrorIs(t, repo.Touch("no-such-session", time.Now(), 0), sessions.NotFoundErr)
	require.ErrorIs(t, repo.Invalidate("no-such-session"), sessions.NotFoundErr)
}

func TestRepo_InvalidateSurvivesConcurrentTouches(t *testing.T) {
	repo := newTestRepo(t)
	session := newTestSession()

	require.NoError(t, repo.Create(session))
	t.Cleanup(func() { _ = repo.Delete(session.ID) })

	// Hammer the session with activity updates while it gets revoked.
	// The revocation must never be overwritten by a racing Touch.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = repo.Touch(session.ID, time.Now(), 0)
			}
		}()
	}

	require.Eventually(t, func() bool {
		return repo.Invalidate(session.ID) == nil
	}, 5*time.Second, 10*time.Millisecond)
	wg.Wait()

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.Equal(t, sessions.StatusInvalidated, got.Status)
}

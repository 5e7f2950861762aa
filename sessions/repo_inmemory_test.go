package sessions_test

import (
	"testing"
	"time"

	"github.com/netvista/portal-auth/portals"
	"github.com/netvista/portal-auth/sessions"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_Lifecycle(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	session := &sessions.Session{
		ID:             "sess-1",
		UserID:         "user-1",
		PortalID:       portals.Customer,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(7 * 24 * time.Hour),
		Status:         sessions.StatusActive,
	}
	require.NoError(t, repo.Create(session))

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := repo.Get("sess-1")
		require.NoError(t, err)
		got.Status = sessions.StatusExpired

		again, err := repo.Get("sess-1")
		require.NoError(t, err)
		require.Equal(t, sessions.StatusActive, again.Status)
	})

	t.Run("touch extends expiry", func(t *testing.T) {
		later := now.Add(time.Hour)
		require.NoError(t, repo.Touch("sess-1", later, 7*24*time.Hour))

		got, err := repo.Get("sess-1")
		require.NoError(t, err)
		require.Equal(t, later, got.LastActivityAt)
		require.Equal(t, later.Add(7*24*time.Hour), got.ExpiresAt)
	})

	t.Run("invalidate flips status", func(t *testing.T) {
		require.NoError(t, repo.Invalidate("sess-1"))
		got, err := repo.Get("sess-1")
		require.NoError(t, err)
		require.Equal(t, sessions.StatusInvalidated, got.Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := repo.Get("missing")
		require.ErrorIs(t, err, sessions.NotFoundErr)
		require.ErrorIs(t, repo.Touch("missing", now, 0), sessions.NotFoundErr)
		require.ErrorIs(t, repo.Invalidate("missing"), sessions.NotFoundErr)
	})
}

func TestInMemoryRepo_DeleteExpired(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(&sessions.Session{ID: "live", ExpiresAt: now.Add(time.Hour), Status: sessions.StatusActive}))
	require.NoError(t, repo.Create(&sessions.Session{ID: "stale", ExpiresAt: now.Add(-time.Hour), Status: sessions.StatusActive}))
	require.NoError(t, repo.Create(&sessions.Session{ID: "revoked", ExpiresAt: now.Add(time.Hour), Status: sessions.StatusInvalidated}))

	removed, err := repo.DeleteExpired(now)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = repo.Get("live")
	require.NoError(t, err)
	_, err = repo.Get("stale")
	require.ErrorIs(t, err, sessions.NotFoundErr)
}

func TestSession_OlderThan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := &sessions.Session{CreatedAt: now.Add(-8 * 24 * time.Hour)}
	require.True(t, session.OlderThan(7*24*time.Hour, now))
	require.False(t, session.OlderThan(9*24*time.Hour, now))
}

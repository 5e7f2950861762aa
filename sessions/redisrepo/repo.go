// Package redisrepo provides a Redis-backed session store so sessions are
// shared across server instances and survive process restarts.
package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netvista/portal-auth/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ sessions.Repo = (*Repo)(nil)

const keyPrefix = "portal-auth:session:"

// maxTxRetries bounds how often an optimistic update is replayed when a
// concurrent writer touches the same session key.
const maxTxRetries = 5

// Repo stores sessions as JSON payloads keyed by session ID, with the Redis
// key TTL mirroring the session expiry. Updates go through WATCH/MULTI so a
// Touch racing an Invalidate can never resurrect a revoked session.
type Repo struct {
	client redis.UniversalClient
	now    func() time.Time
}

func New(client redis.UniversalClient) *Repo {
	return &Repo{client: client, now: time.Now}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (r *Repo) Create(session *sessions.Session) error {
	if session.ID == "" {
		return errors.New("sessionID is required")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[Repo.Create] marshal session")
	}
	if err := r.client.Set(context.Background(), key(session.ID), payload, r.ttl(session)).Err(); err != nil {
		return errors.Wrap(err, "[Repo.Create] persist session")
	}
	return nil
}

func (r *Repo) Get(sessionID string) (*sessions.Session, error) {
	payload, err := r.client.Get(context.Background(), key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sessions.NotFoundErr
		}
		return nil, errors.Wrap(err, "[Repo.Get] load session")
	}

	var session sessions.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, errors.Wrap(err, "[Repo.Get] decode session")
	}
	return &session, nil
}

func (r *Repo) Touch(sessionID string, now time.Time, extend time.Duration) error {
	return r.update(sessionID, func(session *sessions.Session) {
		session.LastActivityAt = now
		if extend > 0 {
			session.ExpiresAt = now.Add(extend)
		}
	})
}

func (r *Repo) Invalidate(sessionID string) error {
	return r.update(sessionID, func(session *sessions.Session) {
		session.Status = sessions.StatusInvalidated
	})
}

func (r *Repo) Delete(sessionID string) error {
	if err := r.client.Del(context.Background(), key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "[Repo.Delete] delete session")
	}
	return nil
}

// DeleteExpired is a no-op for Redis: key TTLs already evict expired
// sessions. Invalidated sessions are retained until their TTL lapses so
// reuse attempts still surface as invalidated rather than unknown.
func (r *Repo) DeleteExpired(time.Time) (int, error) {
	return 0, nil
}

// update applies mutate under WATCH so the read-modify-write round trip is
// serialized per session key. A conflicting writer aborts the transaction and
// the update is replayed against the fresh payload.
func (r *Repo) update(sessionID string, mutate func(*sessions.Session)) error {
	ctx := context.Background()
	k := key(sessionID)

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return sessions.NotFoundErr
			}
			return errors.Wrap(err, "[Repo.update] load session")
		}

		var session sessions.Session
		if err := json.Unmarshal(payload, &session); err != nil {
			return errors.Wrap(err, "[Repo.update] decode session")
		}
		mutate(&session)

		updated, err := json.Marshal(&session)
		if err != nil {
			return errors.Wrap(err, "[Repo.update] marshal session")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, updated, r.ttl(&session))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txn, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errors.Errorf("[Repo.update] session %s: too many concurrent updates", sessionID)
}

func (r *Repo) ttl(session *sessions.Session) time.Duration {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		ttl = time.Minute // keep just long enough for the validator to report expiry
	}
	return ttl
}

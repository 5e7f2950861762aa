package fakerefreshrepo

import (
	"github.com/netvista/portal-auth/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo wraps the in-memory repo with error injection so
// tests can exercise issue-failure paths.
type FakeRefreshTokenRepo struct {
	*refresh.InMemoryRepo

	// ForcedErr, when set, is returned by Upsert.
	ForcedErr error
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{InMemoryRepo: refresh.NewInMemoryRepo()}
}

func (r *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	if r.ForcedErr != nil {
		return r.ForcedErr
	}
	return r.InMemoryRepo.Upsert(refreshToken)
}

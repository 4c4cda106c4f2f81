package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProfileStore struct {
	byID map[string]*Profile
}

func (s *stubProfileStore) GetProfileByUserID(_ context.Context, userID string) (*Profile, error) {
	for _, p := range s.byID {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubProfileStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	if p, ok := s.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *stubProfileStore) UpdateProfileRole(_ context.Context, id string, role Role) error {
	s.byID[id].Role = role
	return nil
}

func newStubProfileStore() *stubProfileStore {
	return &stubProfileStore{byID: map[string]*Profile{
		"p-admin": {ID: "p-admin", UserID: "admin", Role: RoleSuperadmin},
		"p-user":  {ID: "p-user", UserID: "user", Role: RoleFree},
	}}
}

func TestProfileMe(t *testing.T) {
	svc := NewProfileService(newStubProfileStore(), nil)

	p, err := svc.Me(context.Background(), &Session{UserID: "user"})
	require.NoError(t, err)
	assert.Equal(t, "p-user", p.ID)

	_, err = svc.Me(context.Background(), nil)
	assert.True(t, HasCode(err, ErrorUnauthorized))
	_, err = svc.Me(context.Background(), &Session{UserID: "ghost"})
	assert.True(t, HasCode(err, ErrorNotFound))
}

func TestProfileSetRole(t *testing.T) {
	store := newStubProfileStore()
	svc := NewProfileService(store, nil)
	ctx := context.Background()

	_, err := svc.SetRole(ctx, &Session{UserID: "user"}, "p-user", "PREMIUM")
	assert.True(t, HasCode(err, ErrorForbidden))
	assert.Equal(t, RoleFree, store.byID["p-user"].Role)

	_, err = svc.SetRole(ctx, &Session{UserID: "admin"}, "p-user", "gold")
	assert.True(t, HasCode(err, ErrorInvalid))

	_, err = svc.SetRole(ctx, &Session{UserID: "admin"}, "p-missing", "premium")
	assert.True(t, HasCode(err, ErrorNotFound))

	p, err := svc.SetRole(ctx, &Session{UserID: "admin"}, "p-user", "premium")
	require.NoError(t, err)
	assert.Equal(t, RolePremium, p.Role)
	assert.Equal(t, RolePremium, store.byID["p-user"].Role)
}

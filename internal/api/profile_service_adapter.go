package api

import (
	"context"

	"github.com/soaringjerry/Vigil/internal/services"
)

type profileStoreAdapter struct {
	store Store
}

func newProfileStoreAdapter(store Store) services.ProfileStore {
	return &profileStoreAdapter{store: store}
}

func (a *profileStoreAdapter) GetProfileByUserID(ctx context.Context, userID string) (*services.Profile, error) {
	p, err := a.store.GetProfileByUserID(ctx, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return convertProfile(p), nil
}

func (a *profileStoreAdapter) GetProfile(ctx context.Context, id string) (*services.Profile, error) {
	p, err := a.store.GetProfile(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	return convertProfile(p), nil
}

func (a *profileStoreAdapter) UpdateProfileRole(ctx context.Context, id string, role services.Role) error {
	return a.store.UpdateProfileRole(ctx, id, string(role))
}

var _ services.ProfileStore = (*profileStoreAdapter)(nil)

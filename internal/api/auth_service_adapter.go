package api

import (
	"context"
	"errors"

	"github.com/soaringjerry/Vigil/internal/models"
	"github.com/soaringjerry/Vigil/internal/services"
)

type authStoreAdapter struct {
	store Store
}

func newAuthStoreAdapter(store Store) services.AuthStore {
	return &authStoreAdapter{store: store}
}

func (a *authStoreAdapter) FindUserByEmail(ctx context.Context, email string) (*services.User, error) {
	u, err := a.store.FindUserByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, err
	}
	return &services.User{ID: u.ID, Email: u.Email, PassHash: u.PassHash, CreatedAt: u.CreatedAt}, nil
}

func (a *authStoreAdapter) CreateAccount(ctx context.Context, u *services.User, p *services.Profile) error {
	if u == nil || p == nil {
		return services.NewInvalidError("user and profile required")
	}
	err := a.store.CreateAccount(ctx,
		&models.UserRecord{ID: u.ID, Email: u.Email, PassHash: u.PassHash, CreatedAt: u.CreatedAt},
		&models.ProfileRecord{ID: p.ID, UserID: p.UserID, DisplayName: p.DisplayName, Role: string(p.Role), CreatedAt: p.CreatedAt},
	)
	if errors.Is(err, ErrDuplicateEmail) {
		return services.ErrEmailTaken
	}
	return err
}

func (a *authStoreAdapter) GetProfileByUserID(ctx context.Context, userID string) (*services.Profile, error) {
	p, err := a.store.GetProfileByUserID(ctx, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return convertProfile(p), nil
}

var _ services.AuthStore = (*authStoreAdapter)(nil)

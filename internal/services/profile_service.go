package services

import (
	"context"

	"go.uber.org/zap"
)

type ProfileStore interface {
	GetProfileByUserID(ctx context.Context, userID string) (*Profile, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	UpdateProfileRole(ctx context.Context, id string, role Role) error
}

// ProfileService exposes the caller's profile and SUPERADMIN role management.
type ProfileService struct {
	store ProfileStore
	log   *zap.Logger
}

func NewProfileService(store ProfileStore, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{store: store, log: log}
}

// Me returns the profile attached to the session.
func (s *ProfileService) Me(ctx context.Context, sess *Session) (*Profile, error) {
	if sess == nil || sess.UserID == "" {
		return nil, NewUnauthorizedError("authentication required")
	}
	p, err := s.store.GetProfileByUserID(ctx, sess.UserID)
	if err != nil {
		return nil, NewDependencyError("failed to load profile", err)
	}
	if p == nil {
		return nil, NewNotFoundError("profile not found")
	}
	return p, nil
}

// SetRole changes another profile's role. Only SUPERADMIN may call it.
func (s *ProfileService) SetRole(ctx context.Context, sess *Session, profileID, role string) (*Profile, error) {
	actor, err := s.Me(ctx, sess)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleSuperadmin {
		return nil, NewForbiddenError("forbidden")
	}
	r, ok := ParseRole(role)
	if !ok {
		return nil, NewInvalidError("role must be FREE, PREMIUM or SUPERADMIN")
	}
	target, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, NewDependencyError("failed to load profile", err)
	}
	if target == nil {
		return nil, NewNotFoundError("profile not found")
	}
	if err := s.store.UpdateProfileRole(ctx, target.ID, r); err != nil {
		s.log.Error("role update failed", zap.String("profile_id", target.ID), zap.Error(err))
		return nil, NewDependencyError("failed to update role", err)
	}
	s.log.Info("profile role changed",
		zap.String("actor", actor.ID),
		zap.String("profile_id", target.ID),
		zap.String("from", string(target.Role)),
		zap.String("to", string(r)),
	)
	target.Role = r
	return target, nil
}

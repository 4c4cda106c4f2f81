package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken is returned by CreateAccount when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

type AuthStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// CreateAccount inserts the user and its profile atomically.
	CreateAccount(ctx context.Context, u *User, p *Profile) error
	GetProfileByUserID(ctx context.Context, userID string) (*Profile, error)
}

type TokenSigner func(uid, email string, ttl time.Duration) (string, error)

const minPasswordLength = 8

type AuthService struct {
	store     AuthStore
	emails    *EmailPolicy
	log       *zap.Logger
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ProfileID string `json:"profileId"`
	Role      Role   `json:"role"`
}

func NewAuthService(store AuthStore, signer TokenSigner, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		store:     store,
		emails:    NewEmailPolicy(),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		signToken: signer,
		tokenTTL:  30 * 24 * time.Hour,
	}
}

// WithTokenTTL overrides the default 30 day session lifetime.
func (s *AuthService) WithTokenTTL(ttl time.Duration) *AuthService {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
	return s
}

// Register creates a user and its FREE profile, then signs a session token.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email, err := s.emails.CheckFormat(email)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(email)
	if len(password) < minPasswordLength {
		return nil, NewInvalidError("password must be at least 8 characters")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, NewDependencyError("failed to look up user", err)
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewDependencyError("failed to hash password", err)
	}
	now := s.now()
	user := &User{ID: s.idGen(), Email: email, PassHash: hash, CreatedAt: now}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = displayNameFromEmail(email)
	}
	profile := &Profile{ID: s.idGen(), UserID: user.ID, DisplayName: displayName, Role: RoleFree, CreatedAt: now}
	if err := s.store.CreateAccount(ctx, user, profile); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, NewConflictError("email exists")
		}
		s.log.Error("account insert failed", zap.Error(err))
		return nil, NewDependencyError("failed to create account", err)
	}
	s.log.Info("account registered", zap.String("user_id", user.ID), zap.String("profile_id", profile.ID))
	return s.issue(user, profile)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, NewDependencyError("failed to look up user", err)
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	profile, err := s.store.GetProfileByUserID(ctx, u.ID)
	if err != nil {
		return nil, NewDependencyError("failed to load profile", err)
	}
	if profile == nil {
		return nil, NewNotFoundError("profile not found")
	}
	return s.issue(u, profile)
}

func (s *AuthService) issue(u *User, p *Profile) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewDependencyError("token signer not configured", nil)
	}
	token, err := s.signToken(u.ID, u.Email, s.tokenTTL)
	if err != nil {
		return nil, NewDependencyError("failed to sign token", err)
	}
	return &AuthResult{Token: token, UserID: u.ID, ProfileID: p.ID, Role: p.Role}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

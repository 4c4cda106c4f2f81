package api

import (
	"context"
	"errors"
	"time"

	"github.com/soaringjerry/Vigil/internal/models"
)

// Stores translate their unique-constraint violations into these.
var (
	ErrDuplicateEmail      = errors.New("duplicate user email")
	ErrDuplicateAccessCode = errors.New("duplicate access code")
)

// Store is the persistence boundary shared by the memory, SQLite and Postgres
// implementations. Getters return (nil, nil) when nothing matches.
type Store interface {
	InsertEvaluation(ctx context.Context, ev *models.EvaluationRecord) error
	GetEvaluation(ctx context.Context, id string) (*models.EvaluationRecord, error)
	ListEvaluationsByProfile(ctx context.Context, profileID string) ([]*models.EvaluationRecord, error)

	CreateAccount(ctx context.Context, u *models.UserRecord, p *models.ProfileRecord) error
	FindUserByEmail(ctx context.Context, email string) (*models.UserRecord, error)
	GetProfile(ctx context.Context, id string) (*models.ProfileRecord, error)
	GetProfileByUserID(ctx context.Context, userID string) (*models.ProfileRecord, error)
	UpdateProfileRole(ctx context.Context, id, role string) error

	// ClaimWelcome records recipient until expiresAt unless a claim is still live at now.
	ClaimWelcome(ctx context.Context, recipient string, now, expiresAt time.Time) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*MemoryStore)(nil)

//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/models"
)

func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("VIGIL_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("VIGIL_TEST_POSTGRES_URL not set")
	}
	s, err := OpenPostgres(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStoreFlow(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	uid, pid := uuid.NewString(), uuid.NewString()
	email := "pg-" + uid[:8] + "@acme.io"
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.CreateAccount(ctx,
		&models.UserRecord{ID: uid, Email: email, PassHash: []byte("h"), CreatedAt: now},
		&models.ProfileRecord{ID: pid, UserID: uid, Role: "PREMIUM", CreatedAt: now},
	))
	err := s.CreateAccount(ctx,
		&models.UserRecord{ID: uuid.NewString(), Email: email, PassHash: []byte("h"), CreatedAt: now},
		&models.ProfileRecord{ID: uuid.NewString(), UserID: uuid.NewString(), Role: "FREE", CreatedAt: now},
	)
	assert.ErrorIs(t, err, api.ErrDuplicateEmail)

	older, newer := uuid.NewString(), uuid.NewString()
	require.NoError(t, s.InsertEvaluation(ctx, &models.EvaluationRecord{ID: older, Type: "INITIAL", Title: "t", Answers: `{"a":1}`, Score: 1, ProfileID: &pid, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.InsertEvaluation(ctx, &models.EvaluationRecord{ID: newer, Type: "ADVANCED", Title: "t", Answers: `{"a":2}`, Score: 2, ProfileID: &pid, CreatedAt: now}))

	list, err := s.ListEvaluationsByProfile(ctx, pid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer, list[0].ID)

	code := "PG" + uid[:10]
	guestID := uuid.NewString()
	guestEmail := "guest@acme.io"
	require.NoError(t, s.InsertEvaluation(ctx, &models.EvaluationRecord{
		ID: guestID, Type: "INITIAL", Title: "t", Answers: `{}`, AccessCode: &code, GuestEmail: &guestEmail,
		Metadata: `{"interest": {"reason": "audit"}}`, CreatedAt: now,
	}))
	dupID := uuid.NewString()
	err = s.InsertEvaluation(ctx, &models.EvaluationRecord{ID: dupID, Type: "INITIAL", Title: "t", Answers: `{}`, AccessCode: &code, GuestEmail: &guestEmail, CreatedAt: now})
	assert.ErrorIs(t, err, api.ErrDuplicateAccessCode)

	got, err := s.GetEvaluation(ctx, guestID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"interest":{"reason":"audit"}}`, got.Metadata)

	missing, err := s.GetEvaluation(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := s.ClaimWelcome(ctx, email, now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ClaimWelcome(ctx, email, now.Add(time.Minute), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

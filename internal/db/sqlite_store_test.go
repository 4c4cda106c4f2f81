package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

var t0 = time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s api.Store, userID, profileID, email, role string) {
	t.Helper()
	err := s.CreateAccount(context.Background(),
		&models.UserRecord{ID: userID, Email: email, PassHash: []byte("hash"), CreatedAt: t0},
		&models.ProfileRecord{ID: profileID, UserID: userID, DisplayName: "n", Role: role, CreatedAt: t0},
	)
	require.NoError(t, err)
}

func TestSQLiteEvaluationRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	guest := &models.EvaluationRecord{
		ID: "G1", Type: "INITIAL", Title: "Initial security evaluation", Answers: `{"a":1,"b":2,"c":3}`, Score: 6,
		AccessCode: strPtr("AbCdEf123456"), GuestEmail: strPtr("ciso@acme.io"),
		Metadata: `{"interest":{"reason":"audit"}}`, CreatedAt: t0,
	}
	require.NoError(t, s.InsertEvaluation(ctx, guest))

	got, err := s.GetEvaluation(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, guest.Answers, got.Answers)
	assert.Equal(t, 6, got.Score)
	assert.Equal(t, "AbCdEf123456", *got.AccessCode)
	assert.Nil(t, got.ProfileID)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, guest.Metadata, got.Metadata)
	assert.True(t, t0.Equal(got.CreatedAt))

	missing, err := s.GetEvaluation(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteDuplicateAccessCode(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	rec := func(id string) *models.EvaluationRecord {
		return &models.EvaluationRecord{ID: id, Type: "INITIAL", Title: "t", Answers: "{}", AccessCode: strPtr("SAMECODE0000"), GuestEmail: strPtr("a@acme.io"), CreatedAt: t0}
	}
	require.NoError(t, s.InsertEvaluation(ctx, rec("E1")))
	err := s.InsertEvaluation(ctx, rec("E2"))
	assert.True(t, errors.Is(err, api.ErrDuplicateAccessCode), "got %v", err)
}

func TestSQLiteRejectsAmbiguousOwner(t *testing.T) {
	s := newTestSQLite(t)
	seedAccount(t, s, "u1", "p1", "a@acme.io", "FREE")
	err := s.InsertEvaluation(context.Background(), &models.EvaluationRecord{
		ID: "E1", Type: "INITIAL", Title: "t", Answers: "{}",
		GuestEmail: strPtr("a@acme.io"), AccessCode: strPtr("X"), ProfileID: strPtr("p1"), CreatedAt: t0,
	})
	assert.Error(t, err)
	err = s.InsertEvaluation(context.Background(), &models.EvaluationRecord{ID: "E2", Type: "INITIAL", Title: "t", Answers: "{}", CreatedAt: t0})
	assert.Error(t, err)
}

func TestSQLiteListByProfileNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "u1", "p1", "a@acme.io", "PREMIUM")
	seedAccount(t, s, "u2", "p2", "b@acme.io", "PREMIUM")
	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{-2 * time.Hour, 0, -time.Hour}
		require.NoError(t, s.InsertEvaluation(ctx, &models.EvaluationRecord{
			ID: id, Type: "INITIAL", Title: "t", Answers: "{}", ProfileID: strPtr("p1"), CreatedAt: t0.Add(offsets[i]),
		}))
	}
	require.NoError(t, s.InsertEvaluation(ctx, &models.EvaluationRecord{ID: "other", Type: "INITIAL", Title: "t", Answers: "{}", ProfileID: strPtr("p2"), CreatedAt: t0}))

	list, err := s.ListEvaluationsByProfile(ctx, "p1")
	require.NoError(t, err)
	ids := []string{}
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestSQLiteAccounts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	seedAccount(t, s, "u1", "p1", "Jane@Acme.io", "FREE")

	u, err := s.FindUserByEmail(ctx, "JANE@acme.io")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []byte("hash"), u.PassHash)

	err = s.CreateAccount(ctx,
		&models.UserRecord{ID: "u2", Email: "jane@acme.io", PassHash: []byte("x"), CreatedAt: t0},
		&models.ProfileRecord{ID: "p2", UserID: "u2", Role: "FREE", CreatedAt: t0},
	)
	assert.ErrorIs(t, err, api.ErrDuplicateEmail)
	p, err := s.GetProfile(ctx, "p2")
	require.NoError(t, err)
	assert.Nil(t, p, "failed registration must not leave a profile behind")

	require.NoError(t, s.UpdateProfileRole(ctx, "p1", "PREMIUM"))
	p, err = s.GetProfileByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM", p.Role)
}

func TestSQLiteClaimWelcome(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ok, err := s.ClaimWelcome(ctx, "a@acme.io", t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimWelcome(ctx, "a@acme.io", t0.Add(30*time.Minute), t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ClaimWelcome(ctx, "a@acme.io", t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunMigrationsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, RunMigrations(s.db, ""))
	require.NoError(t, s.Ping(context.Background()))
}

func TestPendingMigrations(t *testing.T) {
	s := newTestSQLite(t)
	pending, err := PendingMigrations(context.Background(), s.db, "")
	require.NoError(t, err)
	assert.Empty(t, pending)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_init.sql"), []byte("SELECT 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0003_extra.sql"), []byte("CREATE TABLE extra (id TEXT);"), 0o600))
	pending, err = PendingMigrations(context.Background(), s.db, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0003_extra.sql"}, pending)

	require.NoError(t, RunMigrations(s.db, dir))
	pending, err = PendingMigrations(context.Background(), s.db, dir)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOpenFactory(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, Options{Type: TypeMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &api.MemoryStore{}, mem)

	path := filepath.Join(t.TempDir(), "nested", "vigil.db")
	s, err := Open(ctx, Options{Type: TypeSQLite, URL: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
	seedAccount(t, s, "u1", "p1", "a@acme.io", "FREE")

	_, err = Open(ctx, Options{Type: "mongo"}, nil)
	assert.Error(t, err)
}

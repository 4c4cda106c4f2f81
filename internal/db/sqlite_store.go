package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens path (or ":memory:") with the mattn driver, migrates it and
// returns the store.
func OpenSQLite(path, migrationsDir string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	if path == ":memory:" {
		dsn = ":memory:"
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every connection to an unnamed memory database is a fresh database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := RunMigrations(sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s, err := NewSQLiteStore(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error, column string) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.ExtendedCode != sqlite3.ErrConstraintUnique && se.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	return column == "" || strings.Contains(se.Error(), column)
}

func toNullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// --- Evaluations ---

const evaluationColumns = `id, type, title, answers, score, access_code, guest_email, profile_id, metadata, created_at, completed_at`

func (s *SQLiteStore) InsertEvaluation(ctx context.Context, ev *models.EvaluationRecord) error {
	var completed sql.NullTime
	if ev.CompletedAt != nil {
		completed = sql.NullTime{Time: ev.CompletedAt.UTC(), Valid: true}
	}
	meta := sql.NullString{String: ev.Metadata, Valid: ev.Metadata != ""}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (`+evaluationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, ev.Title, ev.Answers, ev.Score,
		toNullString(ev.AccessCode), toNullString(ev.GuestEmail), toNullString(ev.ProfileID),
		meta, ev.CreatedAt.UTC(), completed,
	)
	if err != nil {
		if isUniqueViolation(err, "access_code") {
			return api.ErrDuplicateAccessCode
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*models.EvaluationRecord, error) {
	var (
		rec                        models.EvaluationRecord
		code, guest, profile, meta sql.NullString
		completed                  sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Type, &rec.Title, &rec.Answers, &rec.Score,
		&code, &guest, &profile, &meta, &rec.CreatedAt, &completed); err != nil {
		return nil, err
	}
	rec.AccessCode = fromNullString(code)
	rec.GuestEmail = fromNullString(guest)
	rec.ProfileID = fromNullString(profile)
	rec.Metadata = meta.String
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id)
	rec, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListEvaluationsByProfile(ctx context.Context, profileID string) (out []*models.EvaluationRecord, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+evaluationColumns+` FROM evaluations WHERE profile_id = ? ORDER BY created_at DESC, id ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	out = []*models.EvaluationRecord{}
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return out, nil
}

// --- Users & profiles ---

func (s *SQLiteStore) CreateAccount(ctx context.Context, u *models.UserRecord, p *models.ProfileRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PassHash, u.CreatedAt.UTC(),
	); err != nil {
		if isUniqueViolation(err, "email") {
			return api.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, display_name, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.DisplayName, p.Role, p.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	var u models.UserRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, pass_hash, created_at FROM users WHERE email = ?`, strings.ToLower(email),
	).Scan(&u.ID, &u.Email, &u.PassHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) getProfileWhere(ctx context.Context, where string, arg string) (*models.ProfileRecord, error) {
	var p models.ProfileRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, display_name, role, created_at FROM profiles WHERE `+where+` = ?`, arg,
	).Scan(&p.ID, &p.UserID, &p.DisplayName, &p.Role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.ProfileRecord, error) {
	return s.getProfileWhere(ctx, "id", id)
}

func (s *SQLiteStore) GetProfileByUserID(ctx context.Context, userID string) (*models.ProfileRecord, error) {
	return s.getProfileWhere(ctx, "user_id", userID)
}

func (s *SQLiteStore) UpdateProfileRole(ctx context.Context, id, role string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE profiles SET role = ? WHERE id = ?`, role, id); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

// --- Welcome claims ---

func (s *SQLiteStore) ClaimWelcome(ctx context.Context, recipient string, now, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO welcome_claims (recipient, expires_at) VALUES (?, ?)
ON CONFLICT(recipient) DO UPDATE SET expires_at = excluded.expires_at
WHERE welcome_claims.expires_at <= ?`,
		recipient, expiresAt.UTC(), now.UTC())
	if err != nil {
		return false, fmt.Errorf("claim welcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim welcome: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

var _ api.Store = (*SQLiteStore)(nil)

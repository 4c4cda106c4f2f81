package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/soaringjerry/Vigil/internal/api"
	"github.com/soaringjerry/Vigil/internal/models"
)

// evaluationRow is the Postgres shape of an evaluation. Answers stay a text
// column; metadata is jsonb.
type evaluationRow struct {
	ID          string         `gorm:"primaryKey;type:uuid"`
	Type        string         `gorm:"type:varchar(16);not null"`
	Title       string         `gorm:"not null"`
	Answers     string         `gorm:"type:text;not null"`
	Score       int            `gorm:"not null"`
	AccessCode  *string        `gorm:"type:varchar(32);uniqueIndex"`
	GuestEmail  *string        `gorm:"type:varchar(320)"`
	ProfileID   *string        `gorm:"type:uuid;index:idx_evaluations_profile_created,priority:1"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_evaluations_profile_created,priority:2,sort:desc"`
	CompletedAt *time.Time
}

func (evaluationRow) TableName() string { return "evaluations" }

type userRow struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	Email     string    `gorm:"type:varchar(320);uniqueIndex;not null"`
	PassHash  []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type profileRow struct {
	ID          string    `gorm:"primaryKey;type:uuid"`
	UserID      string    `gorm:"type:uuid;uniqueIndex;not null"`
	DisplayName string    `gorm:"not null;default:''"`
	Role        string    `gorm:"type:varchar(16);not null;default:'FREE'"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (profileRow) TableName() string { return "profiles" }

type welcomeClaimRow struct {
	Recipient string    `gorm:"primaryKey;type:varchar(320)"`
	ExpiresAt time.Time `gorm:"not null"`
}

func (welcomeClaimRow) TableName() string { return "welcome_claims" }

// PostgresStore is the system-of-record store, built on GORM.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn, migrates the schema and returns the store.
func OpenPostgres(dsn string, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &PostgresStore{db: gdb}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	log.Info("postgres store ready")
	return s, nil
}

func (s *PostgresStore) Migrate() error {
	if err := s.db.AutoMigrate(&userRow{}, &profileRow{}, &evaluationRow{}, &welcomeClaimRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// AutoMigrate cannot express the owner exclusivity check.
	const ownerCheck = `DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'evaluations_single_owner') THEN
    ALTER TABLE evaluations ADD CONSTRAINT evaluations_single_owner CHECK ((guest_email IS NULL) <> (profile_id IS NULL));
  END IF;
END $$;`
	if err := s.db.Exec(ownerCheck).Error; err != nil {
		return fmt.Errorf("add owner constraint: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertEvaluation(ctx context.Context, ev *models.EvaluationRecord) error {
	row := evaluationRow{
		ID: ev.ID, Type: ev.Type, Title: ev.Title, Answers: ev.Answers, Score: ev.Score,
		AccessCode: ev.AccessCode, GuestEmail: ev.GuestEmail, ProfileID: ev.ProfileID,
		CreatedAt: ev.CreatedAt.UTC(), CompletedAt: ev.CompletedAt,
	}
	if ev.Metadata != "" {
		row.Metadata = datatypes.JSON(ev.Metadata)
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) && ev.AccessCode != nil {
		return api.ErrDuplicateAccessCode
	}
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (r *evaluationRow) toRecord() *models.EvaluationRecord {
	rec := &models.EvaluationRecord{
		ID: r.ID, Type: r.Type, Title: r.Title, Answers: r.Answers, Score: r.Score,
		AccessCode: r.AccessCode, GuestEmail: r.GuestEmail, ProfileID: r.ProfileID,
		CreatedAt: r.CreatedAt.UTC(), CompletedAt: r.CompletedAt,
	}
	if len(r.Metadata) > 0 {
		rec.Metadata = string(r.Metadata)
	}
	return rec
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	var row evaluationRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		// non-uuid ids are a miss, not a failure
		if strings.Contains(err.Error(), "invalid input syntax for type uuid") {
			return nil, nil
		}
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return row.toRecord(), nil
}

func (s *PostgresStore) ListEvaluationsByProfile(ctx context.Context, profileID string) ([]*models.EvaluationRecord, error) {
	var rows []evaluationRow
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	out := make([]*models.EvaluationRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, u *models.UserRecord, p *models.ProfileRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&userRow{ID: u.ID, Email: strings.ToLower(u.Email), PassHash: u.PassHash, CreatedAt: u.CreatedAt.UTC()}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return api.ErrDuplicateEmail
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if err := tx.Create(&profileRow{ID: p.ID, UserID: p.UserID, DisplayName: p.DisplayName, Role: p.Role, CreatedAt: p.CreatedAt.UTC()}).Error; err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
	return err
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &models.UserRecord{ID: row.ID, Email: row.Email, PassHash: row.PassHash, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (s *PostgresStore) getProfile(ctx context.Context, column, value string) (*models.ProfileRecord, error) {
	var row profileRow
	err := s.db.WithContext(ctx).Where(column+" = ?", value).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		if strings.Contains(err.Error(), "invalid input syntax for type uuid") {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &models.ProfileRecord{ID: row.ID, UserID: row.UserID, DisplayName: row.DisplayName, Role: row.Role, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*models.ProfileRecord, error) {
	return s.getProfile(ctx, "id", id)
}

func (s *PostgresStore) GetProfileByUserID(ctx context.Context, userID string) (*models.ProfileRecord, error) {
	return s.getProfile(ctx, "user_id", userID)
}

func (s *PostgresStore) UpdateProfileRole(ctx context.Context, id, role string) error {
	if err := s.db.WithContext(ctx).Model(&profileRow{}).Where("id = ?", id).Update("role", role).Error; err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClaimWelcome(ctx context.Context, recipient string, now, expiresAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "welcome_claims.expires_at <= ?", Vars: []any{now.UTC()}},
		}},
	}).Create(&welcomeClaimRow{Recipient: recipient, ExpiresAt: expiresAt.UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("claim welcome: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ api.Store = (*PostgresStore)(nil)

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// UserRepository persists users in PostgreSQL
type UserRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a new user. A duplicate mobile number maps to a conflict.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (
			id, mobile, full_name, email, pin_hash, biometric_enabled,
			profile_complete, auto_save_percent, kyc_level, kyc_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Mobile, user.FullName, user.Email, user.PINHash,
		user.BiometricEnabled, user.ProfileComplete, user.AutoSavePercent,
		user.KYCLevel, user.KYCStatus, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ConflictError("mobile number already registered")
		}
		r.logger.Error("Failed to create user", zap.Error(err), zap.String("mobile", user.Mobile))
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	user := &entities.User{}
	err := r.db.GetContext(ctx, user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		r.logger.Error("Failed to get user", zap.Error(err), zap.String("user_id", id.String()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByMobile retrieves a user by mobile number
func (r *UserRepository) GetByMobile(ctx context.Context, mobile string) (*entities.User, error) {
	user := &entities.User{}
	err := r.db.GetContext(ctx, user, `SELECT * FROM users WHERE mobile = $1`, mobile)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to get user by mobile: %w", err)
	}
	return user, nil
}

// UpdateProfile marks the profile complete and stores name/email
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, email *string) error {
	query := `
		UPDATE users
		SET full_name = $2, email = $3, profile_complete = TRUE, updated_at = $4
		WHERE id = $1`
	return r.exec(ctx, query, id, fullName, email, time.Now())
}

// SetPINHash stores the bcrypt hash of the user's transaction PIN
func (r *UserRepository) SetPINHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	query := `UPDATE users SET pin_hash = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, id, pinHash, time.Now())
}

// SetBiometricEnabled flips the biometric flag
func (r *UserRepository) SetBiometricEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `UPDATE users SET biometric_enabled = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, id, enabled, time.Now())
}

// UpdateAutoSavePercent stores the user's auto-save percentage
func (r *UserRepository) UpdateAutoSavePercent(ctx context.Context, id uuid.UUID, percent int) error {
	query := `UPDATE users SET auto_save_percent = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, query, id, percent, time.Now())
}

// UpdateKYC persists a freshly derived level and status together. The level
// is always recomputed from the full fact set, never incremented.
func (r *UserRepository) UpdateKYC(ctx context.Context, id uuid.UUID, level int, status entities.KYCStatus) error {
	query := `UPDATE users SET kyc_level = $2, kyc_status = $3, updated_at = $4 WHERE id = $1`
	return r.exec(ctx, query, id, level, status, time.Now())
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// UpdateKYCTx is UpdateKYC bound to an open transaction, used when a fact
// write and the level recomputation must land atomically
func (r *UserRepository) UpdateKYCTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, level int, status entities.KYCStatus) error {
	query := `UPDATE users SET kyc_level = $2, kyc_status = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, level, status, time.Now()); err != nil {
		return fmt.Errorf("failed to update user kyc: %w", err)
	}
	return nil
}

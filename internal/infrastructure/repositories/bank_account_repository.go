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
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/database"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// BankAccountRepository persists linked bank accounts. Primary designation
// is an exclusive flag per user, enforced both here and by a partial unique
// index.
type BankAccountRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBankAccountRepository creates a new bank account repository
func NewBankAccountRepository(db *sqlx.DB, logger *zap.Logger) *BankAccountRepository {
	return &BankAccountRepository{db: db, logger: logger}
}

const (
	bankAccountLockUserQuery = `SELECT id FROM users WHERE id = $1 FOR UPDATE`
	bankAccountCountQuery    = `SELECT COUNT(*) FROM bank_accounts WHERE user_id = $1`
)

// primaryDeleteGuard rejects deleting a primary account while the user still
// has other accounts to receive the designation.
func primaryDeleteGuard(isPrimary bool, otherAccounts int) error {
	if isPrimary && otherAccounts > 0 {
		return errors.PrerequisiteError(
			"cannot delete primary account while other accounts exist",
			[]string{"Set another account as primary first"})
	}
	return nil
}

// Create inserts a new account. The user's first account is made primary
// automatically; duplicates (same fingerprint for the same user) map to a
// conflict.
func (r *BankAccountRepository) Create(ctx context.Context, account *entities.BankAccount) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Postgres rejects FOR UPDATE on aggregates, so the user row is the
		// lock serializing concurrent first-account inserts.
		var lockedID uuid.UUID
		err := tx.GetContext(ctx, &lockedID, bankAccountLockUserQuery, account.UserID)
		if err == sql.ErrNoRows {
			return errors.NotFound("user")
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		var count int
		if err := tx.GetContext(ctx, &count, bankAccountCountQuery, account.UserID); err != nil {
			return fmt.Errorf("failed to count bank accounts: %w", err)
		}
		account.IsPrimary = count == 0

		query := `
			INSERT INTO bank_accounts (
				id, user_id, account_number_enc, account_fingerprint, masked_number,
				ifsc_code, holder_name, is_primary, is_verified, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

		_, err = tx.ExecContext(ctx, query,
			account.ID, account.UserID, account.AccountNumberEnc, account.AccountFingerprint,
			account.MaskedNumber, account.IFSCCode, account.HolderName,
			account.IsPrimary, account.IsVerified, account.CreatedAt, account.UpdatedAt,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return errors.ConflictError("bank account already linked")
			}
			r.logger.Error("Failed to create bank account", zap.Error(err),
				zap.String("user_id", account.UserID.String()))
			return fmt.Errorf("failed to create bank account: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an account by ID
func (r *BankAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.BankAccount, error) {
	account := &entities.BankAccount{}
	err := r.db.GetContext(ctx, account, `SELECT * FROM bank_accounts WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("bank account")
		}
		return nil, fmt.Errorf("failed to get bank account: %w", err)
	}
	return account, nil
}

// ListByUserID returns all accounts for a user, primary first
func (r *BankAccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.BankAccount, error) {
	accounts := []*entities.BankAccount{}
	err := r.db.SelectContext(ctx, &accounts,
		`SELECT * FROM bank_accounts WHERE user_id = $1 ORDER BY is_primary DESC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	return accounts, nil
}

// GetPrimary returns the user's primary account
func (r *BankAccountRepository) GetPrimary(ctx context.Context, userID uuid.UUID) (*entities.BankAccount, error) {
	account := &entities.BankAccount{}
	err := r.db.GetContext(ctx, account,
		`SELECT * FROM bank_accounts WHERE user_id = $1 AND is_primary = TRUE`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("primary bank account")
		}
		return nil, fmt.Errorf("failed to get primary bank account: %w", err)
	}
	return account, nil
}

// HasVerifiedAccount reports whether the user has at least one verified account
func (r *BankAccountRepository) HasVerifiedAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM bank_accounts WHERE user_id = $1 AND is_verified = TRUE)`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check verified bank accounts: %w", err)
	}
	return exists, nil
}

// SetPrimary atomically moves the primary flag to the given account. The
// unset and set land in one transaction so there is never zero or two
// primaries mid-flight.
func (r *BankAccountRepository) SetPrimary(ctx context.Context, userID, accountID uuid.UUID) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var ownerID uuid.UUID
		err := tx.GetContext(ctx, &ownerID,
			`SELECT user_id FROM bank_accounts WHERE id = $1 FOR UPDATE`, accountID)
		if err == sql.ErrNoRows {
			return errors.NotFound("bank account")
		}
		if err != nil {
			return fmt.Errorf("failed to lock bank account: %w", err)
		}
		if ownerID != userID {
			return errors.NotFound("bank account")
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE bank_accounts SET is_primary = FALSE, updated_at = $2 WHERE user_id = $1 AND is_primary = TRUE`,
			userID, now); err != nil {
			return fmt.Errorf("failed to unset primary: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bank_accounts SET is_primary = TRUE, updated_at = $2 WHERE id = $1`,
			accountID, now); err != nil {
			return fmt.Errorf("failed to set primary: %w", err)
		}
		return nil
	})
}

// MarkVerified records a successful penny-drop verification
func (r *BankAccountRepository) MarkVerified(ctx context.Context, accountID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank_accounts SET is_verified = TRUE, updated_at = $2 WHERE id = $1`,
		accountID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark bank account verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("bank account")
	}
	return nil
}

// Delete removes an account. A primary account cannot be deleted while other
// accounts exist; the caller must reassign primary first.
func (r *BankAccountRepository) Delete(ctx context.Context, userID, accountID uuid.UUID) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		account := &entities.BankAccount{}
		err := tx.GetContext(ctx, account,
			`SELECT * FROM bank_accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`, accountID, userID)
		if err == sql.ErrNoRows {
			return errors.NotFound("bank account")
		}
		if err != nil {
			return fmt.Errorf("failed to lock bank account: %w", err)
		}

		var others int
		if err := tx.GetContext(ctx, &others,
			`SELECT COUNT(*) FROM bank_accounts WHERE user_id = $1 AND id <> $2`, userID, accountID); err != nil {
			return fmt.Errorf("failed to count bank accounts: %w", err)
		}
		if err := primaryDeleteGuard(account.IsPrimary, others); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = $1`, accountID); err != nil {
			return fmt.Errorf("failed to delete bank account: %w", err)
		}
		return nil
	})
}

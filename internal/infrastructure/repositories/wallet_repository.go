package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/database"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// WalletRepository persists savings wallets and owns the multi-step ledger
// writes. Every balance mutation happens under a SELECT ... FOR UPDATE row
// lock with its transaction record in the same database transaction, so the
// balance and the ledger can never disagree.
type WalletRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *sqlx.DB, logger *zap.Logger) *WalletRepository {
	return &WalletRepository{db: db, logger: logger}
}

// EnsureForUser returns the user's wallet, creating a zero-balance one on
// first access
func (r *WalletRepository) EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error) {
	wallet := &entities.SavingsWallet{}
	err := r.db.GetContext(ctx, wallet, `SELECT * FROM savings_wallets WHERE user_id = $1`, userID)
	if err == nil {
		return wallet, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO savings_wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.New(), userID, now, now); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if err := r.db.GetContext(ctx, wallet, `SELECT * FROM savings_wallets WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to reload wallet: %w", err)
	}
	return wallet, nil
}

// GetByUserID retrieves the wallet for a user
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error) {
	wallet := &entities.SavingsWallet{}
	err := r.db.GetContext(ctx, wallet, `SELECT * FROM savings_wallets WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("wallet")
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*entities.SavingsWallet, error) {
	wallet := &entities.SavingsWallet{}
	err := tx.GetContext(ctx, wallet,
		`SELECT * FROM savings_wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("wallet")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return wallet, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, txn *entities.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, auto_save_amount, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.ExecContext(ctx, query,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.AutoSaveAmount,
		txn.Status, txn.Reference, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func updateBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE savings_wallets SET balance = $2, updated_at = $3 WHERE user_id = $1`,
		userID, balance, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}
	return nil
}

// ApplyAutoSave records a payment and credits its auto-save amount to the
// wallet in one transaction. If either write fails the whole operation rolls
// back; a payment is never recorded without its credit.
func (r *WalletRepository) ApplyAutoSave(ctx context.Context, payment *entities.Transaction) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		wallet, err := lockWallet(ctx, tx, payment.UserID)
		if err != nil {
			return err
		}

		if err := insertTransaction(ctx, tx, payment); err != nil {
			return err
		}

		newBalance = wallet.Balance
		if payment.AutoSaveAmount != nil {
			newBalance = wallet.Balance.Add(*payment.AutoSaveAmount)
		}
		return updateBalance(ctx, tx, payment.UserID, newBalance)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// ExecuteInvestment debits the wallet and records the investment plus its
// ledger event atomically. The balance is re-checked under the row lock, so
// a concurrent debit between evaluation and execution surfaces as
// insufficient funds rather than a negative balance.
func (r *WalletRepository) ExecuteInvestment(ctx context.Context, inv *entities.Investment, txn *entities.Transaction) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		wallet, err := lockWallet(ctx, tx, inv.UserID)
		if err != nil {
			return err
		}

		if wallet.Balance.LessThan(inv.AmountInvested) {
			return errors.InsufficientFunds("wallet balance is below the investment amount")
		}

		query := `
			INSERT INTO investments (id, user_id, rule_id, product_id, units, purchase_nav, amount_invested, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err = tx.ExecContext(ctx, query,
			inv.ID, inv.UserID, inv.RuleID, inv.ProductID, inv.Units,
			inv.PurchaseNAV, inv.AmountInvested, inv.Status, inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert investment: %w", err)
		}

		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		newBalance = wallet.Balance.Sub(inv.AmountInvested)
		return updateBalance(ctx, tx, inv.UserID, newBalance)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// Withdraw debits the wallet and records the withdrawal atomically
func (r *WalletRepository) Withdraw(ctx context.Context, txn *entities.Transaction) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		wallet, err := lockWallet(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}

		if wallet.Balance.LessThan(txn.Amount) {
			return errors.InsufficientFunds("wallet balance is below the withdrawal amount")
		}

		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		newBalance = wallet.Balance.Sub(txn.Amount)
		return updateBalance(ctx, tx, txn.UserID, newBalance)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

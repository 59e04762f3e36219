package autosave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
	"github.com/sanchay-service/sanchay_service/pkg/metrics"
)

// Service handles payment recording with automatic round-up savings, wallet
// reads and withdrawals. The payment insert and the wallet credit are a
// single atomic operation owned by the wallet repository.
type Service struct {
	userRepo   UserRepository
	kycRepo    KYCRepository
	walletRepo WalletRepository
	txnRepo    TransactionRepository
	bankRepo   BankAccountReader
	notifier   Notifier
	logger     *zap.Logger
	minPercent int
	maxPercent int
}

// Repository interfaces

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	UpdateAutoSavePercent(ctx context.Context, id uuid.UUID, percent int) error
}

type KYCRepository interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error)
}

type WalletRepository interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error)
	ApplyAutoSave(ctx context.Context, payment *entities.Transaction) (decimal.Decimal, error)
	Withdraw(ctx context.Context, txn *entities.Transaction) (decimal.Decimal, error)
}

type TransactionRepository interface {
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error)
}

type BankAccountReader interface {
	GetPrimary(ctx context.Context, userID uuid.UUID) (*entities.BankAccount, error)
}

type Notifier interface {
	Dispatch(userID uuid.UUID, kind adapters.NotificationKind, message string)
}

// NewService creates a new auto-save service
func NewService(
	userRepo UserRepository,
	kycRepo KYCRepository,
	walletRepo WalletRepository,
	txnRepo TransactionRepository,
	bankRepo BankAccountReader,
	notifier Notifier,
	logger *zap.Logger,
	minPercent, maxPercent int,
) *Service {
	return &Service{
		userRepo:   userRepo,
		kycRepo:    kycRepo,
		walletRepo: walletRepo,
		txnRepo:    txnRepo,
		bankRepo:   bankRepo,
		notifier:   notifier,
		logger:     logger,
		minPercent: minPercent,
		maxPercent: maxPercent,
	}
}

// AutoSaveAmountFor computes the save amount for a payment: percent of the
// payment amount, rounded to 2 decimal places, half up
func AutoSaveAmountFor(amount decimal.Decimal, percent int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).Round(2)
}

// RecordPayment records a payment and credits the auto-save amount to the
// user's wallet. Payments above the basic cap require KYC level 1; the
// rejection carries the outstanding verification steps.
func (s *Service) RecordPayment(ctx context.Context, userID uuid.UUID, req *entities.RecordPaymentRequest) (*entities.RecordPaymentResponse, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.ValidationError("amount must be positive")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.KYCLevel < entities.KYCLevelBasic && req.Amount.GreaterThan(entities.PaymentCapBasic) {
		doc, err := s.kycRepo.EnsureForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		metrics.PaymentsTotal.WithLabelValues("rejected_kyc").Inc()
		return nil, errors.PrerequisiteError(
			fmt.Sprintf("payments above %s require KYC level %d", entities.PaymentCapBasic, entities.KYCLevelBasic),
			entities.MissingKYCSteps(doc, entities.KYCLevelBasic))
	}

	if _, err := s.walletRepo.EnsureForUser(ctx, userID); err != nil {
		return nil, err
	}

	saveAmount := AutoSaveAmountFor(req.Amount, user.AutoSavePercent)

	payment := &entities.Transaction{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           entities.TransactionTypePayment,
		Amount:         req.Amount,
		AutoSaveAmount: &saveAmount,
		Status:         entities.TransactionStatusSuccess,
		CreatedAt:      time.Now(),
	}
	if req.Reference != "" {
		ref := req.Reference
		payment.Reference = &ref
	}

	balance, err := s.walletRepo.ApplyAutoSave(ctx, payment)
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.PaymentsTotal.WithLabelValues("success").Inc()
	metrics.AutoSaveCreditsTotal.Inc()
	amountFloat, _ := saveAmount.Float64()
	metrics.AutoSaveAmount.Observe(amountFloat)

	s.notifier.Dispatch(userID, adapters.NotificationAutoSave,
		fmt.Sprintf("₹%s saved automatically from your payment", saveAmount))
	s.logger.Info("Payment recorded",
		zap.String("user_id", userID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("auto_save", saveAmount.String()))

	return &entities.RecordPaymentResponse{
		TransactionID:  payment.ID,
		AutoSaveAmount: saveAmount,
		WalletBalance:  balance,
	}, nil
}

// SetAutoSavePercent updates the user's save percentage within the allowed
// bounds. Takes effect for subsequent payments only.
func (s *Service) SetAutoSavePercent(ctx context.Context, userID uuid.UUID, percent int) error {
	if percent < s.minPercent || percent > s.maxPercent {
		return errors.ValidationError(
			fmt.Sprintf("auto-save percent must be between %d and %d", s.minPercent, s.maxPercent))
	}
	return s.userRepo.UpdateAutoSavePercent(ctx, userID, percent)
}

// GetWallet returns the user's wallet, creating it on first access
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error) {
	return s.walletRepo.EnsureForUser(ctx, userID)
}

// ListTransactions returns the user's ledger, newest first
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	return s.txnRepo.ListByUserID(ctx, userID, limit, offset)
}

// Withdraw debits the wallet towards the user's verified primary bank
// account. The balance re-check happens under the row lock, so concurrent
// debits cannot overdraw.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, req *entities.WithdrawRequest) (*entities.Transaction, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.ValidationError("amount must be positive")
	}

	primary, err := s.bankRepo.GetPrimary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !primary.IsVerified {
		return nil, errors.PrerequisiteError("primary bank account must be verified before withdrawing",
			[]string{"Verify your primary bank account"})
	}

	ref := fmt.Sprintf("withdrawal to %s", primary.MaskedNumber)
	txn := &entities.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      entities.TransactionTypeWithdrawal,
		Amount:    req.Amount,
		Status:    entities.TransactionStatusSuccess,
		Reference: &ref,
		CreatedAt: time.Now(),
	}

	if _, err := s.walletRepo.Withdraw(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal recorded",
		zap.String("user_id", userID.String()),
		zap.String("amount", req.Amount.String()))
	return txn, nil
}

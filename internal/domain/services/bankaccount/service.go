package bankaccount

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/pkg/crypto"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// Service manages linked bank accounts. Account numbers are encrypted at
// rest; duplicate detection uses a stable fingerprint, never the plaintext
// or ciphertext.
type Service struct {
	accountRepo AccountRepository
	kycRepo     KYCRepository
	identity    IdentityProvider
	cipher      *crypto.Cipher
	notifier    Notifier
	logger      *zap.Logger
}

// Repository interfaces

type AccountRepository interface {
	Create(ctx context.Context, account *entities.BankAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.BankAccount, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.BankAccount, error)
	SetPrimary(ctx context.Context, userID, accountID uuid.UUID) error
	MarkVerified(ctx context.Context, accountID uuid.UUID) error
	Delete(ctx context.Context, userID, accountID uuid.UUID) error
}

type KYCRepository interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error)
	SetBankFact(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error)
}

// External service interfaces

type IdentityProvider interface {
	VerifyBankAccount(ctx context.Context, accountNumber, ifsc, holderName string) (*adapters.PennyDropResult, error)
}

type Notifier interface {
	Dispatch(userID uuid.UUID, kind adapters.NotificationKind, message string)
}

// NewService creates a new bank account service
func NewService(
	accountRepo AccountRepository,
	kycRepo KYCRepository,
	identity IdentityProvider,
	cipher *crypto.Cipher,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		kycRepo:     kycRepo,
		identity:    identity,
		cipher:      cipher,
		notifier:    notifier,
		logger:      logger,
	}
}

func maskAccountNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("X", len(number)-4) + number[len(number)-4:]
}

// Add links a new bank account. The number is encrypted before it touches
// storage; the user's first account becomes primary automatically.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, req *entities.AddBankAccountRequest) (*entities.BankAccount, error) {
	ifsc := strings.ToUpper(strings.TrimSpace(req.IFSCCode))
	if !entities.ValidIFSC(ifsc) {
		return nil, errors.ValidationError("ifsc code is not in a valid format")
	}

	encrypted, err := s.cipher.Encrypt(req.AccountNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	account := &entities.BankAccount{
		ID:                 uuid.New(),
		UserID:             userID,
		AccountNumberEnc:   encrypted,
		AccountFingerprint: crypto.HashFingerprint(req.AccountNumber),
		MaskedNumber:       maskAccountNumber(req.AccountNumber),
		IFSCCode:           ifsc,
		HolderName:         req.HolderName,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Bank account linked",
		zap.String("user_id", userID.String()),
		zap.String("account_id", account.ID.String()),
		zap.Bool("is_primary", account.IsPrimary))
	return account, nil
}

// Verify runs the penny-drop check for an account. Bank verification sits
// after PAN in the fact order, so an unverified PAN blocks it. On success the
// account is marked verified and the KYC bank fact recorded.
func (s *Service) Verify(ctx context.Context, userID, accountID uuid.UUID) (*entities.BankAccount, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, errors.NotFound("bank account")
	}
	if account.IsVerified {
		return account, nil
	}

	doc, err := s.kycRepo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !doc.PANVerified {
		return nil, errors.PrerequisiteError(
			"bank verification requires a verified PAN",
			entities.MissingKYCSteps(doc, entities.KYCLevelBasic))
	}

	// A blob that cannot be decrypted is data corruption for this record,
	// surfaced as such rather than a provider failure
	accountNumber, err := s.cipher.Decrypt(account.AccountNumberEnc)
	if err != nil {
		return nil, err
	}

	result, err := s.identity.VerifyBankAccount(ctx, accountNumber, account.IFSCCode, account.HolderName)
	if err != nil {
		return nil, err
	}
	if !result.Verified {
		return nil, errors.ValidationError("bank account could not be verified")
	}

	if err := s.accountRepo.MarkVerified(ctx, accountID); err != nil {
		return nil, err
	}
	if _, err := s.kycRepo.SetBankFact(ctx, userID); err != nil {
		return nil, err
	}

	account.IsVerified = true
	s.notifier.Dispatch(userID, adapters.NotificationKYC, "Your bank account has been verified")
	s.logger.Info("Bank account verified",
		zap.String("user_id", userID.String()),
		zap.String("account_id", accountID.String()))
	return account, nil
}

// List returns the user's linked accounts, primary first
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*entities.BankAccount, error) {
	return s.accountRepo.ListByUserID(ctx, userID)
}

// SetPrimary moves the primary designation to another account
func (s *Service) SetPrimary(ctx context.Context, userID, accountID uuid.UUID) error {
	return s.accountRepo.SetPrimary(ctx, userID, accountID)
}

// Delete removes an account, honouring the primary-account protection
func (s *Service) Delete(ctx context.Context, userID, accountID uuid.UUID) error {
	return s.accountRepo.Delete(ctx, userID, accountID)
}

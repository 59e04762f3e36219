package onboarding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/pkg/crypto"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
	"github.com/sanchay-service/sanchay_service/pkg/metrics"
)

// Service handles registration, progressive onboarding and the KYC
// verification flow. The onboarding step and KYC level are never stored as
// authoritative state: both are derived from the fact set on every read.
type Service struct {
	userRepo        UserRepository
	kycRepo         KYCRepository
	bankRepo        BankAccountReader
	identity        IdentityProvider
	otpStore        OTPStore
	cipher          *crypto.Cipher
	notifier        Notifier
	logger          *zap.Logger
	otpTTL          time.Duration
	defaultAutoSave int
}

// Repository interfaces

type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByMobile(ctx context.Context, mobile string) (*entities.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, email *string) error
	SetPINHash(ctx context.Context, id uuid.UUID, pinHash string) error
	SetBiometricEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

type KYCRepository interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error)
	FindUserByPAN(ctx context.Context, pan string) (uuid.UUID, bool, error)
	FindUserByAadhaarFingerprint(ctx context.Context, fingerprint string) (uuid.UUID, bool, error)
	SetPANFact(ctx context.Context, userID uuid.UUID, pan string) (*entities.KYCDocument, error)
	SetAadhaarFact(ctx context.Context, userID uuid.UUID, encrypted, fingerprint string) (*entities.KYCDocument, error)
	SetLivenessFact(ctx context.Context, userID uuid.UUID, score float64, verified, faceMatched bool) (*entities.KYCDocument, error)
	ResetFacts(ctx context.Context, userID uuid.UUID, reason string) (*entities.KYCDocument, error)
}

type BankAccountReader interface {
	HasVerifiedAccount(ctx context.Context, userID uuid.UUID) (bool, error)
}

// External service interfaces

type IdentityProvider interface {
	VerifyPAN(ctx context.Context, pan, fullName string) (*adapters.PANVerification, error)
	SendAadhaarOTP(ctx context.Context, aadhaarNumber string) error
	ConfirmAadhaarOTP(ctx context.Context, aadhaarNumber, otp string) (bool, error)
	VerifyLiveness(ctx context.Context, selfieRef string) (*adapters.LivenessResult, error)
}

type OTPStore interface {
	Put(ctx context.Context, ref, aadhaarNumber string) error
	Consume(ctx context.Context, ref string) (string, bool, error)
}

type Notifier interface {
	Dispatch(userID uuid.UUID, kind adapters.NotificationKind, message string)
}

// NewService creates a new onboarding service
func NewService(
	userRepo UserRepository,
	kycRepo KYCRepository,
	bankRepo BankAccountReader,
	identity IdentityProvider,
	otpStore OTPStore,
	cipher *crypto.Cipher,
	notifier Notifier,
	logger *zap.Logger,
	otpTTL time.Duration,
	defaultAutoSavePercent int,
) *Service {
	return &Service{
		userRepo:        userRepo,
		kycRepo:         kycRepo,
		bankRepo:        bankRepo,
		identity:        identity,
		otpStore:        otpStore,
		cipher:          cipher,
		notifier:        notifier,
		logger:          logger,
		otpTTL:          otpTTL,
		defaultAutoSave: defaultAutoSavePercent,
	}
}

// Register creates a new user from a mobile number. Duplicate registrations
// surface as a conflict from the unique mobile constraint.
func (s *Service) Register(ctx context.Context, req *entities.RegisterRequest) (*entities.User, error) {
	if !entities.ValidMobile(req.Mobile) {
		return nil, errors.ValidationError("mobile must be a valid 10-digit number")
	}

	now := time.Now()
	user := &entities.User{
		ID:              uuid.New(),
		Mobile:          req.Mobile,
		AutoSavePercent: s.defaultAutoSave,
		KYCLevel:        entities.KYCLevelNone,
		KYCStatus:       entities.KYCStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Authenticate checks a mobile/PIN pair. The same generic error covers an
// unknown mobile, an unset PIN and a wrong PIN, so callers cannot probe for
// registered numbers.
func (s *Service) Authenticate(ctx context.Context, mobile, pin string) (*entities.User, error) {
	user, err := s.userRepo.GetByMobile(ctx, mobile)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			return nil, errors.Unauthorized("invalid mobile or pin")
		}
		return nil, err
	}
	if !user.PINSet() || !crypto.ValidatePIN(pin, *user.PINHash) {
		return nil, errors.Unauthorized("invalid mobile or pin")
	}
	return user, nil
}

// GetStatus returns the derived onboarding state for a user
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID) (*entities.OnboardingStatusResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc, err := s.kycRepo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	hasBank, err := s.bankRepo.HasVerifiedAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	facts := entities.OnboardingFacts{
		ProfileComplete:  user.ProfileComplete,
		PINSet:           user.PINSet(),
		BiometricEnabled: user.BiometricEnabled,
		PANVerified:      doc.PANVerified,
		AadhaarVerified:  doc.AadhaarVerified,
		LivenessVerified: doc.LivenessVerified,
		FaceMatched:      doc.FaceMatched,
	}

	return &entities.OnboardingStatusResponse{
		UserID:      userID,
		CurrentStep: entities.DeriveStep(facts),
		KYCLevel:    user.KYCLevel,
		KYCStatus:   user.KYCStatus,
		CompletionStatus: entities.CompletionFlags{
			ProfileComplete:  user.ProfileComplete,
			PINSet:           user.PINSet(),
			BiometricEnabled: user.BiometricEnabled,
			PANVerified:      doc.PANVerified,
			AadhaarVerified:  doc.AadhaarVerified,
			LivenessVerified: doc.LivenessVerified,
			BankVerified:     doc.BankVerified,
		},
		NextSteps:   entities.MissingKYCSteps(doc, entities.KYCLevelFull),
		Permissions: entities.PermissionsFor(user.KYCLevel, hasBank),
	}, nil
}

// CheckKYCRequirement reports whether the user's current level permits the
// given action, and if not, which verification steps are outstanding
func (s *Service) CheckKYCRequirement(ctx context.Context, userID uuid.UUID, action entities.KYCAction, amount *decimal.Decimal) (*entities.KYCRequirementResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc, err := s.kycRepo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var requiredLevel int
	switch action {
	case entities.KYCActionInvestment:
		requiredLevel = entities.KYCLevelFull
	case entities.KYCActionPayment:
		if amount != nil && amount.GreaterThan(entities.PaymentCapBasic) {
			requiredLevel = entities.KYCLevelBasic
		}
	default:
		return nil, errors.ValidationError("unknown action")
	}

	resp := &entities.KYCRequirementResponse{
		Required:      user.KYCLevel < requiredLevel,
		RequiredLevel: requiredLevel,
		CurrentLevel:  user.KYCLevel,
	}
	if resp.Required {
		resp.NextSteps = entities.MissingKYCSteps(doc, requiredLevel)
		resp.Message = fmt.Sprintf("KYC level %d is required for this action", requiredLevel)
	} else {
		resp.Message = "no further verification required"
	}
	return resp, nil
}

// CompleteProfile stores the user's name and optional email
func (s *Service) CompleteProfile(ctx context.Context, userID uuid.UUID, req *entities.CompleteProfileRequest) error {
	var email *string
	if req.Email != "" {
		e := strings.ToLower(req.Email)
		email = &e
	}
	return s.userRepo.UpdateProfile(ctx, userID, req.FullName, email)
}

// SetPIN stores the bcrypt hash of the user's transaction PIN
func (s *Service) SetPIN(ctx context.Context, userID uuid.UUID, req *entities.SetPINRequest) error {
	hash, err := crypto.HashPIN(req.PIN)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	return s.userRepo.SetPINHash(ctx, userID, hash)
}

// EnableBiometric flips the biometric flag
func (s *Service) EnableBiometric(ctx context.Context, userID uuid.UUID, enabled bool) error {
	return s.userRepo.SetBiometricEnabled(ctx, userID, enabled)
}

// VerifyPAN validates the PAN format, rejects PANs already bound to another
// user, then verifies with the provider. On success the fact is recorded and
// the level re-derived; on provider failure no state changes.
func (s *Service) VerifyPAN(ctx context.Context, userID uuid.UUID, req *entities.VerifyPANRequest) (*entities.VerificationResponse, error) {
	pan := strings.ToUpper(strings.TrimSpace(req.PANNumber))
	if !entities.ValidPAN(pan) {
		return nil, errors.ValidationError("pan number is not in a valid format")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ownerID, taken, err := s.kycRepo.FindUserByPAN(ctx, pan)
	if err != nil {
		return nil, err
	}
	if taken && ownerID != userID {
		metrics.RecordVerification("pan", "conflict")
		return nil, errors.ConflictError("pan is already verified for another account")
	}

	verification, err := s.identity.VerifyPAN(ctx, pan, user.FullName)
	if err != nil {
		metrics.RecordVerification("pan", "provider_error")
		return nil, err
	}
	if !verification.Valid {
		metrics.RecordVerification("pan", "rejected")
		return &entities.VerificationResponse{
			Verified:  false,
			KYCLevel:  user.KYCLevel,
			KYCStatus: user.KYCStatus,
			Message:   "pan verification failed",
		}, nil
	}

	doc, err := s.kycRepo.SetPANFact(ctx, userID, pan)
	if err != nil {
		return nil, err
	}

	metrics.RecordVerification("pan", "verified")
	s.notifier.Dispatch(userID, adapters.NotificationKYC, "Your PAN has been verified")
	s.logger.Info("PAN verified", zap.String("user_id", userID.String()))

	return &entities.VerificationResponse{
		Verified:  true,
		KYCLevel:  doc.DeriveKYCLevel(),
		KYCStatus: doc.DeriveKYCStatus(),
	}, nil
}

// InitAadhaarOTP starts Aadhaar verification. The Aadhaar number is held in
// the OTP store under an opaque reference until the OTP is confirmed; it is
// never persisted in the clear.
func (s *Service) InitAadhaarOTP(ctx context.Context, userID uuid.UUID, req *entities.AadhaarOTPInitRequest) (*entities.AadhaarOTPInitResponse, error) {
	if !entities.ValidAadhaar(req.AadhaarNumber) {
		return nil, errors.ValidationError("aadhaar must be a 12-digit number")
	}

	fingerprint := crypto.HashFingerprint(req.AadhaarNumber)
	ownerID, taken, err := s.kycRepo.FindUserByAadhaarFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if taken && ownerID != userID {
		metrics.RecordVerification("aadhaar", "conflict")
		return nil, errors.ConflictError("aadhaar is already verified for another account")
	}

	if err := s.identity.SendAadhaarOTP(ctx, req.AadhaarNumber); err != nil {
		metrics.RecordVerification("aadhaar", "provider_error")
		return nil, err
	}

	ref, err := crypto.GenerateOTPReference()
	if err != nil {
		return nil, err
	}
	if err := s.otpStore.Put(ctx, ref, req.AadhaarNumber); err != nil {
		return nil, err
	}

	return &entities.AadhaarOTPInitResponse{
		OTPReference: ref,
		ExpiresIn:    int(s.otpTTL.Seconds()),
	}, nil
}

// ConfirmAadhaarOTP completes Aadhaar verification. The reference is
// consumed exactly once; replays and expired references are rejected.
func (s *Service) ConfirmAadhaarOTP(ctx context.Context, userID uuid.UUID, req *entities.AadhaarOTPConfirmRequest) (*entities.VerificationResponse, error) {
	aadhaar, found, err := s.otpStore.Consume(ctx, req.OTPReference)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.ValidationError("otp reference is unknown or has expired")
	}

	ok, err := s.identity.ConfirmAadhaarOTP(ctx, aadhaar, req.OTP)
	if err != nil {
		metrics.RecordVerification("aadhaar", "provider_error")
		return nil, err
	}
	if !ok {
		metrics.RecordVerification("aadhaar", "rejected")
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &entities.VerificationResponse{
			Verified:  false,
			KYCLevel:  user.KYCLevel,
			KYCStatus: user.KYCStatus,
			Message:   "otp did not match",
		}, nil
	}

	encrypted, err := s.cipher.Encrypt(aadhaar)
	if err != nil {
		return nil, err
	}
	doc, err := s.kycRepo.SetAadhaarFact(ctx, userID, encrypted, crypto.HashFingerprint(aadhaar))
	if err != nil {
		return nil, err
	}

	metrics.RecordVerification("aadhaar", "verified")
	s.notifier.Dispatch(userID, adapters.NotificationKYC, "Your Aadhaar has been verified")
	s.logger.Info("Aadhaar verified", zap.String("user_id", userID.String()))

	return &entities.VerificationResponse{
		Verified:  true,
		KYCLevel:  doc.DeriveKYCLevel(),
		KYCStatus: doc.DeriveKYCStatus(),
	}, nil
}

// VerifyLiveness runs the selfie liveness and face match check. PAN and
// Aadhaar must already be verified; the check is the last step towards
// level 2.
func (s *Service) VerifyLiveness(ctx context.Context, userID uuid.UUID, req *entities.VerifyLivenessRequest) (*entities.VerificationResponse, error) {
	doc, err := s.kycRepo.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !doc.PANVerified || !doc.AadhaarVerified {
		return nil, errors.PrerequisiteError("pan and aadhaar must be verified before the liveness check",
			entities.MissingKYCSteps(doc, entities.KYCLevelFull))
	}

	result, err := s.identity.VerifyLiveness(ctx, req.SelfieRef)
	if err != nil {
		metrics.RecordVerification("liveness", "provider_error")
		return nil, err
	}

	doc, err = s.kycRepo.SetLivenessFact(ctx, userID, result.Score, result.Passed, result.FaceMatched)
	if err != nil {
		return nil, err
	}

	level := doc.DeriveKYCLevel()
	if result.Passed && result.FaceMatched {
		metrics.RecordVerification("liveness", "verified")
		if level == entities.KYCLevelFull {
			s.notifier.Dispatch(userID, adapters.NotificationKYC, "Your KYC is complete. You can now invest.")
		}
	} else {
		metrics.RecordVerification("liveness", "rejected")
	}

	s.logger.Info("Liveness check recorded",
		zap.String("user_id", userID.String()),
		zap.Float64("score", result.Score),
		zap.Bool("passed", result.Passed))

	return &entities.VerificationResponse{
		Verified:  result.Passed && result.FaceMatched,
		KYCLevel:  level,
		KYCStatus: doc.DeriveKYCStatus(),
	}, nil
}

// AdminResetKYC clears all verification facts with a rejection reason. The
// only path by which a user's level decreases.
func (s *Service) AdminResetKYC(ctx context.Context, userID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.ValidationError("a rejection reason is required")
	}
	if _, err := s.kycRepo.ResetFacts(ctx, userID, reason); err != nil {
		return err
	}

	s.notifier.Dispatch(userID, adapters.NotificationKYC, "Your KYC verification was rejected: "+reason)
	s.logger.Warn("KYC facts reset",
		zap.String("user_id", userID.String()),
		zap.String("reason", reason))
	return nil
}

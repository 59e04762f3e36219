package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/pkg/crypto"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// Mock implementations for testing
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *mockUserRepository) GetByMobile(ctx context.Context, mobile string) (*entities.User, error) {
	args := m.Called(ctx, mobile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, email *string) error {
	args := m.Called(ctx, id, fullName, email)
	return args.Error(0)
}

func (m *mockUserRepository) SetPINHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	args := m.Called(ctx, id, pinHash)
	return args.Error(0)
}

func (m *mockUserRepository) SetBiometricEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	args := m.Called(ctx, id, enabled)
	return args.Error(0)
}

type mockKYCRepository struct {
	mock.Mock
}

func (m *mockKYCRepository) EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KYCDocument), args.Error(1)
}

func (m *mockKYCRepository) FindUserByPAN(ctx context.Context, pan string) (uuid.UUID, bool, error) {
	args := m.Called(ctx, pan)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *mockKYCRepository) FindUserByAadhaarFingerprint(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *mockKYCRepository) SetPANFact(ctx context.Context, userID uuid.UUID, pan string) (*entities.KYCDocument, error) {
	args := m.Called(ctx, userID, pan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KYCDocument), args.Error(1)
}

func (m *mockKYCRepository) SetAadhaarFact(ctx context.Context, userID uuid.UUID, encrypted, fingerprint string) (*entities.KYCDocument, error) {
	args := m.Called(ctx, userID, encrypted, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KYCDocument), args.Error(1)
}

func (m *mockKYCRepository) SetLivenessFact(ctx context.Context, userID uuid.UUID, score float64, verified, faceMatched bool) (*entities.KYCDocument, error) {
	args := m.Called(ctx, userID, score, verified, faceMatched)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KYCDocument), args.Error(1)
}

func (m *mockKYCRepository) ResetFacts(ctx context.Context, userID uuid.UUID, reason string) (*entities.KYCDocument, error) {
	args := m.Called(ctx, userID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KYCDocument), args.Error(1)
}

type mockBankReader struct {
	mock.Mock
}

func (m *mockBankReader) HasVerifiedAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockIdentityProvider struct {
	mock.Mock
}

func (m *mockIdentityProvider) VerifyPAN(ctx context.Context, pan, fullName string) (*adapters.PANVerification, error) {
	args := m.Called(ctx, pan, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*adapters.PANVerification), args.Error(1)
}

func (m *mockIdentityProvider) SendAadhaarOTP(ctx context.Context, aadhaarNumber string) error {
	args := m.Called(ctx, aadhaarNumber)
	return args.Error(0)
}

func (m *mockIdentityProvider) ConfirmAadhaarOTP(ctx context.Context, aadhaarNumber, otp string) (bool, error) {
	args := m.Called(ctx, aadhaarNumber, otp)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdentityProvider) VerifyLiveness(ctx context.Context, selfieRef string) (*adapters.LivenessResult, error) {
	args := m.Called(ctx, selfieRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*adapters.LivenessResult), args.Error(1)
}

type mockOTPStore struct {
	mock.Mock
}

func (m *mockOTPStore) Put(ctx context.Context, ref, aadhaarNumber string) error {
	args := m.Called(ctx, ref, aadhaarNumber)
	return args.Error(0)
}

func (m *mockOTPStore) Consume(ctx context.Context, ref string) (string, bool, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Bool(1), args.Error(2)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Dispatch(userID uuid.UUID, kind adapters.NotificationKind, message string) {
	m.Called(userID, kind, message)
}

type testDeps struct {
	users    *mockUserRepository
	kyc      *mockKYCRepository
	banks    *mockBankReader
	identity *mockIdentityProvider
	otp      *mockOTPStore
	notifier *mockNotifier
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	deps := &testDeps{
		users:    &mockUserRepository{},
		kyc:      &mockKYCRepository{},
		banks:    &mockBankReader{},
		identity: &mockIdentityProvider{},
		otp:      &mockOTPStore{},
		notifier: &mockNotifier{},
	}
	svc := NewService(
		deps.users, deps.kyc, deps.banks, deps.identity, deps.otp,
		crypto.NewCipher("test-secret"), deps.notifier,
		zaptest.NewLogger(t), 5*time.Minute, 10,
	)
	return svc, deps
}

func freshUser(id uuid.UUID) *entities.User {
	return &entities.User{
		ID:        id,
		Mobile:    "9876543210",
		KYCLevel:  entities.KYCLevelNone,
		KYCStatus: entities.KYCStatusPending,
	}
}

func TestService_Register(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	deps.users.On("Create", ctx, mock.AnythingOfType("*entities.User")).Return(nil).Once()

	user, err := svc.Register(ctx, &entities.RegisterRequest{Mobile: "9876543210"})
	assert.NoError(t, err)
	assert.Equal(t, "9876543210", user.Mobile)
	assert.Equal(t, 10, user.AutoSavePercent)
	assert.Equal(t, entities.KYCLevelNone, user.KYCLevel)

	deps.users.AssertExpectations(t)
}

func TestService_Register_InvalidMobile(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.Register(context.Background(), &entities.RegisterRequest{Mobile: "12345"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	deps.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_GetStatus_NewUser(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	deps.users.On("GetByID", ctx, userID).Return(freshUser(userID), nil).Once()
	deps.kyc.On("EnsureForUser", ctx, userID).Return(&entities.KYCDocument{UserID: userID}, nil).Once()
	deps.banks.On("HasVerifiedAccount", ctx, userID).Return(false, nil).Once()

	status, err := svc.GetStatus(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, entities.StepProfileSetup, status.CurrentStep)
	assert.Equal(t, entities.KYCLevelNone, status.KYCLevel)
	assert.True(t, status.Permissions.CanMakePayments)
	assert.False(t, status.Permissions.CanInvest)
	assert.False(t, status.Permissions.CanWithdraw)
	if assert.NotNil(t, status.Permissions.MaxPaymentAmount) {
		assert.True(t, status.Permissions.MaxPaymentAmount.Equal(decimal.NewFromInt(10000)))
	}
	assert.Equal(t, []string{
		entities.NextStepVerifyPAN,
		entities.NextStepVerifyAadhaar,
		entities.NextStepCompleteSelfie,
	}, status.NextSteps)
}

func TestService_GetStatus_FullyVerified(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	pin := "hash"
	user := freshUser(userID)
	user.ProfileComplete = true
	user.PINHash = &pin
	user.BiometricEnabled = true
	user.KYCLevel = entities.KYCLevelFull
	user.KYCStatus = entities.KYCStatusApproved

	doc := &entities.KYCDocument{
		UserID:           userID,
		PANVerified:      true,
		AadhaarVerified:  true,
		LivenessVerified: true,
		FaceMatched:      true,
		BankVerified:     true,
	}

	deps.users.On("GetByID", ctx, userID).Return(user, nil).Once()
	deps.kyc.On("EnsureForUser", ctx, userID).Return(doc, nil).Once()
	deps.banks.On("HasVerifiedAccount", ctx, userID).Return(true, nil).Once()

	status, err := svc.GetStatus(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, entities.StepKYCComplete, status.CurrentStep)
	assert.True(t, status.Permissions.CanInvest)
	assert.True(t, status.Permissions.CanWithdraw)
	assert.Nil(t, status.Permissions.MaxPaymentAmount)
	assert.Empty(t, status.NextSteps)
}

func TestService_CheckKYCRequirement_PaymentAboveCap(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	deps.users.On("GetByID", ctx, userID).Return(freshUser(userID), nil).Once()
	deps.kyc.On("EnsureForUser", ctx, userID).Return(&entities.KYCDocument{UserID: userID}, nil).Once()

	amount := decimal.NewFromInt(15000)
	resp, err := svc.CheckKYCRequirement(ctx, userID, entities.KYCActionPayment, &amount)
	assert.NoError(t, err)
	assert.True(t, resp.Required)
	assert.Equal(t, entities.KYCLevelBasic, resp.RequiredLevel)
	assert.Equal(t, entities.KYCLevelNone, resp.CurrentLevel)
	assert.Equal(t, []string{entities.NextStepVerifyPAN}, resp.NextSteps)
}

func TestService_CheckKYCRequirement_PaymentBelowCap(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	deps.users.On("GetByID", ctx, userID).Return(freshUser(userID), nil).Once()
	deps.kyc.On("EnsureForUser", ctx, userID).Return(&entities.KYCDocument{UserID: userID}, nil).Once()

	amount := decimal.NewFromInt(5000)
	resp, err := svc.CheckKYCRequirement(ctx, userID, entities.KYCActionPayment, &amount)
	assert.NoError(t, err)
	assert.False(t, resp.Required)
}

func TestService_CheckKYCRequirement_Investment(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	user := freshUser(userID)
	user.KYCLevel = entities.KYCLevelBasic
	doc := &entities.KYCDocument{UserID: userID, PANVerified: true}

	deps.users.On("GetByID", ctx, userID).Return(user, nil).Once()
	deps.kyc.On("EnsureForUser", ctx, userID).Return(doc, nil).Once()

	resp, err := svc.CheckKYCRequirement(ctx, userID, entities.KYCActionInvestment, nil)
	assert.NoError(t, err)
	assert.True(t, resp.Required)
	assert.Equal(t, entities.KYCLevelFull, resp.RequiredLevel)
	assert.Equal(t, []string{
		entities.NextStepVerifyAadhaar,
		entities.NextStepCompleteSelfie,
	}, resp.NextSteps)
}

func TestService_VerifyPAN_Success(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	pan := "ABCDE1234F"

	user := freshUser(userID)
	user.FullName = "Asha Rao"
	verifiedDoc := &entities.KYCDocument{UserID: userID, PANVerified: true}

	deps.users.On("GetByID", ctx, userID).Return(user, nil).Once()
	deps.kyc.On("FindUserByPAN", ctx, pan).Return(uuid.Nil, false, nil).Once()
	deps.identity.On("VerifyPAN", ctx, pan, "Asha Rao").
		Return(&adapters.PANVerification{Valid: true, HolderName: "Asha Rao"}, nil).Once()
	deps.kyc.On("SetPANFact", ctx, userID, pan).Return(verifiedDoc, nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationKYC, mock.Anything).Return().Once()

	resp, err := svc.VerifyPAN(ctx, userID, &entities.VerifyPANRequest{PANNumber: "abcde1234f"})
	assert.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, entities.KYCLevelBasic, resp.KYCLevel)
	deps.kyc.AssertExpectations(t)
}

func TestService_VerifyPAN_Conflict(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	otherID := uuid.New()
	pan := "ABCDE1234F"

	deps.users.On("GetByID", ctx, userID).Return(freshUser(userID), nil).Once()
	deps.kyc.On("FindUserByPAN", ctx, pan).Return(otherID, true, nil).Once()

	_, err := svc.VerifyPAN(ctx, userID, &entities.VerifyPANRequest{PANNumber: pan})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	deps.kyc.AssertNotCalled(t, "SetPANFact", mock.Anything, mock.Anything, mock.Anything)
	deps.identity.AssertNotCalled(t, "VerifyPAN", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_VerifyPAN_BadFormat(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.VerifyPAN(context.Background(), uuid.New(), &entities.VerifyPANRequest{PANNumber: "NOTAPAN"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestService_VerifyPAN_ProviderRejects(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	pan := "ABCDE1234F"

	deps.users.On("GetByID", ctx, userID).Return(freshUser(userID), nil).Once()
	deps.kyc.On("FindUserByPAN", ctx, pan).Return(uuid.Nil, false, nil).Once()
	deps.identity.On("VerifyPAN", ctx, pan, mock.Anything).
		Return(&adapters.PANVerification{Valid: false}, nil).Once()

	resp, err := svc.VerifyPAN(ctx, userID, &entities.VerifyPANRequest{PANNumber: pan})
	assert.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Equal(t, entities.KYCLevelNone, resp.KYCLevel)
	deps.kyc.AssertNotCalled(t, "SetPANFact", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_InitAadhaarOTP(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	aadhaar := "123456789012"

	deps.kyc.On("FindUserByAadhaarFingerprint", ctx, crypto.HashFingerprint(aadhaar)).
		Return(uuid.Nil, false, nil).Once()
	deps.identity.On("SendAadhaarOTP", ctx, aadhaar).Return(nil).Once()
	deps.otp.On("Put", ctx, mock.AnythingOfType("string"), aadhaar).Return(nil).Once()

	resp, err := svc.InitAadhaarOTP(ctx, userID, &entities.AadhaarOTPInitRequest{AadhaarNumber: aadhaar})
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.OTPReference)
	assert.Equal(t, 300, resp.ExpiresIn)
}

func TestService_ConfirmAadhaarOTP_ExpiredReference(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	deps.otp.On("Consume", ctx, "stale-ref").Return("", false, nil).Once()

	_, err := svc.ConfirmAadhaarOTP(ctx, uuid.New(), &entities.AadhaarOTPConfirmRequest{
		OTPReference: "stale-ref", OTP: "123456",
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	deps.kyc.AssertNotCalled(t, "SetAadhaarFact", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ConfirmAadhaarOTP_Success(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	aadhaar := "123456789012"

	verifiedDoc := &entities.KYCDocument{UserID: userID, PANVerified: true, AadhaarVerified: true}

	deps.otp.On("Consume", ctx, "ref-1").Return(aadhaar, true, nil).Once()
	deps.identity.On("ConfirmAadhaarOTP", ctx, aadhaar, "123456").Return(true, nil).Once()
	deps.kyc.On("SetAadhaarFact", ctx, userID, mock.AnythingOfType("string"), crypto.HashFingerprint(aadhaar)).
		Return(verifiedDoc, nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationKYC, mock.Anything).Return().Once()

	resp, err := svc.ConfirmAadhaarOTP(ctx, userID, &entities.AadhaarOTPConfirmRequest{
		OTPReference: "ref-1", OTP: "123456",
	})
	assert.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, entities.KYCLevelBasic, resp.KYCLevel)
}

func TestService_VerifyLiveness_PrerequisitesMissing(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	deps.kyc.On("EnsureForUser", ctx, userID).
		Return(&entities.KYCDocument{UserID: userID, PANVerified: true}, nil).Once()

	_, err := svc.VerifyLiveness(ctx, userID, &entities.VerifyLivenessRequest{SelfieRef: "selfie-1"})
	assert.True(t, errors.IsType(err, errors.ErrorTypePrerequisite))

	appErr, ok := errors.AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, []string{entities.NextStepVerifyAadhaar, entities.NextStepCompleteSelfie},
		appErr.Details["next_steps"])
	deps.identity.AssertNotCalled(t, "VerifyLiveness", mock.Anything, mock.Anything)
}

func TestService_VerifyLiveness_ReachesFullLevel(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	before := &entities.KYCDocument{UserID: userID, PANVerified: true, AadhaarVerified: true}
	after := &entities.KYCDocument{
		UserID: userID, PANVerified: true, AadhaarVerified: true,
		LivenessVerified: true, FaceMatched: true,
	}

	deps.kyc.On("EnsureForUser", ctx, userID).Return(before, nil).Once()
	deps.identity.On("VerifyLiveness", ctx, "selfie-1").
		Return(&adapters.LivenessResult{Score: 0.97, Passed: true, FaceMatched: true}, nil).Once()
	deps.kyc.On("SetLivenessFact", ctx, userID, 0.97, true, true).Return(after, nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationKYC, mock.Anything).Return().Once()

	resp, err := svc.VerifyLiveness(ctx, userID, &entities.VerifyLivenessRequest{SelfieRef: "selfie-1"})
	assert.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, entities.KYCLevelFull, resp.KYCLevel)
	assert.Equal(t, entities.KYCStatusApproved, resp.KYCStatus)
}

func TestService_AdminResetKYC(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	reason := "document mismatch"

	cleared := &entities.KYCDocument{UserID: userID, RejectionReason: &reason}
	deps.kyc.On("ResetFacts", ctx, userID, reason).Return(cleared, nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationKYC, mock.Anything).Return().Once()

	err := svc.AdminResetKYC(ctx, userID, reason)
	assert.NoError(t, err)
}

func TestService_AdminResetKYC_RequiresReason(t *testing.T) {
	svc, deps := newTestService(t)

	err := svc.AdminResetKYC(context.Background(), uuid.New(), "  ")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	deps.kyc.AssertNotCalled(t, "ResetFacts", mock.Anything, mock.Anything, mock.Anything)
}

package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OnboardingStep is the screen the mobile client should show next. It is
// derived from verification facts on every read; there is no persisted
// current-step column that could desync from the facts.
type OnboardingStep string

const (
	StepRegistration   OnboardingStep = "REGISTRATION"
	StepProfileSetup   OnboardingStep = "PROFILE_SETUP"
	StepPINSetup       OnboardingStep = "PIN_SETUP"
	StepBiometricSetup OnboardingStep = "BIOMETRIC_SETUP"
	StepKYCInProgress  OnboardingStep = "KYC_IN_PROGRESS"
	StepKYCComplete    OnboardingStep = "KYC_COMPLETE"
	StepDashboard      OnboardingStep = "DASHBOARD"
)

// OnboardingFacts is the full input to the step derivation. Building the
// struct explicitly keeps the derivation a pure function with no hidden
// state.
type OnboardingFacts struct {
	ProfileComplete  bool
	PINSet           bool
	BiometricEnabled bool
	PANVerified      bool
	AadhaarVerified  bool
	LivenessVerified bool
	FaceMatched      bool
}

// DeriveStep recomputes the active onboarding step from raw facts. Pure and
// idempotent: identical facts always yield the identical step.
func DeriveStep(f OnboardingFacts) OnboardingStep {
	switch {
	case !f.ProfileComplete:
		return StepProfileSetup
	case !f.PINSet:
		return StepPINSetup
	case !f.BiometricEnabled:
		return StepBiometricSetup
	case f.PANVerified && f.AadhaarVerified && f.LivenessVerified:
		return StepKYCComplete
	default:
		return StepDashboard
	}
}

// PaymentCapBasic is the per-payment cap for users below KYC level 1
var PaymentCapBasic = decimal.NewFromInt(10000)

// Permissions are the actions a user's KYC level and bank state allow
type Permissions struct {
	CanMakePayments  bool             `json:"can_make_payments"`
	MaxPaymentAmount *decimal.Decimal `json:"max_payment_amount,omitempty"`
	CanInvest        bool             `json:"can_invest"`
	CanWithdraw      bool             `json:"can_withdraw"`
}

// PermissionsFor derives the permission set from the KYC level and the
// presence of a verified bank account. Pure function, no lookups.
func PermissionsFor(kycLevel int, hasVerifiedBankAccount bool) Permissions {
	p := Permissions{
		CanMakePayments: true,
		CanInvest:       kycLevel >= KYCLevelFull,
		CanWithdraw:     hasVerifiedBankAccount,
	}
	if kycLevel < KYCLevelBasic {
		cap := PaymentCapBasic
		p.MaxPaymentAmount = &cap
	}
	return p
}

// KYCAction is an action gated by KYC level
type KYCAction string

const (
	KYCActionPayment    KYCAction = "PAYMENT"
	KYCActionInvestment KYCAction = "INVESTMENT"
)

// Verification step labels, in the fixed resolution order PAN first, then
// Aadhaar, then liveness. PAN is the prerequisite for level 1 so it is
// always reported before the others.
const (
	NextStepVerifyPAN      = "Verify PAN card"
	NextStepVerifyAadhaar  = "Verify Aadhaar"
	NextStepCompleteSelfie = "Complete liveness check"
)

// MissingKYCSteps lists the verification steps outstanding for the given
// target level, in fixed order.
func MissingKYCSteps(doc *KYCDocument, requiredLevel int) []string {
	var steps []string
	if !doc.PANVerified {
		steps = append(steps, NextStepVerifyPAN)
	}
	if requiredLevel >= KYCLevelFull {
		if !doc.AadhaarVerified {
			steps = append(steps, NextStepVerifyAadhaar)
		}
		if !doc.LivenessVerified || !doc.FaceMatched {
			steps = append(steps, NextStepCompleteSelfie)
		}
	}
	return steps
}

// OnboardingStatusResponse is the payload for GetOnboardingStatus
type OnboardingStatusResponse struct {
	UserID           uuid.UUID      `json:"user_id"`
	CurrentStep      OnboardingStep `json:"current_step"`
	KYCLevel         int            `json:"kyc_level"`
	KYCStatus        KYCStatus      `json:"kyc_status"`
	CompletionStatus CompletionFlags `json:"completion_status"`
	NextSteps        []string       `json:"next_steps"`
	Permissions      Permissions    `json:"permissions"`
}

// CompletionFlags expose the individual facts to the client
type CompletionFlags struct {
	ProfileComplete  bool `json:"profile_complete"`
	PINSet           bool `json:"pin_set"`
	BiometricEnabled bool `json:"biometric_enabled"`
	PANVerified      bool `json:"pan_verified"`
	AadhaarVerified  bool `json:"aadhaar_verified"`
	LivenessVerified bool `json:"liveness_verified"`
	BankVerified     bool `json:"bank_verified"`
}

// KYCRequirementResponse is the payload for CheckKycRequirement
type KYCRequirementResponse struct {
	Required      bool     `json:"required"`
	RequiredLevel int      `json:"required_level"`
	CurrentLevel  int      `json:"current_level"`
	Message       string   `json:"message"`
	NextSteps     []string `json:"next_steps,omitempty"`
}

// Verification request/response payloads

type RegisterRequest struct {
	Mobile string `json:"mobile" validate:"required,len=10,numeric"`
}

type CompleteProfileRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type SetPINRequest struct {
	PIN string `json:"pin" validate:"required,len=4,numeric"`
}

type VerifyPANRequest struct {
	PANNumber string `json:"pan_number" validate:"required,len=10"`
}

type AadhaarOTPInitRequest struct {
	AadhaarNumber string `json:"aadhaar_number" validate:"required,len=12,numeric"`
}

type AadhaarOTPInitResponse struct {
	OTPReference string `json:"otp_reference"`
	ExpiresIn    int    `json:"expires_in_seconds"`
}

type AadhaarOTPConfirmRequest struct {
	OTPReference string `json:"otp_reference" validate:"required"`
	OTP          string `json:"otp" validate:"required,len=6,numeric"`
}

type VerifyLivenessRequest struct {
	SelfieRef string `json:"selfie_ref" validate:"required"`
}

type VerificationResponse struct {
	Verified  bool      `json:"verified"`
	KYCLevel  int       `json:"kyc_level"`
	KYCStatus KYCStatus `json:"kyc_status"`
	Message   string    `json:"message,omitempty"`
}

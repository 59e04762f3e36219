package entities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDeriveStep(t *testing.T) {
	tests := []struct {
		name  string
		facts OnboardingFacts
		want  OnboardingStep
	}{
		{"nothing done", OnboardingFacts{}, StepProfileSetup},
		{"profile only", OnboardingFacts{ProfileComplete: true}, StepPINSetup},
		{"profile and pin", OnboardingFacts{ProfileComplete: true, PINSet: true}, StepBiometricSetup},
		{"setup done, no kyc", OnboardingFacts{
			ProfileComplete: true, PINSet: true, BiometricEnabled: true,
		}, StepDashboard},
		{"partial kyc", OnboardingFacts{
			ProfileComplete: true, PINSet: true, BiometricEnabled: true,
			PANVerified: true,
		}, StepDashboard},
		{"all verifications done", OnboardingFacts{
			ProfileComplete: true, PINSet: true, BiometricEnabled: true,
			PANVerified: true, AadhaarVerified: true, LivenessVerified: true, FaceMatched: true,
		}, StepKYCComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStep(tt.facts))
			// Idempotent: same facts, same step
			assert.Equal(t, DeriveStep(tt.facts), DeriveStep(tt.facts))
		})
	}
}

func TestPermissionsFor(t *testing.T) {
	t.Run("level 0 is capped and cannot invest", func(t *testing.T) {
		p := PermissionsFor(KYCLevelNone, false)
		assert.True(t, p.CanMakePayments)
		assert.False(t, p.CanInvest)
		assert.False(t, p.CanWithdraw)
		if assert.NotNil(t, p.MaxPaymentAmount) {
			assert.True(t, p.MaxPaymentAmount.Equal(decimal.NewFromInt(10000)))
		}
	})

	t.Run("level 1 removes the cap but not the invest gate", func(t *testing.T) {
		p := PermissionsFor(KYCLevelBasic, false)
		assert.True(t, p.CanMakePayments)
		assert.Nil(t, p.MaxPaymentAmount)
		assert.False(t, p.CanInvest)
	})

	t.Run("level 2 can invest", func(t *testing.T) {
		p := PermissionsFor(KYCLevelFull, true)
		assert.True(t, p.CanInvest)
		assert.True(t, p.CanWithdraw)
		assert.Nil(t, p.MaxPaymentAmount)
	})

	t.Run("withdrawal follows bank verification, not level", func(t *testing.T) {
		assert.True(t, PermissionsFor(KYCLevelNone, true).CanWithdraw)
		assert.False(t, PermissionsFor(KYCLevelFull, false).CanWithdraw)
	})
}

func TestMissingKYCSteps_FixedOrder(t *testing.T) {
	doc := &KYCDocument{}
	assert.Equal(t, []string{NextStepVerifyPAN}, MissingKYCSteps(doc, KYCLevelBasic))
	assert.Equal(t, []string{
		NextStepVerifyPAN, NextStepVerifyAadhaar, NextStepCompleteSelfie,
	}, MissingKYCSteps(doc, KYCLevelFull))

	doc.PANVerified = true
	assert.Empty(t, MissingKYCSteps(doc, KYCLevelBasic))
	assert.Equal(t, []string{NextStepVerifyAadhaar, NextStepCompleteSelfie},
		MissingKYCSteps(doc, KYCLevelFull))

	doc.AadhaarVerified = true
	doc.LivenessVerified = true
	doc.FaceMatched = false
	assert.Equal(t, []string{NextStepCompleteSelfie}, MissingKYCSteps(doc, KYCLevelFull))
}

func TestKYCDocument_DeriveKYCLevel(t *testing.T) {
	doc := &KYCDocument{}
	assert.Equal(t, KYCLevelNone, doc.DeriveKYCLevel())

	doc.PANVerified = true
	assert.Equal(t, KYCLevelBasic, doc.DeriveKYCLevel())

	// Aadhaar alone without PAN stays at level 0
	other := &KYCDocument{AadhaarVerified: true, LivenessVerified: true, FaceMatched: true}
	assert.Equal(t, KYCLevelNone, other.DeriveKYCLevel())

	doc.AadhaarVerified = true
	doc.LivenessVerified = true
	assert.Equal(t, KYCLevelBasic, doc.DeriveKYCLevel(), "face match is required for level 2")

	doc.FaceMatched = true
	assert.Equal(t, KYCLevelFull, doc.DeriveKYCLevel())
}

func TestKYCDocument_DeriveKYCStatus(t *testing.T) {
	doc := &KYCDocument{}
	assert.Equal(t, KYCStatusPending, doc.DeriveKYCStatus())

	doc.PANVerified = true
	assert.Equal(t, KYCStatusInProgress, doc.DeriveKYCStatus())

	doc.AadhaarVerified = true
	doc.LivenessVerified = true
	doc.FaceMatched = true
	assert.Equal(t, KYCStatusApproved, doc.DeriveKYCStatus())

	reason := "document mismatch"
	doc.RejectionReason = &reason
	assert.Equal(t, KYCStatusRejected, doc.DeriveKYCStatus(), "rejection dominates")
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidPAN("ABCDE1234F"))
	assert.False(t, ValidPAN("abcde1234f"))
	assert.False(t, ValidPAN("ABCDE12345"))

	assert.True(t, ValidIFSC("HDFC0001234"))
	assert.False(t, ValidIFSC("HDFC1001234"))

	assert.True(t, ValidMobile("9876543210"))
	assert.False(t, ValidMobile("1234567890"))
	assert.False(t, ValidMobile("98765432100"))

	assert.True(t, ValidAadhaar("123456789012"))
	assert.False(t, ValidAadhaar("12345678901"))
}

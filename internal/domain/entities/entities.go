package entities

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KYCStatus represents the overall state of a user's identity verification
type KYCStatus string

const (
	KYCStatusPending     KYCStatus = "PENDING"
	KYCStatusInProgress  KYCStatus = "IN_PROGRESS"
	KYCStatusUnderReview KYCStatus = "UNDER_REVIEW"
	KYCStatusApproved    KYCStatus = "APPROVED"
	KYCStatusRejected    KYCStatus = "REJECTED"
)

// KYC levels gate payment limits and investment access
const (
	KYCLevelNone  = 0
	KYCLevelBasic = 1 // PAN verified
	KYCLevelFull  = 2 // PAN + Aadhaar + liveness + face match
)

// User is the identity anchor. KYC level is monotonically non-decreasing
// except on admin rejection/reset.
type User struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Mobile           string    `json:"mobile" db:"mobile"`
	FullName         string    `json:"full_name" db:"full_name"`
	Email            *string   `json:"email,omitempty" db:"email"`
	PINHash          *string   `json:"-" db:"pin_hash"`
	BiometricEnabled bool      `json:"biometric_enabled" db:"biometric_enabled"`
	ProfileComplete  bool      `json:"profile_complete" db:"profile_complete"`
	AutoSavePercent  int       `json:"auto_save_percent" db:"auto_save_percent"`
	KYCLevel         int       `json:"kyc_level" db:"kyc_level"`
	KYCStatus        KYCStatus `json:"kyc_status" db:"kyc_status"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// PINSet reports whether the user has completed PIN setup
func (u *User) PINSet() bool {
	return u.PINHash != nil && *u.PINHash != ""
}

// KYCDocument holds the verification facts for a user, one-to-one with User.
// Facts are mutated exclusively by verification endpoints; the user's level
// and status are always re-derived from the full fact set afterwards.
type KYCDocument struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	UserID             uuid.UUID `json:"user_id" db:"user_id"`
	PANNumber          *string   `json:"pan_number,omitempty" db:"pan_number"`
	PANVerified        bool      `json:"pan_verified" db:"pan_verified"`
	AadhaarEncrypted   *string   `json:"-" db:"aadhaar_encrypted"`
	AadhaarFingerprint *string   `json:"-" db:"aadhaar_fingerprint"`
	AadhaarVerified    bool      `json:"aadhaar_verified" db:"aadhaar_verified"`
	LivenessScore      *float64  `json:"liveness_score,omitempty" db:"liveness_score"`
	LivenessVerified   bool      `json:"liveness_verified" db:"liveness_verified"`
	FaceMatched        bool      `json:"face_matched" db:"face_matched"`
	BankVerified       bool      `json:"bank_verified" db:"bank_verified"`
	RejectionReason    *string   `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// DeriveKYCLevel recomputes the level from the full fact set. Never derived
// incrementally; this keeps the level consistent when facts arrive out of
// order, are skipped or re-run.
func (d *KYCDocument) DeriveKYCLevel() int {
	if d.PANVerified && d.AadhaarVerified && d.LivenessVerified && d.FaceMatched {
		return KYCLevelFull
	}
	if d.PANVerified {
		return KYCLevelBasic
	}
	return KYCLevelNone
}

// DeriveKYCStatus recomputes the overall status from the full fact set
func (d *KYCDocument) DeriveKYCStatus() KYCStatus {
	if d.RejectionReason != nil && *d.RejectionReason != "" {
		return KYCStatusRejected
	}
	if d.DeriveKYCLevel() == KYCLevelFull {
		return KYCStatusApproved
	}
	if d.LivenessScore != nil && !d.LivenessVerified {
		return KYCStatusUnderReview
	}
	if d.PANVerified || d.AadhaarVerified || d.LivenessVerified {
		return KYCStatusInProgress
	}
	return KYCStatusPending
}

// BankAccount is a user's linked bank account. The account number is stored
// encrypted as an "iv:ciphertext" hex blob; the fingerprint column exists
// only for duplicate detection.
type BankAccount struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	UserID             uuid.UUID `json:"user_id" db:"user_id"`
	AccountNumberEnc   string    `json:"-" db:"account_number_enc"`
	AccountFingerprint string    `json:"-" db:"account_fingerprint"`
	MaskedNumber       string    `json:"masked_number" db:"masked_number"`
	IFSCCode           string    `json:"ifsc_code" db:"ifsc_code"`
	HolderName         string    `json:"holder_name" db:"holder_name"`
	IsPrimary          bool      `json:"is_primary" db:"is_primary"`
	IsVerified         bool      `json:"is_verified" db:"is_verified"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// SavingsWallet is the per-user savings ledger. Balance never goes negative;
// every mutation happens under a row lock and is attributable to a
// transaction record.
type SavingsWallet struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// TransactionType classifies ledger events
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeInvestment TransactionType = "INVESTMENT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// TransactionStatus is the only mutable field of a transaction
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is an append-only ledger event. AutoSaveAmount is populated
// only for PAYMENT events that triggered an auto-save credit.
type Transaction struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	UserID         uuid.UUID         `json:"user_id" db:"user_id"`
	Type           TransactionType   `json:"type" db:"type"`
	Amount         decimal.Decimal   `json:"amount" db:"amount"`
	AutoSaveAmount *decimal.Decimal  `json:"auto_save_amount,omitempty" db:"auto_save_amount"`
	Status         TransactionStatus `json:"status" db:"status"`
	Reference      *string           `json:"reference,omitempty" db:"reference"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// InvestmentProduct is a mutual-fund-like product the rule engine buys into
type InvestmentProduct struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Code              string          `json:"code" db:"code"`
	Name              string          `json:"name" db:"name"`
	MinimumInvestment decimal.Decimal `json:"minimum_investment" db:"minimum_investment"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// InvestmentStatus marks purchase settlement
type InvestmentStatus string

const (
	InvestmentStatusCompleted InvestmentStatus = "COMPLETED"
	InvestmentStatusFailed    InvestmentStatus = "FAILED"
)

// Investment records an executed purchase. Immutable once created;
// re-valuation uses live NAV lookups, never mutation of this record.
type Investment struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	RuleID         *uuid.UUID       `json:"rule_id,omitempty" db:"rule_id"`
	ProductID      uuid.UUID        `json:"product_id" db:"product_id"`
	Units          decimal.Decimal  `json:"units" db:"units"`
	PurchaseNAV    decimal.Decimal  `json:"purchase_nav" db:"purchase_nav"`
	AmountInvested decimal.Decimal  `json:"amount_invested" db:"amount_invested"`
	Status         InvestmentStatus `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// NotificationPreference is persisted per user (never held in process
// memory) so toggles survive restarts and scale across instances.
type NotificationPreference struct {
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	AutoSaveAlerts   bool      `json:"auto_save_alerts" db:"auto_save_alerts"`
	InvestmentAlerts bool      `json:"investment_alerts" db:"investment_alerts"`
	KYCAlerts        bool      `json:"kyc_alerts" db:"kyc_alerts"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ErrorResponse is the standard error envelope for HTTP responses
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var (
	panPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern   = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	mobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	aadhaarDigits = regexp.MustCompile(`^[0-9]{12}$`)
)

// ValidPAN reports whether the value matches the PAN card format
func ValidPAN(pan string) bool { return panPattern.MatchString(pan) }

// ValidIFSC reports whether the value matches the IFSC code format
func ValidIFSC(ifsc string) bool { return ifscPattern.MatchString(ifsc) }

// ValidMobile reports whether the value is a ten-digit Indian mobile number
func ValidMobile(mobile string) bool { return mobilePattern.MatchString(mobile) }

// ValidAadhaar reports whether the value is a twelve-digit Aadhaar number
func ValidAadhaar(aadhaar string) bool { return aadhaarDigits.MatchString(aadhaar) }

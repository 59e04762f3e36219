package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TriggerType decides when a rule is evaluated
type TriggerType string

const (
	TriggerThreshold TriggerType = "THRESHOLD"
	TriggerScheduled TriggerType = "SCHEDULED"
)

// RuleStatus pauses a rule without discarding it
type RuleStatus string

const (
	RuleStatusActive RuleStatus = "ACTIVE"
	RuleStatusPaused RuleStatus = "PAUSED"
)

// SizingMode tags the investment sizing variant
type SizingMode string

const (
	SizingPercentage SizingMode = "PERCENTAGE"
	SizingFixed      SizingMode = "FIXED"
)

// InvestmentSizing is a tagged variant: exactly one of percentage-of-balance
// or fixed amount. Modelled as a closed type rather than two nullable fields
// so the mutual exclusivity holds by construction.
type InvestmentSizing struct {
	Mode  SizingMode      `json:"mode" db:"sizing_mode"`
	Value decimal.Decimal `json:"value" db:"sizing_value"`
}

// PercentageSizing invests a percentage of the wallet balance
func PercentageSizing(percent decimal.Decimal) InvestmentSizing {
	return InvestmentSizing{Mode: SizingPercentage, Value: percent}
}

// FixedSizing invests a fixed amount
func FixedSizing(amount decimal.Decimal) InvestmentSizing {
	return InvestmentSizing{Mode: SizingFixed, Value: amount}
}

// AmountFor computes the investment amount against a wallet balance,
// rounded to 2 decimal places, half up.
func (s InvestmentSizing) AmountFor(balance decimal.Decimal) decimal.Decimal {
	if s.Mode == SizingPercentage {
		return balance.Mul(s.Value).Div(decimal.NewFromInt(100)).Round(2)
	}
	return s.Value.Round(2)
}

// AutoInvestRule moves wallet funds into a product when its trigger fires.
// Rules for a user evaluate in ascending Ordinal (creation order); the
// ordinal is an explicit column, never storage-layer default ordering.
type AutoInvestRule struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	UserID       uuid.UUID        `json:"user_id" db:"user_id"`
	ProductID    uuid.UUID        `json:"product_id" db:"product_id"`
	TriggerType  TriggerType      `json:"trigger_type" db:"trigger_type"`
	TriggerValue *decimal.Decimal `json:"trigger_value,omitempty" db:"trigger_value"`
	Sizing       InvestmentSizing `json:"sizing" db:"-"`
	Enabled      bool             `json:"enabled" db:"enabled"`
	Status       RuleStatus       `json:"status" db:"status"`
	Ordinal      int              `json:"ordinal" db:"ordinal"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// Evaluable reports whether the rule may be considered at all this cycle
func (r *AutoInvestRule) Evaluable() bool {
	return r.Enabled && r.Status == RuleStatusActive
}

// MinimumFixedInvestment is the floor for fixed-amount rule sizing
var MinimumFixedInvestment = decimal.NewFromInt(100)

// CreateRuleRequest is the payload for rule creation. Exactly one of
// InvestmentPercentage or InvestmentAmount must be provided.
type CreateRuleRequest struct {
	ProductID            uuid.UUID        `json:"product_id" validate:"required"`
	TriggerType          TriggerType      `json:"trigger_type" validate:"required,oneof=THRESHOLD SCHEDULED"`
	TriggerValue         *decimal.Decimal `json:"trigger_value,omitempty"`
	InvestmentPercentage *decimal.Decimal `json:"investment_percentage,omitempty"`
	InvestmentAmount     *decimal.Decimal `json:"investment_amount,omitempty"`
}

// UpdateRuleRequest toggles or pauses a rule. Changes take effect on the
// next evaluation cycle.
type UpdateRuleRequest struct {
	Enabled *bool       `json:"enabled,omitempty"`
	Status  *RuleStatus `json:"status,omitempty"`
}

// RecordPaymentRequest is the payload for RecordPayment
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reference string          `json:"reference" validate:"omitempty,max=140"`
}

// RecordPaymentResponse reports the payment and its auto-save credit
type RecordPaymentResponse struct {
	TransactionID  uuid.UUID       `json:"transaction_id"`
	AutoSaveAmount decimal.Decimal `json:"auto_save_amount"`
	WalletBalance  decimal.Decimal `json:"wallet_balance"`
}

// WithdrawRequest debits the savings wallet to the primary bank account
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// AddBankAccountRequest links a new bank account
type AddBankAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,min=9,max=18,numeric"`
	IFSCCode      string `json:"ifsc_code" validate:"required,len=11"`
	HolderName    string `json:"holder_name" validate:"required,min=2,max=100"`
}

package entities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvestmentSizing_AmountFor(t *testing.T) {
	balance := decimal.NewFromInt(1000)

	t.Run("percentage of balance", func(t *testing.T) {
		got := PercentageSizing(decimal.NewFromInt(40)).AmountFor(balance)
		assert.True(t, got.Equal(decimal.NewFromInt(400)))
	})

	t.Run("percentage rounds half up to 2dp", func(t *testing.T) {
		got := PercentageSizing(decimal.NewFromInt(1)).AmountFor(decimal.RequireFromString("100.55"))
		// 1% of 100.55 = 1.0055, rounds to 1.01
		assert.True(t, got.Equal(decimal.RequireFromString("1.01")), "got %s", got)
	})

	t.Run("fixed amount ignores balance", func(t *testing.T) {
		got := FixedSizing(decimal.NewFromInt(250)).AmountFor(balance)
		assert.True(t, got.Equal(decimal.NewFromInt(250)))
	})
}

func TestAutoInvestRule_Evaluable(t *testing.T) {
	rule := &AutoInvestRule{Enabled: true, Status: RuleStatusActive}
	assert.True(t, rule.Evaluable())

	rule.Status = RuleStatusPaused
	assert.False(t, rule.Evaluable())

	rule.Status = RuleStatusActive
	rule.Enabled = false
	assert.False(t, rule.Evaluable())
}

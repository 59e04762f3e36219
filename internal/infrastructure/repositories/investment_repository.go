package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// InvestmentRepository reads executed investments. Inserts happen through the
// wallet repository so the purchase and its debit commit together.
type InvestmentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db *sqlx.DB, logger *zap.Logger) *InvestmentRepository {
	return &InvestmentRepository{db: db, logger: logger}
}

// GetByID retrieves a single investment
func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Investment, error) {
	inv := &entities.Investment{}
	err := r.db.GetContext(ctx, inv, `SELECT * FROM investments WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("investment")
		}
		return nil, fmt.Errorf("failed to get investment: %w", err)
	}
	return inv, nil
}

// ListByUserID returns the user's investments, newest first
func (r *InvestmentRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error) {
	invs := []*entities.Investment{}
	err := r.db.SelectContext(ctx, &invs,
		`SELECT * FROM investments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	return invs, nil
}

// TotalInvested sums the user's completed purchase amounts
func (r *InvestmentRepository) TotalInvested(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount_invested), 0) FROM investments
		WHERE user_id = $1 AND status = 'COMPLETED'`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum investments: %w", err)
	}
	return total, nil
}

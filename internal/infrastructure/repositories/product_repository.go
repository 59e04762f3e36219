package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// ProductRepository reads the investment product catalogue
type ProductRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sqlx.DB, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{db: db, logger: logger}
}

// GetByID retrieves a product
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.InvestmentProduct, error) {
	product := &entities.InvestmentProduct{}
	err := r.db.GetContext(ctx, product, `SELECT * FROM investment_products WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// ListActive returns the active product catalogue
func (r *ProductRepository) ListActive(ctx context.Context) ([]*entities.InvestmentProduct, error) {
	products := []*entities.InvestmentProduct{}
	err := r.db.SelectContext(ctx, &products,
		`SELECT * FROM investment_products WHERE is_active = TRUE ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

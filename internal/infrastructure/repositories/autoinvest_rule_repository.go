package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// AutoInvestRuleRepository persists auto-invest rules. Evaluation order is
// the explicit ordinal column, assigned at creation and never re-used.
type AutoInvestRuleRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAutoInvestRuleRepository creates a new rule repository
func NewAutoInvestRuleRepository(db *sqlx.DB, logger *zap.Logger) *AutoInvestRuleRepository {
	return &AutoInvestRuleRepository{db: db, logger: logger}
}

// ruleRow flattens the sizing variant into its two columns for sqlx
type ruleRow struct {
	ID           uuid.UUID            `db:"id"`
	UserID       uuid.UUID            `db:"user_id"`
	ProductID    uuid.UUID            `db:"product_id"`
	TriggerType  entities.TriggerType `db:"trigger_type"`
	TriggerValue *decimal.Decimal     `db:"trigger_value"`
	SizingMode   entities.SizingMode  `db:"sizing_mode"`
	SizingValue  decimal.Decimal      `db:"sizing_value"`
	Enabled      bool                 `db:"enabled"`
	Status       entities.RuleStatus  `db:"status"`
	Ordinal      int                  `db:"ordinal"`
	CreatedAt    time.Time            `db:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at"`
}

func (row *ruleRow) toEntity() *entities.AutoInvestRule {
	return &entities.AutoInvestRule{
		ID:           row.ID,
		UserID:       row.UserID,
		ProductID:    row.ProductID,
		TriggerType:  row.TriggerType,
		TriggerValue: row.TriggerValue,
		Sizing:       entities.InvestmentSizing{Mode: row.SizingMode, Value: row.SizingValue},
		Enabled:      row.Enabled,
		Status:       row.Status,
		Ordinal:      row.Ordinal,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// Create inserts a rule, assigning the next ordinal for the user in the same
// statement. Two concurrent inserts can read the same MAX(ordinal); the
// unique (user_id, ordinal) index turns the loser into a 23505, which is
// retried with a freshly computed ordinal.
func (r *AutoInvestRuleRepository) Create(ctx context.Context, rule *entities.AutoInvestRule) error {
	query := `
		INSERT INTO auto_invest_rules (
			id, user_id, product_id, trigger_type, trigger_value,
			sizing_mode, sizing_value, enabled, status, ordinal, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			(SELECT COALESCE(MAX(ordinal), 0) + 1 FROM auto_invest_rules WHERE user_id = $2),
			$10, $11
		)
		RETURNING ordinal`

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = r.db.GetContext(ctx, &rule.Ordinal, query,
			rule.ID, rule.UserID, rule.ProductID, rule.TriggerType, rule.TriggerValue,
			rule.Sizing.Mode, rule.Sizing.Value, rule.Enabled, rule.Status,
			rule.CreatedAt, rule.UpdatedAt,
		)
		if err == nil {
			return nil
		}
		if pqErr, ok := err.(*pq.Error); !ok || pqErr.Code != "23505" {
			break
		}
	}

	r.logger.Error("Failed to create rule", zap.Error(err),
		zap.String("user_id", rule.UserID.String()))
	return fmt.Errorf("failed to create rule: %w", err)
}

// GetByID retrieves a rule
func (r *AutoInvestRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AutoInvestRule, error) {
	row := &ruleRow{}
	err := r.db.GetContext(ctx, row, `SELECT * FROM auto_invest_rules WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("rule")
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return row.toEntity(), nil
}

// ListByUserID returns all of a user's rules in evaluation order
func (r *AutoInvestRuleRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.AutoInvestRule, error) {
	rows := []*ruleRow{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM auto_invest_rules WHERE user_id = $1 ORDER BY ordinal ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	rules := make([]*entities.AutoInvestRule, len(rows))
	for i, row := range rows {
		rules[i] = row.toEntity()
	}
	return rules, nil
}

// ListEvaluable returns the user's enabled, active rules for a trigger type,
// in evaluation order
func (r *AutoInvestRuleRepository) ListEvaluable(ctx context.Context, userID uuid.UUID, trigger entities.TriggerType) ([]*entities.AutoInvestRule, error) {
	rows := []*ruleRow{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM auto_invest_rules
		WHERE user_id = $1 AND trigger_type = $2 AND enabled = TRUE AND status = 'ACTIVE'
		ORDER BY ordinal ASC`, userID, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluable rules: %w", err)
	}
	rules := make([]*entities.AutoInvestRule, len(rows))
	for i, row := range rows {
		rules[i] = row.toEntity()
	}
	return rules, nil
}

// Update applies enabled/status changes. Changes are read fresh by the next
// evaluation cycle; an in-flight cycle finishes with the rules it loaded.
func (r *AutoInvestRuleRepository) Update(ctx context.Context, id uuid.UUID, enabled *bool, status *entities.RuleStatus) (*entities.AutoInvestRule, error) {
	row := &ruleRow{}
	query := `
		UPDATE auto_invest_rules
		SET enabled = COALESCE($2, enabled),
		    status = COALESCE($3, status),
		    updated_at = $4
		WHERE id = $1
		RETURNING *`
	err := r.db.GetContext(ctx, row, query, id, enabled, status, time.Now())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("rule")
		}
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return row.toEntity(), nil
}

// Delete removes a rule. Remaining ordinals keep their values; order among
// survivors is unchanged.
func (r *AutoInvestRuleRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM auto_invest_rules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("rule")
	}
	return nil
}

// ListUserIDsWithScheduledRules returns the distinct users holding at least
// one evaluable SCHEDULED rule, for the monthly sweep
func (r *AutoInvestRuleRepository) ListUserIDsWithScheduledRules(ctx context.Context) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT user_id FROM auto_invest_rules
		WHERE trigger_type = 'SCHEDULED' AND enabled = TRUE AND status = 'ACTIVE'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled rule users: %w", err)
	}
	return ids, nil
}

package autoinvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
	"github.com/sanchay-service/sanchay_service/pkg/metrics"
)

// Service manages auto-invest rules and runs the rule engine. Rules for a
// user evaluate strictly sequentially in ordinal order; each execution is
// its own database transaction with the balance re-checked under the wallet
// row lock. A failing rule is skipped, never aborting the rest of the cycle.
type Service struct {
	userRepo    UserRepository
	kycRepo     KYCRepository
	ruleRepo    RuleRepository
	productRepo ProductRepository
	walletRepo  WalletRepository
	invRepo     InvestmentRepository
	nav         NAVProvider
	notifier    Notifier
	logger      *zap.Logger
}

// Repository interfaces

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

type KYCRepository interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error)
}

type RuleRepository interface {
	Create(ctx context.Context, rule *entities.AutoInvestRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.AutoInvestRule, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.AutoInvestRule, error)
	ListEvaluable(ctx context.Context, userID uuid.UUID, trigger entities.TriggerType) ([]*entities.AutoInvestRule, error)
	Update(ctx context.Context, id uuid.UUID, enabled *bool, status *entities.RuleStatus) (*entities.AutoInvestRule, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListUserIDsWithScheduledRules(ctx context.Context) ([]uuid.UUID, error)
}

type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.InvestmentProduct, error)
	ListActive(ctx context.Context) ([]*entities.InvestmentProduct, error)
}

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error)
	ExecuteInvestment(ctx context.Context, inv *entities.Investment, txn *entities.Transaction) (decimal.Decimal, error)
}

type InvestmentRepository interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error)
}

// External service interfaces

type NAVProvider interface {
	GetCurrentNAV(ctx context.Context, productCode string) (decimal.Decimal, error)
}

type Notifier interface {
	Dispatch(userID uuid.UUID, kind adapters.NotificationKind, message string)
}

// NewService creates a new auto-invest service
func NewService(
	userRepo UserRepository,
	kycRepo KYCRepository,
	ruleRepo RuleRepository,
	productRepo ProductRepository,
	walletRepo WalletRepository,
	invRepo InvestmentRepository,
	nav NAVProvider,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		kycRepo:     kycRepo,
		ruleRepo:    ruleRepo,
		productRepo: productRepo,
		walletRepo:  walletRepo,
		invRepo:     invRepo,
		nav:         nav,
		notifier:    notifier,
		logger:      logger,
	}
}

var oneHundred = decimal.NewFromInt(100)

func sizingFrom(req *entities.CreateRuleRequest) (entities.InvestmentSizing, error) {
	switch {
	case req.InvestmentPercentage != nil && req.InvestmentAmount != nil:
		return entities.InvestmentSizing{}, errors.ValidationError(
			"exactly one of investment_percentage and investment_amount must be set")
	case req.InvestmentPercentage != nil:
		pct := *req.InvestmentPercentage
		if pct.LessThan(decimal.NewFromInt(1)) || pct.GreaterThan(oneHundred) {
			return entities.InvestmentSizing{}, errors.ValidationError(
				"investment_percentage must be between 1 and 100")
		}
		return entities.PercentageSizing(pct), nil
	case req.InvestmentAmount != nil:
		amount := *req.InvestmentAmount
		if amount.LessThan(entities.MinimumFixedInvestment) {
			return entities.InvestmentSizing{}, errors.ValidationError(
				fmt.Sprintf("investment_amount must be at least %s", entities.MinimumFixedInvestment))
		}
		return entities.FixedSizing(amount), nil
	default:
		return entities.InvestmentSizing{}, errors.ValidationError(
			"exactly one of investment_percentage and investment_amount must be set")
	}
}

// CreateRule validates and stores a new rule. Investing requires full KYC;
// the rejection carries the outstanding verification steps.
func (s *Service) CreateRule(ctx context.Context, userID uuid.UUID, req *entities.CreateRuleRequest) (*entities.AutoInvestRule, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.KYCLevel < entities.KYCLevelFull {
		doc, err := s.kycRepo.EnsureForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return nil, errors.PrerequisiteError(
			fmt.Sprintf("investing requires KYC level %d", entities.KYCLevelFull),
			entities.MissingKYCSteps(doc, entities.KYCLevelFull))
	}

	sizing, err := sizingFrom(req)
	if err != nil {
		return nil, err
	}

	switch req.TriggerType {
	case entities.TriggerThreshold:
		if req.TriggerValue == nil || req.TriggerValue.LessThanOrEqual(decimal.Zero) {
			return nil, errors.ValidationError("threshold rules require a positive trigger_value")
		}
	case entities.TriggerScheduled:
		if req.TriggerValue != nil {
			return nil, errors.ValidationError("scheduled rules do not take a trigger_value")
		}
	default:
		return nil, errors.ValidationError("trigger_type must be THRESHOLD or SCHEDULED")
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, errors.ValidationError("product is not open for investment")
	}

	now := time.Now()
	rule := &entities.AutoInvestRule{
		ID:           uuid.New(),
		UserID:       userID,
		ProductID:    req.ProductID,
		TriggerType:  req.TriggerType,
		TriggerValue: req.TriggerValue,
		Sizing:       sizing,
		Enabled:      true,
		Status:       entities.RuleStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("Auto-invest rule created",
		zap.String("user_id", userID.String()),
		zap.String("rule_id", rule.ID.String()),
		zap.String("trigger", string(rule.TriggerType)),
		zap.Int("ordinal", rule.Ordinal))
	return rule, nil
}

// UpdateRule toggles or pauses a rule. Changes apply from the next
// evaluation cycle.
func (s *Service) UpdateRule(ctx context.Context, userID, ruleID uuid.UUID, req *entities.UpdateRuleRequest) (*entities.AutoInvestRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, errors.NotFound("rule")
	}
	if req.Status != nil && *req.Status != entities.RuleStatusActive && *req.Status != entities.RuleStatusPaused {
		return nil, errors.ValidationError("status must be ACTIVE or PAUSED")
	}
	return s.ruleRepo.Update(ctx, ruleID, req.Enabled, req.Status)
}

// ListRules returns the user's rules in evaluation order
func (s *Service) ListRules(ctx context.Context, userID uuid.UUID) ([]*entities.AutoInvestRule, error) {
	return s.ruleRepo.ListByUserID(ctx, userID)
}

// DeleteRule removes a rule
func (s *Service) DeleteRule(ctx context.Context, userID, ruleID uuid.UUID) error {
	return s.ruleRepo.Delete(ctx, userID, ruleID)
}

// ListInvestments returns the user's executed investments
func (s *Service) ListInvestments(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error) {
	return s.invRepo.ListByUserID(ctx, userID)
}

// ListProducts returns the active product catalogue
func (s *Service) ListProducts(ctx context.Context) ([]*entities.InvestmentProduct, error) {
	return s.productRepo.ListActive(ctx)
}

// EvaluateUser runs all of a user's evaluable rules for a trigger type, in
// ordinal order. Rules are never evaluated concurrently for one user: an
// earlier rule's debit must be visible to the next rule's balance check.
func (s *Service) EvaluateUser(ctx context.Context, userID uuid.UUID, trigger entities.TriggerType) error {
	rules, err := s.ruleRepo.ListEvaluable(ctx, userID, trigger)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	for _, rule := range rules {
		s.evaluateRule(ctx, rule)
	}
	return nil
}

// evaluateRule evaluates and possibly executes one rule. Failures are
// recorded and skipped; they never propagate to sibling rules.
func (s *Service) evaluateRule(ctx context.Context, rule *entities.AutoInvestRule) {
	trigger := string(rule.TriggerType)

	wallet, err := s.walletRepo.GetByUserID(ctx, rule.UserID)
	if err != nil {
		s.logger.Warn("Rule evaluation skipped: wallet unavailable",
			zap.String("rule_id", rule.ID.String()), zap.Error(err))
		metrics.RecordRuleEvaluation(trigger, "error")
		return
	}

	if rule.TriggerType == entities.TriggerThreshold &&
		(rule.TriggerValue == nil || wallet.Balance.LessThan(*rule.TriggerValue)) {
		metrics.RecordRuleEvaluation(trigger, "not_triggered")
		return
	}

	amount := rule.Sizing.AmountFor(wallet.Balance)
	if amount.LessThanOrEqual(decimal.Zero) || wallet.Balance.LessThan(amount) {
		metrics.RecordRuleEvaluation(trigger, "insufficient_funds")
		return
	}

	product, err := s.productRepo.GetByID(ctx, rule.ProductID)
	if err != nil {
		s.logger.Warn("Rule evaluation skipped: product unavailable",
			zap.String("rule_id", rule.ID.String()), zap.Error(err))
		metrics.RecordRuleEvaluation(trigger, "error")
		return
	}
	if !product.IsActive || amount.LessThan(product.MinimumInvestment) {
		metrics.RecordRuleEvaluation(trigger, "below_minimum")
		return
	}

	// NAV is fetched before the database transaction opens; a feed outage
	// skips this rule and leaves everything else untouched
	nav, err := s.nav.GetCurrentNAV(ctx, product.Code)
	if err != nil {
		s.logger.Warn("Rule evaluation skipped: NAV unavailable",
			zap.String("rule_id", rule.ID.String()),
			zap.String("product_code", product.Code), zap.Error(err))
		metrics.ProviderFailuresTotal.WithLabelValues("nav").Inc()
		metrics.RecordRuleEvaluation(trigger, "nav_unavailable")
		return
	}

	units := amount.DivRound(nav, 8)
	now := time.Now()
	ruleID := rule.ID
	inv := &entities.Investment{
		ID:             uuid.New(),
		UserID:         rule.UserID,
		RuleID:         &ruleID,
		ProductID:      product.ID,
		Units:          units,
		PurchaseNAV:    nav,
		AmountInvested: amount,
		Status:         entities.InvestmentStatusCompleted,
		CreatedAt:      now,
	}
	ref := fmt.Sprintf("auto-invest into %s", product.Code)
	txn := &entities.Transaction{
		ID:        uuid.New(),
		UserID:    rule.UserID,
		Type:      entities.TransactionTypeInvestment,
		Amount:    amount,
		Status:    entities.TransactionStatusSuccess,
		Reference: &ref,
		CreatedAt: now,
	}

	if _, err := s.walletRepo.ExecuteInvestment(ctx, inv, txn); err != nil {
		if errors.IsType(err, errors.ErrorTypeInsufficientFunds) {
			// A concurrent debit won the race; skip without noise
			metrics.RecordRuleEvaluation(trigger, "insufficient_funds")
			return
		}
		s.logger.Error("Rule execution failed",
			zap.String("rule_id", rule.ID.String()), zap.Error(err))
		metrics.RecordRuleEvaluation(trigger, "error")
		return
	}

	metrics.RecordRuleEvaluation(trigger, "executed")
	metrics.InvestmentsExecutedTotal.Inc()

	s.notifier.Dispatch(rule.UserID, adapters.NotificationInvestment,
		fmt.Sprintf("₹%s invested in %s (%s units)", amount, product.Name, units))
	s.logger.Info("Rule executed",
		zap.String("rule_id", rule.ID.String()),
		zap.String("user_id", rule.UserID.String()),
		zap.String("amount", amount.String()),
		zap.String("units", units.String()))
}

// EvaluateAllScheduled runs the SCHEDULED trigger pass across all users with
// bounded concurrency. Users are independent: one user's failure never stops
// the sweep.
func (s *Service) EvaluateAllScheduled(ctx context.Context, concurrency int) error {
	start := time.Now()
	userIDs, err := s.ruleRepo.ListUserIDsWithScheduledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for sweep: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.EvaluateUser(ctx, id, entities.TriggerScheduled); err != nil {
				s.logger.Error("Scheduled sweep failed for user",
					zap.String("user_id", id.String()), zap.Error(err))
			}
		}(userID)
	}
	wg.Wait()

	metrics.ScheduledSweepDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Scheduled sweep complete",
		zap.Int("users", len(userIDs)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// EvaluateThresholdRules runs the THRESHOLD trigger pass for one user,
// typically right after a wallet credit
func (s *Service) EvaluateThresholdRules(ctx context.Context, userID uuid.UUID) {
	if err := s.EvaluateUser(ctx, userID, entities.TriggerThreshold); err != nil {
		s.logger.Error("Threshold evaluation failed",
			zap.String("user_id", userID.String()), zap.Error(err))
	}
}

package autoinvest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/adapters"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// Mock implementations for testing
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
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

type mockRuleRepository struct {
	mock.Mock
}

func (m *mockRuleRepository) Create(ctx context.Context, rule *entities.AutoInvestRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *mockRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.AutoInvestRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AutoInvestRule), args.Error(1)
}

func (m *mockRuleRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.AutoInvestRule, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*entities.AutoInvestRule), args.Error(1)
}

func (m *mockRuleRepository) ListEvaluable(ctx context.Context, userID uuid.UUID, trigger entities.TriggerType) ([]*entities.AutoInvestRule, error) {
	args := m.Called(ctx, userID, trigger)
	return args.Get(0).([]*entities.AutoInvestRule), args.Error(1)
}

func (m *mockRuleRepository) Update(ctx context.Context, id uuid.UUID, enabled *bool, status *entities.RuleStatus) (*entities.AutoInvestRule, error) {
	args := m.Called(ctx, id, enabled, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AutoInvestRule), args.Error(1)
}

func (m *mockRuleRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *mockRuleRepository) ListUserIDsWithScheduledRules(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.InvestmentProduct, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.InvestmentProduct), args.Error(1)
}

func (m *mockProductRepository) ListActive(ctx context.Context) ([]*entities.InvestmentProduct, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*entities.InvestmentProduct), args.Error(1)
}

type mockWalletRepository struct {
	mock.Mock
}

func (m *mockWalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.SavingsWallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SavingsWallet), args.Error(1)
}

func (m *mockWalletRepository) ExecuteInvestment(ctx context.Context, inv *entities.Investment, txn *entities.Transaction) (decimal.Decimal, error) {
	args := m.Called(ctx, inv, txn)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockInvestmentRepository struct {
	mock.Mock
}

func (m *mockInvestmentRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Investment, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*entities.Investment), args.Error(1)
}

type mockNAVProvider struct {
	mock.Mock
}

func (m *mockNAVProvider) GetCurrentNAV(ctx context.Context, productCode string) (decimal.Decimal, error) {
	args := m.Called(ctx, productCode)
	return args.Get(0).(decimal.Decimal), args.Error(1)
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
	rules    *mockRuleRepository
	products *mockProductRepository
	wallets  *mockWalletRepository
	invs     *mockInvestmentRepository
	nav      *mockNAVProvider
	notifier *mockNotifier
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	deps := &testDeps{
		users:    &mockUserRepository{},
		kyc:      &mockKYCRepository{},
		rules:    &mockRuleRepository{},
		products: &mockProductRepository{},
		wallets:  &mockWalletRepository{},
		invs:     &mockInvestmentRepository{},
		nav:      &mockNAVProvider{},
		notifier: &mockNotifier{},
	}
	svc := NewService(deps.users, deps.kyc, deps.rules, deps.products,
		deps.wallets, deps.invs, deps.nav, deps.notifier, zaptest.NewLogger(t))
	return svc, deps
}

func fullKYCUser(id uuid.UUID) *entities.User {
	return &entities.User{ID: id, KYCLevel: entities.KYCLevelFull, KYCStatus: entities.KYCStatusApproved}
}

func activeProduct(id uuid.UUID) *entities.InvestmentProduct {
	return &entities.InvestmentProduct{
		ID:                id,
		Code:              "NIFTY50",
		Name:              "Nifty 50 Index Fund",
		MinimumInvestment: decimal.NewFromInt(10),
		IsActive:          true,
	}
}

func thresholdRule(userID, productID uuid.UUID, threshold, percent int64, ordinal int) *entities.AutoInvestRule {
	tv := decimal.NewFromInt(threshold)
	return &entities.AutoInvestRule{
		ID:           uuid.New(),
		UserID:       userID,
		ProductID:    productID,
		TriggerType:  entities.TriggerThreshold,
		TriggerValue: &tv,
		Sizing:       entities.PercentageSizing(decimal.NewFromInt(percent)),
		Enabled:      true,
		Status:       entities.RuleStatusActive,
		Ordinal:      ordinal,
	}
}

func TestService_CreateRule_RequiresFullKYC(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	user := &entities.User{ID: userID, KYCLevel: entities.KYCLevelBasic}
	deps.users.On("GetByID", ctx, userID).Return(user, nil).Once()
	deps.kyc.On("EnsureForUser", ctx, userID).
		Return(&entities.KYCDocument{UserID: userID, PANVerified: true}, nil).Once()

	pct := decimal.NewFromInt(20)
	_, err := svc.CreateRule(ctx, userID, &entities.CreateRuleRequest{
		ProductID:            uuid.New(),
		TriggerType:          entities.TriggerScheduled,
		InvestmentPercentage: &pct,
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypePrerequisite))
	deps.rules.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_CreateRule_SizingValidation(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	deps.users.On("GetByID", ctx, userID).Return(fullKYCUser(userID), nil)

	pct := decimal.NewFromInt(20)
	amount := decimal.NewFromInt(500)
	lowAmount := decimal.NewFromInt(50)
	highPct := decimal.NewFromInt(150)

	cases := []struct {
		name string
		req  *entities.CreateRuleRequest
	}{
		{"both sizings set", &entities.CreateRuleRequest{
			ProductID: uuid.New(), TriggerType: entities.TriggerScheduled,
			InvestmentPercentage: &pct, InvestmentAmount: &amount,
		}},
		{"neither sizing set", &entities.CreateRuleRequest{
			ProductID: uuid.New(), TriggerType: entities.TriggerScheduled,
		}},
		{"fixed amount below minimum", &entities.CreateRuleRequest{
			ProductID: uuid.New(), TriggerType: entities.TriggerScheduled,
			InvestmentAmount: &lowAmount,
		}},
		{"percentage above 100", &entities.CreateRuleRequest{
			ProductID: uuid.New(), TriggerType: entities.TriggerScheduled,
			InvestmentPercentage: &highPct,
		}},
		{"threshold without trigger value", &entities.CreateRuleRequest{
			ProductID: uuid.New(), TriggerType: entities.TriggerThreshold,
			InvestmentPercentage: &pct,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateRule(ctx, userID, tc.req)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
	deps.rules.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_CreateRule_Success(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	deps.users.On("GetByID", ctx, userID).Return(fullKYCUser(userID), nil).Once()
	deps.products.On("GetByID", ctx, productID).Return(activeProduct(productID), nil).Once()
	deps.rules.On("Create", ctx, mock.MatchedBy(func(rule *entities.AutoInvestRule) bool {
		return rule.Enabled && rule.Status == entities.RuleStatusActive &&
			rule.Sizing.Mode == entities.SizingPercentage &&
			rule.Sizing.Value.Equal(decimal.NewFromInt(40))
	})).Return(nil).Once()

	tv := decimal.NewFromInt(500)
	pct := decimal.NewFromInt(40)
	rule, err := svc.CreateRule(ctx, userID, &entities.CreateRuleRequest{
		ProductID:            productID,
		TriggerType:          entities.TriggerThreshold,
		TriggerValue:         &tv,
		InvestmentPercentage: &pct,
	})
	assert.NoError(t, err)
	assert.Equal(t, entities.TriggerThreshold, rule.TriggerType)
	deps.rules.AssertExpectations(t)
}

func TestService_EvaluateUser_ThresholdExecutes(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	rule := thresholdRule(userID, productID, 500, 40, 1)
	wallet := &entities.SavingsWallet{UserID: userID, Balance: decimal.NewFromInt(1000)}

	deps.rules.On("ListEvaluable", ctx, userID, entities.TriggerThreshold).
		Return([]*entities.AutoInvestRule{rule}, nil).Once()
	deps.wallets.On("GetByUserID", ctx, userID).Return(wallet, nil).Once()
	deps.products.On("GetByID", ctx, productID).Return(activeProduct(productID), nil).Once()
	deps.nav.On("GetCurrentNAV", ctx, "NIFTY50").Return(decimal.NewFromInt(20), nil).Once()
	deps.wallets.On("ExecuteInvestment", ctx,
		mock.MatchedBy(func(inv *entities.Investment) bool {
			// 40% of 1000 = 400; 400 / 20 = 20 units
			return inv.AmountInvested.Equal(decimal.NewFromInt(400)) &&
				inv.Units.Equal(decimal.NewFromInt(20)) &&
				inv.PurchaseNAV.Equal(decimal.NewFromInt(20)) &&
				inv.RuleID != nil && *inv.RuleID == rule.ID
		}),
		mock.MatchedBy(func(txn *entities.Transaction) bool {
			return txn.Type == entities.TransactionTypeInvestment &&
				txn.Amount.Equal(decimal.NewFromInt(400))
		}),
	).Return(decimal.NewFromInt(600), nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationInvestment, mock.Anything).Return().Once()

	err := svc.EvaluateUser(ctx, userID, entities.TriggerThreshold)
	assert.NoError(t, err)
	deps.wallets.AssertExpectations(t)
}

func TestService_EvaluateUser_BelowThresholdSkips(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	rule := thresholdRule(userID, uuid.New(), 500, 40, 1)
	wallet := &entities.SavingsWallet{UserID: userID, Balance: decimal.NewFromInt(499)}

	deps.rules.On("ListEvaluable", ctx, userID, entities.TriggerThreshold).
		Return([]*entities.AutoInvestRule{rule}, nil).Once()
	deps.wallets.On("GetByUserID", ctx, userID).Return(wallet, nil).Once()

	err := svc.EvaluateUser(ctx, userID, entities.TriggerThreshold)
	assert.NoError(t, err)
	deps.wallets.AssertNotCalled(t, "ExecuteInvestment", mock.Anything, mock.Anything, mock.Anything)
	deps.nav.AssertNotCalled(t, "GetCurrentNAV", mock.Anything, mock.Anything)
}

func TestService_EvaluateUser_DepletionSkipsLaterRule(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	// Two fixed-amount rules of 800 against a 1000 balance: the first
	// executes, the second sees the depleted balance and is skipped
	rule1 := &entities.AutoInvestRule{
		ID: uuid.New(), UserID: userID, ProductID: productID,
		TriggerType: entities.TriggerScheduled,
		Sizing:      entities.FixedSizing(decimal.NewFromInt(800)),
		Enabled:     true, Status: entities.RuleStatusActive, Ordinal: 1,
	}
	rule2 := &entities.AutoInvestRule{
		ID: uuid.New(), UserID: userID, ProductID: productID,
		TriggerType: entities.TriggerScheduled,
		Sizing:      entities.FixedSizing(decimal.NewFromInt(800)),
		Enabled:     true, Status: entities.RuleStatusActive, Ordinal: 2,
	}

	deps.rules.On("ListEvaluable", ctx, userID, entities.TriggerScheduled).
		Return([]*entities.AutoInvestRule{rule1, rule2}, nil).Once()
	deps.wallets.On("GetByUserID", ctx, userID).
		Return(&entities.SavingsWallet{UserID: userID, Balance: decimal.NewFromInt(1000)}, nil).Once()
	deps.wallets.On("GetByUserID", ctx, userID).
		Return(&entities.SavingsWallet{UserID: userID, Balance: decimal.NewFromInt(200)}, nil).Once()
	deps.products.On("GetByID", ctx, productID).Return(activeProduct(productID), nil).Once()
	deps.nav.On("GetCurrentNAV", ctx, "NIFTY50").Return(decimal.NewFromInt(25), nil).Once()
	deps.wallets.On("ExecuteInvestment", ctx, mock.Anything, mock.Anything).
		Return(decimal.NewFromInt(200), nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationInvestment, mock.Anything).Return().Once()

	err := svc.EvaluateUser(ctx, userID, entities.TriggerScheduled)
	assert.NoError(t, err)
	deps.wallets.AssertNumberOfCalls(t, "ExecuteInvestment", 1)
}

func TestService_EvaluateUser_NAVFailureSkipsRule(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	rule := thresholdRule(userID, productID, 500, 40, 1)
	wallet := &entities.SavingsWallet{UserID: userID, Balance: decimal.NewFromInt(1000)}

	deps.rules.On("ListEvaluable", ctx, userID, entities.TriggerThreshold).
		Return([]*entities.AutoInvestRule{rule}, nil).Once()
	deps.wallets.On("GetByUserID", ctx, userID).Return(wallet, nil).Once()
	deps.products.On("GetByID", ctx, productID).Return(activeProduct(productID), nil).Once()
	deps.nav.On("GetCurrentNAV", ctx, "NIFTY50").
		Return(decimal.Zero, errors.UpstreamProvider("nav", assert.AnError)).Once()

	err := svc.EvaluateUser(ctx, userID, entities.TriggerThreshold)
	assert.NoError(t, err)
	deps.wallets.AssertNotCalled(t, "ExecuteInvestment", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_EvaluateUser_FractionalUnits(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	rule := &entities.AutoInvestRule{
		ID: uuid.New(), UserID: userID, ProductID: productID,
		TriggerType: entities.TriggerScheduled,
		Sizing:      entities.FixedSizing(decimal.NewFromInt(100)),
		Enabled:     true, Status: entities.RuleStatusActive, Ordinal: 1,
	}
	wallet := &entities.SavingsWallet{UserID: userID, Balance: decimal.NewFromInt(500)}
	nav := decimal.RequireFromString("25.50")

	deps.rules.On("ListEvaluable", ctx, userID, entities.TriggerScheduled).
		Return([]*entities.AutoInvestRule{rule}, nil).Once()
	deps.wallets.On("GetByUserID", ctx, userID).Return(wallet, nil).Once()
	deps.products.On("GetByID", ctx, productID).Return(activeProduct(productID), nil).Once()
	deps.nav.On("GetCurrentNAV", ctx, "NIFTY50").Return(nav, nil).Once()
	deps.wallets.On("ExecuteInvestment", ctx,
		mock.MatchedBy(func(inv *entities.Investment) bool {
			// 100 / 25.50 = 3.92156863 at 8 decimal places
			return inv.Units.Equal(decimal.RequireFromString("3.92156863"))
		}), mock.Anything,
	).Return(decimal.NewFromInt(400), nil).Once()
	deps.notifier.On("Dispatch", userID, adapters.NotificationInvestment, mock.Anything).Return().Once()

	err := svc.EvaluateUser(ctx, userID, entities.TriggerScheduled)
	assert.NoError(t, err)
	deps.wallets.AssertExpectations(t)
}

func TestService_UpdateRule_OwnershipCheck(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	ruleID := uuid.New()

	rule := thresholdRule(uuid.New(), uuid.New(), 500, 40, 1)
	rule.ID = ruleID
	deps.rules.On("GetByID", ctx, ruleID).Return(rule, nil).Once()

	enabled := false
	_, err := svc.UpdateRule(ctx, uuid.New(), ruleID, &entities.UpdateRuleRequest{Enabled: &enabled})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	deps.rules.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_EvaluateAllScheduled_IsolatesUserFailures(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	user1 := uuid.New()
	user2 := uuid.New()

	deps.rules.On("ListUserIDsWithScheduledRules", ctx).
		Return([]uuid.UUID{user1, user2}, nil).Once()
	deps.rules.On("ListEvaluable", ctx, user1, entities.TriggerScheduled).
		Return([]*entities.AutoInvestRule{}, assert.AnError).Once()
	deps.rules.On("ListEvaluable", ctx, user2, entities.TriggerScheduled).
		Return([]*entities.AutoInvestRule{}, nil).Once()

	err := svc.EvaluateAllScheduled(ctx, 2)
	assert.NoError(t, err)
	deps.rules.AssertExpectations(t)
}

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/infrastructure/cache"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// NAVProviderConfig holds NAV feed configuration
type NAVProviderConfig struct {
	APIKey      string
	BaseURL     string
	Environment string
	Timeout     time.Duration
}

// NAVProvider fetches the current net asset value for a product. Quotes are
// served from a short-TTL cache when fresh; feed failures surface as
// retryable upstream errors and never block unrelated work.
type NAVProvider struct {
	logger     *zap.Logger
	config     NAVProviderConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *cache.PriceCache
	mockMode   bool
}

// NewNAVProvider creates a new NAV provider adapter
func NewNAVProvider(logger *zap.Logger, config NAVProviderConfig, priceCache *cache.PriceCache) *NAVProvider {
	mockMode := config.Environment == "development" || config.APIKey == ""

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "nav-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &NAVProvider{
		logger:     logger,
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		cache:      priceCache,
		mockMode:   mockMode,
	}
}

type navResponse struct {
	ProductCode string `json:"product_code"`
	NAV         string `json:"nav"`
	AsOf        string `json:"as_of"`
}

// GetCurrentNAV returns the current NAV for a product code
func (p *NAVProvider) GetCurrentNAV(ctx context.Context, productCode string) (decimal.Decimal, error) {
	if cached, ok := p.cache.Get(ctx, productCode); ok {
		if nav, err := decimal.NewFromString(cached); err == nil {
			return nav, nil
		}
	}

	if p.mockMode {
		nav := decimal.NewFromFloat(25.50)
		p.cache.Set(ctx, productCode, nav.String())
		return nav, nil
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.httpClient.Timeout)
		defer cancel()

		url := fmt.Sprintf("%s/v1/nav/%s", p.config.BaseURL, productCode)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("NAV API error: status %d, body: %s", resp.StatusCode, string(respBody))
		}

		var parsed navResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		nav, err := decimal.NewFromString(parsed.NAV)
		if err != nil {
			return nil, fmt.Errorf("invalid nav value %q: %w", parsed.NAV, err)
		}
		if nav.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("non-positive nav value %s", nav)
		}
		return nav, nil
	})
	if err != nil {
		p.logger.Error("NAV fetch failed",
			zap.String("product_code", productCode), zap.Error(err))
		return decimal.Zero, errors.UpstreamProvider("nav", err)
	}

	nav := result.(decimal.Decimal)
	p.cache.Set(ctx, productCode, nav.String())
	return nav, nil
}

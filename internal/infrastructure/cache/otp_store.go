package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sanchay-service/sanchay_service/internal/infrastructure/config"
)

// NewRedisClient creates a redis client from configuration
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// OTPStore keeps in-flight Aadhaar OTP references in Redis with a TTL.
// References expire on their own and are consumed exactly once, so they
// survive restarts and are shared across instances.
type OTPStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOTPStore creates an OTP reference store with the given TTL
func NewOTPStore(client *redis.Client, ttl time.Duration) *OTPStore {
	return &OTPStore{client: client, ttl: ttl}
}

func (s *OTPStore) key(ref string) string {
	return "otp:aadhaar:" + ref
}

// Put stores the Aadhaar number awaiting OTP confirmation under its reference
func (s *OTPStore) Put(ctx context.Context, ref, aadhaarNumber string) error {
	if err := s.client.Set(ctx, s.key(ref), aadhaarNumber, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp reference: %w", err)
	}
	return nil
}

// Consume retrieves and deletes the value for a reference. Returns found =
// false for unknown or expired references.
func (s *OTPStore) Consume(ctx context.Context, ref string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, s.key(ref)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to consume otp reference: %w", err)
	}
	return val, true, nil
}

// PriceCache caches per-product NAV quotes with a short TTL so a burst of
// rule evaluations does not hammer the price feed.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache creates a NAV cache with the given TTL
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, ttl: ttl}
}

func (c *PriceCache) key(productCode string) string {
	return "nav:" + productCode
}

// Get returns the cached NAV string for a product, if present
func (c *PriceCache) Get(ctx context.Context, productCode string) (string, bool) {
	val, err := c.client.Get(ctx, c.key(productCode)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set caches the NAV string for a product
func (c *PriceCache) Set(ctx context.Context, productCode, nav string) {
	// Cache write failures are non-fatal; the feed is still authoritative
	_ = c.client.Set(ctx, c.key(productCode), nav, c.ttl).Err()
}

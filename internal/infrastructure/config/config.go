package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	JWT         JWTConfig        `mapstructure:"jwt"`
	Security    SecurityConfig   `mapstructure:"security"`
	Identity    IdentityConfig   `mapstructure:"identity"`
	NAV         NAVConfig        `mapstructure:"nav"`
	AutoSave    AutoSaveConfig   `mapstructure:"autosave"`
	AutoInvest  AutoInvestConfig `mapstructure:"autoinvest"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret    string `mapstructure:"secret"`
	AccessTTL int    `mapstructure:"access_token_ttl"`
	Issuer    string `mapstructure:"issuer"`
}

type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	AdminAPIKey   string `mapstructure:"admin_api_key"`
}

// IdentityConfig covers the PAN/Aadhaar/bank/liveness verification providers
type IdentityConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Environment    string `mapstructure:"environment"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	OTPTTLMinutes  int    `mapstructure:"otp_ttl_minutes"`
}

// Timeout returns the bounded timeout for provider calls. A timed-out
// verification fails closed: the fact stays unverified.
func (c IdentityConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OTPTTL returns how long an Aadhaar OTP reference stays valid
func (c IdentityConfig) OTPTTL() time.Duration {
	if c.OTPTTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

// NAVConfig covers the NAV price feed
type NAVConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Environment     string `mapstructure:"environment"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

func (c NAVConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c NAVConfig) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

type AutoSaveConfig struct {
	DefaultPercent int `mapstructure:"default_percent"`
	MinPercent     int `mapstructure:"min_percent"`
	MaxPercent     int `mapstructure:"max_percent"`
}

type AutoInvestConfig struct {
	// SweepSchedule is a cron expression for the SCHEDULED rule pass,
	// by default the 1st of every month.
	SweepSchedule    string `mapstructure:"sweep_schedule"`
	SweepConcurrency int    `mapstructure:"sweep_concurrency"`
}

// Load reads configuration from environment variables and optional .env file
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SANCHAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.url", "postgres://localhost:5432/sanchay?sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.access_token_ttl", 3600)
	v.SetDefault("jwt.issuer", "sanchay-service")

	v.SetDefault("identity.environment", "development")
	v.SetDefault("identity.timeout_seconds", 10)
	v.SetDefault("identity.otp_ttl_minutes", 5)

	v.SetDefault("nav.environment", "development")
	v.SetDefault("nav.timeout_seconds", 5)
	v.SetDefault("nav.cache_ttl_seconds", 60)

	v.SetDefault("autosave.default_percent", 10)
	v.SetDefault("autosave.min_percent", 1)
	v.SetDefault("autosave.max_percent", 50)

	v.SetDefault("autoinvest.sweep_schedule", "0 2 1 * *")
	v.SetDefault("autoinvest.sweep_concurrency", 8)
}

func (c *Config) validate() error {
	if c.Environment == "production" {
		if c.Security.EncryptionKey == "" {
			return fmt.Errorf("security.encryption_key is required in production")
		}
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
	}
	if c.AutoSave.MinPercent < 1 || c.AutoSave.MaxPercent > 50 ||
		c.AutoSave.DefaultPercent < c.AutoSave.MinPercent ||
		c.AutoSave.DefaultPercent > c.AutoSave.MaxPercent {
		return fmt.Errorf("invalid autosave percent bounds")
	}
	return nil
}

// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`

	StoreBackend string `mapstructure:"store_backend"` // redis, memory
	RedisURL     string `mapstructure:"redis_url"`
	RedisPass    string `mapstructure:"redis_pass"`
	RedisDB      int    `mapstructure:"redis_db"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
	NonceTTL  time.Duration `mapstructure:"nonce_ttl"`

	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	CheckoutSuccessURL  string `mapstructure:"checkout_success_url"`
	CheckoutCancelURL   string `mapstructure:"checkout_cancel_url"`

	// DeveloperUpgradeGameID is the catalog item whose purchase unlocks
	// developer tools.
	DeveloperUpgradeGameID string `mapstructure:"developer_upgrade_game_id"`

	S3Region         string        `mapstructure:"s3_region"`
	S3BaseEndpoint   string        `mapstructure:"s3_base_endpoint"`
	S3AccessKey      string        `mapstructure:"s3_access_key"`
	S3SecretKey      string        `mapstructure:"s3_secret_key"`
	DownloadURLTTL   time.Duration `mapstructure:"download_url_ttl"`
	RateLimitPerMin  int           `mapstructure:"rate_limit_per_min"`
	DiagnosticsLimit int64         `mapstructure:"diagnostics_limit"`
}

var keys = []string{
	"env", "port",
	"store_backend", "redis_url", "redis_pass", "redis_db",
	"jwt_secret", "jwt_expiry", "nonce_ttl",
	"stripe_secret_key", "stripe_webhook_secret", "checkout_success_url", "checkout_cancel_url",
	"developer_upgrade_game_id",
	"s3_region", "s3_base_endpoint", "s3_access_key", "s3_secret_key", "download_url_ttl",
	"rate_limit_per_min", "diagnostics_limit",
}

// Load reads configuration from environment variables (PORT, REDIS_URL, ...)
// and an optional config.yaml in the working directory.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows about during Unmarshal.
	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

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
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")

	v.SetDefault("store_backend", "redis")
	v.SetDefault("redis_url", "localhost:6379")
	v.SetDefault("redis_pass", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("jwt_expiry", "24h")
	v.SetDefault("nonce_ttl", "5m")

	v.SetDefault("checkout_success_url", "http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("checkout_cancel_url", "http://localhost:3000/cart")

	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("download_url_ttl", "15m")
	v.SetDefault("rate_limit_per_min", 60)
	v.SetDefault("diagnostics_limit", 500)
}

func (c *Config) validate() error {
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	switch c.StoreBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

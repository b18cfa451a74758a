package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	OrderStore   OrderStoreConfig
	Sendgrid     SendgridConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig is only consumed by the orders service and the migrate tool.
type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig tunes the checkout wizard and the simulated gateway.
type CheckoutConfig struct {
	SettlementDelayMin time.Duration `envconfig:"STOREFRONT_SETTLEMENT_DELAY_MIN" default:"1500ms"`
	SettlementDelayMax time.Duration `envconfig:"STOREFRONT_SETTLEMENT_DELAY_MAX" default:"2s"`
	GatewayTimeout     time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"10s"`
	SessionTTL         time.Duration `envconfig:"STOREFRONT_CHECKOUT_SESSION_TTL" default:"1h"`
	SubmitLockTTL      time.Duration `envconfig:"STOREFRONT_CHECKOUT_SUBMIT_LOCK_TTL" default:"30s"`
	EmailStatusTTL     time.Duration `envconfig:"STOREFRONT_EMAIL_STATUS_TTL" default:"168h"`
	ConfirmationPath   string        `envconfig:"STOREFRONT_CONFIRMATION_PATH" default:"/checkout/confirmation"`
}

func (c CheckoutConfig) validate() error {
	if c.SettlementDelayMin < 0 || c.SettlementDelayMax < c.SettlementDelayMin {
		return fmt.Errorf("settlement delay bounds invalid: min=%s max=%s", c.SettlementDelayMin, c.SettlementDelayMax)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvGatewayTimeout)
	}
	return nil
}

// OrderStoreConfig points the storefront at the authenticated order-persistence API.
type OrderStoreConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_ORDER_STORE_URL" default:"http://localhost:8081"`
	Timeout        time.Duration `envconfig:"STOREFRONT_ORDER_STORE_TIMEOUT" default:"5s"`
	BreakerTimeout time.Duration `envconfig:"STOREFRONT_ORDER_STORE_BREAKER_TIMEOUT" default:"30s"`
}

type SendgridConfig struct {
	APIKey      string        `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom string        `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL" default:"orders@example.com"`
	FromName    string        `envconfig:"STOREFRONT_SENDGRID_FROM_NAME" default:"Storefront"`
	BaseURL     string        `envconfig:"STOREFRONT_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	Timeout     time.Duration `envconfig:"STOREFRONT_SENDGRID_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

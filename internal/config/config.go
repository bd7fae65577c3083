// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvProduction = "production"
	EnvSandbox    = "sandbox"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RateLimit      int           `yaml:"rate_limit"`      // requests per client per minute on /api; needs redis
	TrustedProxies []string      `yaml:"trusted_proxies"` // addresses or CIDRs allowed to set X-Forwarded-For
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderEnvConfig holds the per-environment checkout provider settings.
type ProviderEnvConfig struct {
	WebhookSecret string            `yaml:"webhook_secret"`
	CheckoutURL   string            `yaml:"checkout_url"`
	PlanLinks     map[string]string `yaml:"plan_links"` // plan id -> hosted checkout link
}

type PaymentConfig struct {
	Environment     string            `yaml:"environment"` // production|sandbox
	SignatureHeader string            `yaml:"signature_header"`
	RedirectURL     string            `yaml:"redirect_url"`
	Production      ProviderEnvConfig `yaml:"production"`
	Sandbox         ProviderEnvConfig `yaml:"sandbox"`
}

// Active returns the settings of the selected environment.
func (p PaymentConfig) Active() ProviderEnvConfig {
	if p.Environment == EnvProduction {
		return p.Production
	}
	return p.Sandbox
}

func (p PaymentConfig) IsProduction() bool { return p.Environment == EnvProduction }

type PlanConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Price         int64  `yaml:"price"` // minor units
	Currency      string `yaml:"currency"`
	Category      string `yaml:"category"` // standard|promotional|premium
	OriginalPrice int64  `yaml:"original_price"`
	LegacyID      string `yaml:"legacy_id"`
}

type CatalogConfig struct {
	DefaultPlan   string       `yaml:"default_plan"`
	FallbackPrice int64        `yaml:"fallback_price"`
	Plans         []PlanConfig `yaml:"plans"`
}

type SessionConfig struct {
	Backend         string        `yaml:"backend"` // memory|redis
	TTL             time.Duration `yaml:"ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	AmountTolerance int64         `yaml:"amount_tolerance"`
}

type AirtableConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseID    string        `yaml:"base_id"`
	TableName string        `yaml:"table_name"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

func (a AirtableConfig) Enabled() bool { return a.APIKey != "" && a.BaseID != "" }

type TelegramConfig struct {
	Token    string `yaml:"token"`
	ChatID   int64  `yaml:"chat_id"`
	Language string `yaml:"language"` // operator message locale
}

func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != 0 }

type ReconcileConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type InternalAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Payment      PaymentConfig      `yaml:"payment"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Session      SessionConfig      `yaml:"session"`
	Airtable     AirtableConfig     `yaml:"airtable"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	InternalAuth InternalAuthConfig `yaml:"internal_auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path (a missing file is allowed, so the
// service can run from environment alone), applies env overrides and defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	// Zero is a valid tolerance, so its default is set before the file is read.
	cfg := Config{Session: SessionConfig{AmountTolerance: defaultAmountTolerance}}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Payment.Environment, "SQUARE_ENVIRONMENT")
	set(&cfg.Payment.Production.WebhookSecret, "SQUARE_WEBHOOK_SECRET")
	set(&cfg.Payment.Sandbox.WebhookSecret, "SQUARE_WEBHOOK_SECRET_SANDBOX")
	set(&cfg.Airtable.APIKey, "AIRTABLE_API_KEY")
	set(&cfg.Airtable.BaseID, "AIRTABLE_BASE_ID")
	set(&cfg.Airtable.TableName, "AIRTABLE_TABLE_NAME")
	set(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&cfg.InternalAuth.JWTSecret, "INTERNAL_JWT_SECRET")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Database.URL, "DATABASE_URL")
}

const defaultAmountTolerance int64 = 100

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.RateLimit <= 0 {
		cfg.Server.RateLimit = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.Payment.Environment = strings.ToLower(strings.TrimSpace(cfg.Payment.Environment))
	if cfg.Payment.Environment == "" {
		cfg.Payment.Environment = EnvSandbox
	}
	if cfg.Payment.SignatureHeader == "" {
		cfg.Payment.SignatureHeader = "x-square-signature"
	}
	if cfg.Payment.Production.CheckoutURL == "" {
		cfg.Payment.Production.CheckoutURL = "https://checkout.square.site/merchant/checkout"
	}
	if cfg.Payment.Sandbox.CheckoutURL == "" {
		cfg.Payment.Sandbox.CheckoutURL = "https://sandbox.checkout.square.site/merchant/checkout"
	}

	if cfg.Catalog.DefaultPlan == "" {
		cfg.Catalog.DefaultPlan = "standard_monthly"
	}
	if cfg.Catalog.FallbackPrice <= 0 {
		cfg.Catalog.FallbackPrice = 29700
	}
	if len(cfg.Catalog.Plans) == 0 {
		cfg.Catalog.Plans = DefaultPlans()
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Hour
	}

	if cfg.Airtable.TableName == "" {
		cfg.Airtable.TableName = "Leads"
	}
	if cfg.Airtable.BaseURL == "" {
		cfg.Airtable.BaseURL = "https://api.airtable.com/v0"
	}
	if cfg.Airtable.Timeout <= 0 {
		cfg.Airtable.Timeout = 10 * time.Second
	}

	if cfg.Telegram.Language == "" {
		cfg.Telegram.Language = "en"
	}

	if cfg.Reconcile.Workers <= 0 {
		cfg.Reconcile.Workers = 4
	}
	if cfg.Reconcile.QueueSize <= 0 {
		cfg.Reconcile.QueueSize = 64
	}
	if cfg.Reconcile.Timeout <= 0 {
		cfg.Reconcile.Timeout = 20 * time.Second
	}
	if cfg.InternalAuth.Issuer == "" {
		cfg.InternalAuth.Issuer = "chatbot-checkout"
	}
}

// Validate rejects impossible combinations.
func (c *Config) Validate() error {
	switch c.Payment.Environment {
	case EnvProduction, EnvSandbox:
	default:
		return fmt.Errorf("payment.environment must be %q or %q, got %q", EnvProduction, EnvSandbox, c.Payment.Environment)
	}
	if c.Session.AmountTolerance < 0 {
		return fmt.Errorf("session.amount_tolerance must not be negative, got %d", c.Session.AmountTolerance)
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when session.backend is redis")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	return nil
}

// DefaultPlans is the built-in price table.
func DefaultPlans() []PlanConfig {
	return []PlanConfig{
		{ID: "standard_monthly", Name: "AI Chatbot Standard", Price: 29700, Currency: "USD", Category: "standard", LegacyID: "basic"},
		{ID: "first_month_special", Name: "First Month Special", Price: 14700, Currency: "USD", Category: "promotional", OriginalPrice: 29700},
		{ID: "today_only_special", Name: "Today Only Special", Price: 19700, Currency: "USD", Category: "promotional", OriginalPrice: 29700},
		{ID: "premium_plan", Name: "AI Chatbot Premium", Price: 49700, Currency: "USD", Category: "premium", LegacyID: "premium"},
	}
}

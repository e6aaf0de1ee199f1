package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// expireDateLayouts lists accepted formats for the global quota expiry date.
var expireDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, e.g. ":8080".
}

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // PostgreSQL or SQLite DSN.
}

// RedisConfig holds the optional advisory-cache settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables the cache.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"` // logrus level name.
	File       string `yaml:"file"`  // Empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig holds access-token and session settings. Token values may be
// given either in plaintext or as bcrypt hashes ($2a$/$2b$ prefix).
type AuthConfig struct {
	AccessTokens   []string `yaml:"access_tokens"`    // Full-access tokens.
	ReadOnlyTokens []string `yaml:"read_only_tokens"` // GET-only tokens.
	JWTSecret      string   `yaml:"jwt_secret"`       // Panel session signing secret.
	SessionTTL     string   `yaml:"session_ttl"`      // Session lifetime, default 12h.
}

// GlobalQuotaConfig bounds cumulative spend across all accounts.
type GlobalQuotaConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Quota      float64 `yaml:"quota"`       // Ceiling on the global usage counter.
	ExpireDate string  `yaml:"expire_date"` // Optional; requests fail once past it.
}

// PricingConfig carries fallback model prices and admission surcharges.
type PricingConfig struct {
	DefaultInputPrice  float64            `yaml:"default_input_price"`   // Per 1M input tokens.
	DefaultOutputPrice float64            `yaml:"default_output_price"`  // Per 1M output tokens.
	DefaultPerMsgPrice float64            `yaml:"default_per_msg_price"` // -1 keeps token pricing.
	Surcharges         map[string]float64 `yaml:"surcharges"`            // Model ID to flat inlet cost.
}

// AccountsConfig controls lazy account provisioning.
type AccountsConfig struct {
	InitBalance float64 `yaml:"init_balance"` // Starting balance for first-contact accounts.
}

// JobsConfig holds cron schedules for background maintenance.
type JobsConfig struct {
	ReconcileSchedule string `yaml:"reconcile_schedule"` // Global usage reconciliation.
	AlertSchedule     string `yaml:"alert_schedule"`     // Group low-balance sweep.
}

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	GlobalQuota GlobalQuotaConfig `yaml:"global_quota"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Accounts    AccountsConfig    `yaml:"accounts"`
	Jobs        JobsConfig        `yaml:"jobs"`

	quotaExpireAt time.Time
	sessionTTL    time.Duration
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	return Parse(raw)
}

// Parse decodes configuration bytes and applies defaults.
func Parse(raw []byte) (*Config, error) {
	cfg := defaultConfig()
	if errUnmarshal := yaml.Unmarshal(raw, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse: %w", errUnmarshal)
	}
	if errFinish := cfg.finish(); errFinish != nil {
		return nil, errFinish
	}
	return cfg, nil
}

// defaultConfig returns a Config pre-filled with defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		Auth:   AuthConfig{SessionTTL: "12h"},
		Pricing: PricingConfig{
			DefaultInputPrice:  60,
			DefaultOutputPrice: 60,
			DefaultPerMsgPrice: -1,
		},
		Jobs: JobsConfig{ReconcileSchedule: "0 3 * * *", AlertSchedule: "*/30 * * * *"},
	}
}

// finish validates the document and resolves derived fields.
func (c *Config) finish() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}

	ttlRaw := strings.TrimSpace(c.Auth.SessionTTL)
	if ttlRaw == "" {
		ttlRaw = "12h"
	}
	ttl, errParse := time.ParseDuration(ttlRaw)
	if errParse != nil || ttl <= 0 {
		return fmt.Errorf("config: invalid auth.session_ttl %q", c.Auth.SessionTTL)
	}
	c.sessionTTL = ttl

	c.quotaExpireAt = time.Time{}
	if raw := strings.TrimSpace(c.GlobalQuota.ExpireDate); raw != "" {
		parsed, errDate := parseExpireDate(raw)
		if errDate != nil {
			return errDate
		}
		c.quotaExpireAt = parsed
	}

	if c.GlobalQuota.Enabled && c.GlobalQuota.Quota < 0 {
		return fmt.Errorf("config: global_quota.quota must not be negative")
	}
	return nil
}

// parseExpireDate parses a quota expiry date in any accepted layout.
func parseExpireDate(raw string) (time.Time, error) {
	for _, layout := range expireDateLayouts {
		if parsed, errParse := time.Parse(layout, raw); errParse == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("config: invalid global_quota.expire_date %q", raw)
}

// SessionTTLDuration returns the parsed panel session lifetime.
func (c *Config) SessionTTLDuration() time.Duration {
	if c.sessionTTL <= 0 {
		return 12 * time.Hour
	}
	return c.sessionTTL
}

// QuotaCeiling returns the global spend ceiling as a decimal.
func (c *Config) QuotaCeiling() decimal.Decimal {
	return decimal.NewFromFloat(c.GlobalQuota.Quota)
}

// QuotaExpireAt returns the parsed quota expiry date, if configured.
func (c *Config) QuotaExpireAt() (time.Time, bool) {
	if c.quotaExpireAt.IsZero() {
		return time.Time{}, false
	}
	return c.quotaExpireAt, true
}

// InitBalance returns the starting balance for newly provisioned accounts.
func (c *Config) InitBalance() decimal.Decimal {
	if c.Accounts.InitBalance <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(c.Accounts.InitBalance)
}

// SurchargeFor returns the flat admission surcharge for a model, zero when
// the model has none configured.
func (c *Config) SurchargeFor(modelID string) decimal.Decimal {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" || len(c.Pricing.Surcharges) == 0 {
		return decimal.Zero
	}
	raw, ok := c.Pricing.Surcharges[modelID]
	if !ok || raw <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(raw)
}

// DefaultPrices returns the configured fallback model prices. The boolean is
// false when the token-rate defaults are unusable (negative), in which case an
// unknown model must be treated as unpriceable.
func (c *Config) DefaultPrices() (input, output, perMsg decimal.Decimal, ok bool) {
	if c.Pricing.DefaultInputPrice < 0 || c.Pricing.DefaultOutputPrice < 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	return decimal.NewFromFloat(c.Pricing.DefaultInputPrice),
		decimal.NewFromFloat(c.Pricing.DefaultOutputPrice),
		decimal.NewFromFloat(c.Pricing.DefaultPerMsgPrice),
		true
}

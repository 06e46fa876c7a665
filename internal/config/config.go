package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the loader. Environment values
// always win over the config file.
const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvPort                = "PORT"
	EnvDBConnection        = "DB_CONNECTION"
	EnvJWTSecret           = "JWT_SECRET"
	EnvJWTExpiry           = "JWT_EXPIRY"
	EnvClientURL           = "CLIENT_URL"
	EnvOpenRouterAPIKey    = "OPENROUTER_API_KEY"
	EnvOpenRouterBaseURL   = "OPENROUTER_BASE_URL"
	EnvOpenRouterModel     = "OPENROUTER_MODEL"
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvMailAPIToken        = "MAILTRAP_API_KEY"
	EnvMailFromEmail       = "MAIL_FROM_EMAIL"
	EnvMailInbox           = "SUPPORT_EMAIL"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvRedisPassword       = "REDIS_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// OpenRouterConfig holds settings for the upstream chat-completion API.
type OpenRouterConfig struct {
	APIKey     string        `yaml:"api-key"`
	BaseURL    string        `yaml:"base-url"`
	Model      string        `yaml:"model"`
	MaxRetries int           `yaml:"max-retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StripeConfig holds Stripe API credentials.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
}

// MailConfig holds transactional mail provider settings.
type MailConfig struct {
	APIToken  string `yaml:"api-token"`
	BaseURL   string `yaml:"base-url"`
	FromEmail string `yaml:"from-email"`
	FromName  string `yaml:"from-name"`
	Inbox     string `yaml:"inbox"`
}

// RedisConfig holds optional Redis settings for the rate limiter backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds request gating settings.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests-per-second"`
}

// Config is the full server configuration resolved from file and environment.
type Config struct {
	Port        int    `yaml:"port"`
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT           JWTConfig        `yaml:"jwt"`
	ClientURL     string           `yaml:"client-url"`
	SecureCookies bool             `yaml:"secure-cookies"`
	OpenRouter    OpenRouterConfig `yaml:"openrouter"`
	Stripe        StripeConfig     `yaml:"stripe"`
	Mail          MailConfig       `yaml:"mail"`
	Redis         RedisConfig      `yaml:"redis"`
	RateLimit     RateLimitConfig  `yaml:"rate-limit"`
}

// Defaults applied when neither file nor environment provides a value.
const (
	defaultJWTExpiry         = 7 * 24 * time.Hour
	defaultClientURL         = "http://localhost:3000"
	defaultOpenRouterBaseURL = "https://openrouter.ai"
	defaultOpenRouterModel   = "gpt-4o-mini"
	defaultOpenRouterRetries = 4
	defaultOpenRouterTimeout = 120 * time.Second
	defaultMailBaseURL       = "https://send.api.mailtrap.io"
	defaultMailFromEmail     = "hello@demomailtrap.co"
	defaultMailFromName      = "InkaWebAI"
)

// Load reads the YAML config file, applies environment overrides, and fills
// defaults. A missing config file is not an error; environment variables can
// carry a complete configuration on their own.
func Load(configPath string) (Config, error) {
	var cfg Config

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" && strings.TrimSpace(cfg.DatabaseDSN) == "" {
		cfg.DatabaseDSN = dsn
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return Config{}, ErrMissingDatabaseDSN
	}
	return cfg, nil
}

// LoadDatabaseDSN resolves only the database DSN, env first, then the file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

func applyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, errParse := strconv.Atoi(raw); errParse == nil && port > 0 {
			cfg.Port = port
		}
	}
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if raw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); raw != "" {
		if expiry, errParse := time.ParseDuration(raw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if url := strings.TrimSpace(os.Getenv(EnvClientURL)); url != "" {
		cfg.ClientURL = url
	}
	if key := strings.TrimSpace(os.Getenv(EnvOpenRouterAPIKey)); key != "" {
		cfg.OpenRouter.APIKey = key
	}
	if url := strings.TrimSpace(os.Getenv(EnvOpenRouterBaseURL)); url != "" {
		cfg.OpenRouter.BaseURL = url
	}
	if model := strings.TrimSpace(os.Getenv(EnvOpenRouterModel)); model != "" {
		cfg.OpenRouter.Model = model
	}
	if key := strings.TrimSpace(os.Getenv(EnvStripeSecretKey)); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvStripeWebhookSecret)); secret != "" {
		cfg.Stripe.WebhookSecret = secret
	}
	if token := strings.TrimSpace(os.Getenv(EnvMailAPIToken)); token != "" {
		cfg.Mail.APIToken = token
	}
	if from := strings.TrimSpace(os.Getenv(EnvMailFromEmail)); from != "" {
		cfg.Mail.FromEmail = from
	}
	if inbox := strings.TrimSpace(os.Getenv(EnvMailInbox)); inbox != "" {
		cfg.Mail.Inbox = inbox
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := strings.TrimSpace(os.Getenv(EnvRedisPassword)); password != "" {
		cfg.Redis.Password = password
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = 1000
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(cfg.ClientURL) == "" {
		cfg.ClientURL = defaultClientURL
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	if strings.TrimSpace(cfg.OpenRouter.BaseURL) == "" {
		cfg.OpenRouter.BaseURL = defaultOpenRouterBaseURL
	}
	cfg.OpenRouter.BaseURL = strings.TrimRight(cfg.OpenRouter.BaseURL, "/")
	if strings.TrimSpace(cfg.OpenRouter.Model) == "" {
		cfg.OpenRouter.Model = defaultOpenRouterModel
	}
	if cfg.OpenRouter.MaxRetries <= 0 {
		cfg.OpenRouter.MaxRetries = defaultOpenRouterRetries
	}
	if cfg.OpenRouter.Timeout <= 0 {
		cfg.OpenRouter.Timeout = defaultOpenRouterTimeout
	}
	if strings.TrimSpace(cfg.Mail.BaseURL) == "" {
		cfg.Mail.BaseURL = defaultMailBaseURL
	}
	cfg.Mail.BaseURL = strings.TrimRight(cfg.Mail.BaseURL, "/")
	if strings.TrimSpace(cfg.Mail.FromEmail) == "" {
		cfg.Mail.FromEmail = defaultMailFromEmail
	}
	if strings.TrimSpace(cfg.Mail.FromName) == "" {
		cfg.Mail.FromName = defaultMailFromName
	}
	if strings.TrimSpace(cfg.Mail.Inbox) == "" {
		cfg.Mail.Inbox = cfg.Mail.FromEmail
	}
}

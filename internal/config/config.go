package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Retry    RetryConfig    `koanf:"retry"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Deposit  DepositConfig  `koanf:"deposit"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// GatewayConfig holds the NOWPayments API settings. APITimeout bounds each
// individual request attempt, not the whole retry budget.
type GatewayConfig struct {
	BaseURL    string        `koanf:"base_url" validate:"required"`
	APIKey     string        `koanf:"api_key" validate:"required"`
	APITimeout time.Duration `koanf:"api_timeout" validate:"required"`
	SuccessURL string        `koanf:"success_url"`
	CancelURL  string        `koanf:"cancel_url"`
}

type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" validate:"required"`
	BaseDelay  time.Duration `koanf:"base_delay" validate:"required"`
	MaxDelay   time.Duration `koanf:"max_delay" validate:"required"`
}

type WebhookConfig struct {
	// Secret is the IPN secret shared with the provider. Signature
	// verification fails closed: an empty secret rejects every delivery.
	Secret string `koanf:"secret" validate:"required"`
}

type DepositConfig struct {
	MinAmountCents int64 `koanf:"min_amount_cents" validate:"required"`
	MaxAmountCents int64 `koanf:"max_amount_cents" validate:"required"`
}

type MonitorConfig struct {
	Interval      time.Duration `koanf:"interval" validate:"required"`
	BatchSize     int           `koanf:"batch_size" validate:"required"`
	ExpiryHorizon time.Duration `koanf:"expiry_horizon" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds the process-wide structured logger. JSON output everywhere
// except local development.
func (c LoggerConfig) NewLogger(environment string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if environment == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// defaults are overridable through ESCROW_-prefixed environment variables,
// e.g. ESCROW_RETRY__MAX_RETRIES=5 or ESCROW_MONITOR__EXPIRY_HORIZON=48h.
var defaults = map[string]interface{}{
	"primary.env":              "development",
	"server.port":              "8080",
	"server.read_timeout":      "15s",
	"server.write_timeout":     "15s",
	"server.idle_timeout":      "60s",
	"gateway.api_timeout":      "30s",
	"retry.max_retries":        3,
	"retry.base_delay":         "2s",
	"retry.max_delay":          "60s",
	"deposit.min_amount_cents": 1000,
	"deposit.max_amount_cents": 1000000,
	"monitor.interval":         "5m",
	"monitor.batch_size":       50,
	"monitor.expiry_horizon":   "24h",
	"logger.level":             "info",
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load config defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("ESCROW_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "ESCROW_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	if err := k.Unmarshal("", mainConfig); err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	if err := validate.Struct(mainConfig); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

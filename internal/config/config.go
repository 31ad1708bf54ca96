// Package config loads service settings from an optional YAML file and
// KLEARBILL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ksred/klear-bill/internal/ratecard"
)

const EnvPrefix = "KLEARBILL"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateCard  RateCardConfig  `mapstructure:"rate_card"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" or "release"
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RateCardConfig struct {
	Path          string        `mapstructure:"path"`
	SearchPaths   []string      `mapstructure:"search_paths"`
	MinRules      int           `mapstructure:"min_rules"`
	WatchInterval time.Duration `mapstructure:"watch_interval"` // 0 disables reloads
}

type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type BillingConfig struct {
	MaxErrorLength  int `mapstructure:"max_error_length"`
	DebugSampleRows int `mapstructure:"debug_sample_rows"`
	MaxUploadMB     int `mapstructure:"max_upload_mb"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type RateLimitConfig struct {
	BillsPerMinute int `mapstructure:"bills_per_minute"`
	AdminPerMinute int `mapstructure:"admin_per_minute"`
}

// Load reads settings. An explicit path must exist; otherwise config.yaml is
// looked up in ./config and the working directory and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("rate_card.path", EnvPrefix+"_RATE_CARD_PATH", "RATE_CARD_PATH"); err != nil {
		return nil, fmt.Errorf("error binding rate card env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("rate_card.path", "")
	v.SetDefault("rate_card.search_paths", []string{
		filepath.Join("config", "rate_card.xlsx"),
		filepath.Join("config", "FO CHARGES FORMULA.xlsx"),
	})
	v.SetDefault("rate_card.min_rules", 8)
	v.SetDefault("rate_card.watch_interval", time.Duration(0))

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.dsn", "bill_runs.db")

	v.SetDefault("billing.max_error_length", 300)
	v.SetDefault("billing.debug_sample_rows", 5)
	v.SetDefault("billing.max_upload_mb", 32)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", true)

	v.SetDefault("ratelimit.bills_per_minute", 60)
	v.SetDefault("ratelimit.admin_per_minute", 10)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server.mode %q", c.Server.Mode)
	}
	if c.RateCard.MinRules <= 0 {
		return fmt.Errorf("rate_card.min_rules must be positive")
	}
	if c.RateCard.WatchInterval < 0 {
		return fmt.Errorf("rate_card.watch_interval must not be negative")
	}
	if c.Ledger.Enabled && c.Ledger.DSN == "" {
		return fmt.Errorf("ledger.dsn is required when the ledger is enabled")
	}
	if c.Billing.MaxErrorLength <= 0 {
		return fmt.Errorf("billing.max_error_length must be positive")
	}
	if _, err := c.Logging.ZerologLevel(); err != nil {
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.RateLimit.BillsPerMinute <= 0 || c.RateLimit.AdminPerMinute <= 0 {
		return fmt.Errorf("ratelimit values must be positive")
	}
	return nil
}

// RateCardOptions is where the rate card loader should look.
func (c *Config) RateCardOptions() ratecard.Options {
	return ratecard.Options{
		Path:        c.RateCard.Path,
		SearchPaths: c.RateCard.SearchPaths,
		MinRules:    c.RateCard.MinRules,
	}
}

// MaxUploadBytes caps multipart request bodies.
func (c *Config) MaxUploadBytes() int64 {
	if c.Billing.MaxUploadMB <= 0 {
		return 32 << 20
	}
	return int64(c.Billing.MaxUploadMB) << 20
}

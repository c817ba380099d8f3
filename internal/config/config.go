// Package config defines the top-level configuration for the signal ledger
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SIGLEDGER_* environment
// variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Quotes   QuotesConfig   `toml:"quotes"`
	Notify   NotifyConfig   `toml:"notify"`
	Report   ReportConfig   `toml:"report"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the quote cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// QuotesConfig holds quote-source parameters.
type QuotesConfig struct {
	// BaseURL is the Yahoo-Finance-compatible API host.
	BaseURL string `toml:"base_url"`
	// Suffix is appended to every ticker symbol (exchange convention).
	Suffix   string   `toml:"suffix"`
	Timeout  duration `toml:"timeout"`
	CacheTTL duration `toml:"cache_ttl"`
}

// NotifyConfig holds notification channel credentials and routing.
type NotifyConfig struct {
	TelegramToken       string   `toml:"telegram_token"`
	TelegramChatID      string   `toml:"telegram_chat_id"`
	TelegramIndexChatID string   `toml:"telegram_index_chat_id"`
	IndexTickers        []string `toml:"index_tickers"`
	DiscordWebhookURL   string   `toml:"discord_webhook_url"`
	Events              []string `toml:"events"`
}

// ReportConfig holds valuation-report parameters.
type ReportConfig struct {
	OutputDir   string   `toml:"output_dir"`
	Interval    duration `toml:"interval"`
	ArchiveToS3 bool     `toml:"archive_to_s3"`
}

// S3Config holds S3-compatible object storage parameters for report archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// defaultIndexTickers are the Borsa Istanbul sector and market indices whose
// signals route to the index notification channel.
var defaultIndexTickers = []string{
	"XBANK", "XELKT", "XGIDA", "XGMYO", "XHARZ", "XHOLD",
	"XILTM", "XKMYA", "XMADN", "XMANA", "XSINS", "XU030", "XU100",
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "sigledger",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Quotes: QuotesConfig{
			BaseURL:  "https://query1.finance.yahoo.com",
			Suffix:   ".IS",
			Timeout:  duration{10 * time.Second},
			CacheTTL: duration{time.Minute},
		},
		Notify: NotifyConfig{
			IndexTickers: defaultIndexTickers,
			Events:       []string{"opened", "flipped"},
		},
		Report: ReportConfig{
			OutputDir:   "reports",
			Interval:    duration{time.Hour},
			ArchiveToS3: false,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: false,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":  true,
	"report": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, report, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Quotes
	if c.Quotes.BaseURL == "" {
		errs = append(errs, "quotes: base_url must not be empty")
	}
	if c.Quotes.Timeout.Duration <= 0 {
		errs = append(errs, "quotes: timeout must be positive")
	}

	// Notify — token and chat must be set together.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.TelegramIndexChatID != "" && c.Notify.TelegramToken == "" {
		errs = append(errs, "notify: telegram_index_chat_id requires telegram_token")
	}

	// Report
	if c.Report.OutputDir == "" {
		errs = append(errs, "report: output_dir must not be empty")
	}
	if c.Mode == "full" && c.Report.Interval.Duration <= 0 {
		errs = append(errs, "report: interval must be positive in full mode")
	}
	if c.Report.ArchiveToS3 {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when report.archive_to_s3 is set")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when report.archive_to_s3 is set")
		}
	}

	// Server
	if c.Mode == "serve" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

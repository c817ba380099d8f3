package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration in three layers: defaults, then the TOML
// file at path (skipped if path is empty or the file does not exist), then
// SIGLEDGER_* environment variables. A .env file in the working directory is
// loaded first so env overrides work the same in containers and local runs.
func Load(path string) (Config, error) {
	// Missing .env is fine; it is a local-dev convenience.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays SIGLEDGER_* environment variables onto cfg. Unset
// variables leave the existing value untouched.
func applyEnv(cfg *Config) {
	setStr("SIGLEDGER_MODE", &cfg.Mode)
	setStr("SIGLEDGER_LOG_LEVEL", &cfg.LogLevel)

	setStr("SIGLEDGER_DB_DSN", &cfg.Database.DSN)
	setStr("SIGLEDGER_DB_HOST", &cfg.Database.Host)
	setInt("SIGLEDGER_DB_PORT", &cfg.Database.Port)
	setStr("SIGLEDGER_DB_NAME", &cfg.Database.Database)
	setStr("SIGLEDGER_DB_USER", &cfg.Database.User)
	setStr("SIGLEDGER_DB_PASSWORD", &cfg.Database.Password)
	setStr("SIGLEDGER_DB_SSL_MODE", &cfg.Database.SSLMode)
	setInt("SIGLEDGER_DB_POOL_MAX_CONNS", &cfg.Database.PoolMaxConns)
	setInt("SIGLEDGER_DB_POOL_MIN_CONNS", &cfg.Database.PoolMinConns)
	setBool("SIGLEDGER_DB_RUN_MIGRATIONS", &cfg.Database.RunMigrations)

	setBool("SIGLEDGER_REDIS_ENABLED", &cfg.Redis.Enabled)
	setStr("SIGLEDGER_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("SIGLEDGER_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("SIGLEDGER_REDIS_DB", &cfg.Redis.DB)
	setBool("SIGLEDGER_REDIS_TLS_ENABLED", &cfg.Redis.TLSEnabled)

	setStr("SIGLEDGER_QUOTES_BASE_URL", &cfg.Quotes.BaseURL)
	setStr("SIGLEDGER_QUOTES_SUFFIX", &cfg.Quotes.Suffix)
	setDuration("SIGLEDGER_QUOTES_TIMEOUT", &cfg.Quotes.Timeout)
	setDuration("SIGLEDGER_QUOTES_CACHE_TTL", &cfg.Quotes.CacheTTL)

	setStr("SIGLEDGER_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("SIGLEDGER_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	setStr("SIGLEDGER_TELEGRAM_INDEX_CHAT_ID", &cfg.Notify.TelegramIndexChatID)
	setStringSlice("SIGLEDGER_INDEX_TICKERS", &cfg.Notify.IndexTickers)
	setStr("SIGLEDGER_DISCORD_WEBHOOK_URL", &cfg.Notify.DiscordWebhookURL)
	setStringSlice("SIGLEDGER_NOTIFY_EVENTS", &cfg.Notify.Events)

	setStr("SIGLEDGER_REPORT_OUTPUT_DIR", &cfg.Report.OutputDir)
	setDuration("SIGLEDGER_REPORT_INTERVAL", &cfg.Report.Interval)
	setBool("SIGLEDGER_REPORT_ARCHIVE_TO_S3", &cfg.Report.ArchiveToS3)

	setStr("SIGLEDGER_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("SIGLEDGER_S3_REGION", &cfg.S3.Region)
	setStr("SIGLEDGER_S3_BUCKET", &cfg.S3.Bucket)
	setStr("SIGLEDGER_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("SIGLEDGER_S3_SECRET_KEY", &cfg.S3.SecretKey)
	setBool("SIGLEDGER_S3_USE_SSL", &cfg.S3.UseSSL)
	setBool("SIGLEDGER_S3_FORCE_PATH_STYLE", &cfg.S3.ForcePathStyle)

	setInt("SIGLEDGER_SERVER_PORT", &cfg.Server.Port)
	setStr("SIGLEDGER_SERVER_API_KEY", &cfg.Server.APIKey)
}

func setStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			dst.Duration = d
		}
	}
}

// setStringSlice parses a comma-separated list, trimming whitespace and
// dropping empty elements.
func setStringSlice(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/tickerwatch/sigledger/internal/blob/s3"
	"github.com/tickerwatch/sigledger/internal/cache/redis"
	"github.com/tickerwatch/sigledger/internal/config"
	"github.com/tickerwatch/sigledger/internal/domain"
	"github.com/tickerwatch/sigledger/internal/notify"
	"github.com/tickerwatch/sigledger/internal/quotes"
	"github.com/tickerwatch/sigledger/internal/report"
	"github.com/tickerwatch/sigledger/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Store  domain.LedgerStore
	Quotes domain.QuoteSource

	Notifier *notify.Notifier

	// ArchiveSink is non-nil when report archiving to object storage is
	// configured.
	ArchiveSink report.Sink
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Store = postgres.NewLedgerStore(pgClient.Pool())

	// --- Quotes (optionally Redis-cached) ---
	quoteClient := quotes.NewClient(quotes.ClientConfig{
		BaseURL: cfg.Quotes.BaseURL,
		Suffix:  cfg.Quotes.Suffix,
		Timeout: cfg.Quotes.Timeout.Duration,
	})
	deps.Quotes = quoteClient

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		ttl := cfg.Quotes.CacheTTL.Duration
		quoteCache := redis.NewQuoteCache(redisClient, ttl)
		deps.Quotes = quotes.NewCached(quoteClient, quoteCache, ttl, logger)
	}

	// --- Notifications ---
	var senders, indexSenders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			"",
		))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramIndexChatID != "" {
		indexSenders = append(indexSenders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramIndexChatID,
			"index",
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(
		senders, indexSenders,
		cfg.Notify.IndexTickers, cfg.Notify.Events,
		logger,
	)

	// --- S3 report archive ---
	if cfg.Report.ArchiveToS3 {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.ArchiveSink = report.NewS3Sink(s3blob.NewWriter(s3Client), logger)
	}

	return deps, cleanup, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tickerwatch/sigledger/internal/domain"
	"github.com/tickerwatch/sigledger/internal/ledger"
	"github.com/tickerwatch/sigledger/internal/report"
	"github.com/tickerwatch/sigledger/internal/server"
	"github.com/tickerwatch/sigledger/internal/server/handler"
	"github.com/tickerwatch/sigledger/internal/server/ws"
)

// ServeMode runs the HTTP intake server and the WebSocket event stream.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// ReportMode values all open positions once, writes the report to the
// configured sinks, and exits.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting report mode")
	return a.runReport(ctx, deps)
}

// FullMode runs the HTTP server plus a periodic valuation report.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.Duration("report_interval", a.cfg.Report.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Report.Interval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := a.runReport(ctx, deps); err != nil {
					a.logger.ErrorContext(ctx, "periodic report failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	return g.Wait()
}

// startServer adds the HTTP server and its graceful shutdown to the given
// errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(a.logger)

	engine := ledger.New(
		deps.Store,
		[]domain.EventPublisher{deps.Notifier, hub},
		a.logger,
	)
	reporter := report.NewReporter(deps.Store, deps.Quotes, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:   a.cfg.Server.Port,
			APIKey: a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Webhook:   handler.NewWebhookHandler(engine, a.logger),
			Positions: handler.NewPositionHandler(deps.Store, a.logger),
			Report:    handler.NewReportHandler(reporter, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		hub.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// runReport performs one valuation pass and fans the result out to the
// terminal table, the CSV export directory, and the optional object-storage
// archive.
func (a *App) runReport(ctx context.Context, deps *Dependencies) error {
	reporter := report.NewReporter(deps.Store, deps.Quotes, a.logger)

	rep, err := reporter.Valuate(ctx)
	if err != nil {
		return fmt.Errorf("report mode: %w", err)
	}

	sinks := []report.Sink{
		report.NewTableSink(os.Stdout),
		report.NewCSVSink(a.cfg.Report.OutputDir, a.logger),
	}
	if deps.ArchiveSink != nil {
		sinks = append(sinks, deps.ArchiveSink)
	}

	return report.NewMultiSink(a.logger, sinks...).Write(ctx, rep)
}

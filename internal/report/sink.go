package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// unavailableMarker is rendered where a price or profit could not be resolved.
const unavailableMarker = "N/A"

// reportTimeLayout keys durable exports by generation time.
const reportTimeLayout = "20060102_150405"

var reportHeaders = []string{"Ticker", "Direction", "Entry Price", "Current Price", "Profit (%)"}

// Sink consumes a finished valuation report.
type Sink interface {
	Write(ctx context.Context, rep domain.Report) error
}

// csvRow is the delimited-export shape of a valuation row.
type csvRow struct {
	Ticker        string `csv:"Ticker"`
	Direction     string `csv:"Direction"`
	EntryPrice    string `csv:"Entry Price"`
	CurrentPrice  string `csv:"Current Price"`
	ProfitPercent string `csv:"Profit (%)"`
}

func toCSVRows(rep domain.Report) []csvRow {
	rows := make([]csvRow, 0, len(rep.Rows))
	for _, row := range rep.Rows {
		rows = append(rows, csvRow{
			Ticker:        row.Ticker,
			Direction:     row.Direction.Label(),
			EntryPrice:    formatPrice(row.EntryPrice),
			CurrentPrice:  formatOptPrice(row.CurrentPrice, row.Note),
			ProfitPercent: formatOptProfit(row.ProfitPercent),
		})
	}
	return rows
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func formatOptPrice(p *float64, note string) string {
	if p == nil {
		if note != "" {
			return note
		}
		return unavailableMarker
	}
	return fmt.Sprintf("%.4f", *p)
}

func formatOptProfit(p *float64) string {
	if p == nil {
		return unavailableMarker
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

// TableSink renders the report as a grid for terminal display.
type TableSink struct {
	out io.Writer
}

// NewTableSink creates a TableSink writing to out.
func NewTableSink(out io.Writer) *TableSink {
	return &TableSink{out: out}
}

// Write renders the report table, preceded by the generation timestamp.
func (s *TableSink) Write(_ context.Context, rep domain.Report) error {
	if len(rep.Rows) == 0 {
		_, err := fmt.Fprintln(s.out, "no open positions to value")
		return err
	}

	fmt.Fprintf(s.out, "Open positions as of %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05"))

	table := tablewriter.NewWriter(s.out)
	table.SetHeader(reportHeaders)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, row := range toCSVRows(rep) {
		table.Append([]string{row.Ticker, row.Direction, row.EntryPrice, row.CurrentPrice, row.ProfitPercent})
	}
	table.Render()
	return nil
}

// CSVSink writes the report to a timestamped CSV file in a directory.
type CSVSink struct {
	dir    string
	logger *slog.Logger
}

// NewCSVSink creates a CSVSink writing files under dir.
func NewCSVSink(dir string, logger *slog.Logger) *CSVSink {
	return &CSVSink{dir: dir, logger: logger}
}

// Write saves the report as open_positions_report_<timestamp>.csv.
func (s *CSVSink) Write(ctx context.Context, rep domain.Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("report: create export dir: %w", err)
	}

	name := fmt.Sprintf("open_positions_report_%s.csv", rep.GeneratedAt.Format(reportTimeLayout))
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create csv %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.Marshal(toCSVRows(rep), f); err != nil {
		return fmt.Errorf("report: write csv %s: %w", path, err)
	}

	s.logger.InfoContext(ctx, "report exported",
		slog.String("path", path),
		slog.Int("rows", len(rep.Rows)),
	)
	return nil
}

// BlobPutter uploads a named object; implemented by the s3 blob writer.
type BlobPutter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// S3Sink archives the CSV export to object storage under reports/.
type S3Sink struct {
	blob   BlobPutter
	logger *slog.Logger
}

// NewS3Sink creates an S3Sink uploading through blob.
func NewS3Sink(blob BlobPutter, logger *slog.Logger) *S3Sink {
	return &S3Sink{blob: blob, logger: logger}
}

// Write uploads the report as reports/open_positions_<timestamp>.csv.
func (s *S3Sink) Write(ctx context.Context, rep domain.Report) error {
	var buf bytes.Buffer
	if err := gocsv.Marshal(toCSVRows(rep), &buf); err != nil {
		return fmt.Errorf("report: marshal csv for archive: %w", err)
	}

	key := fmt.Sprintf("reports/open_positions_%s.csv", rep.GeneratedAt.Format(reportTimeLayout))
	if err := s.blob.Put(ctx, key, &buf, "text/csv"); err != nil {
		return fmt.Errorf("report: archive %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "report archived",
		slog.String("key", key),
	)
	return nil
}

// MultiSink fans a report out to several sinks; each sink failure is logged
// and the rest still run.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(logger *slog.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// Write delivers the report to every sink.
func (s *MultiSink) Write(ctx context.Context, rep domain.Report) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, rep); err != nil {
			s.logger.WarnContext(ctx, "report sink failed",
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

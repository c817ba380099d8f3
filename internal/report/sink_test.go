package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerwatch/sigledger/internal/domain"
)

func sampleReport() domain.Report {
	price := 110.0
	profit := 10.0
	return domain.Report{
		GeneratedAt: time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC),
		Rows: []domain.ValuationRow{
			{
				Ticker:        "GARAN",
				Direction:     domain.DirectionLong,
				EntryPrice:    100,
				CurrentPrice:  &price,
				ProfitPercent: &profit,
			},
			{
				Ticker:     "GHOST",
				Direction:  domain.DirectionShort,
				EntryPrice: 10,
				Note:       noteNoQuote,
			},
		},
	}
}

func TestTableSink(t *testing.T) {
	t.Run("renders resolved and degraded rows", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewTableSink(&buf).Write(context.Background(), sampleReport())
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "2025-06-02 15:04:05")
		assert.Contains(t, out, "GARAN")
		assert.Contains(t, out, "BUY")
		assert.Contains(t, out, "+10.00%")
		assert.Contains(t, out, noteNoQuote)
		assert.Contains(t, out, unavailableMarker)
	})

	t.Run("says so when there is nothing to value", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewTableSink(&buf).Write(context.Background(), domain.Report{GeneratedAt: time.Now()})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "no open positions")
	})
}

func TestCSVSink(t *testing.T) {
	t.Run("writes a timestamped file with headers", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewCSVSink(dir, testLogger())
		require.NoError(t, sink.Write(context.Background(), sampleReport()))

		path := filepath.Join(dir, "open_positions_report_20250602_150405.csv")
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "Ticker,Direction,Entry Price,Current Price,Profit (%)", lines[0])
		assert.Contains(t, lines[1], "GARAN,BUY,100,110.0000,+10.00%")
		assert.Contains(t, lines[2], "GHOST,SELL,10,"+noteNoQuote+","+unavailableMarker)
	})

	t.Run("creates the export directory if missing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "reports")
		sink := NewCSVSink(dir, testLogger())
		require.NoError(t, sink.Write(context.Background(), sampleReport()))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

type failingSink struct{ err error }

func (s *failingSink) Write(context.Context, domain.Report) error { return s.err }

type countingSink struct{ calls int }

func (s *countingSink) Write(context.Context, domain.Report) error {
	s.calls++
	return nil
}

func TestMultiSink(t *testing.T) {
	t.Run("a failing sink does not stop the rest", func(t *testing.T) {
		boom := errors.New("disk full")
		counter := &countingSink{}
		sink := NewMultiSink(testLogger(), &failingSink{err: boom}, counter)

		err := sink.Write(context.Background(), sampleReport())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, counter.calls)
	})

	t.Run("all healthy sinks succeed", func(t *testing.T) {
		a, b := &countingSink{}, &countingSink{}
		sink := NewMultiSink(testLogger(), a, b)
		require.NoError(t, sink.Write(context.Background(), sampleReport()))
		assert.Equal(t, 1, a.calls)
		assert.Equal(t, 1, b.calls)
	})
}

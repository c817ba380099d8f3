package domain

import (
	"fmt"
	"math"
	"time"
)

// OpenPosition is the single currently-held directional stance for a ticker.
// At most one row exists per ticker; the store enforces uniqueness.
type OpenPosition struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
}

// ClosedPosition is an immutable historical record of a completed position
// and its realized profit. Rows are append-only.
type ClosedPosition struct {
	ID            string    `json:"id"`
	Ticker        string    `json:"ticker"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	EntryTime     time.Time `json:"entry_time"`
	ExitPrice     float64   `json:"exit_price"`
	ExitTime      time.Time `json:"exit_time"`
	ProfitPercent float64   `json:"profit_percent"`
}

// ProfitPercent computes the signed percentage profit of a position entered
// at entry and exited at exit. A long position profits when the price rises,
// a short position when it falls:
//
//	long:  (exit/entry - 1) * 100
//	short: (entry/exit - 1) * 100
//
// Non-positive or non-finite operands yield ErrComputation.
func ProfitPercent(d Direction, entry, exit float64) (float64, error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return 0, fmt.Errorf("%w: entry price %v", ErrComputation, entry)
	}
	if exit <= 0 || math.IsNaN(exit) || math.IsInf(exit, 0) {
		return 0, fmt.Errorf("%w: exit price %v", ErrComputation, exit)
	}

	var profit float64
	switch d {
	case DirectionLong:
		profit = (exit/entry - 1) * 100
	case DirectionShort:
		profit = (entry/exit - 1) * 100
	default:
		return 0, fmt.Errorf("%w: direction %q", ErrComputation, d)
	}

	if math.IsNaN(profit) || math.IsInf(profit, 0) {
		return 0, fmt.Errorf("%w: non-finite result for entry=%v exit=%v", ErrComputation, entry, exit)
	}
	return profit, nil
}

// ValuationRow is one line of the open-position valuation report.
// CurrentPrice and ProfitPercent are nil when the row degraded; Note then
// carries the reason.
type ValuationRow struct {
	Ticker        string    `json:"ticker"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	ProfitPercent *float64  `json:"profit_percent,omitempty"`
	Note          string    `json:"note,omitempty"`
}

// Report is the full ordered valuation of all open positions at a point in
// time. Row order matches OpenPosition retrieval order.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Rows        []ValuationRow `json:"rows"`
}

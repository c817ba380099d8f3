package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Direction is the directional stance asserted by a signal or held by a
// position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ParseDirection normalizes a raw signal direction. The upstream generator
// sends "buy"/"sell" (case-insensitive); "long"/"short" are accepted as well.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "long":
		return DirectionLong, nil
	case "sell", "short":
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidSignal, raw)
	}
}

// Opposite returns the inverse direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Label returns the source vocabulary for the direction ("BUY"/"SELL").
func (d Direction) Label() string {
	if d == DirectionLong {
		return "BUY"
	}
	return "SELL"
}

// Signal is one inbound trading-signal event: a desired direction for a
// ticker at a price and point in time.
type Signal struct {
	Ticker    string
	Direction Direction
	Price     float64
	At        time.Time
}

// Validate checks the signal's shape before any storage access.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.Ticker) == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidSignal)
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return fmt.Errorf("%w: direction %q", ErrInvalidSignal, s.Direction)
	}
	if s.Price <= 0 || math.IsNaN(s.Price) || math.IsInf(s.Price, 0) {
		return fmt.Errorf("%w: price %v must be a positive finite number", ErrInvalidSignal, s.Price)
	}
	if s.At.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrInvalidSignal)
	}
	return nil
}

// LedgerOutcome describes what ProcessSignal did to the ledger.
type LedgerOutcome string

const (
	// OutcomeOpened means a new position was created for a flat ticker.
	OutcomeOpened LedgerOutcome = "opened"
	// OutcomeFlipped means the existing position was closed and a new one in
	// the opposite direction was opened in the same transaction.
	OutcomeFlipped LedgerOutcome = "flipped"
	// OutcomeHeld means a repeat signal in the current direction arrived and
	// the ledger was left untouched.
	OutcomeHeld LedgerOutcome = "held"
)

// SignalEvent is published after a ledger mutation for delivery to external
// channels (Telegram, WebSocket clients). Closed is non-nil on a flip.
type SignalEvent struct {
	Ticker    string          `json:"ticker"`
	Direction Direction       `json:"direction"`
	Price     float64         `json:"price"`
	At        time.Time       `json:"timestamp"`
	Outcome   LedgerOutcome   `json:"outcome"`
	Closed    *ClosedPosition `json:"closed,omitempty"`
}

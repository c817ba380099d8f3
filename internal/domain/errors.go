package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrent ledger modification")
	ErrInvalidSignal    = errors.New("invalid signal")
	ErrComputation      = errors.New("profit computation failed")
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

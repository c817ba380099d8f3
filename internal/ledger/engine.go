// Package ledger implements the position lifecycle engine: the transition
// rule that maps each inbound signal onto an open, hold, or flip of the
// per-ticker position, and the profit accounting performed at closure.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// publishTimeout bounds fire-and-forget event delivery after a mutation.
const publishTimeout = 10 * time.Second

// Engine applies the position transition rule. It holds no state between
// calls; the ledger store is the sole source of truth.
type Engine struct {
	store      domain.LedgerStore
	publishers []domain.EventPublisher
	logger     *slog.Logger
}

// New creates an Engine. Publishers receive an event after every Opened or
// Flipped outcome; their failures never affect the ledger mutation.
func New(store domain.LedgerStore, publishers []domain.EventPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		publishers: publishers,
		logger:     logger.With(slog.String("component", "ledger")),
	}
}

// ProcessSignal validates sig, applies the transition rule, and returns the
// resulting outcome:
//
//   - no open position for the ticker          -> open, OutcomeOpened
//   - open position in the same direction      -> no-op, OutcomeHeld
//   - open position in the opposite direction  -> close + reopen, OutcomeFlipped
//
// The flip is a single durable transaction; the position goes from one
// direction to the other with no flat state in between. On a storage
// conflict with a concurrent signal for the same ticker the transition is
// re-read and re-applied once before giving up.
func (e *Engine) ProcessSignal(ctx context.Context, sig domain.Signal) (domain.LedgerOutcome, error) {
	if err := sig.Validate(); err != nil {
		return "", err
	}

	outcome, closed, err := e.transition(ctx, sig)
	if errors.Is(err, domain.ErrConflict) {
		e.logger.WarnContext(ctx, "ledger conflict, retrying transition",
			slog.String("ticker", sig.Ticker),
		)
		outcome, closed, err = e.transition(ctx, sig)
	}
	if err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "signal processed",
		slog.String("ticker", sig.Ticker),
		slog.String("direction", string(sig.Direction)),
		slog.Float64("price", sig.Price),
		slog.String("outcome", string(outcome)),
	)

	if outcome != domain.OutcomeHeld {
		e.publish(ctx, domain.SignalEvent{
			Ticker:    sig.Ticker,
			Direction: sig.Direction,
			Price:     sig.Price,
			At:        sig.At,
			Outcome:   outcome,
			Closed:    closed,
		})
	}

	return outcome, nil
}

// transition performs one read-decide-write pass of the rule.
func (e *Engine) transition(ctx context.Context, sig domain.Signal) (domain.LedgerOutcome, *domain.ClosedPosition, error) {
	current, err := e.store.FindOpen(ctx, sig.Ticker)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		pos := newOpenPosition(sig)
		if err := e.store.Open(ctx, pos); err != nil {
			return "", nil, fmt.Errorf("ledger: open %s: %w", sig.Ticker, err)
		}
		return domain.OutcomeOpened, nil, nil

	case err != nil:
		return "", nil, fmt.Errorf("ledger: find open %s: %w", sig.Ticker, err)
	}

	if current.Direction == sig.Direction {
		// Repeat signal in the held direction: the position is kept as-is so
		// the one-open-position-per-ticker invariant always holds.
		return domain.OutcomeHeld, nil, nil
	}

	profit, err := domain.ProfitPercent(current.Direction, current.EntryPrice, sig.Price)
	if err != nil {
		return "", nil, fmt.Errorf("ledger: close %s: %w", sig.Ticker, err)
	}

	closed := domain.ClosedPosition{
		ID:            current.ID,
		Ticker:        current.Ticker,
		Direction:     current.Direction,
		EntryPrice:    current.EntryPrice,
		EntryTime:     current.EntryTime,
		ExitPrice:     sig.Price,
		ExitTime:      sig.At,
		ProfitPercent: profit,
	}
	next := newOpenPosition(sig)

	if err := e.store.Flip(ctx, closed, next); err != nil {
		return "", nil, fmt.Errorf("ledger: flip %s: %w", sig.Ticker, err)
	}
	return domain.OutcomeFlipped, &closed, nil
}

// publish delivers the event to all publishers on a detached context so that
// slow or failing channels never block or roll back the intake path.
func (e *Engine) publish(ctx context.Context, evt domain.SignalEvent) {
	if len(e.publishers) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	go func() {
		defer cancel()
		for _, p := range e.publishers {
			if err := p.Publish(pubCtx, evt); err != nil {
				e.logger.WarnContext(pubCtx, "event publish failed",
					slog.String("ticker", evt.Ticker),
					slog.String("outcome", string(evt.Outcome)),
					slog.String("error", err.Error()),
				)
			}
		}
	}()
}

func newOpenPosition(sig domain.Signal) domain.OpenPosition {
	return domain.OpenPosition{
		ID:         uuid.NewString(),
		Ticker:     sig.Ticker,
		Direction:  sig.Direction,
		EntryPrice: sig.Price,
		EntryTime:  sig.At,
	}
}

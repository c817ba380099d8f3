// Package notify delivers ledger events to external chat channels. Delivery
// is best-effort by contract: sender failures are logged and reported to the
// caller but must never reach back into the intake path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier formats signal events and dispatches them to chat senders. Index
// tickers (market indices such as XU100) are routed to a separate sender set
// so operators can keep index alerts in their own channel.
type Notifier struct {
	senders      []Sender
	indexSenders []Sender
	indexTickers []string
	events       map[string]bool // allowed outcome types; empty allows all
	logger       *slog.Logger
}

// NewNotifier creates a Notifier. Events whose outcome is not in events are
// filtered out; an empty events list allows everything. indexSenders may be
// empty, in which case index tickers fall back to the default senders.
func NewNotifier(senders, indexSenders []Sender, indexTickers, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders:      senders,
		indexSenders: indexSenders,
		indexTickers: indexTickers,
		events:       allowed,
		logger:       logger.With(slog.String("component", "notifier")),
	}
}

// Publish implements domain.EventPublisher: it formats the event and sends
// it to the sender set for the event's ticker.
func (n *Notifier) Publish(ctx context.Context, evt domain.SignalEvent) error {
	if len(n.events) > 0 && !n.events[string(evt.Outcome)] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("outcome", string(evt.Outcome)),
		)
		return nil
	}

	targets := n.senders
	if len(n.indexSenders) > 0 && n.isIndexTicker(evt.Ticker) {
		targets = n.indexSenders
	}
	if len(targets) == 0 {
		return nil
	}

	title, message := FormatSignalEvent(evt)

	var errs []string
	for _, s := range targets {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("ticker", evt.Ticker),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("ticker", evt.Ticker),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// isIndexTicker reports whether the ticker names one of the configured
// market indices. Matching is by containment, so derived symbols like
// "XU100D" still route to the index channel.
func (n *Notifier) isIndexTicker(ticker string) bool {
	upper := strings.ToUpper(ticker)
	for _, idx := range n.indexTickers {
		if idx != "" && strings.Contains(upper, strings.ToUpper(idx)) {
			return true
		}
	}
	return false
}

// Compile-time interface check.
var _ domain.EventPublisher = (*Notifier)(nil)

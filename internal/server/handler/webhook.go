package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// SignalProcessor defines the engine method the webhook handler requires.
type SignalProcessor interface {
	ProcessSignal(ctx context.Context, sig domain.Signal) (domain.LedgerOutcome, error)
}

// WebhookHandler receives inbound trading-signal payloads and hands them to
// the ledger engine.
type WebhookHandler struct {
	engine SignalProcessor
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler with the given engine and logger.
func NewWebhookHandler(engine SignalProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine: engine,
		logger: logger,
	}
}

// signalPayload is the inbound webhook body. The generator sends price as a
// numeric string and the timestamp in ISO-8601.
type signalPayload struct {
	Ticker    string     `json:"ticker"`
	Signal    string     `json:"signal"`
	Price     flexNumber `json:"price"`
	Timestamp string     `json:"timestamp"`
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexNumber(v)
	return nil
}

// HandleSignal parses and validates the webhook payload, runs it through the
// engine, and maps the result onto an HTTP status. The caller always gets a
// definitive success or failure; there is no silent partial state.
// POST /webhook
func (h *WebhookHandler) HandleSignal(w http.ResponseWriter, r *http.Request) {
	var payload signalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed signal payload: "+err.Error())
		return
	}

	sig, err := payload.toSignal()
	if err != nil {
		h.logger.WarnContext(r.Context(), "rejected signal payload",
			slog.String("ticker", payload.Ticker),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.engine.ProcessSignal(r.Context(), sig)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignal):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "concurrent signal for ticker, retry")
		default:
			h.logger.ErrorContext(r.Context(), "signal processing failed",
				slog.String("ticker", sig.Ticker),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "signal processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"outcome": string(outcome),
	})
}

func (p signalPayload) toSignal() (domain.Signal, error) {
	direction, err := domain.ParseDirection(p.Signal)
	if err != nil {
		return domain.Signal{}, err
	}

	at, err := time.Parse(time.RFC3339, strings.TrimSpace(p.Timestamp))
	if err != nil {
		return domain.Signal{}, fmt.Errorf("%w: timestamp %q: %v", domain.ErrInvalidSignal, p.Timestamp, err)
	}

	sig := domain.Signal{
		Ticker:    strings.TrimSpace(p.Ticker),
		Direction: direction,
		Price:     float64(p.Price),
		At:        at,
	}
	if err := sig.Validate(); err != nil {
		return domain.Signal{}, err
	}
	return sig, nil
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// LedgerReader defines the read-only store methods the position handler
// requires.
type LedgerReader interface {
	ListOpen(ctx context.Context) ([]domain.OpenPosition, error)
	ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.ClosedPosition, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	store  LedgerReader
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given store and logger.
func NewPositionHandler(store LedgerReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		store:  store,
		logger: logger,
	}
}

type listOpenResponse struct {
	Positions []domain.OpenPosition `json:"positions"`
}

type listClosedResponse struct {
	Positions []domain.ClosedPosition `json:"positions"`
}

// ListOpen returns all currently open positions.
// GET /api/positions/open
func (h *PositionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.ListOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list open positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list open positions")
		return
	}

	if positions == nil {
		positions = []domain.OpenPosition{}
	}
	writeJSON(w, http.StatusOK, listOpenResponse{Positions: positions})
}

// ListClosed returns closed-position history, newest first.
// GET /api/positions/closed?limit=50&offset=0
func (h *PositionHandler) ListClosed(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.ListClosed(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list closed positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list closed positions")
		return
	}

	if positions == nil {
		positions = []domain.ClosedPosition{}
	}
	writeJSON(w, http.StatusOK, listClosedResponse{Positions: positions})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// Valuator defines the reporter method the report handler requires.
type Valuator interface {
	Valuate(ctx context.Context) (domain.Report, error)
}

// ReportHandler serves the on-demand valuation report.
type ReportHandler struct {
	reporter Valuator
	logger   *slog.Logger
}

// NewReportHandler creates a ReportHandler with the given reporter and logger.
func NewReportHandler(reporter Valuator, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reporter: reporter,
		logger:   logger,
	}
}

// GetReport values all open positions against live quotes and returns the
// rows. Unresolvable quotes degrade individual rows, never the response.
// GET /api/report
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reporter.Valuate(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "valuation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	if rep.Rows == nil {
		rep.Rows = []domain.ValuationRow{}
	}
	writeJSON(w, http.StatusOK, rep)
}

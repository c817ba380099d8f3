package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerwatch/sigledger/internal/domain"
)

type fakeEngine struct {
	outcome domain.LedgerOutcome
	err     error
	got     domain.Signal
	calls   int
}

func (e *fakeEngine) ProcessSignal(_ context.Context, sig domain.Signal) (domain.LedgerOutcome, error) {
	e.calls++
	e.got = sig
	return e.outcome, e.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postSignal(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSignal(rec, req)
	return rec
}

func TestHandleSignal(t *testing.T) {
	t.Run("accepts a valid payload", func(t *testing.T) {
		engine := &fakeEngine{outcome: domain.OutcomeOpened}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "BUY",
			"price": "110.50",
			"timestamp": "2025-06-02T14:30:00Z"
		}`)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp["status"])
		assert.Equal(t, "opened", resp["outcome"])

		assert.Equal(t, "GARAN", engine.got.Ticker)
		assert.Equal(t, domain.DirectionLong, engine.got.Direction)
		assert.Equal(t, 110.5, engine.got.Price)
	})

	t.Run("accepts a numeric price too", func(t *testing.T) {
		engine := &fakeEngine{outcome: domain.OutcomeHeld}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{
			"ticker": "AKBNK",
			"signal": "sell",
			"price": 62.3,
			"timestamp": "2025-06-02T14:30:00Z"
		}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.DirectionShort, engine.got.Direction)
		assert.Equal(t, 62.3, engine.got.Price)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		engine := &fakeEngine{}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, engine.calls)
	})

	t.Run("rejects an unknown direction", func(t *testing.T) {
		engine := &fakeEngine{}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "hold",
			"price": "100",
			"timestamp": "2025-06-02T14:30:00Z"
		}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, engine.calls)
	})

	t.Run("rejects a non-numeric price", func(t *testing.T) {
		h := NewWebhookHandler(&fakeEngine{}, testLogger())
		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "BUY",
			"price": "abc",
			"timestamp": "2025-06-02T14:30:00Z"
		}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a bad timestamp", func(t *testing.T) {
		h := NewWebhookHandler(&fakeEngine{}, testLogger())
		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "BUY",
			"price": "100",
			"timestamp": "02-06-2025 14:30"
		}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps invalid signal errors to 400", func(t *testing.T) {
		engine := &fakeEngine{err: domain.ErrInvalidSignal}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "BUY",
			"price": "100",
			"timestamp": "2025-06-02T14:30:00Z"
		}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps conflicts to 409", func(t *testing.T) {
		engine := &fakeEngine{err: domain.ErrConflict}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "BUY",
			"price": "100",
			"timestamp": "2025-06-02T14:30:00Z"
		}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("maps storage failures to 500", func(t *testing.T) {
		engine := &fakeEngine{err: errors.New("db down")}
		h := NewWebhookHandler(engine, testLogger())

		rec := postSignal(t, h, `{
			"ticker": "GARAN",
			"signal": "BUY",
			"price": "100",
			"timestamp": "2025-06-02T14:30:00Z"
		}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

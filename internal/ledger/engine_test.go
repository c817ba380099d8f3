package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// fakeStore is an in-memory LedgerStore with per-call error injection.
type fakeStore struct {
	mu     sync.Mutex
	open   map[string]domain.OpenPosition
	closed []domain.ClosedPosition

	findErr error
	openErr error // consumed on first Open call
	flipErr error // consumed on first Flip call
}

func newFakeStore() *fakeStore {
	return &fakeStore{open: make(map[string]domain.OpenPosition)}
}

func (s *fakeStore) FindOpen(_ context.Context, ticker string) (domain.OpenPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return domain.OpenPosition{}, s.findErr
	}
	pos, ok := s.open[ticker]
	if !ok {
		return domain.OpenPosition{}, domain.ErrNotFound
	}
	return pos, nil
}

func (s *fakeStore) ListOpen(context.Context) ([]domain.OpenPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OpenPosition, 0, len(s.open))
	for _, pos := range s.open {
		out = append(out, pos)
	}
	return out, nil
}

func (s *fakeStore) ListClosed(context.Context, domain.ListOpts) ([]domain.ClosedPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ClosedPosition(nil), s.closed...), nil
}

func (s *fakeStore) Open(_ context.Context, pos domain.OpenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		err := s.openErr
		s.openErr = nil
		return err
	}
	if _, exists := s.open[pos.Ticker]; exists {
		return domain.ErrConflict
	}
	s.open[pos.Ticker] = pos
	return nil
}

func (s *fakeStore) Flip(_ context.Context, closed domain.ClosedPosition, next domain.OpenPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flipErr != nil {
		err := s.flipErr
		s.flipErr = nil
		return err
	}
	current, ok := s.open[closed.Ticker]
	if !ok || current.ID != closed.ID {
		return domain.ErrConflict
	}
	delete(s.open, closed.Ticker)
	s.closed = append(s.closed, closed)
	s.open[next.Ticker] = next
	return nil
}

// chanPublisher records published events on a channel.
type chanPublisher struct {
	events chan domain.SignalEvent
	err    error
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{events: make(chan domain.SignalEvent, 8)}
}

func (p *chanPublisher) Publish(_ context.Context, evt domain.SignalEvent) error {
	p.events <- evt
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSignal(ticker string, d domain.Direction, price float64) domain.Signal {
	return domain.Signal{
		Ticker:    ticker,
		Direction: d,
		Price:     price,
		At:        time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
	}
}

func waitEvent(t *testing.T, pub *chanPublisher) domain.SignalEvent {
	t.Helper()
	select {
	case evt := <-pub.events:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
		return domain.SignalEvent{}
	}
}

func TestProcessSignal(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a position for a flat ticker", func(t *testing.T) {
		store := newFakeStore()
		pub := newChanPublisher()
		engine := New(store, []domain.EventPublisher{pub}, discardLogger())

		outcome, err := engine.ProcessSignal(ctx, testSignal("THYAO", domain.DirectionLong, 300))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeOpened, outcome)

		pos, err := store.FindOpen(ctx, "THYAO")
		require.NoError(t, err)
		assert.Equal(t, domain.DirectionLong, pos.Direction)
		assert.Equal(t, 300.0, pos.EntryPrice)
		assert.NotEmpty(t, pos.ID)

		evt := waitEvent(t, pub)
		assert.Equal(t, domain.OutcomeOpened, evt.Outcome)
		assert.Nil(t, evt.Closed)
	})

	t.Run("holds on a repeat signal in the same direction", func(t *testing.T) {
		store := newFakeStore()
		pub := newChanPublisher()
		engine := New(store, []domain.EventPublisher{pub}, discardLogger())

		_, err := engine.ProcessSignal(ctx, testSignal("AKBNK", domain.DirectionShort, 60))
		require.NoError(t, err)
		<-pub.events

		before, _ := store.FindOpen(ctx, "AKBNK")
		outcome, err := engine.ProcessSignal(ctx, testSignal("AKBNK", domain.DirectionShort, 55))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeHeld, outcome)

		after, _ := store.FindOpen(ctx, "AKBNK")
		assert.Equal(t, before, after, "held position must be untouched")

		select {
		case evt := <-pub.events:
			t.Fatalf("held outcome must not publish, got %v", evt.Outcome)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("flips on an opposite signal and realizes profit", func(t *testing.T) {
		store := newFakeStore()
		pub := newChanPublisher()
		engine := New(store, []domain.EventPublisher{pub}, discardLogger())

		_, err := engine.ProcessSignal(ctx, testSignal("GARAN", domain.DirectionLong, 100))
		require.NoError(t, err)
		<-pub.events

		outcome, err := engine.ProcessSignal(ctx, testSignal("GARAN", domain.DirectionShort, 110))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFlipped, outcome)

		closed, err := store.ListClosed(ctx, domain.ListOpts{})
		require.NoError(t, err)
		require.Len(t, closed, 1)
		assert.Equal(t, domain.DirectionLong, closed[0].Direction)
		assert.InDelta(t, 10.0, closed[0].ProfitPercent, 1e-9)

		next, err := store.FindOpen(ctx, "GARAN")
		require.NoError(t, err)
		assert.Equal(t, domain.DirectionShort, next.Direction)
		assert.Equal(t, 110.0, next.EntryPrice)
		assert.NotEqual(t, closed[0].ID, next.ID, "reopened position gets a fresh identity")

		evt := waitEvent(t, pub)
		assert.Equal(t, domain.OutcomeFlipped, evt.Outcome)
		require.NotNil(t, evt.Closed)
		assert.InDelta(t, 10.0, evt.Closed.ProfitPercent, 1e-9)
	})

	t.Run("rejects an invalid signal before touching storage", func(t *testing.T) {
		store := newFakeStore()
		store.findErr = errors.New("store must not be reached")
		engine := New(store, nil, discardLogger())

		_, err := engine.ProcessSignal(ctx, testSignal("", domain.DirectionLong, 100))
		assert.ErrorIs(t, err, domain.ErrInvalidSignal)
	})

	t.Run("retries once on a storage conflict", func(t *testing.T) {
		store := newFakeStore()
		store.openErr = domain.ErrConflict
		engine := New(store, nil, discardLogger())

		outcome, err := engine.ProcessSignal(ctx, testSignal("SASA", domain.DirectionLong, 40))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeOpened, outcome)
	})

	t.Run("gives up after a second conflict", func(t *testing.T) {
		store := newFakeStore()
		store.findErr = domain.ErrConflict
		engine := New(store, nil, discardLogger())

		_, err := engine.ProcessSignal(ctx, testSignal("SASA", domain.DirectionLong, 40))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("propagates storage failures", func(t *testing.T) {
		store := newFakeStore()
		boom := errors.New("connection reset")
		store.findErr = boom
		engine := New(store, nil, discardLogger())

		_, err := engine.ProcessSignal(ctx, testSignal("EREGL", domain.DirectionLong, 50))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("publisher failure never fails the intake", func(t *testing.T) {
		store := newFakeStore()
		pub := newChanPublisher()
		pub.err = errors.New("chat is down")
		engine := New(store, []domain.EventPublisher{pub}, discardLogger())

		outcome, err := engine.ProcessSignal(ctx, testSignal("BIMAS", domain.DirectionLong, 500))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeOpened, outcome)
		waitEvent(t, pub)
	})

	t.Run("long then short round trip realizes the long gain", func(t *testing.T) {
		store := newFakeStore()
		engine := New(store, nil, discardLogger())

		_, err := engine.ProcessSignal(ctx, testSignal("TUPRS", domain.DirectionLong, 100))
		require.NoError(t, err)
		outcome, err := engine.ProcessSignal(ctx, testSignal("TUPRS", domain.DirectionShort, 110))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFlipped, outcome)

		closed, _ := store.ListClosed(ctx, domain.ListOpts{})
		require.Len(t, closed, 1)
		assert.InDelta(t, 10.0, closed[0].ProfitPercent, 1e-9)
	})
}

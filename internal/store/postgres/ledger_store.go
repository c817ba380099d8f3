package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tickerwatch/sigledger/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// LedgerStore implements domain.LedgerStore using PostgreSQL. The UNIQUE
// constraint on open_positions.ticker and the row-count guard inside Flip
// are what serialize concurrent signals for the same ticker.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const openSelectCols = `id, ticker, direction, entry_price, entry_time`

func scanOpenRow(row pgx.Row) (domain.OpenPosition, error) {
	var p domain.OpenPosition
	var direction string
	if err := row.Scan(&p.ID, &p.Ticker, &direction, &p.EntryPrice, &p.EntryTime); err != nil {
		return domain.OpenPosition{}, err
	}
	p.Direction = domain.Direction(direction)
	return p, nil
}

// FindOpen returns the open position for ticker, or domain.ErrNotFound.
func (s *LedgerStore) FindOpen(ctx context.Context, ticker string) (domain.OpenPosition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+openSelectCols+` FROM open_positions WHERE ticker = $1`, ticker)

	p, err := scanOpenRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OpenPosition{}, domain.ErrNotFound
		}
		return domain.OpenPosition{}, fmt.Errorf("postgres: find open %s: %w", ticker, err)
	}
	return p, nil
}

// ListOpen returns all open positions ordered by entry time.
func (s *LedgerStore) ListOpen(ctx context.Context) ([]domain.OpenPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+openSelectCols+` FROM open_positions ORDER BY entry_time, ticker`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.OpenPosition
	for rows.Next() {
		var p domain.OpenPosition
		var direction string
		if err := rows.Scan(&p.ID, &p.Ticker, &direction, &p.EntryPrice, &p.EntryTime); err != nil {
			return nil, fmt.Errorf("postgres: scan open position: %w", err)
		}
		p.Direction = domain.Direction(direction)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	return positions, nil
}

// ListClosed returns closed-position history, newest first.
func (s *LedgerStore) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.ClosedPosition, error) {
	query := `SELECT id, ticker, direction, entry_price, entry_time,
		exit_price, exit_time, profit_percent
		FROM closed_positions ORDER BY exit_time DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.ClosedPosition
	for rows.Next() {
		var p domain.ClosedPosition
		var direction string
		if err := rows.Scan(
			&p.ID, &p.Ticker, &direction, &p.EntryPrice, &p.EntryTime,
			&p.ExitPrice, &p.ExitTime, &p.ProfitPercent,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan closed position: %w", err)
		}
		p.Direction = domain.Direction(direction)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	return positions, nil
}

// Open inserts a new open position. A duplicate ticker maps to
// domain.ErrConflict so the engine can re-read and re-apply the rule.
func (s *LedgerStore) Open(ctx context.Context, pos domain.OpenPosition) error {
	const query = `
		INSERT INTO open_positions (id, ticker, direction, entry_price, entry_time)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		pos.ID, pos.Ticker, string(pos.Direction), pos.EntryPrice, pos.EntryTime)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: open position %s: %w", pos.Ticker, err)
	}
	return nil
}

// Flip atomically records the closure and re-opens in the opposite
// direction. Either all three writes commit or none do.
func (s *LedgerStore) Flip(ctx context.Context, closed domain.ClosedPosition, next domain.OpenPosition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin flip %s: %w", closed.Ticker, err)
	}
	defer tx.Rollback(ctx)

	const insertClosed = `
		INSERT INTO closed_positions (
			id, ticker, direction, entry_price, entry_time,
			exit_price, exit_time, profit_percent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := tx.Exec(ctx, insertClosed,
		closed.ID, closed.Ticker, string(closed.Direction),
		closed.EntryPrice, closed.EntryTime,
		closed.ExitPrice, closed.ExitTime, closed.ProfitPercent,
	); err != nil {
		return fmt.Errorf("postgres: append closed %s: %w", closed.Ticker, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM open_positions WHERE id = $1`, closed.ID)
	if err != nil {
		return fmt.Errorf("postgres: delete open %s: %w", closed.Ticker, err)
	}
	if tag.RowsAffected() == 0 {
		// The position we read was flipped away by a concurrent signal.
		return domain.ErrConflict
	}

	const insertOpen = `
		INSERT INTO open_positions (id, ticker, direction, entry_price, entry_time)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, insertOpen,
		next.ID, next.Ticker, string(next.Direction), next.EntryPrice, next.EntryTime,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: reopen %s: %w", next.Ticker, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit flip %s: %w", closed.Ticker, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)

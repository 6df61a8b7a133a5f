package trades

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"traderoom/internal/model"
	"traderoom/internal/types"
)

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

const tradeColumns = "id, user_id, symbol, side, status, lots, open_price, close_price, leverage, margin_amount, pnl, opened_at, closed_at"

func (s *Store) CreateTrade(ctx context.Context, tx pgx.Tx, t model.Trade) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		"insert into trades (user_id, symbol, side, status, lots, open_price, leverage, margin_amount, opened_at) values ($1,$2,$3,$4,$5,$6,$7,$8,$9) returning id",
		t.UserID, t.Symbol, string(t.Side), string(t.Status), t.Lots, t.OpenPrice, t.Leverage, t.MarginAmount, t.OpenedAt,
	).Scan(&id)
	return id, err
}

func (s *Store) GetTradeForUpdate(ctx context.Context, tx pgx.Tx, tradeID string) (model.Trade, error) {
	row := tx.QueryRow(ctx, "select "+tradeColumns+" from trades where id = $1 for update", tradeID)
	return scanTrade(row)
}

func (s *Store) ListOpenByUser(ctx context.Context, pool *pgxpool.Pool, userID string) ([]model.Trade, error) {
	rows, err := pool.Query(ctx, "select "+tradeColumns+" from trades where user_id = $1 and status = 'open' order by opened_at asc, id asc", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *Store) ListHistoryByUser(ctx context.Context, pool *pgxpool.Pool, userID string, before *time.Time, limit int) ([]model.Trade, error) {
	rows, err := pool.Query(ctx,
		"select "+tradeColumns+" from trades where user_id = $1 and status = 'closed' and ($2::timestamptz is null or closed_at < $2) order by closed_at desc, id desc limit $3",
		userID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *Store) MarkClosed(ctx context.Context, tx pgx.Tx, tradeID string, closePrice, pnl decimal.Decimal, closedAt time.Time) error {
	_, err := tx.Exec(ctx,
		"update trades set status = 'closed', close_price = $1, pnl = $2, closed_at = $3, updated_at = $4 where id = $5",
		closePrice, pnl, closedAt, time.Now().UTC(), tradeID)
	return err
}

func (s *Store) CountOpenByUser(ctx context.Context, pool *pgxpool.Pool, userID string) (int, error) {
	var n int
	err := pool.QueryRow(ctx, "select count(*) from trades where user_id = $1 and status = 'open'", userID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (model.Trade, error) {
	var t model.Trade
	var side, status string
	err := row.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &status, &t.Lots, &t.OpenPrice, &t.ClosePrice, &t.Leverage, &t.MarginAmount, &t.PnL, &t.OpenedAt, &t.ClosedAt)
	if err != nil {
		return t, err
	}
	t.Side = types.TradeSide(side)
	t.Status = types.TradeStatus(status)
	return t, nil
}

func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	var out []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

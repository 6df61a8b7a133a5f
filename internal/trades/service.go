package trades

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"traderoom/internal/ledger"
	"traderoom/internal/marketdata"
	"traderoom/internal/model"
	"traderoom/internal/positions"
	"traderoom/internal/types"
	"traderoom/internal/valuation"
)

type Service struct {
	pool   *pgxpool.Pool
	store  *Store
	ledger *ledger.Service
	feed   *marketdata.Feed
}

func NewService(pool *pgxpool.Pool, store *Store, ledgerSvc *ledger.Service, feed *marketdata.Feed) *Service {
	return &Service{pool: pool, store: store, ledger: ledgerSvc, feed: feed}
}

type OpenPositionRequest struct {
	UserID   string
	Symbol   string
	Side     types.TradeSide
	Lots     decimal.Decimal
	Leverage int64
}

type OpenPositionResult struct {
	TradeID      string          `json:"trade_id"`
	OpenPrice    decimal.Decimal `json:"open_price"`
	MarginAmount decimal.Decimal `json:"margin_amount"`
}

type ClosePositionResult struct {
	TradeID       string          `json:"trade_id"`
	ClosePrice    decimal.Decimal `json:"close_price"`
	PnL           decimal.Decimal `json:"pnl"`
	AlreadyClosed bool            `json:"already_closed,omitempty"`
}

type CloseScopeResult struct {
	Scope  string `json:"scope"`
	Total  int    `json:"total"`
	Closed int    `json:"closed"`
	Failed int    `json:"failed"`
}

var (
	ErrUnknownSymbol = errors.New("symbol not supported")
	ErrNoQuote       = errors.New("no market quote for symbol")
	ErrNotYourTrade  = errors.New("trade does not belong to user")
)

// OpenPosition validates the ticket, reserves the required margin and
// records the trade, all inside one serializable transaction. The entry
// price is the current ask for buys and bid for sells.
func (s *Service) OpenPosition(ctx context.Context, req OpenPositionRequest) (OpenPositionResult, error) {
	if req.UserID == "" {
		return OpenPositionResult{}, errors.New("missing user")
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return OpenPositionResult{}, errors.New("symbol is required")
	}
	if req.Side != types.TradeSideBuy && req.Side != types.TradeSideSell {
		return OpenPositionResult{}, errors.New("invalid side")
	}
	if req.Lots.LessThanOrEqual(decimal.Zero) {
		return OpenPositionResult{}, errors.New("lots must be positive")
	}
	if req.Leverage <= 0 {
		return OpenPositionResult{}, errors.New("leverage must be positive")
	}

	riskCfg, err := s.GetRiskConfig(ctx)
	if err != nil {
		return OpenPositionResult{}, fmt.Errorf("failed to load risk config: %w", err)
	}
	if req.Lots.LessThan(riskCfg.MinOrderLots) {
		return OpenPositionResult{}, fmt.Errorf("min lots per order is %s", riskCfg.MinOrderLots.String())
	}
	if req.Lots.GreaterThan(riskCfg.MaxOrderLots) {
		return OpenPositionResult{}, fmt.Errorf("max lots per order is %s", riskCfg.MaxOrderLots.String())
	}
	if req.Leverage > riskCfg.MaxLeverage {
		return OpenPositionResult{}, fmt.Errorf("max leverage is %d", riskCfg.MaxLeverage)
	}

	quote, ok := s.feed.Quote(symbol)
	if !ok {
		return OpenPositionResult{}, ErrNoQuote
	}
	entryPrice := quote.Ask
	if req.Side == types.TradeSideSell {
		entryPrice = quote.Bid
	}

	notional := valuation.Notional(symbol, entryPrice, req.Lots)
	if riskCfg.MaxOrderNotionalUSD.GreaterThan(decimal.Zero) && notional.GreaterThan(riskCfg.MaxOrderNotionalUSD) {
		return OpenPositionResult{}, fmt.Errorf("max notional per order is %s USD", riskCfg.MaxOrderNotionalUSD.String())
	}
	requiredMargin := valuation.RequiredMargin(symbol, entryPrice, req.Lots, req.Leverage)
	if requiredMargin.LessThanOrEqual(decimal.Zero) {
		return OpenPositionResult{}, errors.New("invalid order size")
	}

	openCount, err := s.store.CountOpenByUser(ctx, s.pool, req.UserID)
	if err != nil {
		return OpenPositionResult{}, err
	}
	if openCount >= riskCfg.MaxOpenPositions {
		return OpenPositionResult{}, fmt.Errorf("max open positions reached (%d)", riskCfg.MaxOpenPositions)
	}

	metrics, err := s.AccountMetrics(ctx, req.UserID)
	if err != nil {
		return OpenPositionResult{}, fmt.Errorf("failed to evaluate margin risk: %w", err)
	}
	if metrics.Margin.GreaterThan(decimal.Zero) {
		if metrics.MarginLevel.LessThanOrEqual(riskCfg.StopOutLevelPercent) {
			return OpenPositionResult{}, errors.New("stop out active: margin level is too low, reduce exposure first")
		}
		if metrics.MarginLevel.LessThanOrEqual(riskCfg.MarginCallLevelPercent) {
			return OpenPositionResult{}, errors.New("margin call: opening new positions is disabled until margin level recovers")
		}
	}
	if requiredMargin.GreaterThan(metrics.FreeMargin) {
		return OpenPositionResult{}, errors.New("insufficient free margin for this order size")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return OpenPositionResult{}, err
	}
	defer tx.Rollback(ctx)

	if err := s.ledger.ReserveMargin(ctx, tx, req.UserID, requiredMargin, "open_position"); err != nil {
		return OpenPositionResult{}, err
	}
	trade := model.Trade{
		UserID:       req.UserID,
		Symbol:       symbol,
		Side:         req.Side,
		Status:       types.TradeStatusOpen,
		Lots:         req.Lots,
		OpenPrice:    entryPrice,
		Leverage:     req.Leverage,
		MarginAmount: requiredMargin,
		OpenedAt:     time.Now().UTC(),
	}
	tradeID, err := s.store.CreateTrade(ctx, tx, trade)
	if err != nil {
		return OpenPositionResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return OpenPositionResult{}, err
	}
	return OpenPositionResult{TradeID: tradeID, OpenPrice: entryPrice, MarginAmount: requiredMargin}, nil
}

// ClosePosition settles one open trade at the current market price: buys
// close at bid, sells at ask. The reserved margin is released, the realized
// result is booked against the system book, and the trade is marked closed
// with its final price and pnl. Closing an already-closed trade reports the
// recorded result instead of failing, so retried requests are harmless.
func (s *Service) ClosePosition(ctx context.Context, userID, tradeID string) (ClosePositionResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return ClosePositionResult{}, err
	}
	defer tx.Rollback(ctx)

	trade, err := s.store.GetTradeForUpdate(ctx, tx, tradeID)
	if err != nil {
		return ClosePositionResult{}, fmt.Errorf("trade not found: %w", err)
	}
	if trade.UserID != userID {
		return ClosePositionResult{}, ErrNotYourTrade
	}
	if trade.Status == types.TradeStatusClosed {
		res := ClosePositionResult{TradeID: trade.ID, AlreadyClosed: true}
		if trade.ClosePrice != nil {
			res.ClosePrice = *trade.ClosePrice
		}
		if trade.PnL != nil {
			res.PnL = *trade.PnL
		}
		return res, nil
	}
	if trade.Status != types.TradeStatusOpen {
		return ClosePositionResult{}, errors.New("only open positions can be closed")
	}

	quote, ok := s.feed.Quote(trade.Symbol)
	if !ok {
		return ClosePositionResult{}, ErrNoQuote
	}
	exitPrice := quote.Bid
	if trade.Side == types.TradeSideSell {
		exitPrice = quote.Ask
	}
	pnl := valuation.UnrealizedPnL(trade.Symbol, trade.Side, trade.OpenPrice, exitPrice, trade.Lots)

	if err := s.ledger.ReleaseMargin(ctx, tx, trade.UserID, trade.MarginAmount, "close_position"); err != nil {
		return ClosePositionResult{}, err
	}
	settle := pnl
	if pnl.LessThan(decimal.Zero) {
		// Negative balance protection: losses never take the available
		// balance below zero.
		available, err := s.ledger.EnsureAccount(ctx, tx, trade.UserID, types.AccountKindAvailable)
		if err != nil {
			return ClosePositionResult{}, err
		}
		balance, err := s.ledger.GetBalance(ctx, tx, available)
		if err != nil {
			return ClosePositionResult{}, err
		}
		if pnl.Neg().GreaterThan(balance) {
			settle = balance.Neg()
		}
	}
	if err := s.ledger.SettlePnL(ctx, tx, trade.UserID, settle, "close_position"); err != nil {
		return ClosePositionResult{}, err
	}
	closedAt := time.Now().UTC()
	if err := s.store.MarkClosed(ctx, tx, trade.ID, exitPrice, pnl, closedAt); err != nil {
		return ClosePositionResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ClosePositionResult{}, err
	}
	return ClosePositionResult{TradeID: trade.ID, ClosePrice: exitPrice, PnL: pnl}, nil
}

// CloseByScope bulk-closes the user's open positions: all of them, only the
// ones currently in profit, or only the ones in loss. Each close runs in its
// own transaction; one failure does not stop the rest.
func (s *Service) CloseByScope(ctx context.Context, userID, scope string) (CloseScopeResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(scope))
	if normalized == "" {
		normalized = "all"
	}
	if normalized != "all" && normalized != "profit" && normalized != "loss" {
		return CloseScopeResult{}, errors.New("invalid close scope; allowed: all, profit, loss")
	}

	open, err := s.store.ListOpenByUser(ctx, s.pool, userID)
	if err != nil {
		return CloseScopeResult{}, err
	}
	prices := s.feed.Snapshot()
	groups := positions.Aggregate(open, prices)

	var selected []string
	for _, g := range groups {
		for _, m := range g.Trades {
			switch normalized {
			case "all":
				selected = append(selected, m.Trade.ID)
			case "profit":
				if m.UnrealizedPnL.GreaterThan(decimal.Zero) {
					selected = append(selected, m.Trade.ID)
				}
			case "loss":
				if m.UnrealizedPnL.LessThan(decimal.Zero) {
					selected = append(selected, m.Trade.ID)
				}
			}
		}
	}

	res := CloseScopeResult{Scope: normalized, Total: len(selected)}
	for _, id := range selected {
		if _, err := s.ClosePosition(ctx, userID, id); err != nil {
			res.Failed++
			continue
		}
		res.Closed++
	}
	return res, nil
}

// ListPositions returns the user's open exposure aggregated by symbol and
// side, marked against the latest quotes.
func (s *Service) ListPositions(ctx context.Context, userID string) ([]positions.Group, error) {
	open, err := s.store.ListOpenByUser(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}
	return positions.Aggregate(open, s.feed.Snapshot()), nil
}

// ListHistory pages through closed trades, newest first.
func (s *Service) ListHistory(ctx context.Context, userID string, before *time.Time, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.store.ListHistoryByUser(ctx, s.pool, userID, before, limit)
}

type AccountMetrics struct {
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
	Margin      decimal.Decimal `json:"margin"`
	FreeMargin  decimal.Decimal `json:"free_margin"`
	MarginLevel decimal.Decimal `json:"margin_level"`
	PnL         decimal.Decimal `json:"pnl"`
}

// AccountMetrics computes the standard account health numbers: balance is
// available plus reserved funds, equity adds floating pnl, margin level is
// equity over margin in percent (zero with no margin in use).
func (s *Service) AccountMetrics(ctx context.Context, userID string) (AccountMetrics, error) {
	available, err := s.ledger.BalanceByKind(ctx, userID, types.AccountKindAvailable)
	if err != nil {
		return AccountMetrics{}, err
	}
	reserved, err := s.ledger.BalanceByKind(ctx, userID, types.AccountKindReserved)
	if err != nil {
		return AccountMetrics{}, err
	}
	open, err := s.store.ListOpenByUser(ctx, s.pool, userID)
	if err != nil {
		return AccountMetrics{}, err
	}
	groups := positions.Aggregate(open, s.feed.Snapshot())
	floating := positions.TotalUnrealizedPnL(groups)
	return buildMetrics(available, reserved, floating), nil
}

// EnforceStopOut closes losing positions worst-first while the margin level
// sits at or below the stop-out threshold. It returns how many positions
// were liquidated.
func (s *Service) EnforceStopOut(ctx context.Context, userID string) (int, error) {
	riskCfg, err := s.GetRiskConfig(ctx)
	if err != nil {
		return 0, err
	}
	metrics, err := s.AccountMetrics(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !metrics.Margin.GreaterThan(decimal.Zero) || metrics.MarginLevel.GreaterThan(riskCfg.StopOutLevelPercent) {
		return 0, nil
	}

	open, err := s.store.ListOpenByUser(ctx, s.pool, userID)
	if err != nil {
		return 0, err
	}
	groups := positions.Aggregate(open, s.feed.Snapshot())
	var marks []positions.Mark
	for _, g := range groups {
		for _, m := range g.Trades {
			if m.UnrealizedPnL.LessThan(decimal.Zero) {
				marks = append(marks, m)
			}
		}
	}
	sort.Slice(marks, func(i, j int) bool {
		return marks[i].UnrealizedPnL.LessThan(marks[j].UnrealizedPnL)
	})

	closed := 0
	for _, m := range marks {
		if _, err := s.ClosePosition(ctx, userID, m.Trade.ID); err != nil {
			continue
		}
		closed++
		metrics, err = s.AccountMetrics(ctx, userID)
		if err != nil {
			return closed, err
		}
		if !metrics.Margin.GreaterThan(decimal.Zero) || metrics.MarginLevel.GreaterThan(riskCfg.StopOutLevelPercent) {
			return closed, nil
		}
	}
	return closed, nil
}

type RiskConfig struct {
	MaxOpenPositions       int             `json:"max_open_positions"`
	MinOrderLots           decimal.Decimal `json:"min_order_lots"`
	MaxOrderLots           decimal.Decimal `json:"max_order_lots"`
	MaxOrderNotionalUSD    decimal.Decimal `json:"max_order_notional_usd"`
	MaxLeverage            int64           `json:"max_leverage"`
	MarginCallLevelPercent decimal.Decimal `json:"margin_call_level_pct"`
	StopOutLevelPercent    decimal.Decimal `json:"stop_out_level_pct"`
}

var defaultRiskConfig = RiskConfig{
	MaxOpenPositions:       200,
	MinOrderLots:           decimal.NewFromFloat(0.01),
	MaxOrderLots:           decimal.NewFromInt(100),
	MaxOrderNotionalUSD:    decimal.NewFromInt(5000000),
	MaxLeverage:            3000,
	MarginCallLevelPercent: decimal.NewFromInt(60),
	StopOutLevelPercent:    decimal.NewFromInt(20),
}

// GetRiskConfig loads the risk limits row, falling back to defaults when the
// table is empty or a field is unset.
func (s *Service) GetRiskConfig(ctx context.Context) (RiskConfig, error) {
	cfg := defaultRiskConfig
	var (
		maxOpen     int
		minLots     string
		maxLots     string
		maxNotional string
		maxLev      int64
		marginCall  string
		stopOut     string
	)
	err := s.pool.QueryRow(ctx,
		"select max_open_positions, min_order_lots, max_order_lots, max_order_notional_usd, max_leverage, margin_call_level_pct, stop_out_level_pct from trading_risk_config where id = 1",
	).Scan(&maxOpen, &minLots, &maxLots, &maxNotional, &maxLev, &marginCall, &stopOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cfg, nil
		}
		return cfg, err
	}
	if maxOpen > 0 {
		cfg.MaxOpenPositions = maxOpen
	}
	if maxLev > 0 {
		cfg.MaxLeverage = maxLev
	}
	if v, ok := parseRiskDecimal(minLots); ok {
		cfg.MinOrderLots = v
	}
	if v, ok := parseRiskDecimal(maxLots); ok {
		cfg.MaxOrderLots = v
	}
	if v, ok := parseRiskDecimal(maxNotional); ok {
		cfg.MaxOrderNotionalUSD = v
	}
	if v, ok := parseRiskDecimal(marginCall); ok {
		cfg.MarginCallLevelPercent = v
	}
	if v, ok := parseRiskDecimal(stopOut); ok {
		cfg.StopOutLevelPercent = v
	}
	return cfg, nil
}

// UpdateRiskConfig upserts the single risk limits row (admin console).
func (s *Service) UpdateRiskConfig(ctx context.Context, cfg RiskConfig) error {
	if cfg.MaxOpenPositions <= 0 || cfg.MaxLeverage <= 0 {
		return errors.New("max_open_positions and max_leverage must be positive")
	}
	if cfg.MinOrderLots.LessThanOrEqual(decimal.Zero) || cfg.MaxOrderLots.LessThan(cfg.MinOrderLots) {
		return errors.New("invalid lot limits")
	}
	if cfg.StopOutLevelPercent.LessThanOrEqual(decimal.Zero) || cfg.MarginCallLevelPercent.LessThan(cfg.StopOutLevelPercent) {
		return errors.New("margin call level must be at or above stop out level")
	}
	_, err := s.pool.Exec(ctx, `
		insert into trading_risk_config (id, max_open_positions, min_order_lots, max_order_lots, max_order_notional_usd, max_leverage, margin_call_level_pct, stop_out_level_pct, updated_at)
		values (1, $1, $2, $3, $4, $5, $6, $7, $8)
		on conflict (id) do update set
			max_open_positions = excluded.max_open_positions,
			min_order_lots = excluded.min_order_lots,
			max_order_lots = excluded.max_order_lots,
			max_order_notional_usd = excluded.max_order_notional_usd,
			max_leverage = excluded.max_leverage,
			margin_call_level_pct = excluded.margin_call_level_pct,
			stop_out_level_pct = excluded.stop_out_level_pct,
			updated_at = excluded.updated_at`,
		cfg.MaxOpenPositions, cfg.MinOrderLots, cfg.MaxOrderLots, cfg.MaxOrderNotionalUSD, cfg.MaxLeverage,
		cfg.MarginCallLevelPercent, cfg.StopOutLevelPercent, time.Now().UTC())
	return err
}

func buildMetrics(available, reserved, floating decimal.Decimal) AccountMetrics {
	balance := available.Add(reserved)
	equity := balance.Add(floating)
	margin := reserved
	freeMargin := equity.Sub(margin)
	var marginLevel decimal.Decimal
	if margin.GreaterThan(decimal.Zero) {
		marginLevel = equity.Div(margin).Mul(decimal.NewFromInt(100))
	}
	return AccountMetrics{
		Balance:     balance,
		Equity:      equity,
		Margin:      margin,
		FreeMargin:  freeMargin,
		MarginLevel: marginLevel,
		PnL:         floating,
	}
}

func parseRiskDecimal(raw string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.GreaterThan(decimal.Zero) {
		return decimal.Zero, false
	}
	return v, true
}

// Package backtest replays a strategy over a historical daily series,
// simulating fills against capital and position, and aggregates the
// performance statistics of the run.
package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"autotrader/internal/broker"
	"autotrader/internal/logging"
	"autotrader/internal/strategy"
	"autotrader/internal/types"
)

var btLog = logging.New("backtest")

// Engine runs one backtest per Run call. Runs are single-threaded and
// deterministic; independent engines may run in parallel as they share no
// state.
type Engine struct {
	history  broker.HistoricalPriceProvider
	executor broker.OrderExecutor
	cfg      Config
}

func NewEngine(history broker.HistoricalPriceProvider, cfg Config) *Engine {
	return &Engine{
		history:  history,
		executor: broker.NewSimulatedExecutor(),
		cfg:      cfg.WithDefaults(),
	}
}

// Run executes the configured backtest. Callers receive either a finalized
// Result or an error, never a partial result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	kind, err := strategy.ParseKind(e.cfg.Strategy)
	if err != nil {
		return nil, err
	}

	bars, synthetic, err := e.loadSeries(ctx)
	if err != nil {
		return nil, err
	}

	btLog.Info("starting backtest",
		"symbol", e.cfg.Symbol,
		"strategy", e.cfg.Strategy,
		"bars", len(bars),
		"initial_capital", e.cfg.InitialCapital,
		"synthetic", synthetic,
	)

	portfolio := newPortfolio(e.cfg.InitialCapital, bars[0].Timestamp)
	result := &Result{
		Symbol:         e.cfg.Symbol,
		Strategy:       e.cfg.Strategy,
		Synthetic:      synthetic,
		InitialCapital: e.cfg.InitialCapital,
		Trades:         []TradeRecord{},
		Snapshots:      make([]Snapshot, 0, len(bars)),
	}

	for i, bar := range bars {
		// Insufficient indicator history degrades the day to HOLD.
		signal := kind.Evaluate(bars[:i+1], e.cfg.Params)

		switch signal {
		case types.BUY:
			if record, ok := e.tryBuy(ctx, portfolio, bar); ok {
				result.Trades = append(result.Trades, record)
			}
		case types.SELL:
			if record, ok := e.trySell(ctx, portfolio, bar); ok {
				result.Trades = append(result.Trades, record)
			}
		}

		result.Snapshots = append(result.Snapshots, portfolio.mark(bar.Timestamp, bar.Close))
	}

	result.finalize(portfolio, bars)
	btLog.Info("backtest finished",
		"symbol", e.cfg.Symbol,
		"trades", len(result.Trades),
		"final_capital", result.FinalCapital,
		"return_pct", result.Metrics.TotalReturnPercent,
	)
	return result, nil
}

// loadSeries fetches the historical series, degrading to a deterministic
// synthetic walk when the provider fails or returns nothing. The returned
// flag tells the caller the fallback occurred.
func (e *Engine) loadSeries(ctx context.Context) ([]types.Bar, bool, error) {
	bars, err := e.history.GetDailySeries(ctx, e.cfg.Symbol, e.cfg.Start, e.cfg.End)
	if err != nil || len(bars) == 0 {
		if err != nil {
			btLog.Warn("historical series unavailable, falling back to synthetic data", "symbol", e.cfg.Symbol, "error", err)
		} else {
			btLog.Warn("historical series empty, falling back to synthetic data", "symbol", e.cfg.Symbol)
		}
		bars = SyntheticSeries(e.cfg.Symbol, e.cfg.Start, e.cfg.End)
		if len(bars) == 0 {
			return nil, false, fmt.Errorf("no trading days between %s and %s", e.cfg.Start.Format("2006-01-02"), e.cfg.End.Format("2006-01-02"))
		}
		return bars, true, nil
	}
	return bars, false, nil
}

// tryBuy opens a position when flat. Size is the affordable share count for
// the configured capital fraction; the buy is skipped when the size is zero
// or cash cannot cover cost plus commission.
func (e *Engine) tryBuy(ctx context.Context, p *Portfolio, bar types.Bar) (TradeRecord, bool) {
	if p.Position != 0 || bar.Close <= 0 {
		return TradeRecord{}, false
	}

	quantity := int64(math.Floor(p.Cash * e.cfg.MaxPositionSize / bar.Close))
	if quantity <= 0 {
		return TradeRecord{}, false
	}

	amount := float64(quantity) * bar.Close
	commission := amount * e.cfg.CommissionRate
	if amount+commission > p.Cash {
		btLog.Debug("buy skipped, cost exceeds cash", "date", bar.Timestamp, "amount", amount, "commission", commission, "cash", p.Cash)
		return TradeRecord{}, false
	}

	if _, err := e.executor.Submit(ctx, broker.Order{
		Symbol:    e.cfg.Symbol,
		Side:      broker.SideBuy,
		Quantity:  quantity,
		Price:     decimal.NewFromFloat(bar.Close),
		PriceType: broker.PriceTypeMarket,
	}); err != nil {
		btLog.Warn("buy submission failed", "date", bar.Timestamp, "error", err)
		return TradeRecord{}, false
	}

	p.Cash -= amount + commission
	p.Position = quantity

	btLog.Debug("buy filled", "date", bar.Timestamp, "price", bar.Close, "qty", quantity, "cash", p.Cash)
	return TradeRecord{
		Date:          bar.Timestamp,
		Action:        types.BUY,
		Price:         bar.Close,
		Quantity:      quantity,
		Amount:        amount,
		Commission:    commission,
		CashAfter:     p.Cash,
		PositionAfter: p.Position,
		Signal:        types.BUY,
	}, true
}

// trySell liquidates the entire position at the current close, net of
// commission.
func (e *Engine) trySell(ctx context.Context, p *Portfolio, bar types.Bar) (TradeRecord, bool) {
	if p.Position <= 0 || bar.Close <= 0 {
		return TradeRecord{}, false
	}

	quantity := p.Position
	amount := float64(quantity) * bar.Close
	commission := amount * e.cfg.CommissionRate

	if _, err := e.executor.Submit(ctx, broker.Order{
		Symbol:    e.cfg.Symbol,
		Side:      broker.SideSell,
		Quantity:  quantity,
		Price:     decimal.NewFromFloat(bar.Close),
		PriceType: broker.PriceTypeMarket,
	}); err != nil {
		btLog.Warn("sell submission failed", "date", bar.Timestamp, "error", err)
		return TradeRecord{}, false
	}

	p.Cash += amount - commission
	p.Position = 0

	btLog.Debug("sell filled", "date", bar.Timestamp, "price", bar.Close, "qty", quantity, "cash", p.Cash)
	return TradeRecord{
		Date:          bar.Timestamp,
		Action:        types.SELL,
		Price:         bar.Close,
		Quantity:      quantity,
		Amount:        amount,
		Commission:    commission,
		CashAfter:     p.Cash,
		PositionAfter: 0,
		Signal:        types.SELL,
	}, true
}

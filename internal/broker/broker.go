// Package broker defines the narrow boundaries between the decision engine
// and the outside world: live quotes, historical series, order execution and
// audit recording. The engine only ever sees these interfaces; real wire
// clients live elsewhere.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/types"
)

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	PriceTypeLimit  PriceType = "LIMIT"
	PriceTypeMarket PriceType = "MARKET"
)

type Side string
type PriceType string

// Quote is a live price observation for a symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Time   time.Time
}

// Order describes a single submission to an executor.
type Order struct {
	Symbol    string
	Side      Side
	Quantity  int64
	Price     decimal.Decimal
	PriceType PriceType
}

// OrderResult reports a completed fill. A submission either completes with a
// result or fails with an error; there is no in-doubt state.
type OrderResult struct {
	OrderID     string
	Symbol      string
	Side        Side
	FilledQty   int64
	FilledPrice decimal.Decimal
	FilledAt    time.Time
}

// QuoteProvider supplies the current price for a symbol. Implementations
// must honour the context deadline so a stalled feed cannot occupy a
// scheduled task indefinitely.
type QuoteProvider interface {
	GetCurrentPrice(ctx context.Context, symbol string) (Quote, error)
}

// HistoricalPriceProvider supplies daily bar series for backtests.
type HistoricalPriceProvider interface {
	GetDailySeries(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)
}

// OrderExecutor submits orders. The backtest and live paths use the same
// interface; only live implementations have external side effects.
type OrderExecutor interface {
	Submit(ctx context.Context, order Order) (OrderResult, error)
}

// AuditSink receives fire-and-forget audit records. Failures must be logged
// by the caller and never fail the trading operation itself.
type AuditSink interface {
	RecordTrade(result OrderResult, signal types.Action)
	RecordQuoteQuery(symbol string, quote Quote, err error)
}

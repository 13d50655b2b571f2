package broker

import (
	"log/slog"

	"autotrader/internal/types"
)

// LogAuditSink satisfies AuditSink by writing structured log lines. It is
// the default sink when no persistence layer is wired in.
type LogAuditSink struct{}

func (LogAuditSink) RecordTrade(result OrderResult, signal types.Action) {
	slog.Info("audit trade",
		"order_id", result.OrderID,
		"symbol", result.Symbol,
		"side", result.Side,
		"qty", result.FilledQty,
		"price", result.FilledPrice.String(),
		"signal", signal,
	)
}

func (LogAuditSink) RecordQuoteQuery(symbol string, quote Quote, err error) {
	if err != nil {
		slog.Warn("audit quote query failed", "symbol", symbol, "error", err)
		return
	}
	slog.Debug("audit quote query", "symbol", symbol, "price", quote.Price.String())
}

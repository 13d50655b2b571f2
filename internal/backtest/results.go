package backtest

import (
	"autotrader/internal/types"
)

// Result is the aggregate outcome of one run: the trade list, the daily
// portfolio snapshots and the derived metrics. It is computed once at the
// end of a run and not mutated afterwards, so replaying identical inputs
// yields an identical Result.
type Result struct {
	Symbol   string
	Strategy string

	// Synthetic is true when the historical provider failed and the run was
	// exercised against a generated fallback series.
	Synthetic bool

	InitialCapital float64
	FinalCapital   float64

	Trades    []TradeRecord
	Snapshots []Snapshot
	Metrics   Metrics
}

func (r *Result) finalize(p *Portfolio, bars []types.Bar) {
	lastClose := bars[len(bars)-1].Close
	r.FinalCapital = p.Cash + float64(p.Position)*lastClose
	r.Metrics = computeMetrics(r, p, bars)
}

package backtest

import (
	"time"

	"autotrader/internal/types"
)

// Portfolio is the mutable accounting state of one backtest run. It is owned
// exclusively by that run and only mutated by the engine's fill step.
type Portfolio struct {
	Cash            float64
	Position        int64
	PeakEquity      float64
	PeakDate        time.Time
	MaxDrawdown     float64 // percent decline from peak equity
	MaxDrawdownDate time.Time
}

// TradeRecord is one executed fill. Append-only: one record per non-HOLD,
// fillable decision.
type TradeRecord struct {
	Date          time.Time
	Action        types.Action
	Price         float64
	Quantity      int64
	Amount        float64
	Commission    float64
	CashAfter     float64
	PositionAfter int64
	Signal        types.Action
}

// Snapshot captures the portfolio at the end of one simulated day, fill or not.
type Snapshot struct {
	Date     time.Time
	Cash     float64
	Position int64
	Equity   float64
	Drawdown float64 // percent below peak equity at this point
}

func newPortfolio(initialCapital float64, startDate time.Time) *Portfolio {
	return &Portfolio{
		Cash:       initialCapital,
		PeakEquity: initialCapital,
		PeakDate:   startDate,
	}
}

// mark updates peak equity and running drawdown for the day and returns the
// day's snapshot.
func (p *Portfolio) mark(date time.Time, closePrice float64) Snapshot {
	equity := p.Cash + float64(p.Position)*closePrice

	if equity > p.PeakEquity {
		p.PeakEquity = equity
		p.PeakDate = date
	}

	drawdown := 0.0
	if p.PeakEquity > 0 {
		drawdown = (p.PeakEquity - equity) / p.PeakEquity * 100
	}
	if drawdown > p.MaxDrawdown {
		p.MaxDrawdown = drawdown
		p.MaxDrawdownDate = date
	}

	return Snapshot{
		Date:     date,
		Cash:     p.Cash,
		Position: p.Position,
		Equity:   equity,
		Drawdown: drawdown,
	}
}

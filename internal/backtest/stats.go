package backtest

import (
	"fmt"
	"math"

	"autotrader/internal/types"
)

type Metrics struct {
	// Returns
	TotalReturn             float64
	TotalReturnPercent      float64
	AnnualizedReturnPercent float64

	// Trades (round trips pair consecutive BUY/SELL records in order)
	TotalTrades   int
	RoundTrips    int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AvgWin        float64
	AvgLoss       float64
	ProfitFactor  float64

	// Risk
	MaxDrawdownPercent float64
	VolatilityPercent  float64 // stddev of daily returns, annualized by sqrt(252)
	RiskAdjustedReturn float64 // annualized return / volatility, 0 when volatility is 0
}

func computeMetrics(r *Result, p *Portfolio, bars []types.Bar) Metrics {
	m := Metrics{
		TotalTrades:        len(r.Trades),
		MaxDrawdownPercent: p.MaxDrawdown,
	}

	m.TotalReturn = r.FinalCapital - r.InitialCapital
	m.TotalReturnPercent = m.TotalReturn / r.InitialCapital * 100

	days := bars[len(bars)-1].Timestamp.Sub(bars[0].Timestamp).Hours() / 24
	if days < 1 {
		days = 1
	}
	m.AnnualizedReturnPercent = (math.Pow(1+m.TotalReturnPercent/100, 365/days) - 1) * 100

	// Pair consecutive BUY/SELL records in order; an open position at the
	// end of the run has no closing record and is not paired.
	var grossWin, grossLoss float64
	for i := 0; i+1 < len(r.Trades); i++ {
		buy, sell := r.Trades[i], r.Trades[i+1]
		if buy.Action != types.BUY || sell.Action != types.SELL {
			continue
		}

		m.RoundTrips++
		pnl := (sell.Amount - sell.Commission) - (buy.Amount + buy.Commission)
		if pnl > 0 {
			m.WinningTrades++
			grossWin += pnl
		} else if pnl < 0 {
			m.LosingTrades++
			grossLoss += -pnl
		}
	}

	if m.RoundTrips > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.RoundTrips) * 100
	}
	if m.WinningTrades > 0 {
		m.AvgWin = grossWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	}

	m.VolatilityPercent = annualizedVolatility(r.Snapshots) * 100
	if m.VolatilityPercent != 0 {
		m.RiskAdjustedReturn = m.AnnualizedReturnPercent / m.VolatilityPercent
	}

	return m
}

// annualizedVolatility returns the standard deviation of daily portfolio
// returns scaled by sqrt(252).
func annualizedVolatility(snapshots []Snapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (snapshots[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, ret := range returns {
		mean += ret
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, ret := range returns {
		d := ret - mean
		variance += d * d
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(252)
}

func (m Metrics) Print() {
	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Total Return:     %.2f (%.2f%%)\n", m.TotalReturn, m.TotalReturnPercent)
	fmt.Printf("Annualized:       %.2f%%\n\n", m.AnnualizedReturnPercent)

	fmt.Printf("Trades:           %d (%d round trips)\n", m.TotalTrades, m.RoundTrips)
	fmt.Printf("Win Rate:         %.2f%% (%d W / %d L)\n", m.WinRate, m.WinningTrades, m.LosingTrades)
	fmt.Printf("Avg Win:          %.2f\n", m.AvgWin)
	fmt.Printf("Avg Loss:         %.2f\n", m.AvgLoss)
	fmt.Printf("Profit Factor:    %.2f\n\n", m.ProfitFactor)

	fmt.Printf("Max Drawdown:     %.2f%%\n", m.MaxDrawdownPercent)
	fmt.Printf("Volatility:       %.2f%%\n", m.VolatilityPercent)
	fmt.Printf("Risk-Adjusted:    %.2f\n", m.RiskAdjustedReturn)
}

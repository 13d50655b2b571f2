package strategy

import (
	"autotrader/internal/indicator"
	"autotrader/internal/types"
)

// evalMACD implements MACD/signal crossover rules.
//
// BUY when the MACD line crosses above its signal line or the histogram
// flips from negative to positive; SELL on the symmetric cases.
func evalMACD(bars []types.Bar, p Params) types.Action {
	now, ok := indicator.MACDAt(bars, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if !ok {
		return types.HOLD
	}

	prev, ok := indicator.MACDAt(bars[:len(bars)-1], p.MACDFast, p.MACDSlow, p.MACDSignal)
	if !ok {
		return types.HOLD
	}

	crossedUp := prev.Line <= prev.Signal && now.Line > now.Signal
	crossedDown := prev.Line >= prev.Signal && now.Line < now.Signal
	histFlippedUp := prev.Histogram < 0 && now.Histogram > 0
	histFlippedDown := prev.Histogram > 0 && now.Histogram < 0

	switch {
	case crossedUp, histFlippedUp:
		return types.BUY
	case crossedDown, histFlippedDown:
		return types.SELL
	default:
		return types.HOLD
	}
}

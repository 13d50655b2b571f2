package strategy

import (
	"autotrader/internal/indicator"
	"autotrader/internal/types"
)

// evalRSI implements threshold-based RSI rules.
//
// BUY when RSI crosses up through the oversold threshold or sits at/below
// it; SELL when RSI crosses down through the overbought threshold or sits
// at/above it.
func evalRSI(bars []types.Bar, p Params) types.Action {
	rsi, ok := indicator.RSI(bars, p.RSIPeriod)
	if !ok {
		return types.HOLD
	}

	crossedUp, crossedDown := false, false
	if prevRSI, ok := indicator.RSI(bars[:len(bars)-1], p.RSIPeriod); ok {
		crossedUp = prevRSI < p.RSIOversold && rsi >= p.RSIOversold
		crossedDown = prevRSI > p.RSIOverbought && rsi <= p.RSIOverbought
	}

	switch {
	case crossedUp, rsi <= p.RSIOversold:
		return types.BUY
	case crossedDown, rsi >= p.RSIOverbought:
		return types.SELL
	default:
		return types.HOLD
	}
}

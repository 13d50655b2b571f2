package strategy

import (
	"autotrader/internal/indicator"
	"autotrader/internal/types"
)

// evalSMACrossover implements the moving average crossover rules.
//
// BUY on a golden cross (short SMA crossing above long SMA between the
// previous and current bar) or while short > long with price above the short
// SMA. SELL on the symmetric dead cross or while short < long with price
// below the short SMA.
func evalSMACrossover(bars []types.Bar, p Params) types.Action {
	shortNow, ok := indicator.SMA(bars, p.ShortPeriod)
	if !ok {
		return types.HOLD
	}
	longNow, ok := indicator.SMA(bars, p.LongPeriod)
	if !ok {
		return types.HOLD
	}

	price := bars[len(bars)-1].Close

	// Cross detection needs one bar of lookback; without it only the
	// alignment conditions apply.
	crossedUp, crossedDown := false, false
	prev := bars[:len(bars)-1]
	prevShort, okS := indicator.SMA(prev, p.ShortPeriod)
	prevLong, okL := indicator.SMA(prev, p.LongPeriod)
	if okS && okL {
		crossedUp = prevShort <= prevLong && shortNow > longNow
		crossedDown = prevShort >= prevLong && shortNow < longNow
	}

	switch {
	case crossedUp, shortNow > longNow && price > shortNow:
		return types.BUY
	case crossedDown, shortNow < longNow && price < shortNow:
		return types.SELL
	default:
		return types.HOLD
	}
}

// Package indicator computes technical indicators over ordered bar series.
//
// All functions are pure: they never mutate the input series, and they report
// insufficient history through an ok-return instead of panicking, so callers
// can degrade a single evaluation to HOLD without aborting a run.
package indicator

import (
	"math"

	"autotrader/internal/logging"
	"autotrader/internal/types"
)

var indLog = logging.New("indicator")

// MACD holds the MACD line, its signal line and the histogram (line - signal).
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// Bands holds Bollinger band values for a single bar.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// roundTo rounds half-up to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Floor(v*pow+0.5) / pow
}

// SMA returns the arithmetic mean of the last period closes, rounded to 2
// decimal places. ok is false when fewer than period bars are available.
func SMA(bars []types.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}

	sum := 0.0
	for _, bar := range bars[len(bars)-period:] {
		sum += bar.Close
	}

	value := roundTo(sum/float64(period), 2)
	indLog.Debug("SMA computed", "period", period, "bars", len(bars), "value", value)
	return value, true
}

// EMASeries computes the exponential moving average over values.
//
// The seed is the period-th value; the recurrence ema = v*mult + ema*(1-mult)
// with mult = 2/(period+1) is applied forward over the remaining values.
// The returned series aligns so that element i corresponds to values[period-1+i].
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	mult := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	ema := values[period-1]
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = v*mult + ema*(1-mult)
		out = append(out, ema)
	}
	return out
}

// EMA returns the latest exponential moving average of the series closes.
func EMA(bars []types.Bar, period int) (float64, bool) {
	series := EMASeries(closes(bars), period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// RSI returns the relative strength index over the trailing period deltas.
// The gain and loss averages are held at 4 decimal places; RSI is 100 when
// the average loss is zero. Requires at least period+1 bars.
func RSI(bars []types.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}

	var gains, losses float64
	for i := len(bars) - period; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}

	avgGain := roundTo(gains/float64(period), 4)
	avgLoss := roundTo(losses/float64(period), 4)
	indLog.Debug("RSI averages", "period", period, "avgGain", avgGain, "avgLoss", avgLoss)

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return roundTo(100-100/(1+rs), 2), true
}

// MACDAt returns the MACD line, signal line and histogram for the latest bar.
// Requires at least slow+signal bars so the signal EMA has a full seed window.
func MACDAt(bars []types.Bar, fast, slow, signal int) (MACD, bool) {
	line := macdLine(bars, fast, slow)
	if len(bars) < slow+signal || len(line) < signal {
		return MACD{}, false
	}

	signalSeries := EMASeries(line, signal)
	if len(signalSeries) == 0 {
		return MACD{}, false
	}

	m := MACD{
		Line:   line[len(line)-1],
		Signal: signalSeries[len(signalSeries)-1],
	}
	m.Histogram = m.Line - m.Signal
	return m, true
}

// macdLine returns the fast-EMA minus slow-EMA series, one element per bar
// from index slow-1 onward.
func macdLine(bars []types.Bar, fast, slow int) []float64 {
	if fast <= 0 || slow <= fast || len(bars) < slow {
		return nil
	}

	cs := closes(bars)
	fastSeries := EMASeries(cs, fast)
	slowSeries := EMASeries(cs, slow)

	// fastSeries leads slowSeries by slow-fast elements
	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}
	return line
}

// BollingerBands returns the middle band (SMA), and upper/lower bands offset
// by mult population standard deviations of the last period closes.
func BollingerBands(bars []types.Bar, period int, mult float64) (Bands, bool) {
	middle, ok := SMA(bars, period)
	if !ok {
		return Bands{}, false
	}

	mean := 0.0
	window := bars[len(bars)-period:]
	for _, bar := range window {
		mean += bar.Close
	}
	mean /= float64(period)

	variance := 0.0
	for _, bar := range window {
		d := bar.Close - mean
		variance += d * d
	}
	dev := math.Sqrt(variance / float64(period))

	return Bands{
		Upper:  roundTo(middle+mult*dev, 2),
		Middle: middle,
		Lower:  roundTo(middle-mult*dev, 2),
	}, true
}

// DailyReturn returns the fractional close-to-close return, or 0 when there
// is no previous bar or the previous close is 0.
func DailyReturn(current types.Bar, previous *types.Bar) float64 {
	if previous == nil || previous.Close == 0 {
		return 0
	}
	return (current.Close - previous.Close) / previous.Close
}

func closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = bar.Close
	}
	return out
}

package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/types"
)

func barsFromCloses(closes ...float64) []types.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = types.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	return bars
}

func TestSMA_InsufficientData(t *testing.T) {
	bars := barsFromCloses(100, 101, 102)

	_, ok := SMA(bars, 5)
	assert.False(t, ok, "SMA over a window larger than the series must report insufficient data")

	_, ok = SMA(nil, 1)
	assert.False(t, ok, "SMA over an empty series must report insufficient data")

	_, ok = SMA(bars, 0)
	assert.False(t, ok, "SMA with a non-positive period must report insufficient data")
}

func TestSMA_MeanOfLastPeriodCloses(t *testing.T) {
	bars := barsFromCloses(1, 2, 100, 101, 102)

	value, ok := SMA(bars, 3)
	require.True(t, ok)
	assert.Equal(t, 101.0, value, "SMA(3) should only use the last 3 closes")
}

func TestSMA_RoundsHalfUp(t *testing.T) {
	bars := barsFromCloses(100.005, 100.005)

	value, ok := SMA(bars, 2)
	require.True(t, ok)
	assert.Equal(t, 100.01, value)
}

func TestEMASeries_SeedAndRecurrence(t *testing.T) {
	series := EMASeries([]float64{1, 2, 3, 4}, 3)
	require.Len(t, series, 2)

	// Seed is the 3rd value; mult = 2/(3+1) = 0.5
	assert.Equal(t, 3.0, series[0])
	assert.Equal(t, 4*0.5+3*0.5, series[1])
}

func TestEMA_InsufficientData(t *testing.T) {
	_, ok := EMA(barsFromCloses(1, 2), 3)
	assert.False(t, ok)
}

func TestRSI_Bounds(t *testing.T) {
	closes := []float64{100, 102, 101, 105, 103, 108, 104, 110, 106, 111, 109, 112, 108, 115, 113}
	value, ok := RSI(barsFromCloses(closes...), 14)
	require.True(t, ok)
	assert.GreaterOrEqual(t, value, 0.0)
	assert.LessOrEqual(t, value, 100.0)
}

func TestRSI_AllDeclinesIsZero(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}

	value, ok := RSI(barsFromCloses(closes...), 14)
	require.True(t, ok)
	assert.Equal(t, 0.0, value, "14 consecutive declines leave avgGain = 0")
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	value, ok := RSI(barsFromCloses(closes...), 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, value, "avgLoss = 0 must yield RSI = 100")
}

func TestRSI_InsufficientData(t *testing.T) {
	_, ok := RSI(barsFromCloses(100, 101), 14)
	assert.False(t, ok, "RSI(14) needs at least 15 bars")
}

func TestMACDAt_RequiresSlowPlusSignalBars(t *testing.T) {
	bars := barsFromCloses(make([]float64, 33)...)

	_, ok := MACDAt(bars, 12, 26, 9)
	assert.False(t, ok, "MACD(12,26,9) needs at least 35 bars")

	bars = barsFromCloses(make([]float64, 35)...)
	_, ok = MACDAt(bars, 12, 26, 9)
	assert.True(t, ok)
}

func TestMACDAt_HistogramIsLineMinusSignal(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}

	m, ok := MACDAt(barsFromCloses(closes...), 12, 26, 9)
	require.True(t, ok)
	assert.InDelta(t, m.Line-m.Signal, m.Histogram, 1e-9)
	assert.Greater(t, m.Line, 0.0, "MACD line should be positive on a rising series")
}

func TestBollingerBands_FlatSeries(t *testing.T) {
	bars := barsFromCloses(100, 100, 100, 100, 100)

	bands, ok := BollingerBands(bars, 5, 2)
	require.True(t, ok)
	assert.Equal(t, 100.0, bands.Middle)
	assert.Equal(t, 100.0, bands.Upper, "zero deviation collapses the bands")
	assert.Equal(t, 100.0, bands.Lower)
}

func TestBollingerBands_PopulationStdDev(t *testing.T) {
	bars := barsFromCloses(98, 99, 100, 101, 102)

	bands, ok := BollingerBands(bars, 5, 2)
	require.True(t, ok)
	// population stddev of [98..102] is sqrt(2) ~= 1.4142
	assert.Equal(t, 100.0, bands.Middle)
	assert.Equal(t, 102.83, bands.Upper)
	assert.Equal(t, 97.17, bands.Lower)
}

func TestBollingerBands_InsufficientData(t *testing.T) {
	_, ok := BollingerBands(barsFromCloses(100, 101), 5, 2)
	assert.False(t, ok)
}

func TestDailyReturn(t *testing.T) {
	bars := barsFromCloses(100, 105)

	assert.InDelta(t, 0.05, DailyReturn(bars[1], &bars[0]), 1e-9)
	assert.Equal(t, 0.0, DailyReturn(bars[0], nil), "no previous bar yields 0")

	zero := types.Bar{Close: 0}
	assert.Equal(t, 0.0, DailyReturn(bars[1], &zero), "zero previous close yields 0")
}

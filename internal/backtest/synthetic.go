package backtest

import (
	"hash/fnv"
	"math/rand"
	"time"

	"autotrader/internal/types"
)

// SyntheticSeries generates a daily random-walk series used when no real
// history is available: each day moves up to ±2% from the previous close and
// weekends are skipped. The walk is seeded from (symbol, start) so the same
// request always degrades to the same series.
func SyntheticSeries(symbol string, start, end time.Time) []types.Bar {
	seed := fnv.New64a()
	seed.Write([]byte(symbol))
	seed.Write([]byte(start.UTC().Format("2006-01-02")))
	rng := rand.New(rand.NewSource(int64(seed.Sum64())))

	var bars []types.Bar
	price := 50000.0

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		change := (rng.Float64()*2 - 1) * 0.02
		open := price
		close := open * (1 + change)
		high := open
		low := open
		if close > high {
			high = close
		}
		if close < low {
			low = close
		}

		bars = append(bars, types.Bar{
			Timestamp: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(100000 + rng.Intn(900000)),
		})
		price = close
	}

	return bars
}

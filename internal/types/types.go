package types

import "time"

const (
	BUY  Action = "BUY"
	SELL Action = "SELL"
	HOLD Action = "HOLD"
)

// Bar is a single OHLCV observation, typically one trading day.
// Series are ordered by timestamp ascending and bars are immutable once recorded.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Action is a strategy's decision for a single bar.
type Action string

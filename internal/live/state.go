package live

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"autotrader/internal/strategy"
	"autotrader/internal/types"
)

// RiskLimits bound a live strategy's daily activity. The risk governor
// disables the strategy when a limit is breached; a zero limit disables
// that particular check except MaxDailyTrades, where zero means no trading.
type RiskLimits struct {
	MaxDailyLossPercent float64 `validate:"gte=0"`
	MaxDrawdownPercent  float64 `validate:"gte=0"`
	MaxDailyTrades      int     `validate:"gte=0"`
}

// StrategyConfig registers one strategy with a live engine.
type StrategyConfig struct {
	ID       string `validate:"required"`
	Symbol   string `validate:"required"`
	Strategy string `validate:"required"`
	Params   strategy.Params

	TotalInvestment   decimal.Decimal
	MaxPositionSize   float64         `validate:"gt=0,lte=1"`
	BuyPriceLimit     decimal.Decimal // zero means unlimited
	TakeProfitPercent float64         `validate:"gte=0"`
	StopLossPercent   float64         `validate:"gte=0"`
	Risk              RiskLimits
}

var validateConfig = validator.New()

// WithDefaults fills unset optional fields. Pure: the receiver is copied.
func (c StrategyConfig) WithDefaults() StrategyConfig {
	c.Params = c.Params.WithDefaults()
	if c.MaxPositionSize == 0 {
		c.MaxPositionSize = 0.3
	}
	if c.TakeProfitPercent == 0 {
		c.TakeProfitPercent = 5
	}
	if c.StopLossPercent == 0 {
		c.StopLossPercent = 3
	}
	if c.Risk.MaxDailyLossPercent == 0 {
		c.Risk.MaxDailyLossPercent = 3
	}
	if c.Risk.MaxDrawdownPercent == 0 {
		c.Risk.MaxDrawdownPercent = 5
	}
	return c
}

func (c StrategyConfig) Validate() error {
	if err := validateConfig.Struct(c); err != nil {
		return fmt.Errorf("invalid strategy config %q: %w", c.ID, err)
	}
	if _, err := strategy.ParseKind(c.Strategy); err != nil {
		return err
	}
	if c.TotalInvestment.Sign() <= 0 {
		return fmt.Errorf("strategy %q: total investment must be positive", c.ID)
	}
	return c.Params.Validate()
}

// State is the live position and P&L of one registered strategy. It is
// mutated only while the owning cell's mutex is held.
type State struct {
	Position        int64
	AvgEntryPrice   decimal.Decimal
	DailyPnL        decimal.Decimal
	PeakDailyPnL    decimal.Decimal
	DailyTradeCount int
	LastTradeTime   time.Time
	LastPrice       decimal.Decimal
}

// strategyCell pairs a strategy's configuration and state behind one mutex,
// so an evaluation tick and a concurrent risk sweep can never interleave a
// read-then-write on the same strategy.
type strategyCell struct {
	mu sync.Mutex

	kind      strategy.Kind
	cfg       StrategyConfig
	state     State
	enabled   bool
	history   []types.Bar
	lastReset time.Time
}

// Status is a point-in-time copy of a strategy's live state for polling.
type Status struct {
	ID              string
	Symbol          string
	Strategy        string
	Enabled         bool
	Position        int64
	AvgEntryPrice   decimal.Decimal
	DailyPnL        decimal.Decimal
	DailyTradeCount int
	LastTradeTime   time.Time
	LastPrice       decimal.Decimal
}

func (c *strategyCell) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		ID:              c.cfg.ID,
		Symbol:          c.cfg.Symbol,
		Strategy:        c.cfg.Strategy,
		Enabled:         c.enabled,
		Position:        c.state.Position,
		AvgEntryPrice:   c.state.AvgEntryPrice,
		DailyPnL:        c.state.DailyPnL,
		DailyTradeCount: c.state.DailyTradeCount,
		LastTradeTime:   c.state.LastTradeTime,
		LastPrice:       c.state.LastPrice,
	}
}

package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/broker"
	"autotrader/internal/strategy"
	"autotrader/internal/types"
)

// scriptedQuotes walks the price by a fixed step on every fetch.
type scriptedQuotes struct {
	mu    sync.Mutex
	price decimal.Decimal
	step  decimal.Decimal
	err   error
}

func (s *scriptedQuotes) GetCurrentPrice(_ context.Context, symbol string) (broker.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return broker.Quote{}, s.err
	}
	s.price = s.price.Add(s.step)
	return broker.Quote{Symbol: symbol, Price: s.price, Time: time.Now()}, nil
}

func (s *scriptedQuotes) set(price decimal.Decimal) {
	s.mu.Lock()
	s.price = price
	s.mu.Unlock()
}

type failingExecutor struct{}

func (failingExecutor) Submit(context.Context, broker.Order) (broker.OrderResult, error) {
	return broker.OrderResult{}, errors.New("order gateway down")
}

type panickingAudit struct{}

func (panickingAudit) RecordTrade(broker.OrderResult, types.Action) { panic("audit store down") }
func (panickingAudit) RecordQuoteQuery(string, broker.Quote, error) { panic("audit store down") }

func rsiConfig(id string, maxDailyTrades int) StrategyConfig {
	p := strategy.DefaultParams()
	p.RSIPeriod = 2

	return StrategyConfig{
		ID:              id,
		Symbol:          "005930",
		Strategy:        "rsi",
		Params:          p,
		TotalInvestment: decimal.NewFromInt(100_000_000),
		MaxPositionSize: 0.5,
		Risk: RiskLimits{
			MaxDailyLossPercent: 50,
			MaxDrawdownPercent:  90,
			MaxDailyTrades:      maxDailyTrades,
		},
	}
}

func newTestEngine(t *testing.T, quotes broker.QuoteProvider) (*Engine, *broker.SimulatedExecutor) {
	t.Helper()
	exec := broker.NewSimulatedExecutor()
	engine := NewDomesticEngine(quotes, exec, broker.LogAuditSink{}, Options{})
	return engine, exec
}

func declining() *scriptedQuotes {
	return &scriptedQuotes{price: decimal.NewFromInt(100_000), step: decimal.NewFromInt(-100)}
}

func TestEngine_StartStopLifecycle(t *testing.T) {
	engine, _ := newTestEngine(t, declining())

	require.NoError(t, engine.Start(context.Background()))
	assert.True(t, engine.Running())

	assert.ErrorIs(t, engine.Start(context.Background()), ErrAlreadyRunning, "re-initializing while running is a no-op")

	require.NoError(t, engine.Register(rsiConfig("s1", 10)))
	_, ok := engine.Status("s1")
	assert.True(t, ok)

	require.NoError(t, engine.Stop())
	assert.False(t, engine.Running())

	_, ok = engine.Status("s1")
	assert.False(t, ok, "stop must clear all strategy state")

	assert.ErrorIs(t, engine.Stop(), ErrAlreadyStopped, "stopping a stopped engine is a no-op")
}

func TestEngine_RegisterValidation(t *testing.T) {
	engine, _ := newTestEngine(t, declining())

	cfg := rsiConfig("s1", 10)
	cfg.Strategy = "momentum"
	assert.Error(t, engine.Register(cfg), "unknown strategy name is a configuration error")

	cfg = rsiConfig("s1", 10)
	cfg.TotalInvestment = decimal.Zero
	assert.Error(t, engine.Register(cfg))

	require.NoError(t, engine.Register(rsiConfig("s1", 10)))
	assert.Error(t, engine.Register(rsiConfig("s1", 10)), "duplicate id is rejected")
}

func TestEngine_ZeroMaxDailyTradesNeverOrders(t *testing.T) {
	engine, exec := newTestEngine(t, declining())
	require.NoError(t, engine.Register(rsiConfig("s1", 0)))

	for i := 0; i < 20; i++ {
		engine.evaluateAll(context.Background())
	}

	assert.Empty(t, exec.Fills(), "maxDailyTrades=0 must never produce an order")
}

func TestEngine_BuyUpdatesStateOnFillOnly(t *testing.T) {
	engine, exec := newTestEngine(t, declining())
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	for i := 0; i < 10; i++ {
		engine.evaluateAll(context.Background())
	}

	status, ok := engine.Status("s1")
	require.True(t, ok)
	assert.Greater(t, status.Position, int64(0), "declining prices drive RSI buys")
	assert.True(t, status.AvgEntryPrice.Sign() > 0)
	assert.Equal(t, len(exec.Fills()), status.DailyTradeCount,
		"trade count must match successful submissions exactly")
}

func TestEngine_FailedSubmissionLeavesStateUntouched(t *testing.T) {
	quotes := declining()
	engine := NewDomesticEngine(quotes, failingExecutor{}, broker.LogAuditSink{}, Options{})
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	for i := 0; i < 10; i++ {
		engine.evaluateAll(context.Background())
	}

	status, ok := engine.Status("s1")
	require.True(t, ok)
	assert.Equal(t, int64(0), status.Position)
	assert.Equal(t, 0, status.DailyTradeCount)
	assert.True(t, status.DailyPnL.IsZero())
}

func TestEngine_SellRealizesProfitIntoDailyPnL(t *testing.T) {
	quotes := declining()
	engine, exec := newTestEngine(t, quotes)
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	for i := 0; i < 10; i++ {
		engine.evaluateAll(context.Background())
	}
	status, _ := engine.Status("s1")
	require.Greater(t, status.Position, int64(0))

	// A sharp rally flips RSI to overbought and clears the profit target.
	quotes.set(status.AvgEntryPrice.Mul(decimal.NewFromInt(2)))
	quotes.step = decimal.NewFromInt(10)
	engine.evaluateAll(context.Background())

	status, _ = engine.Status("s1")
	assert.Equal(t, int64(0), status.Position, "a sell liquidates the full position")
	assert.True(t, status.AvgEntryPrice.IsZero())
	assert.True(t, status.DailyPnL.Sign() > 0, "realized P&L lands in DailyPnL")
	assert.Equal(t, 1, exec.FillCount(broker.SideSell))
}

func TestEngine_StopLossTriggersWithoutBearishSignal(t *testing.T) {
	engine, exec := newTestEngine(t, declining())
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	value, _ := engine.strategies.Load("s1")
	cell := value.(*strategyCell)
	cell.mu.Lock()
	cell.state.Position = 100
	cell.state.AvgEntryPrice = decimal.NewFromInt(100_000)
	cell.mu.Unlock()

	// 3% stop loss (the default) is breached at 95,000.
	cell.mu.Lock()
	engine.tryLiveSell(context.Background(), cell, decimal.NewFromInt(95_000), false)
	cell.mu.Unlock()

	assert.Equal(t, 1, exec.FillCount(broker.SideSell))
	assert.Equal(t, int64(0), cell.state.Position)
	assert.True(t, cell.state.DailyPnL.Sign() < 0, "stop loss realizes the loss")
}

func TestEngine_NoSellWithoutTrigger(t *testing.T) {
	engine, exec := newTestEngine(t, declining())
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	value, _ := engine.strategies.Load("s1")
	cell := value.(*strategyCell)
	cell.mu.Lock()
	cell.state.Position = 100
	cell.state.AvgEntryPrice = decimal.NewFromInt(100_000)
	// Price within both the profit target and the stop loss, no bearish signal.
	engine.tryLiveSell(context.Background(), cell, decimal.NewFromInt(101_000), false)
	cell.mu.Unlock()

	assert.Equal(t, 0, exec.FillCount(broker.SideSell))
	assert.Equal(t, int64(100), cell.state.Position)
}

func TestEngine_RiskGovernorDisablesOnDailyLoss(t *testing.T) {
	engine, exec := newTestEngine(t, declining())
	cfg := rsiConfig("s1", 1000)
	cfg.Risk.MaxDailyLossPercent = 3
	require.NoError(t, engine.Register(cfg))

	value, _ := engine.strategies.Load("s1")
	cell := value.(*strategyCell)
	cell.mu.Lock()
	// 5% of total investment lost today.
	cell.state.DailyPnL = decimal.NewFromInt(-5_000_000)
	cell.mu.Unlock()

	engine.riskSweep()

	status, _ := engine.Status("s1")
	assert.False(t, status.Enabled, "daily loss beyond the limit disables the strategy")

	before := len(exec.Fills())
	engine.evaluateAll(context.Background())
	assert.Equal(t, before, len(exec.Fills()), "disabled strategies are not evaluated")
}

func TestEngine_DailyRolloverResetsCountersAndReenables(t *testing.T) {
	engine, _ := newTestEngine(t, declining())
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	value, _ := engine.strategies.Load("s1")
	cell := value.(*strategyCell)
	cell.mu.Lock()
	cell.state.DailyPnL = decimal.NewFromInt(-5_000_000)
	cell.state.DailyTradeCount = 7
	cell.enabled = false
	cell.mu.Unlock()

	engine.now = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	engine.evaluateAll(context.Background())

	status, _ := engine.Status("s1")
	assert.True(t, status.Enabled, "day rollover re-enables the strategy")
	assert.True(t, status.DailyPnL.IsZero())
	assert.Equal(t, 0, status.DailyTradeCount)
}

func TestEngine_QuoteFailureSkipsTick(t *testing.T) {
	quotes := &scriptedQuotes{err: errors.New("feed down")}
	engine, exec := newTestEngine(t, quotes)
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	engine.evaluateAll(context.Background())

	assert.Empty(t, exec.Fills())
	status, _ := engine.Status("s1")
	assert.Equal(t, int64(0), status.Position)
}

func TestEngine_AuditFailureNeverFailsTrading(t *testing.T) {
	quotes := declining()
	exec := broker.NewSimulatedExecutor()
	engine := NewDomesticEngine(quotes, exec, panickingAudit{}, Options{})
	require.NoError(t, engine.Register(rsiConfig("s1", 1000)))

	for i := 0; i < 10; i++ {
		engine.evaluateAll(context.Background())
	}

	status, _ := engine.Status("s1")
	assert.Greater(t, status.Position, int64(0), "trading proceeds despite a panicking audit sink")
	assert.Equal(t, len(exec.Fills()), status.DailyTradeCount)
}

// panicOnBoom panics for one symbol and delegates the rest, simulating a
// feed fault that takes down a single strategy's evaluation.
type panicOnBoom struct {
	inner *scriptedQuotes
}

func (p panicOnBoom) GetCurrentPrice(ctx context.Context, symbol string) (broker.Quote, error) {
	if symbol == "BOOM" {
		panic("feed corrupted")
	}
	return p.inner.GetCurrentPrice(ctx, symbol)
}

func TestEngine_FailureInOneStrategyDoesNotBlockOthers(t *testing.T) {
	exec := broker.NewSimulatedExecutor()
	engine := NewDomesticEngine(panicOnBoom{inner: declining()}, exec, broker.LogAuditSink{}, Options{})

	bad := rsiConfig("s1", 1000)
	bad.Symbol = "BOOM"
	require.NoError(t, engine.Register(bad))
	require.NoError(t, engine.Register(rsiConfig("s2", 1000)))

	for i := 0; i < 10; i++ {
		engine.evaluateAll(context.Background())
	}

	status, ok := engine.Status("s2")
	require.True(t, ok)
	assert.Greater(t, status.Position, int64(0), "s2 keeps trading while s1's evaluation panics")
}

func TestEngine_ConcurrentTicksAndSweepsStayConsistent(t *testing.T) {
	engine, exec := newTestEngine(t, declining())
	require.NoError(t, engine.Register(rsiConfig("s1", 100_000)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			engine.evaluateAll(context.Background())
		}()
		go func() {
			defer wg.Done()
			engine.riskSweep()
		}()
	}
	wg.Wait()

	status, ok := engine.Status("s1")
	require.True(t, ok)
	assert.Equal(t, len(exec.Fills()), status.DailyTradeCount,
		"daily trade count must equal the number of successful submissions under concurrent load")

	var held int64
	for _, fill := range exec.Fills() {
		if fill.Side == broker.SideBuy {
			held += fill.FilledQty
		} else {
			held -= fill.FilledQty
		}
	}
	assert.Equal(t, held, status.Position, "position must reconcile with the fill history")
}

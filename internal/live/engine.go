// Package live runs registered strategies on periodic timers, maintains
// their position and P&L state, enforces risk limits and submits orders
// through the broker boundary. One Engine instance owns one market calendar;
// domestic and overseas engines run independently.
package live

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/broker"
	"autotrader/internal/logging"
	"autotrader/internal/strategy"
	"autotrader/internal/types"
)

var (
	liveLog = logging.New("live")
	riskLog = logging.New("risk")
)

var (
	ErrAlreadyRunning = errors.New("engine already running")
	ErrAlreadyStopped = errors.New("engine already stopped")
)

// Options tune an engine's periodic tasks. Zero values take defaults.
type Options struct {
	RiskSweepInterval time.Duration // medium cadence risk-limit sweep
	StatusInterval    time.Duration // long cadence status report
	QuoteTimeout      time.Duration // bound on a single quote fetch
	OrderTimeout      time.Duration // bound on a single order submission
	ShutdownGrace     time.Duration // wait before forcing termination
	HistoryDepth      int           // bars of quote history kept per strategy

	// Defaults are registered on every Start.
	Defaults []StrategyConfig
}

func (o Options) withDefaults() Options {
	if o.RiskSweepInterval == 0 {
		o.RiskSweepInterval = 30 * time.Second
	}
	if o.StatusInterval == 0 {
		o.StatusInterval = 5 * time.Minute
	}
	if o.QuoteTimeout == 0 {
		o.QuoteTimeout = 3 * time.Second
	}
	if o.OrderTimeout == 0 {
		o.OrderTimeout = 5 * time.Second
	}
	if o.ShutdownGrace == 0 {
		o.ShutdownGrace = 5 * time.Second
	}
	if o.HistoryDepth == 0 {
		o.HistoryDepth = 120
	}
	return o
}

// Engine schedules strategy evaluation for one market calendar.
//
// Strategies live in a concurrent map of id -> cell; each cell guards its
// config and state with its own mutex, so ticks for different strategies run
// freely in parallel while ticks for the same strategy serialize.
type Engine struct {
	name     string
	schedule *Schedule
	quotes   broker.QuoteProvider
	executor broker.OrderExecutor
	audit    broker.AuditSink
	opts     Options

	strategies sync.Map // id -> *strategyCell
	running    atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	now func() time.Time
}

func NewEngine(name string, schedule *Schedule, quotes broker.QuoteProvider, executor broker.OrderExecutor, audit broker.AuditSink, opts Options) *Engine {
	return &Engine{
		name:     name,
		schedule: schedule,
		quotes:   quotes,
		executor: executor,
		audit:    audit,
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

// NewDomesticEngine wires an engine to the domestic market calendar.
func NewDomesticEngine(quotes broker.QuoteProvider, executor broker.OrderExecutor, audit broker.AuditSink, opts Options) *Engine {
	return NewEngine("domestic", NewDomesticSchedule(), quotes, executor, audit, opts)
}

// NewOverseasEngine wires an engine to the overseas market calendar.
func NewOverseasEngine(quotes broker.QuoteProvider, executor broker.OrderExecutor, audit broker.AuditSink, opts Options) *Engine {
	return NewEngine("overseas", NewOverseasSchedule(), quotes, executor, audit, opts)
}

// Start registers default strategies and launches the periodic tasks.
// Starting a running engine is a no-op reported as ErrAlreadyRunning.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	for _, cfg := range e.opts.Defaults {
		if err := e.Register(cfg); err != nil {
			liveLog.Error("default strategy rejected", "engine", e.name, "id", cfg.ID, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(3)
	go e.evaluationLoop(ctx)
	go e.riskLoop(ctx)
	go e.statusLoop(ctx)

	liveLog.Info("engine started", "engine", e.name)
	return nil
}

// Stop cancels the periodic tasks, waits up to the shutdown grace period
// for them to drain, then clears all strategy state. Stopping a stopped
// engine is a no-op reported as ErrAlreadyStopped.
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return ErrAlreadyStopped
	}

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.opts.ShutdownGrace):
		liveLog.Warn("graceful shutdown timed out, forcing termination", "engine", e.name, "grace", e.opts.ShutdownGrace)
	}

	e.strategies.Range(func(key, _ any) bool {
		e.strategies.Delete(key)
		return true
	})

	liveLog.Info("engine stopped", "engine", e.name)
	return nil
}

// Running reports whether the engine's periodic tasks are live.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Register adds a strategy. The config is validated and defaults applied;
// duplicate ids are rejected.
func (e *Engine) Register(cfg StrategyConfig) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	kind, err := strategy.ParseKind(cfg.Strategy)
	if err != nil {
		return err
	}

	cell := &strategyCell{
		kind:      kind,
		cfg:       cfg,
		enabled:   true,
		lastReset: e.now(),
	}
	if _, loaded := e.strategies.LoadOrStore(cfg.ID, cell); loaded {
		return errors.New("strategy already registered: " + cfg.ID)
	}

	liveLog.Info("strategy registered", "engine", e.name, "id", cfg.ID, "symbol", cfg.Symbol, "strategy", cfg.Strategy)
	return nil
}

// Unregister removes a strategy and destroys its state.
func (e *Engine) Unregister(id string) bool {
	if _, ok := e.strategies.Load(id); !ok {
		return false
	}
	e.strategies.Delete(id)
	liveLog.Info("strategy unregistered", "engine", e.name, "id", id)
	return true
}

// Enable re-enables a strategy disabled by the risk governor.
func (e *Engine) Enable(id string) bool {
	value, ok := e.strategies.Load(id)
	if !ok {
		return false
	}
	cell := value.(*strategyCell)
	cell.mu.Lock()
	cell.enabled = true
	cell.mu.Unlock()
	return true
}

// Status returns a point-in-time copy of one strategy's state.
func (e *Engine) Status(id string) (Status, bool) {
	value, ok := e.strategies.Load(id)
	if !ok {
		return Status{}, false
	}
	return value.(*strategyCell).status(), true
}

// Statuses returns every strategy's status, ordered by id.
func (e *Engine) Statuses() []Status {
	var out []Status
	e.strategies.Range(func(_, value any) bool {
		out = append(out, value.(*strategyCell).status())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// evaluationLoop reschedules itself with the current window's interval so
// high-frequency windows tick faster without restarting the engine.
func (e *Engine) evaluationLoop(ctx context.Context) {
	defer e.wg.Done()

	timer := time.NewTimer(e.schedule.Current(e.now()).EvalInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.evaluateAll(ctx)
			timer.Reset(e.schedule.Current(e.now()).EvalInterval)
		}
	}
}

func (e *Engine) riskLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.RiskSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.riskSweep()
		}
	}
}

func (e *Engine) statusLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reportStatus()
		}
	}
}

// evaluateAll ticks every registered strategy. A failure or panic in one
// strategy is contained there; the rest of the tick proceeds.
func (e *Engine) evaluateAll(ctx context.Context) {
	e.strategies.Range(func(_, value any) bool {
		e.evaluateStrategy(ctx, value.(*strategyCell))
		return ctx.Err() == nil
	})
}

func (e *Engine) evaluateStrategy(ctx context.Context, cell *strategyCell) {
	defer func() {
		if r := recover(); r != nil {
			liveLog.Error("strategy evaluation panicked", "engine", e.name, "id", cell.cfg.ID, "panic", r)
		}
	}()

	cell.mu.Lock()
	defer cell.mu.Unlock()

	e.resetDailyLocked(cell)
	if !cell.enabled {
		return
	}

	qctx, cancel := context.WithTimeout(ctx, e.opts.QuoteTimeout)
	quote, err := e.quotes.GetCurrentPrice(qctx, cell.cfg.Symbol)
	cancel()
	e.recordQuoteQuery(cell.cfg.Symbol, quote, err)
	if err != nil {
		// Data error: skip this tick, the next scheduled interval retries.
		liveLog.Warn("quote fetch failed", "engine", e.name, "id", cell.cfg.ID, "symbol", cell.cfg.Symbol, "error", err)
		return
	}

	if quote.Price.Sign() <= 0 {
		liveLog.Warn("ignoring non-positive quote", "engine", e.name, "id", cell.cfg.ID, "price", quote.Price.String())
		return
	}

	cell.state.LastPrice = quote.Price
	e.appendHistoryLocked(cell, quote)

	signal := cell.kind.Evaluate(cell.history, cell.cfg.Params)
	if signal == types.BUY {
		e.tryLiveBuy(ctx, cell, quote.Price)
		return
	}
	// Exits are checked every tick: a profit target or stop loss fires even
	// without a bearish signal.
	e.tryLiveSell(ctx, cell, quote.Price, signal == types.SELL)
}

func (e *Engine) appendHistoryLocked(cell *strategyCell, quote broker.Quote) {
	price, _ := quote.Price.Float64()
	cell.history = append(cell.history, types.Bar{
		Timestamp: quote.Time,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	})
	if len(cell.history) > e.opts.HistoryDepth {
		cell.history = cell.history[len(cell.history)-e.opts.HistoryDepth:]
	}
}

// tryLiveBuy submits a buy when the position cap, daily trade cap and price
// limit all allow it. State is only mutated after the submission succeeds.
func (e *Engine) tryLiveBuy(ctx context.Context, cell *strategyCell, price decimal.Decimal) {
	cfg, state := cell.cfg, &cell.state

	if state.DailyTradeCount >= cfg.Risk.MaxDailyTrades {
		return
	}
	if cfg.BuyPriceLimit.Sign() > 0 && price.GreaterThan(cfg.BuyPriceLimit) {
		return
	}

	budget := cfg.TotalInvestment.Mul(decimal.NewFromFloat(cfg.MaxPositionSize))
	maxQty := budget.Div(price).IntPart()
	if state.Position >= maxQty {
		return
	}
	quantity := maxQty - state.Position

	result, err := e.submit(ctx, broker.Order{
		Symbol:    cfg.Symbol,
		Side:      broker.SideBuy,
		Quantity:  quantity,
		Price:     price,
		PriceType: broker.PriceTypeMarket,
	})
	if err != nil {
		// Execution error: no state mutation is applied.
		liveLog.Error("buy submission failed", "engine", e.name, "id", cfg.ID, "error", err)
		return
	}

	cost := state.AvgEntryPrice.Mul(decimal.NewFromInt(state.Position)).
		Add(result.FilledPrice.Mul(decimal.NewFromInt(result.FilledQty)))
	state.Position += result.FilledQty
	state.AvgEntryPrice = cost.Div(decimal.NewFromInt(state.Position))
	state.DailyTradeCount++
	state.LastTradeTime = e.now()

	liveLog.Info("live buy filled", "engine", e.name, "id", cfg.ID, "qty", result.FilledQty, "price", result.FilledPrice.String(), "position", state.Position)
	e.recordTrade(result, types.BUY)
}

// tryLiveSell liquidates the position when the profit target is reached, the
// stop loss triggers, or the indicators align bearishly.
func (e *Engine) tryLiveSell(ctx context.Context, cell *strategyCell, price decimal.Decimal, bearish bool) {
	cfg, state := cell.cfg, &cell.state

	if state.Position <= 0 || state.DailyTradeCount >= cfg.Risk.MaxDailyTrades {
		return
	}

	profitTarget := cfg.TakeProfitPercent > 0 &&
		price.GreaterThanOrEqual(state.AvgEntryPrice.Mul(decimal.NewFromFloat(1+cfg.TakeProfitPercent/100)))
	stopLoss := cfg.StopLossPercent > 0 &&
		price.LessThanOrEqual(state.AvgEntryPrice.Mul(decimal.NewFromFloat(1-cfg.StopLossPercent/100)))

	if !profitTarget && !stopLoss && !bearish {
		return
	}

	result, err := e.submit(ctx, broker.Order{
		Symbol:    cfg.Symbol,
		Side:      broker.SideSell,
		Quantity:  state.Position,
		Price:     price,
		PriceType: broker.PriceTypeMarket,
	})
	if err != nil {
		liveLog.Error("sell submission failed", "engine", e.name, "id", cfg.ID, "error", err)
		return
	}

	realized := result.FilledPrice.Sub(state.AvgEntryPrice).Mul(decimal.NewFromInt(result.FilledQty))
	state.DailyPnL = state.DailyPnL.Add(realized)
	if state.DailyPnL.GreaterThan(state.PeakDailyPnL) {
		state.PeakDailyPnL = state.DailyPnL
	}
	state.Position = 0
	state.AvgEntryPrice = decimal.Zero
	state.DailyTradeCount++
	state.LastTradeTime = e.now()

	liveLog.Info("live sell filled",
		"engine", e.name,
		"id", cfg.ID,
		"qty", result.FilledQty,
		"price", result.FilledPrice.String(),
		"realized", realized.String(),
		"daily_pnl", state.DailyPnL.String(),
		"profit_target", profitTarget,
		"stop_loss", stopLoss,
		"bearish", bearish,
	)
	e.recordTrade(result, types.SELL)
}

func (e *Engine) submit(ctx context.Context, order broker.Order) (broker.OrderResult, error) {
	octx, cancel := context.WithTimeout(ctx, e.opts.OrderTimeout)
	defer cancel()
	return e.executor.Submit(octx, order)
}

// riskSweep disables any strategy whose daily loss or intraday drawdown
// exceeds its configured limit.
func (e *Engine) riskSweep() {
	e.strategies.Range(func(_, value any) bool {
		cell := value.(*strategyCell)
		cell.mu.Lock()
		defer cell.mu.Unlock()

		if !cell.enabled {
			return true
		}

		investment := cell.cfg.TotalInvestment
		if investment.Sign() <= 0 {
			return true
		}

		hundred := decimal.NewFromInt(100)
		lossPct := cell.state.DailyPnL.Div(investment).Mul(hundred)
		limits := cell.cfg.Risk

		if limits.MaxDailyLossPercent > 0 && lossPct.LessThanOrEqual(decimal.NewFromFloat(-limits.MaxDailyLossPercent)) {
			cell.enabled = false
			riskLog.Warn("strategy disabled, daily loss limit breached",
				"engine", e.name, "id", cell.cfg.ID, "daily_pnl", cell.state.DailyPnL.String(), "loss_pct", lossPct.StringFixed(2))
			return true
		}

		drawdownPct := cell.state.PeakDailyPnL.Sub(cell.state.DailyPnL).Div(investment).Mul(hundred)
		if limits.MaxDrawdownPercent > 0 && drawdownPct.GreaterThanOrEqual(decimal.NewFromFloat(limits.MaxDrawdownPercent)) {
			cell.enabled = false
			riskLog.Warn("strategy disabled, intraday drawdown limit breached",
				"engine", e.name, "id", cell.cfg.ID, "drawdown_pct", drawdownPct.StringFixed(2))
		}
		return true
	})
}

// resetDailyLocked rolls counters over at the first tick of a new day and
// re-enables strategies the risk governor disabled the day before.
func (e *Engine) resetDailyLocked(cell *strategyCell) {
	now := e.now()
	y1, m1, d1 := cell.lastReset.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return
	}

	cell.state.DailyPnL = decimal.Zero
	cell.state.PeakDailyPnL = decimal.Zero
	cell.state.DailyTradeCount = 0
	cell.enabled = true
	cell.lastReset = now

	liveLog.Info("daily counters reset", "engine", e.name, "id", cell.cfg.ID)
}

func (e *Engine) reportStatus() {
	for _, status := range e.Statuses() {
		liveLog.Info("strategy status",
			"engine", e.name,
			"id", status.ID,
			"symbol", status.Symbol,
			"enabled", status.Enabled,
			"position", status.Position,
			"avg_entry", status.AvgEntryPrice.String(),
			"daily_pnl", status.DailyPnL.String(),
			"daily_trades", status.DailyTradeCount,
		)
	}
}

// recordTrade and recordQuoteQuery shield trading from audit failures: a
// panicking sink is logged and ignored.
func (e *Engine) recordTrade(result broker.OrderResult, signal types.Action) {
	defer func() {
		if r := recover(); r != nil {
			liveLog.Error("audit trade record failed", "engine", e.name, "panic", r)
		}
	}()
	e.audit.RecordTrade(result, signal)
}

func (e *Engine) recordQuoteQuery(symbol string, quote broker.Quote, err error) {
	defer func() {
		if r := recover(); r != nil {
			liveLog.Error("audit quote record failed", "engine", e.name, "panic", r)
		}
	}()
	e.audit.RecordQuoteQuery(symbol, quote, err)
}

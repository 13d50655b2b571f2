package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"autotrader/internal/backtest"
	"autotrader/internal/broker"
	"autotrader/internal/export"
	"autotrader/internal/live"
	"autotrader/internal/market"
	"autotrader/internal/strategy"
	"autotrader/internal/types"
)

// noHistory forces the backtest engine onto its synthetic fallback series.
// A real market-data provider plugs in through the same interface.
type noHistory struct{}

func (noHistory) GetDailySeries(context.Context, string, time.Time, time.Time) ([]types.Bar, error) {
	return nil, errors.New("no historical provider configured")
}

// syntheticQuotes random-walks a price per symbol for live dry runs.
type syntheticQuotes struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	rng    *rand.Rand
}

func newSyntheticQuotes() *syntheticQuotes {
	return &syntheticQuotes{
		prices: make(map[string]decimal.Decimal),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *syntheticQuotes) GetCurrentPrice(_ context.Context, symbol string) (broker.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		price = decimal.NewFromInt(50000)
	}
	move := decimal.NewFromFloat((s.rng.Float64()*2 - 1) * 0.02)
	price = price.Mul(decimal.NewFromInt(1).Add(move))
	s.prices[symbol] = price

	return broker.Quote{Symbol: symbol, Price: price, Time: time.Now()}, nil
}

func main() {
	registry, err := market.NewRegistry()
	if err != nil {
		slog.Error("failed to load symbol table", "error", err)
		os.Exit(1)
	}

	symbol := envOr("AUTOTRADER_SYMBOL", "005930")
	if _, ok := registry.Lookup(symbol); !ok {
		slog.Error("symbol not in universe", "symbol", symbol)
		os.Exit(1)
	}

	cfg := backtest.Config{
		Symbol:          symbol,
		Strategy:        envOr("AUTOTRADER_STRATEGY", "sma"),
		Params:          strategy.DefaultParams(),
		InitialCapital:  envFloat("AUTOTRADER_CAPITAL", 10_000_000),
		CommissionRate:  envFloat("AUTOTRADER_COMMISSION", 0.00015),
		MaxPositionSize: envFloat("AUTOTRADER_MAX_POSITION", 0.5),
		Start:           time.Now().AddDate(-1, 0, 0),
		End:             time.Now(),
	}

	engine := backtest.NewEngine(noHistory{}, cfg)
	result, err := engine.Run(context.Background())
	if err != nil {
		slog.Error("backtest failed", "error", err)
		os.Exit(1)
	}

	if result.Synthetic {
		slog.Warn("backtest ran on synthetic fallback data")
	}
	result.Metrics.Print()
	export.DumpResult(result)

	if os.Getenv("AUTOTRADER_LIVE") != "1" {
		return
	}

	runLive(registry)
}

func runLive(registry *market.Registry) {
	quotes := newSyntheticQuotes()
	executor := broker.NewSimulatedExecutor()
	audit := broker.LogAuditSink{}

	engines := []*live.Engine{
		live.NewDomesticEngine(quotes, executor, audit, live.Options{
			Defaults: defaultStrategies(registry, "domestic"),
		}),
		live.NewOverseasEngine(quotes, executor, audit, live.Options{
			Defaults: defaultStrategies(registry, "overseas"),
		}),
	}

	ctx := context.Background()
	for _, engine := range engines {
		if err := engine.Start(ctx); err != nil {
			slog.Error("failed to start live engine", "error", err)
			os.Exit(1)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down live engines")
	for _, engine := range engines {
		if err := engine.Stop(); err != nil {
			slog.Warn("engine stop reported", "error", err)
		}
	}
}

func defaultStrategies(registry *market.Registry, marketName string) []live.StrategyConfig {
	var defaults []live.StrategyConfig
	for i, symbol := range registry.ByMarket(marketName) {
		if i >= 3 {
			break
		}
		defaults = append(defaults, live.StrategyConfig{
			ID:              marketName + "-sma-" + symbol.Code,
			Symbol:          symbol.Code,
			Strategy:        "sma",
			TotalInvestment: decimal.NewFromInt(10_000_000),
			Risk: live.RiskLimits{
				MaxDailyLossPercent: 3,
				MaxDrawdownPercent:  5,
				MaxDailyTrades:      10,
			},
		})
	}
	return defaults
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed env value", "key", key, "value", v)
	}
	return fallback
}

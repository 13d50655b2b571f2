package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/logging"
)

var simLog = logging.New("broker")

// SimulatedExecutor fills every valid order at its requested price. It backs
// the backtest path and stands in for a real broker in live dry runs. All
// accepted fills are retained so tests can reconcile engine state against
// the submissions that actually succeeded.
type SimulatedExecutor struct {
	mu    sync.Mutex
	fills []OrderResult
}

func NewSimulatedExecutor() *SimulatedExecutor {
	return &SimulatedExecutor{}
}

func (s *SimulatedExecutor) Submit(ctx context.Context, order Order) (OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return OrderResult{}, err
	}
	if order.Quantity <= 0 {
		return OrderResult{}, fmt.Errorf("invalid order quantity %d for %s", order.Quantity, order.Symbol)
	}
	if order.Price.Sign() <= 0 {
		return OrderResult{}, fmt.Errorf("invalid order price %s for %s", order.Price, order.Symbol)
	}

	result := OrderResult{
		OrderID:     uuid.NewString(),
		Symbol:      order.Symbol,
		Side:        order.Side,
		FilledQty:   order.Quantity,
		FilledPrice: order.Price,
		FilledAt:    time.Now(),
	}

	s.mu.Lock()
	s.fills = append(s.fills, result)
	s.mu.Unlock()

	simLog.Debug("simulated fill", "order_id", result.OrderID, "symbol", order.Symbol, "side", order.Side, "qty", order.Quantity, "price", order.Price.String())
	return result, nil
}

// Fills returns a copy of every accepted fill so far.
func (s *SimulatedExecutor) Fills() []OrderResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderResult, len(s.fills))
	copy(out, s.fills)
	return out
}

// FillCount returns the number of accepted fills, optionally filtered by side.
func (s *SimulatedExecutor) FillCount(side Side) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.fills {
		if side == "" || f.Side == side {
			n++
		}
	}
	return n
}

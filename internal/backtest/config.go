package backtest

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"autotrader/internal/strategy"
)

// Config describes a single backtest run. Construct it with named fields and
// call Validate before running; defaults are applied by WithDefaults.
type Config struct {
	Symbol   string `validate:"required"`
	Strategy string `validate:"required"`
	Params   strategy.Params

	InitialCapital  float64 `validate:"gt=0"`
	CommissionRate  float64 `validate:"gte=0,lt=1"`
	MaxPositionSize float64 `validate:"gt=0,lte=1"`

	Start time.Time
	End   time.Time
}

var validate = validator.New()

// WithDefaults fills unset optional fields. Pure: the receiver is copied.
func (c Config) WithDefaults() Config {
	if c.MaxPositionSize == 0 {
		c.MaxPositionSize = 1.0
	}
	c.Params = c.Params.WithDefaults()
	if c.End.IsZero() {
		c.End = time.Now()
	}
	if c.Start.IsZero() {
		c.Start = c.End.AddDate(-1, 0, 0)
	}
	return c
}

// Validate reports malformed requests: missing fields, non-positive capital,
// an unknown strategy name, or a start date after the end date.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid backtest config: %w", err)
	}
	if _, err := strategy.ParseKind(c.Strategy); err != nil {
		return err
	}
	if c.Start.After(c.End) {
		return fmt.Errorf("start date %s is after end date %s", c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"))
	}
	return c.Params.Validate()
}

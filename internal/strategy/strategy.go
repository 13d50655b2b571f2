// Package strategy maps indicator values over a bar history to trading signals.
//
// Evaluation is a pure function of (history, parameters): the same inputs
// always yield the same signal, which backtest replay depends on. Strategies
// never panic on short histories; they return HOLD until enough bars exist.
package strategy

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"autotrader/internal/logging"
	"autotrader/internal/types"
)

var stratLog = logging.New("strategy")

// Kind identifies a built-in strategy. The set is closed: configuration
// surfaces parse a name into a Kind once, and everything downstream
// switches on the Kind instead of re-matching strings.
type Kind int

const (
	KindSMA Kind = iota
	KindRSI
	KindMACD
)

var kindNames = map[Kind]string{
	KindSMA:  "sma",
	KindRSI:  "rsi",
	KindMACD: "macd",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a configured strategy name. Unknown names are a
// configuration error reported to the caller, never a fallback.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sma":
		return KindSMA, nil
	case "rsi":
		return KindRSI, nil
	case "macd":
		return KindMACD, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}

// Params configures a single strategy evaluation. One bag covers all kinds;
// each kind only reads the fields it needs.
type Params struct {
	ShortPeriod   int     `validate:"gt=0"`
	LongPeriod    int     `validate:"gt=0,gtfield=ShortPeriod"`
	RSIPeriod     int     `validate:"gt=0"`
	RSIOversold   float64 `validate:"gte=0,lte=100"`
	RSIOverbought float64 `validate:"gte=0,lte=100,gtfield=RSIOversold"`
	MACDFast      int     `validate:"gt=0"`
	MACDSlow      int     `validate:"gt=0,gtfield=MACDFast"`
	MACDSignal    int     `validate:"gt=0"`
}

var validate = validator.New()

// DefaultParams returns the conventional indicator settings.
func DefaultParams() Params {
	return Params{
		ShortPeriod:   5,
		LongPeriod:    20,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
	}
}

// WithDefaults fills any zero-valued field from DefaultParams. Pure: the
// receiver is copied, never mutated.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.ShortPeriod == 0 {
		p.ShortPeriod = d.ShortPeriod
	}
	if p.LongPeriod == 0 {
		p.LongPeriod = d.LongPeriod
	}
	if p.RSIPeriod == 0 {
		p.RSIPeriod = d.RSIPeriod
	}
	if p.RSIOversold == 0 {
		p.RSIOversold = d.RSIOversold
	}
	if p.RSIOverbought == 0 {
		p.RSIOverbought = d.RSIOverbought
	}
	if p.MACDFast == 0 {
		p.MACDFast = d.MACDFast
	}
	if p.MACDSlow == 0 {
		p.MACDSlow = d.MACDSlow
	}
	if p.MACDSignal == 0 {
		p.MACDSignal = d.MACDSignal
	}
	return p
}

// Validate checks field and cross-field constraints (short period strictly
// below long period, oversold strictly below overbought).
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid strategy parameters: %w", err)
	}
	return nil
}

// Evaluate derives the signal for the latest bar of the history. bars must
// include the current bar as its last element, ordered ascending.
func (k Kind) Evaluate(bars []types.Bar, p Params) types.Action {
	if len(bars) == 0 {
		return types.HOLD
	}

	var action types.Action
	switch k {
	case KindSMA:
		action = evalSMACrossover(bars, p)
	case KindRSI:
		action = evalRSI(bars, p)
	case KindMACD:
		action = evalMACD(bars, p)
	default:
		action = types.HOLD
	}

	if action != types.HOLD {
		stratLog.Debug("signal generated", "kind", k.String(), "action", action, "bars", len(bars), "close", bars[len(bars)-1].Close)
	}
	return action
}

package live

import (
	"time"
)

// Window is a named time-of-day interval with its own evaluation cadence.
// Tables of windows partition the full day; the last window wraps across
// midnight so every wall-clock time maps to exactly one window.
type Window struct {
	Name         string
	StartMinute  int // minutes after midnight, inclusive
	EndMinute    int // minutes after midnight, exclusive; wraps when < StartMinute
	EvalInterval time.Duration
	HighFreq     bool
	Market       bool // exchange session is open
	Tradable     bool // orders may be submitted
}

// Schedule is a data-driven window table for one market calendar.
type Schedule struct {
	windows []Window
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func (w Window) contains(minute int) bool {
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	// wrap-around window spanning midnight
	return minute >= w.StartMinute || minute < w.EndMinute
}

// Current returns the window covering t. The first window is the fallback;
// a partitioning table never reaches it through fallthrough.
func (s *Schedule) Current(t time.Time) Window {
	minute := minuteOfDay(t)
	for _, w := range s.windows {
		if w.contains(minute) {
			return w
		}
	}
	return s.windows[0]
}

// Next returns the window following w in the daily cycle. The cycle is
// closed: the last window's successor is the first.
func (s *Schedule) Next(w Window) Window {
	for i, candidate := range s.windows {
		if candidate.Name == w.Name {
			return s.windows[(i+1)%len(s.windows)]
		}
	}
	return s.windows[0]
}

// Windows returns the table in cycle order.
func (s *Schedule) Windows() []Window {
	out := make([]Window, len(s.windows))
	copy(out, s.windows)
	return out
}

// IsMarketHours reports whether the exchange session is open at t.
func (s *Schedule) IsMarketHours(t time.Time) bool {
	return s.Current(t).Market
}

// IsTradableHours reports whether orders may be submitted at t.
func (s *Schedule) IsTradableHours(t time.Time) bool {
	return s.Current(t).Tradable
}

// IsHighFrequency reports whether t falls in a high-frequency window.
func (s *Schedule) IsHighFrequency(t time.Time) bool {
	return s.Current(t).HighFreq
}

// NewDomesticSchedule returns the window table for the domestic session
// (09:00-15:30 exchange hours).
func NewDomesticSchedule() *Schedule {
	return &Schedule{windows: []Window{
		{Name: "pre-market", StartMinute: 8 * 60, EndMinute: 9 * 60, EvalInterval: time.Minute},
		{Name: "opening", StartMinute: 9 * 60, EndMinute: 9*60 + 30, EvalInterval: 10 * time.Second, HighFreq: true, Market: true, Tradable: true},
		{Name: "morning", StartMinute: 9*60 + 30, EndMinute: 11*60 + 30, EvalInterval: 30 * time.Second, Market: true, Tradable: true},
		{Name: "lunch", StartMinute: 11*60 + 30, EndMinute: 13 * 60, EvalInterval: time.Minute, Market: true, Tradable: true},
		{Name: "afternoon", StartMinute: 13 * 60, EndMinute: 15 * 60, EvalInterval: 30 * time.Second, Market: true, Tradable: true},
		{Name: "closing", StartMinute: 15 * 60, EndMinute: 15*60 + 30, EvalInterval: 10 * time.Second, HighFreq: true, Market: true, Tradable: true},
		{Name: "post-close", StartMinute: 15*60 + 30, EndMinute: 16 * 60, EvalInterval: 2 * time.Minute},
		{Name: "overnight", StartMinute: 16 * 60, EndMinute: 8 * 60, EvalInterval: 10 * time.Minute},
	}}
}

// NewOverseasSchedule returns the window table for the overseas session
// (23:30-06:00 local, spanning midnight).
func NewOverseasSchedule() *Schedule {
	return &Schedule{windows: []Window{
		{Name: "pre-market", StartMinute: 22 * 60, EndMinute: 23*60 + 30, EvalInterval: time.Minute},
		{Name: "opening", StartMinute: 23*60 + 30, EndMinute: 0, EvalInterval: 10 * time.Second, HighFreq: true, Market: true, Tradable: true},
		{Name: "session", StartMinute: 0, EndMinute: 5*60 + 30, EvalInterval: 30 * time.Second, Market: true, Tradable: true},
		{Name: "closing", StartMinute: 5*60 + 30, EndMinute: 6 * 60, EvalInterval: 10 * time.Second, HighFreq: true, Market: true, Tradable: true},
		{Name: "post-close", StartMinute: 6 * 60, EndMinute: 7 * 60, EvalInterval: 2 * time.Minute},
		{Name: "daytime", StartMinute: 7 * 60, EndMinute: 22 * 60, EvalInterval: 10 * time.Minute},
	}}
}

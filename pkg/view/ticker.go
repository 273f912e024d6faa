package view

import "time"

// Ticker is the frame timer a generation owns.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a running ticker with the given period.
type TickerFactory func(d time.Duration) Ticker

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// SystemTickers backs frame timers with time.Ticker.
func SystemTickers(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

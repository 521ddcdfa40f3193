// Package sched provides the small time abstractions the background loops
// are built on, so tests can advance ticks without wall-clock delay.
package sched

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock returns time.Now in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker for the given period.
type TickerFactory func(period time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

// NewTicker creates a wall-clock Ticker. It is the default TickerFactory.
func NewTicker(period time.Duration) Ticker {
	return realTicker{t: time.NewTicker(period)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }

func (r realTicker) Stop() { r.t.Stop() }

// ManualTicker is a test ticker advanced by explicit Tick calls.
type ManualTicker struct {
	ch chan time.Time
}

// NewManualTicker constructs a ManualTicker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time, 1)}
}

// C implements Ticker.
func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Stop implements Ticker.
func (m *ManualTicker) Stop() {}

// Tick delivers one tick at the given time.
func (m *ManualTicker) Tick(at time.Time) {
	m.ch <- at
}

// Package clock is the time source for TTLs, lifecycle guards, reminder due
// checks and background tickers. Production code runs on the wall clock in
// UTC; tests drive a mock.
package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock is the benbjohnson/clock interface: Now plus timers and tickers
type Clock = bclock.Clock

type utcClock struct {
	bclock.Clock
}

func (c utcClock) Now() time.Time { return c.Clock.Now().UTC() }

// Real returns the wall clock with Now in UTC
func Real() Clock { return utcClock{Clock: bclock.New()} }

// Fake is a mock clock that only moves when told to. Tickers created from it
// fire as it advances.
type Fake struct {
	*bclock.Mock
}

// NewFake creates a fake clock frozen at t
func NewFake(t time.Time) *Fake {
	m := bclock.NewMock()
	m.Set(t.UTC())
	return &Fake{Mock: m}
}

// Advance moves the clock forward by d
func (f *Fake) Advance(d time.Duration) { f.Mock.Add(d) }

// Set moves the clock to t
func (f *Fake) Set(t time.Time) { f.Mock.Set(t.UTC()) }

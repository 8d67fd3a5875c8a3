// Package ts provides the one clock everything shares.
//
// Competition timing is all whole-second epochs, so the clock truncates to
// the second; nothing in this repository wants sub-second time.
package ts

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock wraps a clockwork.Clock so Now is already truncated.
type Clock struct {
	realClock clockwork.Clock
}

func NewRealClock() *Clock {
	return New(clockwork.NewRealClock())
}

// New wraps an existing clockwork clock; tests pass a fake one.
func New(c clockwork.Clock) *Clock {
	return &Clock{realClock: c}
}

func (c *Clock) Now() time.Time {
	return c.realClock.Now().Truncate(time.Second)
}

func (c *Clock) RealClock() clockwork.Clock {
	return c.realClock
}

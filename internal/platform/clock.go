package platform

import "time"

// Clock is the process-wide monotonic clock. It is an interface so that a
// fake implementation can stand in for SystemClock, the production one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock, backed by time.Now (which is already
// monotonic on all platforms this core targets).
var SystemClock Clock = systemClock{}

// Elapsed returns the duration since since as measured by clock.
func Elapsed(clock Clock, since time.Time) time.Duration {
	return clock.Now().Sub(since)
}

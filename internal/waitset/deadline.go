package waitset

import (
	"time"

	"golang.org/x/time/rate"
)

// pollLimiter bounds how often WaitAndProcess re-scans its attachment
// table. golang.org/x/time/rate's token bucket (burst 1) gives a
// smooth cap instead of a fixed sleep: every pass takes one token,
// however many attachments are ready, so passes never exceed hz per
// second.
type pollLimiter struct {
	limiter *rate.Limiter
}

// defaultPollHz is how many full poll passes per second a WaitSet makes
// while idle; an attached DeadlineSource firing is still only ever
// detected on the next pass, so this also bounds deadline-check latency.
const defaultPollHz = 200

func newPollLimiter(hz float64) *pollLimiter {
	if hz <= 0 {
		hz = defaultPollHz
	}
	return &pollLimiter{limiter: rate.NewLimiter(rate.Limit(hz), 1)}
}

// DeadlineSource fires once per interval, 
// per-attachment deadline monitor (e.g. "no sample received within N").
type DeadlineSource struct {
	interval time.Duration
	last     time.Time
	kind     string
}

func NewDeadlineSource(kind string, interval time.Duration) *DeadlineSource {
	return &DeadlineSource{interval: interval, last: time.Now(), kind: kind}
}

func (d *DeadlineSource) Poll() bool {
	if time.Since(d.last) >= d.interval {
		d.last = time.Now()
		return true
	}
	return false
}

func (d *DeadlineSource) Kind() string { return d.kind }

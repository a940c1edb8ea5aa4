package iceoryx2

import (
	"context"
	"time"

	"github.com/ocx/iceoryx2/internal/waitset"
)

// WaitSet demultiplexes Listener notifications and deadline timers onto a
// single-threaded poll loop, so one goroutine can service several ports
// without a reader per port. It is the exported form of
// internal/waitset.WaitSet — re-exported rather than wrapped, since
// Listener already implements waitset.Source directly.
type WaitSet = waitset.WaitSet

// Source is anything a WaitSet can wait on. Listener implements it.
type Source = waitset.Source

// Guard detaches its source from the WaitSet when Closed.
type Guard = waitset.Guard

// DeadlineSource fires once per interval, for attaching a liveness or
// timeout check alongside Listener sources on the same WaitSet.
type DeadlineSource = waitset.DeadlineSource

// NewDeadlineSource builds a DeadlineSource labeled kind that fires every
// interval.
func NewDeadlineSource(kind string, interval time.Duration) *DeadlineSource {
	return waitset.NewDeadlineSource(kind, interval)
}

// NewWaitSet creates a WaitSet polling its attachments at most pollHz
// times per second (0 uses the package default).
func NewWaitSet(pollHz float64) *WaitSet { return waitset.New(pollHz) }

// WithSignalCancel returns a context cancelled on SIGINT/SIGTERM, for
// running a WaitAndProcess loop under cooperative shutdown.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	return waitset.WithSignalCancel(parent)
}

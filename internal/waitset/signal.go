package waitset

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignalCancel returns a context that is cancelled on SIGINT/SIGTERM,
// the cooperative-cancellation mechanism a long-running WaitAndProcess
// loop should run under, matching cmd/probe's
// signal.NotifyContext shutdown pattern. The returned stop func must be
// deferred to release the signal handler.
func WithSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

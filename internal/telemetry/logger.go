// Package telemetry holds the core's process-wide ambient observability:
// a single initialise-once structured logger and the Prometheus metrics
// exported by the allocator, registry, ports, and WaitSet.
package telemetry

import (
	"log/slog"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// Init installs the process-wide logger. First caller wins; subsequent
// calls are no-ops.
func Init(level string) {
	loggerOnce.Do(func() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLevel(level),
		}))
	})
}

// Logger returns the process-wide logger, initialising it with default
// settings if Init was never called.
func Logger() *slog.Logger {
	Init("info")
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

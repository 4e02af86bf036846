package worker

import (
	"time"

	"github.com/okian/winchain/pkg/logger"
)

// Option applies a configuration option to the RefreshWorker.
type Option func(*RefreshWorker)

// WithName sets the worker name reported in the "worker" field of every
// log line.
func WithName(name string) Option {
	return func(w *RefreshWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *RefreshWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithInterval schedules a rebuild every d in addition to queued requests.
func WithInterval(d time.Duration) Option {
	return func(w *RefreshWorker) {
		if d > 0 {
			w.interval = d
		}
	}
}

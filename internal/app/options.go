package app

import (
	"time"

	"github.com/okian/winchain/pkg/logger"
)

// Default service configuration constants.
const (
	defaultPageSize      = 10_000
	defaultProgressEvery = 10_000
	defaultQueueSize     = 64
	defaultDedupeSize    = 10_000
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSnapshotStore persists every committed snapshot and loads the last one
// on first use. Without it the service rebuilds from storage.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(s *Service) {
		if store != nil {
			s.snapshots = store
		}
	}
}

// WithPageSize sets how many games are read per storage page.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithProgressEvery logs build progress every n games. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.progressEvery = n
		}
	}
}

// WithLazyBuild controls whether the first chain query may build the graphs
// synchronously when no snapshot can be loaded.
func WithLazyBuild(enabled bool) Option {
	return func(s *Service) {
		s.lazyBuild = enabled
	}
}

// WithRebuildOnStart queues a rebuild as soon as the service starts.
func WithRebuildOnStart(enabled bool) Option {
	return func(s *Service) {
		s.rebuildOnStart = enabled
	}
}

// WithRefreshQueueSize sets the maximum number of pending refresh requests.
func WithRefreshQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many refresh job ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRefreshInterval schedules periodic rebuilds. Zero disables them.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

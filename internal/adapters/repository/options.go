package repository

import "time"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithMaxOpenConns caps open connections. SQLite defaults to one.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime recycles pooled connections after d.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithInsertBatch sets how many games SaveGames writes per transaction.
func WithInsertBatch(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.insertBatch = n
		}
	}
}

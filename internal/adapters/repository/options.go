package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSnapshotInterval sets how often the stats snapshot is rebuilt.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithMaxResults bounds the number of kept results; the oldest are dropped
// first. Zero or negative keeps everything.
func WithMaxResults(n int) Option {
	return func(s *MemoryStore) {
		s.maxResults = n
	}
}

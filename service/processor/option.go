package processor

import "time"

// Option customises the processor
type Option func(*Service)

// WithTTL sets the dispatch lease duration; the lease is extended every ttl/2.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithKeepAlive overrides the lease extension interval
func WithKeepAlive(interval time.Duration) Option {
	return func(s *Service) {
		s.keepAlive = interval
	}
}

package task

import "digital.vasic.nback/pkg/clock"

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the timing and generation parameters.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithSequenceSource sets where the stimulus sequence comes from.
// The default is a time-seeded sequence.Generator built from the
// session config.
func WithSequenceSource(src SequenceSource) Option {
	return func(s *Session) {
		s.source = src
	}
}

// WithClock sets the phase clock.
func WithClock(c *clock.TrialClock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithObserver adds an event observer. Observers run in the order
// they were added.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithLogger sets the logger used by the session.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

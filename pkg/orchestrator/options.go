package orchestrator

import (
	"math/rand/v2"

	"digital.vasic.nback/pkg/clock"
	"digital.vasic.nback/pkg/metrics"
	"digital.vasic.nback/pkg/motion"
	"digital.vasic.nback/pkg/report"
	"digital.vasic.nback/pkg/task"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used by the orchestrator and its
// sessions.
func WithLogger(logger task.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithReporter sets where finished levels are recorded.
func WithReporter(r report.Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.SessionMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithMotionRecorder attaches a motion recorder. Its window is
// opened when a session starts; the samples are attached to the
// session result on finish and discarded on cancel.
func WithMotionRecorder(r *motion.Recorder) Option {
	return func(o *Orchestrator) {
		o.motion = r
	}
}

// WithObserver adds an observer that receives the events of every
// session the orchestrator runs.
func WithObserver(obs task.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithConfig sets the session parameters.
func WithConfig(cfg task.Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg
	}
}

// WithRand sets the random source used for sequence generation
// and reshuffling.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		o.rng = rng
	}
}

// WithSequenceSource overrides sequence generation for every
// session.
func WithSequenceSource(src task.SequenceSource) Option {
	return func(o *Orchestrator) {
		o.source = src
	}
}

// WithReshuffle makes Restart shuffle the level order instead of
// restoring the initial one.
func WithReshuffle() Option {
	return func(o *Orchestrator) {
		o.reshuffle = true
	}
}

// WithClock sets the phase clock shared by all sessions.
func WithClock(c *clock.TrialClock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithParticipant sets the participant identifier attached to
// every record.
func WithParticipant(id string) Option {
	return func(o *Orchestrator) {
		o.participant = id
	}
}

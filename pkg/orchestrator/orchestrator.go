// Package orchestrator runs a participant through an ordered list
// of n-back levels: one task session per level, a reporting step
// with an optional difficulty rating between levels, and restart
// or early exit at any point.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"digital.vasic.nback/pkg/clock"
	"digital.vasic.nback/pkg/metrics"
	"digital.vasic.nback/pkg/motion"
	"digital.vasic.nback/pkg/report"
	"digital.vasic.nback/pkg/sequence"
	"digital.vasic.nback/pkg/task"
)

// State is the orchestrator lifecycle state.
type State string

const (
	// StateIdle is the entry point: no session is active.
	StateIdle State = "idle"
	// StateRunning means a session is in progress.
	StateRunning State = "running"
	// StateAwaitingAdvance means the active level finished and
	// its result waits to be reported.
	StateAwaitingAdvance State = "awaiting_advance"
	// StateReporting means Advance is handing the result to the
	// reporter.
	StateReporting State = "reporting"
	// StateCancelled means the active session was cancelled.
	StateCancelled State = "cancelled"
	// StateComplete means every level of the order was recorded.
	StateComplete State = "complete"
)

// ErrInvalidTransition is task.ErrInvalidTransition; the
// orchestrator reports out-of-state calls with the same sentinel.
var ErrInvalidTransition = task.ErrInvalidTransition

// Orchestrator owns the level order and the single active
// session. All methods are safe for concurrent use.
type Orchestrator struct {
	initial     Order
	cfg         task.Config
	rng         *rand.Rand
	source      task.SequenceSource
	clock       *clock.TrialClock
	logger      task.Logger
	reporter    report.Reporter
	metrics     metrics.SessionMetrics
	motion      *motion.Recorder
	observers   []task.Observer
	reshuffle   bool
	participant string

	mu       sync.Mutex
	order    Order
	index    int
	recorded int
	state    State
	session  *task.Session
	pending  *task.Result
	records  []report.Record
}

// New creates an orchestrator for order. The order is copied.
func New(order Order, opts ...Option) (*Orchestrator, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		initial: order.Clone(),
		order:   order.Clone(),
		cfg:     task.DefaultConfig(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	if o.reporter == nil {
		o.reporter = report.MultiReporter(nil)
	}
	if o.metrics == nil {
		o.metrics = metrics.NoopMetrics{}
	}
	if o.motion == nil {
		o.motion = motion.NewRecorder()
	}
	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Order returns a copy of the current level order.
func (o *Orchestrator) Order() Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.order.Clone()
}

// Index returns the position of the current level in the order.
func (o *Orchestrator) Index() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index
}

// CurrentLevel returns the level at the current index.
func (o *Orchestrator) CurrentLevel() task.Level {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.order[o.index]
}

// Active returns the running or just-finished session, or nil.
func (o *Orchestrator) Active() *task.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Pending returns the finished result awaiting Advance, or nil.
func (o *Orchestrator) Pending() *task.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending
}

// Records returns the records reported so far in this run.
func (o *Orchestrator) Records() []report.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]report.Record, len(o.records))
	copy(out, o.records)
	return out
}

// Participant returns the participant identifier.
func (o *Orchestrator) Participant() string { return o.participant }

// Config returns the parameters used for the next session.
func (o *Orchestrator) Config() task.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// SetConfig replaces the parameters used for the next session.
// A running session keeps its own.
func (o *Orchestrator) SetConfig(cfg task.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	o.logger.Info(
		"session config updated",
		"display_ms", cfg.DisplayDuration.Milliseconds(),
		"hidden_ms", cfg.HiddenDuration.Milliseconds(),
		"required_matches", cfg.RequiredMatches,
	)
	return nil
}

// Start starts a session for the current level. It is valid from
// the entry point and after a cancel, which re-runs the level.
func (o *Orchestrator) Start(ctx context.Context) (*task.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle && o.state != StateCancelled {
		return nil, o.invalidLocked("start")
	}
	return o.startLocked(ctx)
}

// SubmitResponse forwards a match response to the active session.
func (o *Orchestrator) SubmitResponse() error {
	o.mu.Lock()
	s := o.session
	running := o.state == StateRunning
	o.mu.Unlock()

	if !running || s == nil {
		o.logger.Warn("response ignored", "reason", "no running session")
		return fmt.Errorf("%w: no running session", ErrInvalidTransition)
	}
	return s.SubmitResponse()
}

// Cancel cancels the running session. The level can then be
// started again or the run restarted. It reports whether a
// session was cancelled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	s := o.session
	running := o.state == StateRunning
	o.mu.Unlock()

	if !running || s == nil || !s.Cancel() {
		return false
	}

	o.mu.Lock()
	if o.session == s {
		o.markCancelledLocked(s)
	}
	o.mu.Unlock()
	return true
}

// Advance records the finished level with an optional 1..7
// difficulty rating and starts the next level with a freshly
// generated sequence. Reporter errors are logged and do not stop
// the run. Once every level of the order is recorded the run is
// complete and Advance returns a nil session.
func (o *Orchestrator) Advance(
	ctx context.Context,
	rating *int,
) (*task.Session, error) {
	o.mu.Lock()
	if o.state != StateAwaitingAdvance {
		err := o.invalidLocked("advance")
		o.mu.Unlock()
		return nil, err
	}
	if rating != nil {
		if err := report.ValidateRating(*rating); err != nil {
			o.mu.Unlock()
			return nil, err
		}
		r := *rating
		rating = &r
	}
	rec := report.Record{
		Result:      o.pending,
		Rating:      rating,
		Participant: o.participant,
		Position:    o.index,
		RecordedAt:  o.clock.Now(),
	}
	o.state = StateReporting
	o.mu.Unlock()

	if err := o.reporter.Report(ctx, rec); err != nil {
		o.logger.Error(
			"report failed",
			"session_id", rec.Result.SessionID,
			"level", int(rec.Result.Level),
			"error", err.Error(),
		)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateReporting {
		return nil, fmt.Errorf(
			"%w: run was reset while reporting", ErrInvalidTransition,
		)
	}

	o.records = append(o.records, rec)
	o.pending = nil
	o.recorded++

	if o.recorded >= len(o.order) {
		o.state = StateComplete
		o.session = nil
		o.metrics.IncrementRunTotal()
		o.logger.Info(
			"run complete",
			"participant", o.participant,
			"levels", o.recorded,
		)
		return nil, nil
	}

	o.index = (o.index + 1) % len(o.order)
	return o.startLocked(ctx)
}

// Restart resets the level order and index. The order returns to
// its initial assignment, or is reshuffled when the orchestrator
// was built WithReshuffle. It is only valid between sessions or
// after a cancel.
func (o *Orchestrator) Restart() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateIdle, StateAwaitingAdvance, StateCancelled, StateComplete:
	default:
		return o.invalidLocked("restart")
	}

	o.resetLocked()
	if o.reshuffle {
		o.order.shuffle(o.rng)
	}
	o.logger.Info("run restarted", "order", o.order.String())
	return nil
}

// ExitEarly cancels any active session, discards its data and
// returns to the entry point with the initial order.
func (o *Orchestrator) ExitEarly() {
	o.mu.Lock()
	s := o.session
	wasRunning := o.state == StateRunning
	o.resetLocked()
	o.mu.Unlock()

	if s != nil && s.Cancel() && wasRunning {
		o.metrics.RecordSession(
			int(s.Level()), metrics.StatusCancelled, 0,
		)
	}
	o.logger.Info("run exited early")
}

func (o *Orchestrator) resetLocked() {
	o.order = o.initial.Clone()
	o.index = 0
	o.recorded = 0
	o.records = nil
	o.pending = nil
	o.session = nil
	o.state = StateIdle
	o.motion.Discard()
	o.metrics.SetActiveLevel(0)
}

func (o *Orchestrator) startLocked(ctx context.Context) (*task.Session, error) {
	level := o.order[o.index]

	src := o.source
	if src == nil {
		src = sequence.NewGenerator(o.rng, o.cfg.Params())
	}
	s, err := task.NewSession(
		level,
		task.WithConfig(o.cfg),
		task.WithSequenceSource(src),
		task.WithClock(o.clock),
		task.WithLogger(o.logger),
		task.WithObserver(o.handle),
	)
	if err != nil {
		return nil, err
	}

	o.session = s
	o.pending = nil
	o.state = StateRunning
	o.motion.Begin(s.ID())
	o.metrics.SetActiveLevel(int(level))

	if err := s.Start(ctx); err != nil {
		o.session = nil
		o.state = StateIdle
		o.motion.Discard()
		o.metrics.SetActiveLevel(0)
		return nil, err
	}
	return s, nil
}

// handle tracks the active session's terminal events and fans
// every event out to the observers. Events of sessions that are
// no longer active do not change state.
func (o *Orchestrator) handle(ev task.Event) {
	o.mu.Lock()
	current := o.session != nil && o.session.ID() == ev.SessionID

	if current {
		switch ev.Type {
		case task.EventResponseAccepted:
			if fb := ev.Display.Feedback; fb != nil {
				o.metrics.RecordResponse(
					int(ev.Level), fb.IsCorrect, ev.ReactionTime,
				)
			}
		case task.EventSessionFinished:
			o.finishLocked(ev)
		case task.EventSessionCancelled:
			o.markCancelledLocked(o.session)
		}
	}
	o.mu.Unlock()

	for _, obs := range o.observers {
		obs(ev)
	}
}

func (o *Orchestrator) finishLocked(ev task.Event) {
	res := *ev.Result
	if key, samples := o.motion.End(); key == ev.SessionID && len(samples) > 0 {
		res.Motion = samples
	}
	o.pending = &res
	o.state = StateAwaitingAdvance
	o.metrics.RecordSession(
		int(res.Level), metrics.StatusFinished, res.Duration,
	)
	o.metrics.SetActiveLevel(0)
	o.logger.Info(
		"level finished",
		"session_id", res.SessionID,
		"level", int(res.Level),
		"position", o.index,
		"accuracy", res.AccuracyPercent,
	)
}

func (o *Orchestrator) markCancelledLocked(s *task.Session) {
	o.session = nil
	o.pending = nil
	o.state = StateCancelled
	o.motion.Discard()
	o.metrics.RecordSession(int(s.Level()), metrics.StatusCancelled, 0)
	o.metrics.SetActiveLevel(0)
	o.logger.Info(
		"level cancelled",
		"session_id", s.ID(),
		"level", int(s.Level()),
	)
}

func (o *Orchestrator) invalidLocked(op string) error {
	o.logger.Warn("invalid transition", "op", op, "state", string(o.state))
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, o.state)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}

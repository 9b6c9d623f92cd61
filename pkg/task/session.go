package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"digital.vasic.nback/pkg/clock"
	"digital.vasic.nback/pkg/sequence"
)

// Session runs the n-back task for one level. A single driving
// goroutine advances trials through the TrialClock; SubmitResponse
// and Cancel may be called from any goroutine. Every mutation made
// on timer expiry first checks, under the session mutex, that the
// session was not cancelled, so a timer racing a cancel can never
// change state.
//
// Events are queued under the mutex in the order the state changed
// and delivered one at a time, without the mutex held, by whichever
// goroutine caused them. An observer may call back into the
// session; the events it causes are delivered after it returns.
// Done is closed once the terminal event has been delivered.
type Session struct {
	id        string
	level     Level
	cfg       Config
	source    SequenceSource
	clock     *clock.TrialClock
	logger    Logger
	observers []Observer

	mu           sync.Mutex
	state        State
	seq          sequence.Sequence
	index        int
	matchCount   int
	falseAlarms  int
	responses    int
	responseOpen bool
	current      TrialState
	feedback     *Feedback
	trials       []TrialState
	startedAt    time.Time
	result       *Result
	cancel       context.CancelFunc
	outbox       []outgoing
	delivering   bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession creates a session for level in the awaiting_start
// state.
func NewSession(level Level, opts ...Option) (*Session, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	s := &Session{
		level: level,
		cfg:   DefaultConfig(),
		state: StateAwaitingStart,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.source == nil {
		s.source = sequence.NewGenerator(nil, s.cfg.Params())
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Level returns the n-back level.
func (s *Session) Level() Level { return s.level }

// Config returns the session parameters.
func (s *Session) Config() Config { return s.cfg }

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sequence returns the stimulus sequence. It is empty before
// Start.
func (s *Session) Sequence() sequence.Sequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Index returns the current trial index.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// MatchCount returns the number of correct match detections so
// far.
func (s *Session) MatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchCount
}

// Display returns what should currently be rendered.
func (s *Session) Display() Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayLocked()
}

// Trials returns the completed trials.
func (s *Session) Trials() []TrialState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrialState, len(s.trials))
	copy(out, s.trials)
	return out
}

// Result returns the session result, or nil unless the session
// finished.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Start generates the sequence, enters the display phase of trial
// 0 and drives the session on a new goroutine.
func (s *Session) Start(ctx context.Context) error {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	go s.loop(runCtx)
	return nil
}

// Run is like Start but drives the session on the calling
// goroutine and returns its Result. It returns ErrCancelled when
// the session was cancelled.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	runCtx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	s.loop(runCtx)
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFinished {
		return nil, ErrCancelled
	}
	return s.result, nil
}

// SubmitResponse records a match response for the current trial.
// It is only accepted while the response window is open; the
// window closes immediately so at most one response counts per
// trial. The trial index is not advanced.
func (s *Session) SubmitResponse() error {
	s.mu.Lock()
	if !s.state.InTrial() || !s.responseOpen {
		st := s.state
		idx := s.index
		s.mu.Unlock()
		s.logger.Warn(
			"response ignored",
			"session_id", s.id,
			"state", string(st),
			"trial", idx,
		)
		return fmt.Errorf(
			"%w: response window closed in state %s",
			ErrInvalidTransition, st,
		)
	}

	s.responseOpen = false
	rt := s.clock.Now().Sub(s.current.DisplayedAt)
	if rt < 0 {
		rt = 0
	}
	s.current.Responded = true
	s.current.ReactionTime = &rt
	s.responses++

	correct := s.current.IsMatch
	if correct {
		s.matchCount++
	} else {
		s.falseAlarms++
	}
	s.feedback = newFeedback(correct)

	ev := s.eventLocked(EventResponseAccepted)
	ev.ReactionTime = rt
	s.queueLocked(ev)
	s.mu.Unlock()
	s.deliver()

	s.logger.Debug(
		"response accepted",
		"session_id", s.id,
		"trial", ev.Trial,
		"correct", correct,
		"reaction_time_ms", rt.Milliseconds(),
	)
	return nil
}

// Cancel stops the session from any non-terminal state. The
// pending wait resolves early, the in-flight trial is discarded
// and no Result is produced. It reports whether the call changed
// the state.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.state.IsFinal() {
		s.mu.Unlock()
		return false
	}

	if s.state == StateAwaitingStart {
		s.state = StateCancelled
		s.queueLocked(s.eventLocked(EventSessionCancelled))
		s.queueDoneLocked()
		s.mu.Unlock()
		s.deliver()
		return true
	}

	s.state = StateCancelled
	s.responseOpen = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	return true
}

func (s *Session) begin(
	ctx context.Context,
) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingStart {
		return nil, fmt.Errorf(
			"%w: start from %s", ErrInvalidTransition, s.state,
		)
	}

	seq, err := s.source.Generate(int(s.level))
	if err != nil {
		return nil, fmt.Errorf("generate sequence: %w", err)
	}

	s.seq = seq
	s.index = 0
	s.matchCount = 0
	s.falseAlarms = 0
	s.responses = 0
	s.trials = make([]TrialState, 0, seq.Len())
	s.startedAt = s.clock.Now()
	s.state = StateTrialDisplay

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info(
		"session started",
		"session_id", s.id,
		"level", int(s.level),
		"sequence_length", seq.Len(),
	)
	return runCtx, nil
}

// loop is the driving state machine. Each iteration runs one
// trial's phases and then advances the index.
func (s *Session) loop(ctx context.Context) {
	defer s.finish()
	defer s.cancel()

	s.mu.Lock()
	s.queueLocked(s.eventLocked(EventSessionStarted))
	s.mu.Unlock()
	s.deliver()

	phases := s.trialPhases(ctx)

	for {
		s.mu.Lock()
		if !s.liveLocked(ctx) {
			s.mu.Unlock()
			s.abort()
			return
		}
		if s.index >= s.seq.Len() {
			ev := s.finishLocked()
			s.queueLocked(ev)
			s.mu.Unlock()
			s.logger.Info(
				"session finished",
				"session_id", s.id,
				"level", int(s.level),
				"match_count", ev.Result.MatchCount,
				"accuracy", ev.Result.AccuracyPercent,
			)
			return
		}
		s.mu.Unlock()

		if s.clock.RunPhases(ctx, phases) == clock.Cancelled {
			s.abort()
			return
		}

		s.mu.Lock()
		if !s.liveLocked(ctx) {
			s.mu.Unlock()
			s.abort()
			return
		}
		s.index++
		if s.index >= s.seq.Len() {
			s.mu.Unlock()
			continue
		}
		s.queueLocked(s.eventLocked(EventTrialAdvanced))
		s.mu.Unlock()
		s.deliver()
	}
}

func (s *Session) trialPhases(ctx context.Context) []clock.Phase {
	phases := []clock.Phase{
		{
			Name:     "display",
			Duration: s.cfg.DisplayDuration,
			OnEnter:  func() { s.enterDisplay(ctx) },
		},
		{
			Name:     "hidden",
			Duration: s.cfg.HiddenDuration,
			OnEnter:  func() { s.enterHidden(ctx) },
			OnExit:   func() { s.closeWindow(ctx) },
		},
	}
	if s.cfg.FeedbackHold > 0 {
		phases = append(phases, clock.Phase{
			Name:     "feedback",
			Duration: s.cfg.FeedbackHold,
		})
	}
	return phases
}

func (s *Session) enterDisplay(ctx context.Context) {
	s.mu.Lock()
	if !s.liveLocked(ctx) {
		s.mu.Unlock()
		return
	}
	s.state = StateTrialDisplay
	s.current = TrialState{
		Index:       s.index,
		Digit:       s.seq.At(s.index),
		IsMatch:     s.isMatchLocked(s.index),
		DisplayedAt: s.clock.Now(),
	}
	s.responseOpen = true
	s.feedback = nil
	s.queueLocked(s.eventLocked(EventStimulusShown))
	s.mu.Unlock()
	s.deliver()
}

func (s *Session) enterHidden(ctx context.Context) {
	s.mu.Lock()
	if !s.liveLocked(ctx) {
		s.mu.Unlock()
		return
	}
	s.state = StateTrialHidden
	s.queueLocked(s.eventLocked(EventStimulusHidden))
	s.mu.Unlock()
	s.deliver()
}

func (s *Session) closeWindow(ctx context.Context) {
	s.mu.Lock()
	if !s.liveLocked(ctx) {
		s.mu.Unlock()
		return
	}
	s.responseOpen = false
	s.trials = append(s.trials, s.current)
	done := s.current
	ev := s.eventLocked(EventResponseWindowClosed)
	ev.Completed = &done
	s.queueLocked(ev)
	s.mu.Unlock()
	s.deliver()
}

// abort moves the session to cancelled and drops the in-flight
// trial.
func (s *Session) abort() {
	s.mu.Lock()
	s.state = StateCancelled
	s.responseOpen = false
	s.current = TrialState{}
	s.feedback = nil
	ev := s.eventLocked(EventSessionCancelled)
	s.queueLocked(ev)
	s.mu.Unlock()

	s.logger.Info(
		"session cancelled",
		"session_id", s.id,
		"level", int(s.level),
		"trial", ev.Trial,
	)
}

func (s *Session) finishLocked() Event {
	s.state = StateFinished
	s.responseOpen = false
	end := s.clock.Now()

	trials := make([]TrialState, len(s.trials))
	copy(trials, s.trials)
	rts := make([]time.Duration, 0, s.responses)
	for _, t := range trials {
		if t.ReactionTime != nil {
			rts = append(rts, *t.ReactionTime)
		}
	}

	s.result = &Result{
		SessionID:            s.id,
		Level:                s.level,
		MatchCount:           s.matchCount,
		FalseAlarms:          s.falseAlarms,
		Responses:            s.responses,
		TotalRequiredMatches: s.cfg.RequiredMatches,
		AccuracyPercent: Accuracy(
			s.matchCount, s.cfg.RequiredMatches,
		),
		ReactionTimes:  rts,
		Trials:         trials,
		SequenceLength: s.seq.Len(),
		StartedAt:      s.startedAt,
		EndedAt:        end,
		Duration:       end.Sub(s.startedAt),
	}

	ev := s.eventLocked(EventSessionFinished)
	ev.Result = s.result
	return ev
}

func (s *Session) liveLocked(ctx context.Context) bool {
	return s.state != StateCancelled && ctx.Err() == nil
}

func (s *Session) isMatchLocked(i int) bool {
	n := int(s.level)
	return i >= n && s.seq.At(i) == s.seq.At(i-n)
}

func (s *Session) displayLocked() Display {
	d := Display{
		ResponseOpen: s.responseOpen,
		Level:        s.level,
	}
	// The digit is on screen only once enterDisplay has run.
	if s.state == StateTrialDisplay && !s.current.DisplayedAt.IsZero() {
		digit := s.current.Digit
		d.CurrentDigit = &digit
	}
	if s.feedback != nil {
		fb := *s.feedback
		d.Feedback = &fb
	}
	return d
}

func (s *Session) eventLocked(t EventType) Event {
	return Event{
		Type:      t,
		SessionID: s.id,
		Level:     s.level,
		State:     s.state,
		Trial:     s.index,
		Total:     s.seq.Len(),
		Display:   s.displayLocked(),
		Timestamp: s.clock.Now(),
	}
}

// outgoing is a queued event, or the marker that closes Done.
type outgoing struct {
	ev        Event
	closeDone bool
}

func (s *Session) queueLocked(ev Event) {
	s.outbox = append(s.outbox, outgoing{ev: ev})
}

func (s *Session) queueDoneLocked() {
	s.outbox = append(s.outbox, outgoing{closeDone: true})
}

// finish queues the Done marker behind the terminal event and
// flushes the queue.
func (s *Session) finish() {
	s.mu.Lock()
	s.queueDoneLocked()
	s.mu.Unlock()
	s.deliver()
}

// deliver drains the queue unless another goroutine already is;
// that goroutine then delivers what was queued here, in order.
func (s *Session) deliver() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.outbox) > 0 {
		next := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		if next.closeDone {
			s.closeDone()
		} else {
			for _, o := range s.observers {
				o(next.ev)
			}
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}

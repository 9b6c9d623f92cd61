package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.nback/pkg/clock"
	"digital.vasic.nback/pkg/sequence"
)

// --- stubs ---

type fixedSource struct {
	digits []int
	err    error

	mu    sync.Mutex
	calls int
}

func (f *fixedSource) Generate(level int) (sequence.Sequence, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return sequence.Sequence{}, f.err
	}
	return sequence.New(level, f.digits), nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
	hook   func(Event)
}

func (l *eventLog) observe(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	hook := l.hook
	l.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) count(t EventType) int {
	n := 0
	for _, ev := range l.all() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.DisplayDuration = 2 * time.Millisecond
	cfg.HiddenDuration = 2 * time.Millisecond
	return cfg
}

func newTestSession(
	t *testing.T,
	level Level,
	digits []int,
	log *eventLog,
	opts ...Option,
) *Session {
	t.Helper()
	base := []Option{
		WithConfig(fastConfig()),
		WithSequenceSource(&fixedSource{digits: digits}),
		WithObserver(log.observe),
	}
	s, err := NewSession(level, append(base, opts...)...)
	require.NoError(t, err)
	return s
}

var scripted = []int{5, 1, 5, 1, 9}

// --- construction ---

func TestNewSession_InvalidLevel(t *testing.T) {
	for _, lvl := range []Level{0, 4, -1} {
		_, err := NewSession(lvl)
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %d", lvl)
	}
}

func TestNewSession_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisplayDuration = 0
	_, err := NewSession(Level1, WithConfig(cfg))
	assert.Error(t, err)
}

func TestNewSession_Defaults(t *testing.T) {
	s, err := NewSession(Level2)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, Level2, s.Level())
	assert.Equal(t, StateAwaitingStart, s.State())
	assert.Equal(t, 0, s.Sequence().Len())
	assert.Nil(t, s.Result())
	assert.Equal(t, DefaultConfig(), s.Config())
}

func TestNewSession_WithID(t *testing.T) {
	s, err := NewSession(Level1, WithID("fixed"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", s.ID())
}

func TestSession_StartSourceError(t *testing.T) {
	boom := errors.New("boom")
	s, err := NewSession(Level1,
		WithSequenceSource(&fixedSource{err: boom}),
	)
	require.NoError(t, err)

	err = s.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateAwaitingStart, s.State())
}

// --- full runs ---

func TestSession_RunWithoutResponses(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, 0, res.MatchCount)
	assert.Equal(t, 0, res.Responses)
	assert.Equal(t, 0.0, res.AccuracyPercent)
	assert.Empty(t, res.ReactionTimes)
	assert.Len(t, res.Trials, 5)
	assert.Equal(t, 5, res.SequenceLength)
	assert.Equal(t, s.ID(), res.SessionID)

	events := log.all()
	require.NotEmpty(t, events)
	assert.Equal(t, EventSessionStarted, events[0].Type)
	assert.Equal(t, EventSessionFinished, events[len(events)-1].Type)
	assert.Same(t, res, events[len(events)-1].Result)

	assert.Equal(t, 5, log.count(EventStimulusShown))
	assert.Equal(t, 5, log.count(EventStimulusHidden))
	assert.Equal(t, 5, log.count(EventResponseWindowClosed))
	assert.Equal(t, 4, log.count(EventTrialAdvanced))

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSession_TrialGroundTruth(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	want := []bool{false, false, true, true, false}
	for i, tr := range res.Trials {
		assert.Equal(t, i, tr.Index)
		assert.Equal(t, scripted[i], tr.Digit)
		assert.Equal(t, want[i], tr.IsMatch, "trial %d", i)
		assert.False(t, tr.Responded)
		assert.Nil(t, tr.ReactionTime)
	}
}

func TestSession_ResponseOnForcedMatch(t *testing.T) {
	log := &eventLog{}
	var s *Session
	var submitErr error
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown && ev.Trial == 2 {
			submitErr = s.SubmitResponse()
		}
	}
	s = newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, submitErr)

	assert.Equal(t, 1, res.MatchCount)
	assert.Equal(t, 0, res.FalseAlarms)
	assert.Equal(t, 1, res.Responses)
	require.Len(t, res.ReactionTimes, 1)
	assert.GreaterOrEqual(t, res.ReactionTimes[0], time.Duration(0))

	tr := res.Trials[2]
	assert.True(t, tr.IsMatch)
	assert.True(t, tr.Responded)
	require.NotNil(t, tr.ReactionTime)

	var accepted *Event
	for _, ev := range log.all() {
		if ev.Type == EventResponseAccepted {
			ev := ev
			accepted = &ev
		}
	}
	require.NotNil(t, accepted)
	assert.Equal(t, 2, accepted.Trial)
	assert.False(t, accepted.Display.ResponseOpen)
	require.NotNil(t, accepted.Display.Feedback)
	assert.True(t, accepted.Display.Feedback.IsCorrect)
	assert.Equal(t, "Correct!", accepted.Display.Feedback.Message)
}

func TestSession_ResponseOnNonMatch(t *testing.T) {
	log := &eventLog{}
	var s *Session
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusHidden && ev.Trial == 1 {
			_ = s.SubmitResponse()
		}
	}
	s = newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.MatchCount)
	assert.Equal(t, 1, res.FalseAlarms)
	assert.True(t, res.Trials[1].Responded)

	for _, ev := range log.all() {
		if ev.Type == EventResponseAccepted {
			require.NotNil(t, ev.Display.Feedback)
			assert.False(t, ev.Display.Feedback.IsCorrect)
			assert.Equal(t, "Incorrect", ev.Display.Feedback.Message)
		}
	}
}

func TestSession_DoubleSubmitCountsOnce(t *testing.T) {
	log := &eventLog{}
	var s *Session
	var first, second error
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown && ev.Trial == 2 {
			first = s.SubmitResponse()
			second = s.SubmitResponse()
		}
	}
	s = newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.NoError(t, first)
	assert.ErrorIs(t, second, ErrInvalidTransition)
	assert.Equal(t, 1, res.MatchCount)
	assert.Equal(t, 1, res.Responses)
	assert.Equal(t, 1, log.count(EventResponseAccepted))
}

func TestSession_LateResponseIgnored(t *testing.T) {
	log := &eventLog{}
	var s *Session
	var late error
	log.hook = func(ev Event) {
		if ev.Type == EventResponseWindowClosed && ev.Trial == 2 {
			late = s.SubmitResponse()
		}
	}
	s = newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, late, ErrInvalidTransition)
	assert.Equal(t, 0, res.MatchCount)
	assert.False(t, res.Trials[2].Responded)
}

func TestSession_SubmitBeforeStart(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level1, scripted, log)

	err := s.SubmitResponse()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateAwaitingStart, s.State())
	assert.Empty(t, log.all())
}

func TestSession_ReactionTimeFromClock(t *testing.T) {
	fake := &fakeNow{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	log := &eventLog{}
	var s *Session
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown && ev.Trial == 3 {
			fake.advance(250 * time.Millisecond)
			_ = s.SubmitResponse()
		}
	}
	s = newTestSession(t, Level2, scripted, log,
		WithClock(clock.New(clock.WithNow(fake.now))),
	)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.ReactionTimes, 1)
	assert.Equal(t, 250*time.Millisecond, res.ReactionTimes[0])
	ms, ok := res.Trials[3].ReactionTimeMs()
	assert.True(t, ok)
	assert.Equal(t, int64(250), ms)
}

func TestSession_AccuracyClamped(t *testing.T) {
	cfg := fastConfig()
	cfg.RequiredMatches = 2

	log := &eventLog{}
	var s *Session
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown {
			_ = s.SubmitResponse()
		}
	}
	s = newTestSession(t, Level1, []int{1, 1, 1, 1, 1}, log,
		WithConfig(cfg),
	)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.MatchCount)
	assert.Equal(t, 1, res.FalseAlarms)
	assert.Equal(t, 100.0, res.AccuracyPercent)
	assert.Equal(t, 0, res.MissedMatches())
}

func TestSession_DisplaySnapshots(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level2, scripted, log)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	for _, ev := range log.all() {
		switch ev.Type {
		case EventStimulusShown:
			require.NotNil(t, ev.Display.CurrentDigit)
			assert.Equal(t, scripted[ev.Trial], *ev.Display.CurrentDigit)
			assert.True(t, ev.Display.ResponseOpen)
			assert.Nil(t, ev.Display.Feedback)
			assert.Equal(t, StateTrialDisplay, ev.State)
		case EventStimulusHidden:
			assert.Nil(t, ev.Display.CurrentDigit)
			assert.True(t, ev.Display.ResponseOpen)
			assert.Equal(t, StateTrialHidden, ev.State)
		case EventResponseWindowClosed:
			assert.False(t, ev.Display.ResponseOpen)
			require.NotNil(t, ev.Completed)
			assert.Equal(t, ev.Trial, ev.Completed.Index)
			assert.Equal(t, scripted[ev.Trial], ev.Completed.Digit)
		case EventSessionStarted:
			assert.Nil(t, ev.Display.CurrentDigit)
		}
		assert.Equal(t, Level2, ev.Display.Level)
		assert.Equal(t, 5, ev.Total)
	}
	assert.False(t, s.Display().ResponseOpen)
}

func TestSession_FeedbackHold(t *testing.T) {
	cfg := fastConfig()
	cfg.FeedbackHold = 5 * time.Millisecond

	log := &eventLog{}
	s := newTestSession(t, Level1, []int{3, 4, 5}, log,
		WithConfig(cfg),
	)

	start := time.Now()
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	assert.Len(t, res.Trials, 3)
}

func TestSession_GeneratedSequence(t *testing.T) {
	cfg := fastConfig()
	cfg.RequiredMatches = 2
	cfg.MinRun = 1
	cfg.MaxRun = 1
	cfg.DisplayDuration = time.Millisecond
	cfg.HiddenDuration = time.Millisecond

	s, err := NewSession(Level1, WithConfig(cfg))
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	seq := s.Sequence()
	assert.Len(t, seq.MatchPositions(), 2)
	assert.Equal(t, 2, res.TotalRequiredMatches)
	assert.Equal(t, seq.Len(), res.SequenceLength)
}

// --- lifecycle ---

func TestSession_StartTwice(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level1, scripted, log)

	require.NoError(t, s.Start(context.Background()))
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	<-s.Done()
	assert.Equal(t, StateFinished, s.State())
	assert.NotNil(t, s.Result())
}

func TestSession_CancelBeforeStart(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level1, scripted, log)

	assert.True(t, s.Cancel())
	assert.Equal(t, StateCancelled, s.State())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}

	events := log.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventSessionCancelled, events[0].Type)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, s.Cancel())
}

func TestSession_CancelDuringHidden(t *testing.T) {
	cfg := fastConfig()
	cfg.HiddenDuration = time.Hour

	hidden := make(chan struct{}, 1)
	log := &eventLog{}
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusHidden {
			hidden <- struct{}{}
		}
	}
	s := newTestSession(t, Level2, scripted, log, WithConfig(cfg))

	require.NoError(t, s.Start(context.Background()))

	select {
	case <-hidden:
	case <-time.After(2 * time.Second):
		t.Fatal("stimulus never hidden")
	}
	assert.True(t, s.Cancel())

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
	}

	assert.Equal(t, StateCancelled, s.State())
	assert.Nil(t, s.Result())
	assert.Empty(t, s.Trials())
	assert.False(t, s.Display().ResponseOpen)
	assert.ErrorIs(t, s.SubmitResponse(), ErrInvalidTransition)

	n := len(log.all())
	time.Sleep(20 * time.Millisecond)
	events := log.all()
	assert.Len(t, events, n, "events emitted after cancel")
	assert.Equal(t, EventSessionCancelled, events[len(events)-1].Type)
	assert.Equal(t, 1, log.count(EventSessionCancelled))
	assert.Equal(t, 0, log.count(EventResponseWindowClosed))
	assert.Equal(t, 0, log.count(EventSessionFinished))
	assert.False(t, s.Cancel())
}

func TestSession_CancelFromObserver(t *testing.T) {
	log := &eventLog{}
	var s *Session
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown && ev.Trial == 1 {
			s.Cancel()
		}
	}
	s = newTestSession(t, Level2, scripted, log)

	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, res)

	for _, ev := range log.all() {
		if ev.Type == EventStimulusShown ||
			ev.Type == EventStimulusHidden {
			assert.LessOrEqual(t, ev.Trial, 1)
		}
	}
	assert.Len(t, s.Trials(), 1)
	assert.Equal(t, 0, log.count(EventSessionFinished))
}

func TestSession_ParentContextCancel(t *testing.T) {
	cfg := fastConfig()
	cfg.DisplayDuration = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	log := &eventLog{}
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown {
			cancel()
		}
	}
	s := newTestSession(t, Level1, scripted, log, WithConfig(cfg))

	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, res)
	assert.Equal(t, StateCancelled, s.State())
	assert.Equal(t, 1, log.count(EventSessionCancelled))
}

func TestSession_CancelAfterFinish(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level1, scripted, log)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, s.Cancel())
	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, 0, log.count(EventSessionCancelled))
}

func TestSession_EmptySequenceFinishesImmediately(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level1, nil, log)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.SequenceLength)
	assert.Empty(t, res.Trials)
	assert.Equal(t, 0, log.count(EventStimulusShown))
}

// --- event ordering ---

type debugHookLogger struct {
	onDebug func(msg string)
}

func (debugHookLogger) Info(string, ...any)  {}
func (debugHookLogger) Warn(string, ...any)  {}
func (debugHookLogger) Error(string, ...any) {}
func (l debugHookLogger) Debug(msg string, _ ...any) {
	if l.onDebug != nil {
		l.onDebug(msg)
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestSession_CancelWhileResponseLogged(t *testing.T) {
	cfg := fastConfig()
	cfg.DisplayDuration = time.Hour

	log := &eventLog{}
	shown := make(chan struct{}, 1)
	log.hook = func(ev Event) {
		if ev.Type == EventStimulusShown {
			select {
			case shown <- struct{}{}:
			default:
			}
		}
	}

	var s *Session
	logger := debugHookLogger{onDebug: func(msg string) {
		if msg == "response accepted" {
			s.Cancel()
			<-s.Done()
		}
	}}
	s = newTestSession(t, Level1, scripted, log,
		WithConfig(cfg), WithLogger(logger))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-shown:
	case <-time.After(2 * time.Second):
		t.Fatal("stimulus never shown")
	}
	require.NoError(t, s.SubmitResponse())

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
	}
	assert.Equal(t, []EventType{
		EventSessionStarted,
		EventStimulusShown,
		EventResponseAccepted,
		EventSessionCancelled,
	}, eventTypes(log.all()))
}

// checkEventOrder asserts responses fall inside their trial's
// window and nothing follows the terminal event.
func checkEventOrder(t *testing.T, events []Event) {
	t.Helper()
	open := -1
	closed := map[int]bool{}
	accepted := map[int]int{}
	for i, ev := range events {
		switch ev.Type {
		case EventStimulusShown:
			open = ev.Trial
		case EventResponseAccepted:
			accepted[ev.Trial]++
			assert.Equal(t, open, ev.Trial, "response outside its window (event %d)", i)
			assert.False(t, closed[ev.Trial], "response after window closed, trial %d", ev.Trial)
			assert.Equal(t, 1, accepted[ev.Trial], "trial %d", ev.Trial)
		case EventResponseWindowClosed:
			closed[ev.Trial] = true
			open = -1
		case EventSessionFinished, EventSessionCancelled:
			assert.Equal(t, len(events)-1, i, "events after %s", ev.Type)
		}
	}
}

func TestSession_EventOrderIsTotal(t *testing.T) {
	for run := 0; run < 20; run++ {
		log := &eventLog{}
		s := newTestSession(t, Level1, []int{1, 1, 2, 2, 3, 3, 4, 4}, log)
		require.NoError(t, s.Start(context.Background()))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-s.Done():
					return
				default:
					_ = s.SubmitResponse()
					time.Sleep(50 * time.Microsecond)
				}
			}
		}()
		if run%2 == 1 {
			go func() {
				time.Sleep(5 * time.Millisecond)
				s.Cancel()
			}()
		}

		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d did not finish", run)
		}
		wg.Wait()

		events := log.all()
		require.NotEmpty(t, events)
		checkEventOrder(t, events)
		last := events[len(events)-1].Type
		assert.True(t,
			last == EventSessionFinished || last == EventSessionCancelled,
			"run %d ended with %s", run, last)
	}
}

func TestSession_DefaultDenominator(t *testing.T) {
	log := &eventLog{}
	s := newTestSession(t, Level1, scripted, log, WithConfig(DefaultConfig()))
	s.cfg.DisplayDuration = time.Millisecond
	s.cfg.HiddenDuration = time.Millisecond

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, res.TotalRequiredMatches)
}

package logging

import (
	"fmt"
	"time"

	"digital.vasic.nback/pkg/task"
)

// taskLogger bridges the key-value task.Logger interface onto a
// structured Logger.
type taskLogger struct {
	l Logger
}

// Adapt returns a task.Logger writing to l. Arguments are read as
// alternating keys and values; a trailing key without a value is
// logged under "arg".
func Adapt(l Logger) task.Logger {
	if l == nil {
		l = NullLogger{}
	}
	return taskLogger{l: l}
}

func kvFields(args []any) []Field {
	fields := make([]Field, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields = append(fields, Field{Key: "arg", Value: args[i]})
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		v := args[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fields = append(fields, Field{Key: key, Value: v})
	}
	return fields
}

func (t taskLogger) Info(msg string, args ...any) {
	t.l.Info(msg, kvFields(args)...)
}

func (t taskLogger) Warn(msg string, args ...any) {
	t.l.Warn(msg, kvFields(args)...)
}

func (t taskLogger) Error(msg string, args ...any) {
	t.l.Error(msg, kvFields(args)...)
}

func (t taskLogger) Debug(msg string, args ...any) {
	t.l.Debug(msg, kvFields(args)...)
}

// Observer returns a task.Observer that writes a TrialLog for
// every closed response window and a SessionLog for every
// finished or cancelled session.
func Observer(l Logger, participant string) task.Observer {
	return func(ev task.Event) {
		switch ev.Type {
		case task.EventResponseWindowClosed:
			if ev.Completed == nil {
				return
			}
			l.LogTrial(trialLog(ev))
		case task.EventSessionFinished, task.EventSessionCancelled:
			l.LogSession(sessionLog(ev, participant))
		}
	}
}

func trialLog(ev task.Event) TrialLog {
	tr := ev.Completed
	out := TrialLog{
		Timestamp: ev.Timestamp.Format(time.RFC3339Nano),
		SessionID: ev.SessionID,
		Level:     int(ev.Level),
		Index:     tr.Index,
		Digit:     tr.Digit,
		IsMatch:   tr.IsMatch,
		Responded: tr.Responded,
	}
	if ms, ok := tr.ReactionTimeMs(); ok {
		out.ReactionTimeMs = &ms
	}
	return out
}

func sessionLog(ev task.Event, participant string) SessionLog {
	out := SessionLog{
		Timestamp:   ev.Timestamp.Format(time.RFC3339Nano),
		SessionID:   ev.SessionID,
		Participant: participant,
		Level:       int(ev.Level),
		State:       string(ev.State),
		Trials:      ev.Trial,
	}
	if r := ev.Result; r != nil {
		out.Trials = len(r.Trials)
		out.MatchCount = r.MatchCount
		out.FalseAlarms = r.FalseAlarms
		out.AccuracyPercent = r.AccuracyPercent
		out.DurationMs = r.Duration.Milliseconds()
	}
	return out
}

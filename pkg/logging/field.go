package logging

import (
	"time"

	"digital.vasic.nback/pkg/task"
)

// LogField creates a Field from any key and value.
func LogField(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func StringField(key, value string) Field { return Field{Key: key, Value: value} }

func IntField(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64Field(key string, value int64) Field { return Field{Key: key, Value: value} }

func Float64Field(key string, value float64) Field { return Field{Key: key, Value: value} }

func BoolField(key string, value bool) Field { return Field{Key: key, Value: value} }

// ErrorField stores err's message under "error"; a nil err is
// logged as "<nil>".
func ErrorField(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// DurationField stores d in whole milliseconds.
func DurationField(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.Milliseconds()}
}

// LevelField stores an n-back level as its integer n.
func LevelField(l task.Level) Field {
	return Field{Key: "level", Value: int(l)}
}

// SessionField stores a session id.
func SessionField(id string) Field {
	return Field{Key: "session_id", Value: id}
}

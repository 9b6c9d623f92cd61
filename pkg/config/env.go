package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvParticipant     = "NBACK_PARTICIPANT"
	EnvParticipantIdx  = "NBACK_PARTICIPANT_INDEX"
	EnvOrder           = "NBACK_ORDER"
	EnvOutputDir       = "NBACK_OUTPUT_DIR"
	EnvDatabase        = "NBACK_DB"
	EnvLogFormat       = "NBACK_LOG_FORMAT"
	EnvLogLevel        = "NBACK_LOG_LEVEL"
	EnvLogDir          = "NBACK_LOG_DIR"
	EnvMonitorAddr     = "NBACK_MONITOR_ADDR"
	EnvRequiredMatches = "NBACK_REQUIRED_MATCHES"
	EnvDisplayMs       = "NBACK_DISPLAY_MS"
	EnvHiddenMs        = "NBACK_HIDDEN_MS"
	EnvFeedbackMs      = "NBACK_FEEDBACK_MS"
)

// Loader resolves variables from .env files with the process
// environment taking precedence.
type Loader struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewLoader creates an empty Loader.
func NewLoader() *Loader {
	return &Loader{vars: make(map[string]string)}
}

// Load merges the variables of a .env file. Later files override
// earlier ones.
func (l *Loader) Load(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range vars {
		l.vars[k] = v
	}
	return nil
}

// Get returns the value of key. The OS environment wins over
// loaded files.
func (l *Loader) Get(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.vars[key]
}

// GetWithDefault returns the value of key or defaultValue.
func (l *Loader) GetWithDefault(key, defaultValue string) string {
	if v := l.Get(key); v != "" {
		return v
	}
	return defaultValue
}

// GetRequired returns the value of key or an error when unset.
func (l *Loader) GetRequired(key string) (string, error) {
	v := l.Get(key)
	if v == "" {
		return "", fmt.Errorf(
			"required environment variable %s is not set", key,
		)
	}
	return v, nil
}

// All returns a copy of the variables loaded from files.
func (l *Loader) All() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.vars))
	for k, v := range l.vars {
		out[k] = v
	}
	return out
}

// ApplyEnv overrides cfg with any NBACK_* variables known to l.
func ApplyEnv(cfg *Config, l *Loader) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvParticipant, &cfg.Participant.ID},
		{EnvOrder, &cfg.Participant.Order},
		{EnvOutputDir, &cfg.Output.Dir},
		{EnvDatabase, &cfg.Output.Database},
		{EnvLogFormat, &cfg.Logging.Format},
		{EnvLogLevel, &cfg.Logging.Level},
		{EnvLogDir, &cfg.Logging.Dir},
		{EnvMonitorAddr, &cfg.Monitor.Addr},
	}
	for _, s := range strs {
		if v := l.Get(s.key); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvParticipantIdx, &cfg.Participant.Index},
		{EnvRequiredMatches, &cfg.Task.RequiredMatches},
		{EnvDisplayMs, &cfg.Task.DisplayMs},
		{EnvHiddenMs, &cfg.Task.HiddenMs},
		{EnvFeedbackMs, &cfg.Task.FeedbackMs},
	}
	for _, i := range ints {
		v := l.Get(i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", i.key, err)
		}
		*i.dst = n
	}
	return nil
}

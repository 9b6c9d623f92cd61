// Package config loads n-back run settings from YAML or TOML files,
// .env files and NBACK_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"digital.vasic.nback/pkg/logging"
	"digital.vasic.nback/pkg/orchestrator"
	"digital.vasic.nback/pkg/task"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete run configuration.
type Config struct {
	Task        TaskConfig        `yaml:"task" toml:"task"`
	Participant ParticipantConfig `yaml:"participant" toml:"participant"`
	Output      OutputConfig      `yaml:"output" toml:"output"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
	Monitor     MonitorConfig     `yaml:"monitor" toml:"monitor"`
}

// TaskConfig holds sequence and timing parameters. Durations are
// in milliseconds.
type TaskConfig struct {
	RequiredMatches int `yaml:"required_matches" toml:"required_matches"`
	MinRun          int `yaml:"min_run" toml:"min_run"`
	MaxRun          int `yaml:"max_run" toml:"max_run"`
	DisplayMs       int `yaml:"display_ms" toml:"display_ms"`
	HiddenMs        int `yaml:"hidden_ms" toml:"hidden_ms"`
	FeedbackMs      int `yaml:"feedback_ms" toml:"feedback_ms"`
}

// ParticipantConfig identifies the participant and their level
// order. Order takes precedence over Index; "random" shuffles.
type ParticipantConfig struct {
	ID        string `yaml:"id" toml:"id"`
	Index     int    `yaml:"index" toml:"index"`
	Order     string `yaml:"order" toml:"order"`
	Reshuffle bool   `yaml:"reshuffle" toml:"reshuffle"`
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir         string `yaml:"dir" toml:"dir"`
	Database    string `yaml:"database" toml:"database"`
	LevelColumn bool   `yaml:"level_column" toml:"level_column"`
	HTML        bool   `yaml:"html" toml:"html"`
}

// LoggingConfig selects the log backend.
type LoggingConfig struct {
	// Format is "console", "json", "zap" or "both" (json files plus
	// console).
	Format string `yaml:"format" toml:"format"`
	Level  string `yaml:"level" toml:"level"`
	Dir    string `yaml:"dir" toml:"dir"`

	// RedactParticipant masks the participant id in every log line.
	RedactParticipant bool `yaml:"redact_participant" toml:"redact_participant"`
}

// MonitorConfig configures the HTTP monitor and websocket display.
type MonitorConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := task.DefaultConfig()
	return Config{
		Task: TaskConfig{
			RequiredMatches: tc.RequiredMatches,
			MinRun:          tc.MinRun,
			MaxRun:          tc.MaxRun,
			DisplayMs:       int(tc.DisplayDuration / time.Millisecond),
			HiddenMs:        int(tc.HiddenDuration / time.Millisecond),
		},
		Output: OutputConfig{
			Dir:      "results",
			Database: filepath.Join("results", "nback.db"),
		},
		Logging: LoggingConfig{
			Format: "console",
			Level:  "info",
			Dir:    "logs",
		},
		Monitor: MonitorConfig{Addr: "127.0.0.1:8090"},
	}
}

// Load reads path on top of Default. A missing file yields the
// defaults. The format is chosen from the extension.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decode(path, data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := Encode(&buf, cfg); err != nil {
			return err
		}
	case ".toml":
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Encode writes cfg to w as YAML.
func Encode(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// SessionConfig converts the task section into session parameters.
func (c Config) SessionConfig() task.Config {
	return task.Config{
		RequiredMatches: c.Task.RequiredMatches,
		MinRun:          c.Task.MinRun,
		MaxRun:          c.Task.MaxRun,
		DisplayDuration: time.Duration(c.Task.DisplayMs) * time.Millisecond,
		HiddenDuration:  time.Duration(c.Task.HiddenMs) * time.Millisecond,
		FeedbackHold:    time.Duration(c.Task.FeedbackMs) * time.Millisecond,
	}
}

// LevelOrder resolves the participant's level order. rng is only
// used for "random".
func (c Config) LevelOrder(rng *rand.Rand) (orchestrator.Order, error) {
	switch strings.ToLower(strings.TrimSpace(c.Participant.Order)) {
	case "":
		return orchestrator.ParticipantOrder(c.Participant.Index), nil
	case "random", "shuffle":
		return orchestrator.ShuffledOrder(rng), nil
	default:
		return orchestrator.ParseOrder(c.Participant.Order)
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.SessionConfig().Validate(); err != nil {
		return fmt.Errorf("%w: task: %v", ErrInvalidConfig, err)
	}
	if _, err := c.LevelOrder(rand.New(rand.NewPCG(0, 0))); err != nil {
		return fmt.Errorf("%w: participant: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging: %v", ErrInvalidConfig, err)
	}
	switch c.Logging.Format {
	case "", "console", "json", "zap", "both":
	default:
		return fmt.Errorf(
			"%w: logging: unknown format %q",
			ErrInvalidConfig, c.Logging.Format,
		)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("%w: output: dir is required", ErrInvalidConfig)
	}
	return nil
}

// Package motion buffers accelerometer samples for the time window
// of a task session. Sensor subscription lives outside this module;
// callers push samples in with Record.
package motion

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Sample is one accelerometer reading.
type Sample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	Z  float64   `json:"z"`
	At time.Time `json:"at"`
}

// String formats the sample as the app's text log line.
func (s Sample) String() string {
	return fmt.Sprintf("x: %v, y: %v, z: %v", s.X, s.Y, s.Z)
}

// Recorder accumulates samples between Begin and End. Samples
// recorded outside an open window are dropped.
type Recorder struct {
	mu      sync.Mutex
	now     func() time.Time
	key     string
	open    bool
	samples []Sample
}

// NewRecorder creates an idle Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Begin opens a window keyed by session. Any samples from a
// previous unfinished window are discarded.
func (r *Recorder) Begin(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.key = key
	r.open = true
	r.samples = r.samples[:0]
}

// Record appends a sample if a window is open. It reports
// whether the sample was kept.
func (r *Recorder) Record(x, y, z float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return false
	}
	r.samples = append(r.samples, Sample{
		X: x, Y: y, Z: z, At: r.now(),
	})
	return true
}

// End closes the window and returns its samples.
func (r *Recorder) End() (string, []Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	key := r.key
	r.open = false
	r.key = ""
	r.samples = r.samples[:0]
	return key, out
}

// Discard closes the window and drops its samples.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.key = ""
	r.samples = r.samples[:0]
}

// Active returns the key of the open window, if any.
func (r *Recorder) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key, r.open
}

// FormatText renders samples one per line in the app's
// "x: .., y: .., z: .." format.
func FormatText(samples []Sample) string {
	var sb strings.Builder
	for _, s := range samples {
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Package common provides shared utilities including timing functionality.
package common

import (
	"fmt"
	"time"
)

// Timer measures a single elapsed duration with optional naming.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return fmt.Sprintf("%v", t.duration)
}

// Lap is one named stage recorded by a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch measures a sequence of named stages, for pipelines that
// want per-stage timings without juggling individual timers.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
}

// NewStopwatch creates a stopwatch and starts the first stage.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{start: now, last: now}
}

// Lap closes the current stage under the given name and starts the next.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Total returns the elapsed time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return time.Since(s.start)
}

// Laps returns the recorded stages in order.
func (s *Stopwatch) Laps() []Lap {
	out := make([]Lap, len(s.laps))
	copy(out, s.laps)
	return out
}

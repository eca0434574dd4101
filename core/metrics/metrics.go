package metrics

import (
	"time"

	"github.com/kilianp07/harvestplan/core/timeline"
)

// RunReport summarises one decode run.
type RunReport struct {
	RunID    string
	Campaign string
	Source   string
	Actions  int
	Decoded  int
	// Outcome is "ok", "infeasible", "structural" or "error".
	Outcome  string
	Reason   string
	Summary  timeline.Summary
	Duration time.Duration
	Time     time.Time
}

// Sink records run reports.
type Sink interface {
	RecordRun(r RunReport) error
}

// EventRecorder is implemented by sinks that consume decoder bus events.
type EventRecorder interface {
	RecordEvent(ev timeline.Event) error
}

// ScheduleReport describes a scheduler run.
type ScheduleReport struct {
	Campaign string
	Actions  int
	Failed   bool
	Reason   string
	Duration time.Duration
	Time     time.Time
}

// ScheduleRecorder is implemented by sinks that track scheduler runs.
type ScheduleRecorder interface {
	RecordSchedule(r ScheduleReport) error
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close() error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunReport) error           { return nil }
func (NopSink) RecordEvent(timeline.Event) error    { return nil }
func (NopSink) RecordSchedule(ScheduleReport) error { return nil }

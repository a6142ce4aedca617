package core

import (
	"time"
)

// LatencyReporter receives query latency observations.
// Implementations must not block the caller and must not fail the fetch path.
type LatencyReporter interface {
	// ReportLatency records the time elapsed since start under metric.
	// samplePolicy is the percentage of calls to report (100 reports every call).
	ReportLatency(metric string, start time.Time, tag string, samplePolicy int)
}

// HealthEvent describes a change of a rematerializer's broken state.
type HealthEvent struct {
	Schema string
	Table  string
	Driver string
	Broken bool
	Stage  string
	Err    error
	At     time.Time
}

// HealthObserver is notified when a rematerializer becomes broken or healthy.
// Implementations must not block the caller.
type HealthObserver interface {
	OnHealthChange(event HealthEvent)
}

// HealthObserverFunc adapts a function to HealthObserver.
type HealthObserverFunc func(event HealthEvent)

// OnHealthChange calls f(event).
func (f HealthObserverFunc) OnHealthChange(event HealthEvent) {
	f(event)
}

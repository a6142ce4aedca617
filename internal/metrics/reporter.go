// Package metrics provides latency sinks for the rematerializer.
package metrics

import (
	"math/rand"
	"time"

	"github.com/rzpsarthak13/rematerializer/internal/core"
)

// Sampler forwards a percentage of observations to the next reporter.
// A sample policy of 100 or more forwards every call; 0 or less drops all.
type Sampler struct {
	next core.LatencyReporter
	roll func() int
}

// NewSampler wraps next with sample-policy handling.
func NewSampler(next core.LatencyReporter) *Sampler {
	return &Sampler{
		next: next,
		roll: func() int { return rand.Intn(100) },
	}
}

func (s *Sampler) ReportLatency(metric string, start time.Time, tag string, samplePolicy int) {
	if s.next == nil || samplePolicy <= 0 {
		return
	}
	if samplePolicy < 100 && s.roll() >= samplePolicy {
		return
	}
	s.next.ReportLatency(metric, start, tag, samplePolicy)
}

// Multi fans an observation out to every reporter.
type Multi []core.LatencyReporter

func (m Multi) ReportLatency(metric string, start time.Time, tag string, samplePolicy int) {
	for _, r := range m {
		if r != nil {
			r.ReportLatency(metric, start, tag, samplePolicy)
		}
	}
}

// Noop discards observations.
type Noop struct{}

func (Noop) ReportLatency(string, time.Time, string, int) {}

func elapsedMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

package videoseg

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    stepCounter   prometheus.Counter
//	    stepHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPropagationStep(objects int, duration time.Duration, err error) {
//	    p.stepCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAddPoints is called after each prompt-refinement operation.
	// duration is the total time taken, err is nil if successful.
	RecordAddPoints(duration time.Duration, err error)

	// RecordPropagationStep is called after each frame of a propagation
	// pass. objects is the number of objects scored on the frame.
	RecordPropagationStep(objects int, duration time.Duration, err error)

	// RecordOnlineFrame is called after each online single-frame inference.
	RecordOnlineFrame(duration time.Duration, err error)

	// RecordExport is called after each masklet export.
	RecordExport(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAddPoints(time.Duration, error)            {}
func (NoopMetricsCollector) RecordPropagationStep(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordOnlineFrame(time.Duration, error)          {}
func (NoopMetricsCollector) RecordExport(time.Duration, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddPointsCount  atomic.Int64
	AddPointsErrors atomic.Int64
	StepCount       atomic.Int64
	StepErrors      atomic.Int64
	StepObjects     atomic.Int64
	StepTotalNanos  atomic.Int64
	OnlineCount     atomic.Int64
	OnlineErrors    atomic.Int64
	ExportCount     atomic.Int64
	ExportErrors    atomic.Int64
}

// RecordAddPoints implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAddPoints(duration time.Duration, err error) {
	b.AddPointsCount.Add(1)
	if err != nil {
		b.AddPointsErrors.Add(1)
	}
}

// RecordPropagationStep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPropagationStep(objects int, duration time.Duration, err error) {
	b.StepCount.Add(1)
	b.StepObjects.Add(int64(objects))
	b.StepTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StepErrors.Add(1)
	}
}

// RecordOnlineFrame implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOnlineFrame(duration time.Duration, err error) {
	b.OnlineCount.Add(1)
	if err != nil {
		b.OnlineErrors.Add(1)
	}
}

// RecordExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExport(duration time.Duration, err error) {
	b.ExportCount.Add(1)
	if err != nil {
		b.ExportErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddPointsCount:  b.AddPointsCount.Load(),
		AddPointsErrors: b.AddPointsErrors.Load(),
		StepCount:       b.StepCount.Load(),
		StepErrors:      b.StepErrors.Load(),
		StepObjects:     b.StepObjects.Load(),
		StepAvgNanos:    b.getAvgStepNanos(),
		OnlineCount:     b.OnlineCount.Load(),
		OnlineErrors:    b.OnlineErrors.Load(),
		ExportCount:     b.ExportCount.Load(),
		ExportErrors:    b.ExportErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgStepNanos() int64 {
	count := b.StepCount.Load()
	if count == 0 {
		return 0
	}
	return b.StepTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddPointsCount  int64
	AddPointsErrors int64
	StepCount       int64
	StepErrors      int64
	StepObjects     int64
	StepAvgNanos    int64
	OnlineCount     int64
	OnlineErrors    int64
	ExportCount     int64
	ExportErrors    int64
}

package canvas

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
//	    insertCounter prometheus.Counter
//	    listHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordInsert(duration time.Duration, err error) {
//	    p.insertCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordInsert is called after each document insert operation.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordList is called after each document list query.
	// results is the number of documents returned.
	RecordList(results int, duration time.Duration, err error)

	// RecordRemove is called after each document removal.
	RecordRemove(duration time.Duration, err error)

	// RecordTreeOp is called after each context tree mutation.
	// op is one of "insert", "move", "remove", "rename".
	RecordTreeOp(op string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordList(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)         {}
func (NoopMetricsCollector) RecordTreeOp(string, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	ListCount        atomic.Int64
	ListErrors       atomic.Int64
	ListResults      atomic.Int64
	ListTotalNanos   atomic.Int64
	RemoveCount      atomic.Int64
	RemoveErrors     atomic.Int64
	TreeOpCount      atomic.Int64
	TreeOpErrors     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordList implements MetricsCollector.
func (b *BasicMetricsCollector) RecordList(results int, duration time.Duration, err error) {
	b.ListCount.Add(1)
	b.ListResults.Add(int64(results))
	b.ListTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ListErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordTreeOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTreeOp(op string, duration time.Duration, err error) {
	b.TreeOpCount.Add(1)
	if err != nil {
		b.TreeOpErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: b.avg(&b.InsertTotalNanos, &b.InsertCount),
		ListCount:      b.ListCount.Load(),
		ListErrors:     b.ListErrors.Load(),
		ListResults:    b.ListResults.Load(),
		ListAvgNanos:   b.avg(&b.ListTotalNanos, &b.ListCount),
		RemoveCount:    b.RemoveCount.Load(),
		RemoveErrors:   b.RemoveErrors.Load(),
		TreeOpCount:    b.TreeOpCount.Load(),
		TreeOpErrors:   b.TreeOpErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avg(total, count *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	ListCount      int64
	ListErrors     int64
	ListResults    int64
	ListAvgNanos   int64
	RemoveCount    int64
	RemoveErrors   int64
	TreeOpCount    int64
	TreeOpErrors   int64
}

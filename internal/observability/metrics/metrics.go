package metrics

import (
	"sync"
	"time"
)

// Collector captures lightweight instrumentation for store queries and HTTP requests.
type Collector interface {
	RecordQuery(table, operation string, duration time.Duration, err error)
	RecordRequest(method, route string, status int, duration time.Duration)
}

// NoopCollector discards all metrics.
type NoopCollector struct{}

// RecordQuery implements Collector.
func (NoopCollector) RecordQuery(string, string, time.Duration, error) {}

// RecordRequest implements Collector.
func (NoopCollector) RecordRequest(string, string, int, time.Duration) {}

// MultiCollector fan-outs events to multiple collectors.
type MultiCollector []Collector

// RecordQuery implements Collector.
func (mc MultiCollector) RecordQuery(table, operation string, duration time.Duration, err error) {
	for _, c := range mc {
		if c == nil {
			continue
		}
		c.RecordQuery(table, operation, duration, err)
	}
}

// RecordRequest implements Collector.
func (mc MultiCollector) RecordRequest(method, route string, status int, duration time.Duration) {
	for _, c := range mc {
		if c == nil {
			continue
		}
		c.RecordRequest(method, route, status, duration)
	}
}

// WithCollector returns a collector that fans out to all provided collectors.
func WithCollector(primary Collector, others ...Collector) Collector {
	collectors := make([]Collector, 0, 1+len(others))
	if primary != nil {
		collectors = append(collectors, primary)
	}
	for _, c := range others {
		if c != nil {
			collectors = append(collectors, c)
		}
	}
	switch len(collectors) {
	case 0:
		return NoopCollector{}
	case 1:
		return collectors[0]
	default:
		return MultiCollector(collectors)
	}
}

// Stats accumulates counters in memory. It is safe for concurrent use.
type Stats struct {
	mu            sync.Mutex
	queries       int
	queryErrors   int
	queryTime     time.Duration
	requests      int
	statusClasses map[int]int
}

// NewStats constructs an empty Stats collector.
func NewStats() *Stats {
	return &Stats{statusClasses: make(map[int]int)}
}

// RecordQuery implements Collector.
func (s *Stats) RecordQuery(_, _ string, duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.queryTime += duration
	if err != nil {
		s.queryErrors++
	}
}

// RecordRequest implements Collector.
func (s *Stats) RecordRequest(_, _ string, status int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if s.statusClasses == nil {
		s.statusClasses = make(map[int]int)
	}
	s.statusClasses[status/100]++
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Queries       int
	QueryErrors   int
	QueryTime     time.Duration
	Requests      int
	StatusClasses map[int]int
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	classes := make(map[int]int, len(s.statusClasses))
	for k, v := range s.statusClasses {
		classes[k] = v
	}
	return Snapshot{
		Queries:       s.queries,
		QueryErrors:   s.queryErrors,
		QueryTime:     s.queryTime,
		Requests:      s.requests,
		StatusClasses: classes,
	}
}

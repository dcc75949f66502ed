package telemetry

import (
	"context"
	"sync"
	"time"
)

// MetricsCollector defines the interface for collecting controller metrics
type MetricsCollector interface {
	RecordEvent(eventType string, applied bool)
	RecordTransition(from, to string)
	RecordPublish(success bool, duration time.Duration)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEvent(eventType string, applied bool)         {}
func (n *NoOpMetricsCollector) RecordTransition(from, to string)                   {}
func (n *NoOpMetricsCollector) RecordPublish(success bool, duration time.Duration) {}

// Counters is an in-memory MetricsCollector whose totals can be exposed by
// the status server.
type Counters struct {
	mu          sync.Mutex
	applied     map[string]int
	ignored     map[string]int
	transitions map[string]int
	published   int
	failed      int
}

func NewCounters() *Counters {
	return &Counters{
		applied:     make(map[string]int),
		ignored:     make(map[string]int),
		transitions: make(map[string]int),
	}
}

func (c *Counters) RecordEvent(eventType string, applied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if applied {
		c.applied[eventType]++
	} else {
		c.ignored[eventType]++
	}
}

func (c *Counters) RecordTransition(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions[from+"->"+to]++
}

func (c *Counters) RecordPublish(success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.published++
	} else {
		c.failed++
	}
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	EventsApplied  map[string]int `json:"eventsApplied"`
	EventsIgnored  map[string]int `json:"eventsIgnored"`
	Transitions    map[string]int `json:"transitions"`
	Published      int            `json:"published"`
	PublishFailure int            `json:"publishFailures"`
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		EventsApplied:  copyCounts(c.applied),
		EventsIgnored:  copyCounts(c.ignored),
		Transitions:    copyCounts(c.transitions),
		Published:      c.published,
		PublishFailure: c.failed,
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event PhaseEvent) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordPublish(err == nil, time.Since(start))
	return err
}

func (p *MetricPublisher) Close() error {
	return p.publisher.Close()
}

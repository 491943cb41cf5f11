// Package telemetry collects fusion-run metrics for tuning lane budgets and
// fusion parameters. All data stays in process memory - no external reporting.
package telemetry

import (
	"sync"
	"time"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a wall-clock histogram bucket for fusion runs.
type LatencyBucket string

const (
	BucketP50   LatencyBucket = "p50"   // <50ms
	BucketP200  LatencyBucket = "p200"  // 50-200ms
	BucketP500  LatencyBucket = "p500"  // 200-500ms
	BucketP1000 LatencyBucket = "p1000" // 500ms-1s
	BucketSlow  LatencyBucket = "slow"  // >=1s
)

// LatencyToBucket converts a run duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 50:
		return BucketP50
	case ms < 200:
		return BucketP200
	case ms < 500:
		return BucketP500
	case ms < 1000:
		return BucketP1000
	default:
		return BucketSlow
	}
}

// =============================================================================
// Run Event
// =============================================================================

// RunEvent represents a single fusion run for telemetry recording.
type RunEvent struct {
	Query        string
	Tier         string
	LaneStatuses map[string]string // lane ID -> success|timeout|error
	ResultCount  int
	Latency      time.Duration
	Timestamp    time.Time
}

// IsZeroResult returns true if this run produced no fused results.
func (e RunEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int // Current number of items
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Run Metrics
// =============================================================================

// zeroResultBufferSize bounds the retained zero-result query samples.
const zeroResultBufferSize = 100

// RunMetrics aggregates fusion-run telemetry. Safe for concurrent use.
type RunMetrics struct {
	mu sync.RWMutex

	tierCounts    map[string]int64
	laneTimeouts  map[string]int64
	laneErrors    map[string]int64
	latencyCounts map[LatencyBucket]int64

	totalRuns       int64
	zeroResultCount int64
	zeroResults     *CircularBuffer[string]
	since           time.Time
}

// NewRunMetrics creates an empty metrics collector.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		tierCounts:    make(map[string]int64),
		laneTimeouts:  make(map[string]int64),
		laneErrors:    make(map[string]int64),
		latencyCounts: make(map[LatencyBucket]int64),
		zeroResults:   NewCircularBuffer[string](zeroResultBufferSize),
		since:         time.Now(),
	}
}

// Record adds one fusion run to the aggregates.
func (m *RunMetrics) Record(e RunEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRuns++
	m.tierCounts[e.Tier]++
	m.latencyCounts[LatencyToBucket(e.Latency)]++

	for lane, status := range e.LaneStatuses {
		switch status {
		case "timeout":
			m.laneTimeouts[lane]++
		case "error":
			m.laneErrors[lane]++
		}
	}

	if e.IsZeroResult() {
		m.zeroResultCount++
		m.zeroResults.Add(e.Query)
	}
}

// Snapshot is an immutable view of the aggregated run metrics.
type Snapshot struct {
	TierCounts          map[string]int64        `json:"tier_counts"`
	LaneTimeouts        map[string]int64        `json:"lane_timeouts"`
	LaneErrors          map[string]int64        `json:"lane_errors"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalRuns           int64                   `json:"total_runs"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result runs.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalRuns) * 100
}

// Snapshot returns a copy of the current aggregates.
func (m *RunMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Snapshot{
		TierCounts:          make(map[string]int64, len(m.tierCounts)),
		LaneTimeouts:        make(map[string]int64, len(m.laneTimeouts)),
		LaneErrors:          make(map[string]int64, len(m.laneErrors)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(m.latencyCounts)),
		TotalRuns:           m.totalRuns,
		ZeroResultCount:     m.zeroResultCount,
		ZeroResultQueries:   m.zeroResults.Items(),
		Since:               m.since,
	}
	for k, v := range m.tierCounts {
		s.TierCounts[k] = v
	}
	for k, v := range m.laneTimeouts {
		s.LaneTimeouts[k] = v
	}
	for k, v := range m.laneErrors {
		s.LaneErrors[k] = v
	}
	for k, v := range m.latencyCounts {
		s.LatencyDistribution[k] = v
	}
	return s
}

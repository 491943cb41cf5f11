package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{0, BucketP50},
		{49 * time.Millisecond, BucketP50},
		{50 * time.Millisecond, BucketP200},
		{199 * time.Millisecond, BucketP200},
		{200 * time.Millisecond, BucketP500},
		{500 * time.Millisecond, BucketP1000},
		{999 * time.Millisecond, BucketP1000},
		{time.Second, BucketSlow},
		{5 * time.Second, BucketSlow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), "latency %s", tt.latency)
	}
}

func TestCircularBuffer_FIFOAndEviction(t *testing.T) {
	buf := NewCircularBuffer[int](3)

	assert.Equal(t, 0, buf.Size())
	assert.Empty(t, buf.Items())

	buf.Add(1)
	buf.Add(2)
	assert.Equal(t, []int{1, 2}, buf.Items())

	buf.Add(3)
	buf.Add(4) // evicts 1
	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []int{2, 3, 4}, buf.Items())

	buf.Add(5)
	buf.Add(6)
	assert.Equal(t, []int{4, 5, 6}, buf.Items())
}

func TestCircularBuffer_NonPositiveCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](0)

	buf.Add("x")
	assert.Equal(t, 1, buf.Size())
}

func TestRunMetrics_RecordAndSnapshot(t *testing.T) {
	m := NewRunMetrics()

	m.Record(RunEvent{
		Query: "rrf tuning",
		Tier:  "technical",
		LaneStatuses: map[string]string{
			"keyword": "success",
			"vector":  "timeout",
			"news":    "error",
		},
		ResultCount: 12,
		Latency:     30 * time.Millisecond,
	})
	m.Record(RunEvent{
		Query:        "nothing here",
		Tier:         "simple",
		LaneStatuses: map[string]string{"keyword": "success"},
		ResultCount:  0,
		Latency:      250 * time.Millisecond,
	})

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRuns)
	assert.Equal(t, int64(1), snap.TierCounts["technical"])
	assert.Equal(t, int64(1), snap.TierCounts["simple"])
	assert.Equal(t, int64(1), snap.LaneTimeouts["vector"])
	assert.Equal(t, int64(1), snap.LaneErrors["news"])
	assert.Equal(t, int64(0), snap.LaneErrors["keyword"])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP500])

	require.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"nothing here"}, snap.ZeroResultQueries)
	assert.InDelta(t, 50.0, snap.ZeroResultPercentage(), 0.001)
	assert.False(t, snap.Since.IsZero())
}

func TestSnapshot_ZeroResultPercentage_NoRuns(t *testing.T) {
	snap := NewRunMetrics().Snapshot()
	assert.Equal(t, 0.0, snap.ZeroResultPercentage())
}

func TestRunMetrics_SnapshotIsACopy(t *testing.T) {
	m := NewRunMetrics()
	m.Record(RunEvent{Tier: "simple", ResultCount: 1})

	snap := m.Snapshot()
	snap.TierCounts["simple"] = 99

	assert.Equal(t, int64(1), m.Snapshot().TierCounts["simple"])
}

func TestRunMetrics_ConcurrentRecord(t *testing.T) {
	m := NewRunMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m.Record(RunEvent{
					Query:        fmt.Sprintf("q-%d-%d", n, j),
					Tier:         "technical",
					LaneStatuses: map[string]string{"keyword": "timeout"},
					ResultCount:  j % 2,
					Latency:      time.Millisecond,
				})
			}
		}(i)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(200), snap.TotalRuns)
	assert.Equal(t, int64(200), snap.LaneTimeouts["keyword"])
	assert.Equal(t, int64(100), snap.ZeroResultCount)
	assert.Len(t, snap.ZeroResultQueries, 100)
}

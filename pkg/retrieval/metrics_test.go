package retrieval_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
)

func TestTrackerRecordAndSegment(t *testing.T) {
	tracker := retrieval.NewPerformanceTracker()

	tracker.Record("complex", "high", true, 0.8)
	tracker.Record("complex", "high", false, 0.6)
	tracker.Record("complex", "high", true, 0.7)

	segment, ok := tracker.Segment("complex", "high")
	require.True(t, ok)
	assert.Equal(t, 3, segment.TotalCount)
	assert.Equal(t, 2, segment.SuccessCount)
	assert.InDelta(t, 2.0/3.0, segment.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.7, segment.AvgConfidence, 1e-9)
}

func TestTrackerUnknownSegment(t *testing.T) {
	tracker := retrieval.NewPerformanceTracker()

	segment, ok := tracker.Segment("simple", "low")
	assert.False(t, ok)
	assert.Zero(t, segment.TotalCount)
	assert.Zero(t, segment.SuccessRate())
}

func TestTrackerSegmentsAreIndependent(t *testing.T) {
	tracker := retrieval.NewPerformanceTracker()

	tracker.Record("simple", "low", true, 0.9)
	tracker.Record("simple", "high", false, 0.4)

	low, ok := tracker.Segment("simple", "low")
	require.True(t, ok)
	high, ok := tracker.Segment("simple", "high")
	require.True(t, ok)

	assert.Equal(t, 1, low.SuccessCount)
	assert.Equal(t, 0, high.SuccessCount)
}

func TestTrackerSnapshot(t *testing.T) {
	tracker := retrieval.NewPerformanceTracker()

	tracker.Record("simple", "low", true, 0.9)
	tracker.Record("complex", "high", false, 0.4)

	snapshot := tracker.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Contains(t, snapshot, "simple|low")
	assert.Contains(t, snapshot, "complex|high")

	// The snapshot is a copy: mutating it must not leak into the tracker.
	entry := snapshot["simple|low"]
	entry.SuccessCount = 99
	snapshot["simple|low"] = entry

	segment, ok := tracker.Segment("simple", "low")
	require.True(t, ok)
	assert.Equal(t, 1, segment.SuccessCount)
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tracker := retrieval.NewPerformanceTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tracker.Record("complex", "medium", j%2 == 0, 0.5)
			}
		}()
	}
	wg.Wait()

	segment, ok := tracker.Segment("complex", "medium")
	require.True(t, ok)
	assert.Equal(t, 400, segment.TotalCount)
	assert.Equal(t, 200, segment.SuccessCount)
}

func TestSegmentSuccessRateWithoutData(t *testing.T) {
	assert.Zero(t, retrieval.SegmentMetrics{}.SuccessRate())
}

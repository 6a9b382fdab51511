package retrieval

import (
	"fmt"
	"sync"
)

// SegmentMetrics accumulates retrieval feedback for one (query type,
// risk tier) segment.
type SegmentMetrics struct {
	// SuccessCount is how many recorded interactions succeeded.
	SuccessCount int `json:"success_count"`

	// TotalCount is how many interactions were recorded.
	TotalCount int `json:"total_count"`

	// AvgConfidence is the running mean of recorded context confidence.
	AvgConfidence float64 `json:"avg_confidence"`
}

// SuccessRate is SuccessCount over TotalCount, 0 when nothing is recorded.
func (m SegmentMetrics) SuccessRate() float64 {
	if m.TotalCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.TotalCount)
}

// PerformanceTracker keeps per-segment feedback that the planner reads to
// widen searches for segments with a poor track record. In-process state,
// guarded for concurrent recording and planning.
type PerformanceTracker struct {
	mu       sync.RWMutex
	segments map[string]*SegmentMetrics
}

// NewPerformanceTracker creates an empty tracker.
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		segments: make(map[string]*SegmentMetrics),
	}
}

// Record folds one interaction outcome into its segment. AvgConfidence is
// updated with an incremental running mean.
func (t *PerformanceTracker) Record(queryType, riskTier string, success bool, confidence float64) {
	key := segmentKey(queryType, riskTier)

	t.mu.Lock()
	defer t.mu.Unlock()

	segment, ok := t.segments[key]
	if !ok {
		segment = &SegmentMetrics{}
		t.segments[key] = segment
	}

	segment.TotalCount++
	if success {
		segment.SuccessCount++
	}
	segment.AvgConfidence += (confidence - segment.AvgConfidence) / float64(segment.TotalCount)
}

// Segment returns a copy of one segment's metrics and whether it exists.
func (t *PerformanceTracker) Segment(queryType, riskTier string) (SegmentMetrics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	segment, ok := t.segments[segmentKey(queryType, riskTier)]
	if !ok {
		return SegmentMetrics{}, false
	}
	return *segment, true
}

// Snapshot returns a copy of every segment, keyed "queryType|riskTier".
func (t *PerformanceTracker) Snapshot() map[string]SegmentMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]SegmentMetrics, len(t.segments))
	for key, segment := range t.segments {
		snapshot[key] = *segment
	}
	return snapshot
}

func segmentKey(queryType, riskTier string) string {
	return fmt.Sprintf("%s|%s", queryType, riskTier)
}

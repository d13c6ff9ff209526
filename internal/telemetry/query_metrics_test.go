package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(query string, mode SearchMode, results int, latency time.Duration) QueryEvent {
	return QueryEvent{
		Query:       query,
		Mode:        mode,
		ResultCount: results,
		Latency:     latency,
		Timestamp:   time.Now(),
	}
}

func TestQueryMetrics_Record(t *testing.T) {
	m := New()

	m.Record(event("parse config file", ModeHybrid, 5, 8*time.Millisecond))
	m.Record(event("parse yaml", ModeHybrid, 3, 60*time.Millisecond))
	m.Record(event("nonexistent thing", ModeVector, 0, 20*time.Millisecond))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.ModeCounts[ModeHybrid])
	assert.Equal(t, int64(1), snap.ModeCounts[ModeVector])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"nonexistent thing"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP100])
}

func TestQueryMetrics_TopTerms(t *testing.T) {
	m := New()

	m.Record(event("parse config", ModeHybrid, 1, time.Millisecond))
	m.Record(event("parse yaml", ModeHybrid, 1, time.Millisecond))
	m.Record(event("config reload", ModeHybrid, 1, time.Millisecond))

	snap := m.Snapshot()
	require.NotEmpty(t, snap.TopTerms)

	counts := make(map[string]int64)
	for _, tc := range snap.TopTerms {
		counts[tc.Term] = tc.Count
	}
	assert.Equal(t, int64(2), counts["parse"])
	assert.Equal(t, int64(2), counts["config"])
	assert.Equal(t, int64(1), counts["yaml"])

	// Sorted by count descending.
	assert.GreaterOrEqual(t, snap.TopTerms[0].Count, snap.TopTerms[len(snap.TopTerms)-1].Count)
}

func TestQueryMetrics_RepeatDetection(t *testing.T) {
	m := New()

	m.Record(event("same query", ModeHybrid, 1, time.Millisecond))
	m.Record(event("Same Query", ModeHybrid, 1, time.Millisecond))
	m.Record(event("  same query  ", ModeHybrid, 1, time.Millisecond))
	m.Record(event("different", ModeHybrid, 1, time.Millisecond))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.ExactRepeatCount)
	assert.Equal(t, int64(2), snap.UniqueQueryCount)
}

func TestQueryMetrics_DegradedCount(t *testing.T) {
	m := New()

	e := event("fallback query", ModeKeywordFallback, 2, time.Millisecond)
	e.Degraded = true
	m.Record(e)
	m.Record(event("normal query", ModeHybrid, 2, time.Millisecond))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.DegradedCount)
	assert.Equal(t, int64(1), snap.ModeCounts[ModeKeywordFallback])
}

func TestSnapshot_ZeroResultPercentage(t *testing.T) {
	m := New()
	assert.Zero(t, m.Snapshot().ZeroResultPercentage())

	m.Record(event("hit", ModeHybrid, 1, time.Millisecond))
	m.Record(event("miss", ModeHybrid, 0, time.Millisecond))

	assert.InDelta(t, 50.0, m.Snapshot().ZeroResultPercentage(), 1e-9)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record(event(fmt.Sprintf("query %d %d", n, j), ModeHybrid, 1, time.Millisecond))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1000), m.Snapshot().TotalQueries)
}

func TestCircularBuffer_FIFOEviction(t *testing.T) {
	b := NewCircularBuffer[int](3)
	assert.Empty(t, b.Items())

	b.Add(1)
	b.Add(2)
	assert.Equal(t, []int{1, 2}, b.Items())
	assert.Equal(t, 2, b.Size())

	b.Add(3)
	b.Add(4)
	assert.Equal(t, []int{2, 3, 4}, b.Items())
	assert.Equal(t, 3, b.Size())
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"parse", "config", "file"}, ExtractTerms("Parse a Config file"))
	assert.Nil(t, ExtractTerms("  "))
	assert.Nil(t, ExtractTerms("a an"))
}

func TestLatencyToBucket(t *testing.T) {
	assert.Equal(t, BucketP10, LatencyToBucket(5*time.Millisecond))
	assert.Equal(t, BucketP50, LatencyToBucket(30*time.Millisecond))
	assert.Equal(t, BucketP100, LatencyToBucket(80*time.Millisecond))
	assert.Equal(t, BucketP500, LatencyToBucket(300*time.Millisecond))
	assert.Equal(t, BucketP1000, LatencyToBucket(2*time.Second))
}

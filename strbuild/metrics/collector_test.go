package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTakeReportsNonZeroFields(t *testing.T) {
	snap := Take()
	require.False(t, snap.TS.IsZero())
	require.Greater(t, snap.NumGoroutine, 0)
}

func TestDiffComputesRateAndGCDelta(t *testing.T) {
	before := Snapshot{TS: time.Unix(0, 0), HeapAlloc: 1000, NumGC: 2}
	after := Snapshot{TS: time.Unix(1, 0), HeapAlloc: 3000, NumGC: 5}

	rate, gcDelta := Diff(before, after)
	require.Equal(t, float64(2000), rate)
	require.Equal(t, uint32(3), gcDelta)
}

func TestDiffClampsNegativeAllocDelta(t *testing.T) {
	before := Snapshot{TS: time.Unix(0, 0), HeapAlloc: 5000, NumGC: 4}
	after := Snapshot{TS: time.Unix(1, 0), HeapAlloc: 1000, NumGC: 4}

	rate, gcDelta := Diff(before, after)
	require.Equal(t, float64(0), rate)
	require.Equal(t, uint32(0), gcDelta)
}

func TestDiffZeroElapsedReturnsZero(t *testing.T) {
	same := time.Unix(0, 0)
	before := Snapshot{TS: same, HeapAlloc: 100}
	after := Snapshot{TS: same, HeapAlloc: 200}

	rate, gcDelta := Diff(before, after)
	require.Equal(t, float64(0), rate)
	require.Equal(t, uint32(0), gcDelta)
}

func TestNewBuildReportFoldsSizingIntoReport(t *testing.T) {
	before := Snapshot{TS: time.Unix(0, 0), HeapAlloc: 1000, NumGC: 1}
	after := Snapshot{TS: time.Unix(2, 0), HeapAlloc: 5000, NumGC: 3}

	report := NewBuildReport(before, after, 2*time.Second, 400, 4)
	require.Equal(t, 400, report.NumElements)
	require.Equal(t, 4, report.NumSubtrees)
	require.Equal(t, 2*time.Second, report.Duration)
	require.Equal(t, float64(2000), report.AllocRateBps)
	require.Equal(t, uint32(2), report.GCCount)
}

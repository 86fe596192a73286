package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var burstBase = time.Date(2021, 2, 9, 14, 30, 0, 0, time.UTC)

// denseBurst returns n timestamps spaced 3 seconds apart from start, all of
// which fit in a 45 second window once n <= 15.
func denseBurst(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, start.Add(time.Duration(i)*3*time.Second))
	}
	return out
}

func TestSegmentEmitsDenseBurst(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)

	periods := s.Segment(denseBurst(burstBase, 12))
	require.Len(t, periods, 1)

	p := periods[0]
	assert.Equal(t, burstBase, p.Start)
	require.NotNil(t, p.End)
	assert.Equal(t, burstBase.Add(33*time.Second), *p.End)
	assert.Equal(t, 12, p.PeakCount)
}

// Peak count exactly k must not be emitted; k+1 must. Strict inequality.
func TestSegmentThresholdBoundary(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)

	assert.Empty(t, s.Segment(denseBurst(burstBase, 10)))

	periods := s.Segment(denseBurst(burstBase, 11))
	require.Len(t, periods, 1)
	assert.Equal(t, 11, periods[0].PeakCount)
}

func TestSegmentIsolatedStragglersAreNoise(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)

	times := denseBurst(burstBase, 12)
	// A lone event long after the burst closes it without opening a new one.
	times = append(times, burstBase.Add(10*time.Minute))

	periods := s.Segment(times)
	require.Len(t, periods, 1)
	require.NotNil(t, periods[0].End)
	assert.Equal(t, burstBase.Add(33*time.Second), *periods[0].End)
}

func TestSegmentBackToBackQuestionsMerge(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)

	first := denseBurst(burstBase, 12)
	// Second burst starts within the window of the first's tail, so the count
	// never drops to one in between and the periods merge.
	second := denseBurst(burstBase.Add(73*time.Second), 12)
	times := append(append([]time.Time{}, first...), second...)

	periods := s.Segment(times)
	require.Len(t, periods, 1)
	assert.Equal(t, burstBase, periods[0].Start)
	require.NotNil(t, periods[0].End)
	assert.Equal(t, second[len(second)-1], *periods[0].End)
}

func TestSegmentSeparatedBurstsStayDistinct(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)

	first := denseBurst(burstBase, 12)
	second := denseBurst(burstBase.Add(5*time.Minute), 12)
	times := append(append([]time.Time{}, first...), second...)

	periods := s.Segment(times)
	require.Len(t, periods, 2)
	assert.Equal(t, burstBase, periods[0].Start)
	assert.Equal(t, burstBase.Add(5*time.Minute), periods[1].Start)
}

// Every emitted period has start <= end, and periods are ordered and
// non-overlapping.
func TestSegmentMonotonicity(t *testing.T) {
	s := NewSegmenter(5, 45*time.Second)

	var times []time.Time
	for i := 0; i < 6; i++ {
		times = append(times, denseBurst(burstBase.Add(time.Duration(i)*4*time.Minute), 8)...)
	}
	// Sprinkle stragglers between bursts.
	for i := 0; i < 5; i++ {
		times = append(times, burstBase.Add(time.Duration(i)*4*time.Minute+2*time.Minute))
	}

	periods := s.Segment(times)
	require.NotEmpty(t, periods)
	for i, p := range periods {
		require.NotNil(t, p.End)
		assert.False(t, p.End.Before(p.Start), "period %d end precedes start", i)
		if i > 0 {
			prev := periods[i-1]
			assert.True(t, prev.End.Before(p.Start), "periods %d and %d overlap", i-1, i)
		}
	}
}

func TestSegmentWindowIsHalfOpen(t *testing.T) {
	s := NewSegmenter(1, 45*time.Second)

	// Second event exactly window-width after the first: the first has
	// expired from (t-w, t], so the count resets to one.
	times := []time.Time{burstBase, burstBase.Add(45 * time.Second)}
	assert.Empty(t, s.Segment(times))

	// One nanosecond closer and they share a window.
	times = []time.Time{burstBase, burstBase.Add(45*time.Second - time.Nanosecond)}
	periods := s.Segment(times)
	require.Len(t, periods, 1)
	assert.Equal(t, 2, periods[0].PeakCount)
}

// A single qualifying point (only possible with threshold <= 1) flushes with
// a nil end and must not panic.
func TestSegmentSinglePointBurstHasNilEnd(t *testing.T) {
	s := NewSegmenter(0, 45*time.Second)

	periods := s.Segment([]time.Time{burstBase})
	require.Len(t, periods, 1)
	assert.Equal(t, burstBase, periods[0].Start)
	assert.Nil(t, periods[0].End)
	assert.Equal(t, 1, periods[0].PeakCount)
}

func TestSegmentEmptyStream(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)
	assert.Empty(t, s.Segment(nil))
}

func TestSegmentDuplicateTimestampsAreDeterministic(t *testing.T) {
	s := NewSegmenter(10, 45*time.Second)

	times := make([]time.Time, 0, 12)
	for i := 0; i < 12; i++ {
		times = append(times, burstBase)
	}

	first := s.Segment(times)
	second := s.Segment(times)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, 12, first[0].PeakCount)
}

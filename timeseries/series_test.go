package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func mustNew(t *testing.T, values []float64, step time.Duration) *TimeSeries {
	t.Helper()
	s, err := New("load", epoch, step, values)
	require.NoError(t, err)
	return s
}

func TestNewCopiesValues(t *testing.T) {
	raw := []float64{1, 2, 3}
	s := mustNew(t, raw, time.Minute)
	raw[0] = 99

	assert.Equal(t, 1.0, s.Values[0])
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, epoch.Add(3*time.Minute), s.End())
	assert.Equal(t, epoch.Add(2*time.Minute), s.Timestamp(2))
}

func TestNewRejectsNonPositiveStep(t *testing.T) {
	_, err := New("x", epoch, 0, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestTimestampsAreUniform(t *testing.T) {
	s := mustNew(t, make([]float64, 5), 30*time.Second)
	ts := s.Timestamps()
	require.Len(t, ts, 5)
	for i := 1; i < len(ts); i++ {
		assert.Equal(t, 30*time.Second, ts[i].Sub(ts[i-1]))
	}
	assert.Equal(t, s.End(), ts[len(ts)-1].Add(s.Step))
}

func TestStatisticsIgnoreMissing(t *testing.T) {
	s := mustNew(t, []float64{2, 4, math.NaN(), 4, 5, 5, 7, 9}, time.Minute)

	assert.Equal(t, 1, s.Missing())
	assert.InDelta(t, 36.0/7.0, s.Mean(), 1e-12)
	assert.Greater(t, s.Variance(), 0.0)
	assert.InDelta(t, math.Sqrt(s.Variance()), s.Std(), 1e-12)
}

func TestDiff(t *testing.T) {
	s := mustNew(t, []float64{1, 3, 6, 10, 15}, time.Minute)
	d := s.Diff()

	assert.Equal(t, []float64{2, 3, 4, 5}, d.Values)
	assert.Equal(t, epoch.Add(time.Minute), d.Start)
	assert.Equal(t, s.End(), d.End())
	assert.Equal(t, []float64{1, 3, 6, 10, 15}, s.Values, "receiver must not change")
}

func TestSeasonalDiff(t *testing.T) {
	s := mustNew(t, []float64{1, 2, 3, 4, 11, 12, 13, 14}, time.Hour)
	d := s.SeasonalDiff(4)

	assert.Equal(t, []float64{10, 10, 10, 10}, d.Values)
	assert.Equal(t, epoch.Add(4*time.Hour), d.Start)

	empty := s.SeasonalDiff(8)
	assert.Equal(t, 0, empty.Len())
}

func TestSlice(t *testing.T) {
	s := mustNew(t, []float64{0, 1, 2, 3, 4, 5}, time.Minute)
	sub := s.Slice(2, 4)

	assert.Equal(t, []float64{2, 3}, sub.Values)
	assert.Equal(t, epoch.Add(2*time.Minute), sub.Start)

	sub.Values[0] = 42
	assert.Equal(t, 2.0, s.Values[2], "slice must not alias")
	assert.Equal(t, 0, s.Slice(4, 2).Len())
}

func TestWithValues(t *testing.T) {
	s := mustNew(t, []float64{1, 2, 3}, time.Minute)

	w, err := s.WithValues("trend", []float64{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, "trend", w.Name)
	assert.Equal(t, s.Start, w.Start)

	_, err = s.WithValues("bad", []float64{1})
	assert.Error(t, err)
}

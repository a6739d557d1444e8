package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

var triangular = []float64{1, 2, 4, 7, 11, 16, 22}

func TestDifferenceIdentity(t *testing.T) {
	s := series(t, triangular)

	out, err := Difference(s, DifferencingSpec{})
	require.NoError(t, err)
	assert.Equal(t, s.Values, out.Values)
	assert.Equal(t, s.Start, out.Start)

	out.Values[0] = 100
	assert.Equal(t, 1.0, s.Values[0], "identity must not alias the input")
}

func TestDifferenceRepeatedFirstDifference(t *testing.T) {
	s := series(t, triangular)

	once, err := Difference(s, DifferencingSpec{D: 1})
	require.NoError(t, err)
	twice, err := Difference(once, DifferencingSpec{D: 1})
	require.NoError(t, err)
	direct, err := Difference(s, DifferencingSpec{D: 2})
	require.NoError(t, err)

	assert.Equal(t, direct.Values, twice.Values)
	assert.Equal(t, direct.Start, twice.Start)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, direct.Values)
}

func TestDifferenceSeasonalThenOrdinary(t *testing.T) {
	s := series(t, triangular)
	spec := DifferencingSpec{D: 1, SeasonalD: 1, SeasonalLag: 2}

	out, err := Difference(s, spec)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 2}, out.Values)
	assert.Equal(t, 3, spec.Removed())
	assert.Equal(t, epoch.Add(3*time.Minute), out.Start)
	assert.Equal(t, s.End(), out.End())
}

func TestDifferenceInvalidOrders(t *testing.T) {
	s := series(t, []float64{1, 2, 3})

	for name, spec := range map[string]DifferencingSpec{
		"negative d":         {D: -1},
		"negative seasonal":  {SeasonalD: -1, SeasonalLag: 2},
		"seasonal lag below": {SeasonalD: 1, SeasonalLag: 1},
		"empties series":     {D: 3},
		"seasonal too long":  {SeasonalD: 1, SeasonalLag: 3},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Difference(s, spec)
			assert.ErrorIs(t, err, timeseries.ErrInvalidOrder)
		})
	}

	_, err := Difference(s, DifferencingSpec{D: 1, SeasonalLag: 1})
	assert.NoError(t, err, "lag is ignored without a seasonal order")
}

func TestUndifference(t *testing.T) {
	spec := DifferencingSpec{D: 1, SeasonalD: 1, SeasonalLag: 2}
	full, err := Difference(series(t, triangular), spec)
	require.NoError(t, err)

	history := triangular[:5]
	got := Undifference(history, full.Values[len(history)-spec.Removed():], spec)
	assert.Equal(t, triangular[5:], got)

	assert.Equal(t, []float64{3, 4}, Undifference([]float64{1, 2}, []float64{3, 4}, DifferencingSpec{}))
}

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

func ar1(n int, phi float64) []float64 {
	noise := gaussian(n, 7)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + noise[i]
	}
	return out
}

func TestACF(t *testing.T) {
	acf, err := ACF(series(t, ar1(500, 0.8)), 10)
	require.NoError(t, err)
	require.Len(t, acf, 11)

	assert.InDelta(t, 1.0, acf[0], 1e-12)
	assert.Greater(t, acf[1], 0.5)
	assert.Greater(t, acf[1], acf[5])
}

func TestACFCapsLag(t *testing.T) {
	acf, err := ACF(series(t, []float64{1, 2, 3, 4}), 10)
	require.NoError(t, err)
	assert.Len(t, acf, 4)
}

func TestACFErrors(t *testing.T) {
	_, err := ACF(series(t, []float64{2, 2, 2, 2}), 2)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)

	_, err = ACF(series(t, []float64{1, math.NaN(), 2}), 2)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)

	_, err = PACF(series(t, []float64{1}), 2)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)
}

func TestPACFCutsOffForAR1(t *testing.T) {
	s := series(t, ar1(1000, 0.7))

	pacf, err := PACF(s, 10)
	require.NoError(t, err)
	acf, err := ACF(s, 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, pacf[0])
	assert.Equal(t, acf[1], pacf[1])
	assert.Greater(t, pacf[1], 0.5)
	for k := 2; k <= 10; k++ {
		assert.Less(t, math.Abs(pacf[k]), math.Abs(pacf[1]), "lag %d", k)
	}
}

func TestCorrelogram(t *testing.T) {
	s := series(t, ar1(400, 0.8))

	acf, err := ACFWithConfidence(s, 20)
	require.NoError(t, err)
	assert.InDelta(t, 1.96/20, acf.ConfBounds, 1e-12)
	assert.Equal(t, 20, acf.Lags[20])
	assert.Contains(t, acf.Significant(), 1)

	pacf, err := PACFWithConfidence(s, 5)
	require.NoError(t, err)
	assert.Len(t, pacf.Values, 6)
	assert.Contains(t, pacf.Significant(), 1)
}

func TestSignificantLags(t *testing.T) {
	assert.Equal(t, []int{1, 3}, SignificantLags([]float64{1, 0.5, 0.1, -0.4}, 0.2))
	assert.Nil(t, SignificantLags([]float64{1, 0.1}, 0.2))
}

func TestLjungBox(t *testing.T) {
	correlated, err := LjungBox(series(t, ar1(300, 0.8)), 10, 0)
	require.NoError(t, err)
	assert.Less(t, correlated.PValue, SignificanceLevel)
	assert.False(t, correlated.WhiteNoise())
	assert.Equal(t, 10, correlated.DOF)

	fitted, err := LjungBox(series(t, ar1(300, 0.8)), 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, fitted.DOF)

	_, err = LjungBox(series(t, weyl(5)), 3, 0)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)
	_, err = LjungBox(series(t, weyl(50)), 0, 0)
	assert.Error(t, err)
}

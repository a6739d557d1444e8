package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

func explosive(n int) []float64 {
	noise := weyl(n)
	out := make([]float64, n)
	out[0] = 1
	for i := 1; i < n; i++ {
		out[i] = 1.02*out[i-1] + noise[i]
	}
	return out
}

// lcg is a 32-bit linear congruential sequence centered on zero.
func lcg(n int, seed uint32) []float64 {
	out := make([]float64, n)
	x := seed
	for i := range out {
		x = 1664525*x + 1013904223
		out[i] = float64(x)/(1<<32) - 0.5
	}
	return out
}

func TestADFStationarySeries(t *testing.T) {
	res, err := ADF(series(t, weyl(200)), 5)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Lags)
	assert.Equal(t, 194, res.NObs)
	assert.Less(t, res.Statistic, res.CriticalValues["1%"])
	assert.Less(t, res.PValue, SignificanceLevel)
	assert.True(t, res.IsStationary)
}

func TestADFSelectsLagByAIC(t *testing.T) {
	e := lcg(500, 1)
	y := make([]float64, len(e))
	for i := 3; i < len(y); i++ {
		y[i] = 0.5*y[i-1] - 0.4*y[i-2] + 0.3*y[i-3] + e[i]
	}
	s := series(t, y)

	auto, err := ADF(s, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, auto.Lags)
	assert.Equal(t, 497, auto.NObs)
	assert.True(t, auto.IsStationary)

	fixed, err := ADF(s, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, fixed.Lags)
	assert.Equal(t, 492, fixed.NObs)
	assert.NotEqual(t, auto.Statistic, fixed.Statistic)

	st, err := Evaluate(s, 0)
	require.NoError(t, err)
	assert.Equal(t, auto, st.ADFResult)
}

func TestADFExplosiveSeries(t *testing.T) {
	res, err := ADF(series(t, explosive(200)), 0)
	require.NoError(t, err)

	assert.Greater(t, res.Statistic, 0.0)
	assert.False(t, res.IsStationary)
}

func TestADFIsDeterministic(t *testing.T) {
	s := series(t, explosive(150))

	a, err := ADF(s, 0)
	require.NoError(t, err)
	b, err := ADF(s, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestADFInsufficientData(t *testing.T) {
	_, err := ADF(series(t, weyl(12)), 0)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)

	constant := generate(100, func(int) float64 { return 5 })
	_, err = ADF(series(t, constant), 0)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)

	gappy := weyl(100)
	gappy[40] = math.NaN()
	_, err = ADF(series(t, gappy), 0)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)
}

func TestMacKinnon(t *testing.T) {
	assert.InDelta(t, 0.05, mackinnonPValue(-2.86154), 1e-3)
	assert.Equal(t, 1.0, mackinnonPValue(3))
	assert.Equal(t, 0.0, mackinnonPValue(-20))
	assert.Greater(t, mackinnonPValue(-1), mackinnonPValue(-2))

	crit := mackinnonCriticalValues(100000)
	assert.InDelta(t, -3.43, crit["1%"], 1e-3)
	assert.InDelta(t, -2.86, crit["5%"], 1e-2)
	assert.InDelta(t, -2.57, crit["10%"], 1e-2)

	small := mackinnonCriticalValues(50)
	assert.Less(t, small["1%"], crit["1%"])
}

func TestEvaluate(t *testing.T) {
	st, err := Evaluate(series(t, weyl(200)), 1)
	require.NoError(t, err)
	assert.True(t, st.Stationary())
	assert.Equal(t, "d=1", st.Suggestion())

	st, err = Evaluate(series(t, explosive(200)), 0)
	require.NoError(t, err)
	assert.False(t, st.Stationary())
	assert.Equal(t, "d>=1", st.Suggestion())

	st, err = EvaluateDifferenced(series(t, explosive(200)), DifferencingSpec{D: 1, SeasonalD: 1, SeasonalLag: 12})
	require.NoError(t, err)
	assert.Equal(t, 1, st.SeasonalOrder)
	assert.Equal(t, "D=1 d>=2", st.Suggestion())

	st, err = EvaluateDifferenced(series(t, weyl(200)), DifferencingSpec{SeasonalD: 2, SeasonalLag: 7})
	require.NoError(t, err)
	assert.Equal(t, "D=2 d=0", st.Suggestion())
}

func TestKPSS(t *testing.T) {
	res, err := KPSS(series(t, weyl(200)), KPSSLevel, 0)
	require.NoError(t, err)
	assert.Less(t, res.Statistic, res.CriticalValues["10%"])
	assert.Equal(t, 0.10, res.PValue)
	assert.True(t, res.IsStationary)

	res, err = KPSS(series(t, weyl(200)), KPSSTrend, 0)
	require.NoError(t, err)
	assert.True(t, res.IsStationary)

	line := generate(200, func(i int) float64 { return float64(i) })
	res, err = KPSS(series(t, line), KPSSLevel, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.01, res.PValue)
	assert.False(t, res.IsStationary)

	_, err = KPSS(series(t, weyl(5)), KPSSLevel, 0)
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)

	_, err = KPSS(series(t, weyl(50)), "x", 0)
	assert.Error(t, err)
}

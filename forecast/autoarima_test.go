package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

func TestNDiffs(t *testing.T) {
	walk := series(t, randomWalk(1000, 9))
	noise := series(t, gaussian(1000, 9))

	for _, test := range []string{TestKPSS, TestADF} {
		t.Run(test, func(t *testing.T) {
			d, err := NDiffs(walk, 2, test)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, d, 1)
			assert.LessOrEqual(t, d, 2)
		})
	}

	d, err := NDiffs(noise, 2, TestADF)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = NDiffs(walk, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	_, err = NDiffs(walk, 2, "pp")
	assert.Error(t, err)
	_, err = NDiffs(walk, -1, TestADF)
	assert.ErrorIs(t, err, timeseries.ErrInvalidOrder)
}

func TestNSDiffs(t *testing.T) {
	noise := gaussian(480, 4)
	seasonal := make([]float64, len(noise))
	for i := range seasonal {
		seasonal[i] = 10*math.Sin(2*math.Pi*float64(i)/24) + 0.2*noise[i]
	}

	d, err := NSDiffs(series(t, seasonal), 24)
	require.NoError(t, err)
	assert.Equal(t, 1, d)

	d, err = NSDiffs(series(t, noise), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = NSDiffs(series(t, noise[:30]), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	_, err = NSDiffs(series(t, noise), 1)
	assert.ErrorIs(t, err, timeseries.ErrInvalidPeriod)
}

func TestAutoARIMASelectsAR1(t *testing.T) {
	s := series(t, ar1(1500, 0.7, 21))
	res, err := AutoARIMA{Test: TestADF, Criterion: CriterionBIC}.Forecast(context.Background(), s, Request{Horizon: 10 * time.Minute})
	require.NoError(t, err)

	sum := res.Summary
	assert.Equal(t, 0, sum.Order.D)
	assert.GreaterOrEqual(t, sum.ModelsEvaluated, 5)
	assert.Equal(t, "ARIMA"+sum.Order.String(), res.Model)
	// The dominant autoregressive coefficient carries the persistence.
	require.NotEmpty(t, sum.ARCoeffs)
	assert.InDelta(t, 0.7, sum.ARCoeffs[0], 0.2)
}

func TestAutoARIMASeasonal(t *testing.T) {
	noise := gaussian(600, 8)
	values := make([]float64, len(noise))
	for i := range values {
		values[i] = 50 + 8*math.Sin(2*math.Pi*float64(i)/12) + 0.3*noise[i]
	}
	s := series(t, values)

	res, err := AutoARIMA{MaxP: 2, MaxQ: 2, SeasonLength: 12}.Forecast(context.Background(), s, Request{Horizon: 12 * time.Minute})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.Seasonal.SeasonalD)
	assert.Equal(t, 12, res.Summary.Seasonal.SeasonalLag)
	for h, p := range res.Forecast.Values {
		want := 50 + 8*math.Sin(2*math.Pi*float64(600+h)/12)
		assert.InDelta(t, want, p, 1.5)
	}
}

func TestAutoARIMARejectsUnknownCriterion(t *testing.T) {
	_, err := AutoARIMA{Criterion: "hqic"}.Forecast(context.Background(), series(t, gaussian(200, 1)), Request{Horizon: time.Hour})
	assert.Error(t, err)
}

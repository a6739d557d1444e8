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

func TestSteps(t *testing.T) {
	tests := []struct {
		name    string
		horizon time.Duration
		step    time.Duration
		want    int
		wantErr error
	}{
		{name: "whole steps", horizon: 90 * time.Minute, step: time.Minute, want: 90},
		{name: "truncated", horizon: 150 * time.Second, step: time.Minute, want: 2},
		{name: "shorter than step", horizon: 30 * time.Second, step: time.Minute, wantErr: ErrInvalidHorizon},
		{name: "negative horizon", horizon: -time.Hour, step: time.Minute, wantErr: ErrInvalidHorizon},
		{name: "zero step", horizon: time.Hour, step: 0, wantErr: timeseries.ErrInvalidStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Steps(tt.horizon, tt.step)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForecastersShareResultShape(t *testing.T) {
	s := series(t, randomWalk(300, 3))
	forecasters := []Forecaster{
		ARIMA{Order: Order{P: 1, D: 1, Q: 0}},
		AutoARIMA{MaxP: 2, MaxQ: 2},
		HoltWinters{},
	}

	for _, f := range forecasters {
		t.Run(f.Name(), func(t *testing.T) {
			res, err := f.Forecast(context.Background(), s, Request{Horizon: 30 * time.Minute})
			require.NoError(t, err)

			assert.Equal(t, s.End(), res.Forecast.Start)
			assert.Equal(t, s.Step, res.Forecast.Step)
			assert.Equal(t, 30, res.Forecast.Len())
			assert.Equal(t, s.Len(), res.Fitted.Len())
			assert.True(t, math.IsNaN(res.Fitted.Values[0]))
			require.NotNil(t, res.Summary)
			assert.Equal(t, res.Model, res.Summary.Model)

			require.Len(t, res.Intervals, len(DefaultLevels))
			for i, iv := range res.Intervals {
				assert.Equal(t, DefaultLevels[i], iv.Level)
				for h, p := range res.Forecast.Values {
					assert.LessOrEqual(t, iv.Lower.Values[h], p)
					assert.GreaterOrEqual(t, iv.Upper.Values[h], p)
				}
			}
			narrow, wide := res.Intervals[0], res.Intervals[2]
			assert.Less(t, wide.Lower.Values[0], narrow.Lower.Values[0])
		})
	}
}

func TestForecastRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	s := series(t, randomWalk(200, 1))
	f := ARIMA{Order: Order{P: 1}}

	_, err := f.Forecast(ctx, s, Request{Horizon: 30 * time.Second})
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	_, err = f.Forecast(ctx, s, Request{Horizon: time.Hour, Levels: []float64{100}})
	assert.Error(t, err)

	values := randomWalk(200, 1)
	values[50] = math.NaN()
	_, err = f.Forecast(ctx, series(t, values), Request{Horizon: time.Hour})
	assert.ErrorIs(t, err, timeseries.ErrInsufficientData)
}

func TestForecastHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := series(t, randomWalk(200, 1))

	for _, f := range []Forecaster{ARIMA{Order: Order{P: 1}}, AutoARIMA{}, HoltWinters{}} {
		_, err := f.Forecast(ctx, s, Request{Horizon: time.Hour})
		assert.ErrorIs(t, err, context.Canceled, f.Name())
	}
}

func TestInformationCriteria(t *testing.T) {
	ic := informationCriteria(-100, 50, 3)
	assert.InDelta(t, 206, ic.AIC, 1e-9)
	assert.InDelta(t, 206+24.0/46, ic.AICc, 1e-9)
	assert.InDelta(t, 200+3*math.Log(50), ic.BIC, 1e-9)

	assert.True(t, math.IsInf(informationCriteria(-10, 4, 3).AICc, 1))
}

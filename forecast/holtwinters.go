package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/rrdiag/timeseries"
)

// smoothingGrid are the candidate values of every smoothing parameter.
var smoothingGrid = []float64{0.05, 0.15, 0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85, 0.95}

// HoltWinters is additive triple exponential smoothing. With SeasonLength
// below 2 it is Holt's linear trend method. The smoothing parameters are
// chosen by grid search on the one-step sum of squared errors.
type HoltWinters struct {
	SeasonLength int
}

// Name implements Forecaster.
func (hw HoltWinters) Name() string {
	if hw.SeasonLength > 1 {
		return fmt.Sprintf("HoltWinters[m=%d]", hw.SeasonLength)
	}
	return "Holt"
}

// smoother is one pass of additive Holt-Winters over a series.
type smoother struct {
	alpha, beta, gamma float64
	season             int

	level    float64
	trend    float64
	seasonal []float64
	// start is the first sample with a one-step prediction.
	start int
}

func newSmoother(y []float64, season int, alpha, beta, gamma float64) *smoother {
	sm := &smoother{alpha: alpha, beta: beta, gamma: gamma, season: season}
	if season < 2 {
		sm.season = 1
		sm.seasonal = []float64{0}
		sm.gamma = 0
		sm.level = y[0]
		sm.trend = y[1] - y[0]
		sm.start = 1
		return sm
	}

	first := stat.Mean(y[:season], nil)
	sm.level = first
	sm.trend = (stat.Mean(y[season:2*season], nil) - first) / float64(season)
	sm.seasonal = make([]float64, season)
	for i := range sm.seasonal {
		sm.seasonal[i] = y[i] - first
	}
	sm.start = season
	return sm
}

// run smooths y from start and returns the one-step errors and their sum of
// squares. resid may be nil when only the SSE is needed.
func (sm *smoother) run(y, resid []float64) float64 {
	sse := 0.0
	for t := sm.start; t < len(y); t++ {
		idx := t % sm.season
		pred := sm.level + sm.trend + sm.seasonal[idx]
		e := y[t] - pred
		sse += e * e
		if resid != nil {
			resid[t] = e
		}

		prevLevel := sm.level
		sm.level = sm.alpha*(y[t]-sm.seasonal[idx]) + (1-sm.alpha)*(prevLevel+sm.trend)
		sm.trend = sm.beta*(sm.level-prevLevel) + (1-sm.beta)*sm.trend
		if sm.season > 1 {
			sm.seasonal[idx] = sm.gamma*(y[t]-sm.level) + (1-sm.gamma)*sm.seasonal[idx]
		}
	}
	return sse
}

// predict returns the forecast h steps past the last of n smoothed samples.
func (sm *smoother) predict(n, h int) float64 {
	return sm.level + float64(h)*sm.trend + sm.seasonal[(n+h-1)%sm.season]
}

// Forecast implements Forecaster.
func (hw HoltWinters) Forecast(ctx context.Context, s *timeseries.TimeSeries, req Request) (*Result, error) {
	steps, levels, err := prepare(s, req)
	if err != nil {
		return nil, err
	}
	season := hw.SeasonLength
	y := s.Values
	n := len(y)
	switch {
	case season > 1 && n < 2*season+1:
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "%s needs %d samples, got %d", hw.Name(), 2*season+1, n)
	case n < 3:
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "%s needs 3 samples, got %d", hw.Name(), n)
	}

	gammas := smoothingGrid
	if season < 2 {
		gammas = []float64{0}
	}
	bestSSE := math.Inf(1)
	var alpha, beta, gamma float64
	for _, a := range smoothingGrid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, b := range smoothingGrid {
			for _, g := range gammas {
				if sse := newSmoother(y, season, a, b, g).run(y, nil); sse < bestSSE {
					bestSSE, alpha, beta, gamma = sse, a, b, g
				}
			}
		}
	}

	sm := newSmoother(y, season, alpha, beta, gamma)
	resid := nanSlice(n)
	sse := sm.run(y, resid)
	count := n - sm.start
	variance := sse / float64(count)

	fitted := nanSlice(n)
	for t := sm.start; t < n; t++ {
		fitted[t] = y[t] - resid[t]
	}

	point := make([]float64, steps)
	se := make([]float64, steps)
	sigma := math.Sqrt(variance)
	acc := 1.0
	for h := 1; h <= steps; h++ {
		point[h-1] = sm.predict(n, h)
		if h > 1 {
			j := h - 1
			c := sm.alpha * (1 + float64(j)*sm.beta)
			if sm.season > 1 && j%sm.season == 0 {
				c += sm.gamma * (1 - sm.alpha)
			}
			acc += c * c
		}
		se[h-1] = sigma * math.Sqrt(acc)
	}

	res, err := newResult(hw.Name(), s, fitted, point, se, levels)
	if err != nil {
		return nil, err
	}

	// Smoothing parameters plus the initial level, trend and season.
	k := 2 + 2
	if sm.season > 1 {
		k += 1 + sm.season - 1
	}
	logLik := math.Inf(1)
	if sse > 0 {
		logLik = -float64(count) / 2 * (math.Log(2*math.Pi*variance) + 1)
	}
	ic := informationCriteria(logLik, count, k)
	res.Summary = &Summary{
		Model:    hw.Name(),
		Alpha:    sm.alpha,
		Beta:     sm.beta,
		Gamma:    sm.gamma,
		Variance: variance,
		AIC:      ic.AIC,
		AICc:     ic.AICc,
		BIC:      ic.BIC,
		LogLik:   logLik,
		NObs:     n,
		LjungBox: residualDiagnostics(s, resid[sm.start:], 2),
	}
	return res, nil
}

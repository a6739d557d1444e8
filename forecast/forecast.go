package forecast

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/rrdiag/stats"
	"github.com/sartorproj/rrdiag/timeseries"
)

var (
	// ErrInvalidHorizon is returned when the horizon is shorter than one step.
	ErrInvalidHorizon = errors.New("invalid forecast horizon")

	// ErrNotFitted is returned when a model is used before Fit succeeded.
	ErrNotFitted = errors.New("model is not fitted")
)

// DefaultLevels are the interval coverages, in percent, used when a Request
// names none.
var DefaultLevels = []float64{25, 50, 75}

// Request describes what to forecast.
type Request struct {
	// Horizon is how far past the end of the series to forecast. It is
	// truncated to whole steps.
	Horizon time.Duration
	// Levels are prediction interval coverages in percent, each in (0, 100).
	Levels []float64
}

// Interval is a two-sided prediction interval on the forecast index.
type Interval struct {
	Level float64
	Lower *timeseries.TimeSeries
	Upper *timeseries.TimeSeries
}

// Result is a forecast. Fitted shares the input index and is NaN where the
// model has no one-step prediction. Forecast starts at the input's End.
type Result struct {
	Model     string
	Fitted    *timeseries.TimeSeries
	Forecast  *timeseries.TimeSeries
	Intervals []Interval
	Summary   *Summary
}

// Summary describes a fitted model.
type Summary struct {
	Model         string
	Order         Order
	SeasonalOrder Order
	Seasonal      stats.DifferencingSpec
	ARCoeffs      []float64
	MACoeffs      []float64
	SARCoeffs     []float64
	SMACoeffs     []float64
	Intercept     float64
	// Alpha, Beta and Gamma are the smoothing parameters of exponential
	// smoothing models.
	Alpha, Beta, Gamma float64
	Variance           float64
	AIC                float64
	AICc               float64
	BIC                float64
	LogLik             float64
	NObs               int
	LjungBox           *stats.LjungBoxResult
	ModelsEvaluated    int
}

// Forecaster is a forecasting model configuration. Implementations fit a
// fresh model on every call and hold no state between calls.
type Forecaster interface {
	Name() string
	Forecast(ctx context.Context, s *timeseries.TimeSeries, req Request) (*Result, error)
}

// Steps converts a horizon to a number of samples at step.
func Steps(horizon, step time.Duration) (int, error) {
	if step <= 0 {
		return 0, errors.Wrapf(timeseries.ErrInvalidStep, "step %s", step)
	}
	steps := int(horizon / step)
	if steps < 1 {
		return 0, errors.Wrapf(ErrInvalidHorizon, "horizon %s is shorter than step %s", horizon, step)
	}
	return steps, nil
}

// prepare validates a request against s and returns the step count and the
// effective levels.
func prepare(s *timeseries.TimeSeries, req Request) (int, []float64, error) {
	steps, err := Steps(req.Horizon, s.Step)
	if err != nil {
		return 0, nil, err
	}
	if s.Missing() > 0 {
		return 0, nil, errors.Wrapf(timeseries.ErrInsufficientData, "series %q has %d missing samples", s.Name, s.Missing())
	}
	levels := req.Levels
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	for _, l := range levels {
		if l <= 0 || l >= 100 {
			return 0, nil, errors.Errorf("interval level %v must be in (0, 100)", l)
		}
	}
	return steps, levels, nil
}

// newResult places point forecasts and their standard errors on the index
// following s.
func newResult(model string, s *timeseries.TimeSeries, fitted, point, se []float64, levels []float64) (*Result, error) {
	fit, err := s.WithValues(s.Name+"_fitted", fitted)
	if err != nil {
		return nil, err
	}
	fc, err := timeseries.New(s.Name, s.End(), s.Step, point)
	if err != nil {
		return nil, err
	}

	res := &Result{Model: model, Fitted: fit, Forecast: fc}
	for _, level := range levels {
		z := distuv.UnitNormal.Quantile(0.5 + level/200)
		lower := make([]float64, len(point))
		upper := make([]float64, len(point))
		for i, p := range point {
			lower[i] = p - z*se[i]
			upper[i] = p + z*se[i]
		}
		iv := Interval{Level: level}
		if iv.Lower, err = fc.WithValues(s.Name+"_lo", lower); err != nil {
			return nil, err
		}
		if iv.Upper, err = fc.WithValues(s.Name+"_hi", upper); err != nil {
			return nil, err
		}
		res.Intervals = append(res.Intervals, iv)
	}
	return res, nil
}

// residualDiagnostics runs Ljung-Box on the finite residuals, or returns nil
// when there are too few of them.
func residualDiagnostics(s *timeseries.TimeSeries, residuals []float64, fitdf int) *stats.LjungBoxResult {
	finite := make([]float64, 0, len(residuals))
	for _, r := range residuals {
		if !math.IsNaN(r) {
			finite = append(finite, r)
		}
	}
	rs, err := timeseries.New("residual", s.Start, s.Step, finite)
	if err != nil {
		return nil
	}
	lb, err := stats.LjungBox(rs, 10, fitdf)
	if err != nil {
		return nil
	}
	return lb
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

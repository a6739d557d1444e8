// Package forecast fits forecasting models to prepared time series.
//
// Every model implements Forecaster. A Forecaster is a plain configuration
// value: it fits a fresh model on each call, so one value may be shared
// between goroutines.
//
//   - ARIMA fits a fixed (p,d,q) order by conditional sum of squares,
//     optionally after seasonal differencing.
//   - AutoARIMA picks d with NDiffs, the seasonal D with NSDiffs and (p,q)
//     with a stepwise search on AICc, AIC or BIC.
//   - HoltWinters is additive exponential smoothing with grid-searched
//     smoothing parameters.
//
// # Basic Usage
//
//	res, err := forecast.AutoARIMA{SeasonLength: 24}.Forecast(ctx, series, forecast.Request{
//	    Horizon: 6 * time.Hour,
//	    Levels:  []float64{80, 95},
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Model, res.Summary.AICc)
//
// The forecast series starts at the input's End and keeps its step. Intervals
// assume Gaussian one-step errors.
package forecast

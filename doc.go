// Package rrdiag analyzes and forecasts fixed-step metric series read from
// round-robin archives.
//
// A run fetches every source of an archive file over a time range, places
// the samples on one canonical grid, fills gaps by interpolation and then
// runs the diagnostic stages:
//
//   - period detection from the FFT spectrum, with optional detrending and
//     sub-bin refinement
//   - ordinary and seasonal differencing
//   - the augmented Dickey-Fuller test with a differencing suggestion
//   - MSTL decomposition into trend, seasonal components and residual
//   - ACF and PACF with confidence bounds
//
// The forecast command fits ARIMA, AutoARIMA or additive Holt-Winters to each
// source and reports prediction intervals.
//
// # Quick Start
//
//	ds, _ := archive.Fetch(ctx, archive.NewCSVArchive(), archive.FetchRequest{
//		Filename: "load.csv", Start: "end-7d", End: "last",
//	})
//	report, _ := pipeline.NewAnalyzer(pipeline.DefaultOptions(), logger, nil).Analyze(ctx, ds)
//	for _, src := range report.Sources {
//		fmt.Println(src.Source, src.Periods, src.Stationarity.Suggestion())
//	}
//
// # Packages
//
//   - timeseries: the series and data set types, resampling, interpolation
//     and record output
//   - archive: archive readers and time markers
//   - stats: periodicity, differencing, stationarity tests, decomposition and
//     autocorrelation
//   - forecast: ARIMA, AutoARIMA and Holt-Winters forecasters
//   - pipeline: the per-source analysis stages
//   - config, metrics: settings and Prometheus collectors
//
// # References
//
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
//   - Bandara, K., Hyndman, R.J., & Bergmeir, C. (2021). MSTL: A Seasonal-Trend
//     Decomposition Algorithm for Time Series with Multiple Seasonal Patterns
package rrdiag

// Package stats implements the diagnostic stages applied to a canonical
// series: periodicity detection, differencing, stationarity testing,
// seasonal decomposition and autocorrelation analysis.
//
// Every function takes a *timeseries.TimeSeries and returns new values; none
// mutates its input. Failures wrap the error kinds of package timeseries and
// are classified with errors.Is.
//
// # Periodicity
//
// The strongest cycles come from the real DFT of a gap-free series:
//
//	periods, err := stats.DetectPeriodsWithOptions(series, 3, stats.DetectorOptions{
//	    Detrend: true,
//	    Refine:  true,
//	})
//	for _, p := range periods {
//	    fmt.Println(p.Duration, p.Amplitude)
//	}
//
// # Differencing
//
// Seasonal differences are applied before ordinary ones:
//
//	diffed, err := stats.Difference(series, stats.DifferencingSpec{
//	    D:           1,
//	    SeasonalD:   1,
//	    SeasonalLag: 1440,
//	})
//
// # Stationarity
//
// Evaluate runs the Augmented Dickey-Fuller test and classifies the series at
// SignificanceLevel:
//
//	st, err := stats.Evaluate(diffed, 2)
//	fmt.Printf("p=%.4f stationary=%v suggest %s\n", st.PValue, st.Stationary(), st.Suggestion())
//
// KPSS tests the opposite null and backs the differencing heuristics of the
// forecast package:
//
//	kpss, err := stats.KPSS(series, stats.KPSSLevel, 0)
//
// # Decomposition
//
// MSTL extracts one seasonal component per period:
//
//	dec, err := stats.MSTL(series, []time.Duration{24 * time.Hour, 7 * 24 * time.Hour}, stats.MSTLOptions{})
//	// dec.Trend, dec.Seasonal[0], dec.Seasonal[1], dec.Residual
//
// # Autocorrelation
//
//	acf, err := stats.ACFWithConfidence(dec.Residual, 40)
//	lags := acf.Significant()
//
//	lb, err := stats.LjungBox(residuals, 10, p+q)
//	if lb.WhiteNoise() {
//	    // no autocorrelation left
//	}
package stats

// Package timeseries provides the series types shared by the diagnostic
// pipeline, together with the time-grid resampler.
//
// # Series
//
// A TimeSeries is a run of samples on a uniform step; missing samples are NaN:
//
//	series, err := timeseries.New("load", start, time.Minute, values)
//	series.End()           // start + len(values)*step, exclusive
//	series.Timestamp(10)   // start + 10*step
//
// Series are immutable. Diff, SeasonalDiff, Slice, Resample and Interpolate all
// return a new series and leave the receiver untouched, so a series can be
// shared between goroutines without locking.
//
// # Data sets and resampling
//
// NewDataSet turns raw archive output (a start time, a native step and one
// sample slice per source) into a DataSet on a single grid:
//
//	ds, err := timeseries.NewDataSet(start, time.Minute, sources, raw, 5*time.Minute)
//
// A target step finer than the native step fails with ErrInvalidResample;
// a coarser one aggregates by mean over each target-step window.
//
// # Periods
//
//	n, err := timeseries.PeriodSamples(24*time.Hour, time.Minute) // 1440
//	d, err := timeseries.ParseDuration("1d12h")
//
// # Records
//
// RecordWriter emits "source,timestamp,value" (or "ds,timestamp,value") lines
// with unix-second timestamps:
//
//	rw := timeseries.NewRecordWriter(os.Stdout, timeseries.HeaderSource)
//	rw.Write(forecast)
//	rw.Flush()
package timeseries

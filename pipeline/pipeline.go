// Package pipeline runs the diagnostic stages over every source of a data
// set: gap filling, period detection, differencing, the stationarity test,
// seasonal decomposition and autocorrelation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sartorproj/rrdiag/config"
	"github.com/sartorproj/rrdiag/metrics"
	"github.com/sartorproj/rrdiag/stats"
	"github.com/sartorproj/rrdiag/timeseries"
)

// Options configure an Analyzer.
type Options struct {
	// Top is the number of candidate periods to detect.
	Top      int
	Detector stats.DetectorOptions

	// D ordinary and SeasonalD seasonal differences at SeasonalLag.
	D           int
	SeasonalD   int
	SeasonalLag time.Duration

	Decompose bool
	// Periods override the detected periods for decomposition.
	Periods []time.Duration
	MSTL    stats.MSTLOptions

	// MaxLag bounds the ACF and PACF.
	MaxLag int
	// Workers analyze sources concurrently when above 1.
	Workers int
}

// DefaultOptions returns five candidate periods, no differencing, no
// decomposition, 40 correlation lags and one worker.
func DefaultOptions() Options {
	return Options{Top: 5, MaxLag: 40, Workers: 1}
}

// OptionsFromConfig maps the analysis settings onto Options.
func OptionsFromConfig(c config.Analysis) Options {
	return Options{
		Top:         c.Top,
		Detector:    stats.DetectorOptions{Detrend: c.Detrend, Refine: c.Refine},
		D:           c.Diff,
		SeasonalD:   c.SeasonalDiff,
		SeasonalLag: c.SeasonalLag,
		Decompose:   c.Decompose,
		Periods:     c.Periods,
		MSTL:        stats.MSTLOptions{Iterations: c.MSTLIterations, Robust: c.Robust},
		MaxLag:      c.MaxLag,
		Workers:     c.Workers,
	}
}

// SourceReport is everything computed for one source. The first failing
// stage is recorded in Errors and no later stage runs, so fields of stages
// that failed or did not run are nil.
type SourceReport struct {
	Source string
	// Samples is the series length and Filled the number of missing samples
	// that were interpolated.
	Samples int
	Filled  int

	Periods []stats.Period
	// Differencing is the applied spec, with SeasonalLag in samples.
	Differencing  stats.DifferencingSpec
	Differenced   *timeseries.TimeSeries
	Stationarity  *stats.Stationarity
	Decomposition *stats.DecompositionResult
	ACF           *stats.Correlogram
	PACF          *stats.Correlogram

	Errors []*StageError
}

// Err returns the first stage error, or nil.
func (r *SourceReport) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Report holds one SourceReport per source, in data set order.
type Report struct {
	Start   time.Time
	End     time.Time
	Step    time.Duration
	Sources []*SourceReport
}

// Analyzer runs the stages. It holds no per-run state and may be shared.
type Analyzer struct {
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewAnalyzer returns an Analyzer. A nil logger discards logs and a nil
// recorder discards metrics.
func NewAnalyzer(opts Options, logger *zap.Logger, rec *metrics.Recorder) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxLag < 1 {
		opts.MaxLag = DefaultOptions().MaxLag
	}
	return &Analyzer{opts: opts, logger: logger, metrics: rec}
}

// Analyze runs every stage on every source of ds. Stage failures are recorded
// on the affected source; the only error returned is the context's.
func (a *Analyzer) Analyze(ctx context.Context, ds *timeseries.DataSet) (*Report, error) {
	report := &Report{
		Start:   ds.Start,
		End:     ds.End,
		Step:    ds.Step,
		Sources: make([]*SourceReport, len(ds.Sources)),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(a.opts.Workers, max(len(ds.Sources), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				name := ds.Sources[i]
				report.Sources[i] = a.analyzeSource(ctx, name, ds.Get(name))
			}
		}()
	}

feed:
	for i := range ds.Sources {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "analysis interrupted")
	}
	return report, nil
}

// run times one stage and records its failure. A failed stage ends the
// analysis of its source.
func (a *Analyzer) run(rep *SourceReport, logger *zap.Logger, stage Stage, fn func() error) bool {
	done := a.metrics.Timer(string(stage))
	err := fn()
	done()
	if err == nil {
		return true
	}

	kind := Kind(err)
	a.metrics.StageFailed(string(stage), kind)
	logger.Warn("stage failed", zap.String("stage", string(stage)), zap.String("kind", kind), zap.Error(err))
	rep.Errors = append(rep.Errors, &StageError{Source: rep.Source, Stage: stage, Err: err})
	return false
}

func (a *Analyzer) analyzeSource(ctx context.Context, name string, s *timeseries.TimeSeries) *SourceReport {
	rep := &SourceReport{Source: name}
	logger := a.logger.With(zap.String("source", name))
	if s == nil {
		rep.Errors = append(rep.Errors, &StageError{Source: name, Stage: StageInterpolate, Err: errors.Errorf("no series for source %q", name)})
		return rep
	}
	rep.Samples = s.Len()
	rep.Filled = s.Missing()
	a.metrics.AddSamples(name, s.Len())

	var filled *timeseries.TimeSeries
	if !a.run(rep, logger, StageInterpolate, func() (err error) {
		filled, err = s.Interpolate()
		return err
	}) {
		return rep
	}
	if rep.Filled > 0 {
		logger.Debug("interpolated missing samples", zap.Int("filled", rep.Filled))
	}

	if ctx.Err() != nil {
		return rep
	}
	if !a.run(rep, logger, StageDetect, func() (err error) {
		rep.Periods, err = stats.DetectPeriodsWithOptions(filled, a.opts.Top, a.opts.Detector)
		return err
	}) {
		return rep
	}
	for _, p := range rep.Periods {
		logger.Info("suggested period", zap.Duration("period", p.Duration), zap.Float64("amplitude", p.Amplitude))
	}

	if ctx.Err() != nil {
		return rep
	}
	current := filled
	if a.opts.D > 0 || a.opts.SeasonalD > 0 {
		if !a.run(rep, logger, StageDifference, func() error {
			spec := stats.DifferencingSpec{D: a.opts.D, SeasonalD: a.opts.SeasonalD}
			if spec.SeasonalD > 0 {
				lag, err := timeseries.PeriodSamples(a.opts.SeasonalLag, filled.Step)
				if err != nil {
					return err
				}
				spec.SeasonalLag = lag
			}
			diffed, err := stats.Difference(filled, spec)
			if err != nil {
				return err
			}
			rep.Differencing = spec
			rep.Differenced = diffed
			return nil
		}) {
			return rep
		}
		current = rep.Differenced
	}

	if ctx.Err() != nil {
		return rep
	}
	if !a.run(rep, logger, StageStationarity, func() (err error) {
		rep.Stationarity, err = stats.EvaluateDifferenced(current, rep.Differencing)
		return err
	}) {
		return rep
	}
	logger.Info("stationarity",
		zap.Float64("adf_statistic", rep.Stationarity.Statistic),
		zap.Float64("p_value", rep.Stationarity.PValue),
		zap.Int("lags", rep.Stationarity.Lags),
		zap.String("suggestion", rep.Stationarity.Suggestion()))

	if ctx.Err() != nil {
		return rep
	}
	if a.opts.Decompose {
		if !a.run(rep, logger, StageDecompose, func() (err error) {
			periods := a.opts.Periods
			if len(periods) == 0 {
				if periods, err = detectedPeriods(logger, rep.Periods, current); err != nil {
					return err
				}
			}
			rep.Decomposition, err = stats.MSTL(current, periods, a.opts.MSTL)
			return err
		}) {
			return rep
		}
		current = rep.Decomposition.Residual
	}

	if ctx.Err() != nil {
		return rep
	}
	a.run(rep, logger, StageCorrelation, func() error {
		acf, err := stats.ACFWithConfidence(current, a.opts.MaxLag)
		if err != nil {
			return err
		}
		pacf, err := stats.PACFWithConfidence(current, a.opts.MaxLag)
		if err != nil {
			return err
		}
		rep.ACF, rep.PACF = acf, pacf
		return nil
	})
	return rep
}

// detectedPeriods rounds detected periods to the step and keeps those the
// series can hold two cycles of.
func detectedPeriods(logger *zap.Logger, detected []stats.Period, s *timeseries.TimeSeries) ([]time.Duration, error) {
	periods := make([]time.Duration, 0, len(detected))
	for _, p := range detected {
		rounded := timeseries.RoundPeriod(p.Duration, s.Step)
		k, err := timeseries.PeriodSamples(rounded, s.Step)
		if err != nil || 2*k > s.Len() {
			logger.Debug("skipping detected period", zap.Duration("period", rounded))
			continue
		}
		periods = append(periods, rounded)
	}
	if len(periods) == 0 {
		return nil, errors.Wrap(timeseries.ErrInvalidPeriod, "no detected period fits the series twice")
	}
	return periods, nil
}

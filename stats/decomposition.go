package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/rrdiag/timeseries"
)

// STLOptions are the smoother spans of one STL fit, in samples. Zero values
// select the defaults of Cleveland et al. (1990): a seasonal window of 7, the
// smallest odd low-pass window above the period, and the smallest odd trend
// window of at least 1.5*period/(1-1.5/seasonal).
type STLOptions struct {
	Seasonal int
	Trend    int
	LowPass  int
	// Robust enables bisquare reweighting over 15 outer passes.
	Robust bool
}

// STLResult holds the components of an STL fit, index-aligned with the input.
type STLResult struct {
	Trend    *timeseries.TimeSeries
	Seasonal *timeseries.TimeSeries
	Residual *timeseries.TimeSeries
	// Weights are the final robustness weights, all 1 for a non-robust fit.
	Weights []float64
	Period  int
}

// STL decomposes s into trend, one seasonal component of period samples and
// a residual, using loess smoothing of the cycle subseries.
func STL(s *timeseries.TimeSeries, period int, opts STLOptions) (*STLResult, error) {
	if period < 2 {
		return nil, errors.Wrapf(timeseries.ErrInvalidPeriod, "stl period %d samples", period)
	}
	if s.Len() < 2*period {
		return nil, errors.Wrapf(timeseries.ErrInvalidPeriod, "stl period %d needs %d samples, got %d", period, 2*period, s.Len())
	}
	if s.Missing() > 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "stl: series %q has %d missing samples", s.Name, s.Missing())
	}

	fit, err := newSTL(period, opts)
	if err != nil {
		return nil, err
	}
	trend, seasonal, weights := fit.run(s.Values)

	residual := make([]float64, s.Len())
	for i, v := range s.Values {
		residual[i] = v - trend[i] - seasonal[i]
	}

	res := &STLResult{Weights: weights, Period: period}
	if res.Trend, err = s.WithValues("trend", trend); err != nil {
		return nil, err
	}
	if res.Seasonal, err = s.WithValues(fmt.Sprintf("seasonal_%d", period), seasonal); err != nil {
		return nil, err
	}
	if res.Residual, err = s.WithValues("residual", residual); err != nil {
		return nil, err
	}
	return res, nil
}

// SeasonalStrength returns max(0, 1 - Var(R)/Var(S+R)) for an STL fit, the
// Wang, Smith and Hyndman (2006) measure of seasonality.
func (r *STLResult) SeasonalStrength() float64 {
	sr := make([]float64, r.Seasonal.Len())
	floats.AddTo(sr, r.Seasonal.Values, r.Residual.Values)
	varSR := stat.Variance(sr, nil)
	if varSR == 0 || math.IsNaN(varSR) {
		return 0
	}
	return math.Max(0, 1-stat.Variance(r.Residual.Values, nil)/varSR)
}

// MSTLOptions tune MSTL. The zero value matches the common defaults.
type MSTLOptions struct {
	// Iterations is the number of passes over all periods. Defaults to 2.
	Iterations int
	// SeasonalWindows are the seasonal smoother spans, one per period in
	// ascending period order. Defaults to 7+4i for the i-th period (1-based).
	SeasonalWindows []int
	// Robust enables robust STL fits.
	Robust bool
	// Tolerance stops iterating once no seasonal component moves by more than
	// this between passes. Defaults to 1e-6 times max(1, std of the series).
	Tolerance float64
}

// DecompositionResult holds an MSTL decomposition. Seasonal[i] has period
// Periods[i] samples; periods are ascending. Every component shares the
// input index, and Trend + ΣSeasonal + Residual reconstructs the input.
type DecompositionResult struct {
	Trend      *timeseries.TimeSeries
	Seasonal   []*timeseries.TimeSeries
	Residual   *timeseries.TimeSeries
	Periods    []int
	Iterations int
}

// MSTL decomposes s into a trend, one seasonal component per period and a
// residual (Bandara, Hyndman and Bergmeir, 2021). Periods are durations
// converted to sample counts with the series step; a period that is not an
// exact multiple of at least two steps, or whose two cycles exceed the
// series, fails with ErrInvalidPeriod.
func MSTL(s *timeseries.TimeSeries, periods []time.Duration, opts MSTLOptions) (*DecompositionResult, error) {
	if len(periods) == 0 {
		return nil, errors.Wrap(timeseries.ErrInvalidPeriod, "mstl needs at least one period")
	}
	if s.Missing() > 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "mstl: series %q has %d missing samples", s.Name, s.Missing())
	}

	samples, err := periodSamples(s, periods)
	if err != nil {
		return nil, err
	}

	windows := opts.SeasonalWindows
	if len(windows) == 0 {
		windows = make([]int, len(samples))
		for i := range windows {
			windows[i] = 7 + 4*(i+1)
		}
	}
	if len(windows) != len(samples) {
		return nil, errors.Errorf("mstl: %d seasonal windows for %d periods", len(windows), len(samples))
	}

	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = 2
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = 1e-6 * math.Max(1, s.Std())
	}

	fits := make([]*stl, len(samples))
	for i, p := range samples {
		if fits[i], err = newSTL(p, STLOptions{Seasonal: windows[i], Robust: opts.Robust}); err != nil {
			return nil, err
		}
	}

	n := s.Len()
	deseason := append([]float64(nil), s.Values...)
	seasonal := make([][]float64, len(samples))
	for i := range seasonal {
		seasonal[i] = make([]float64, n)
	}

	var trend []float64
	passes := 0
	for passes < iterations {
		passes++
		change := 0.0
		for i, fit := range fits {
			floats.Add(deseason, seasonal[i])
			var next []float64
			trend, next, _ = fit.run(deseason)
			change = math.Max(change, floats.Distance(next, seasonal[i], math.Inf(1)))
			seasonal[i] = next
			floats.Sub(deseason, next)
		}
		if passes > 1 && change < tol {
			break
		}
	}

	residual := make([]float64, n)
	floats.SubTo(residual, deseason, trend)

	res := &DecompositionResult{Periods: samples, Iterations: passes}
	if res.Trend, err = s.WithValues("trend", trend); err != nil {
		return nil, err
	}
	if res.Residual, err = s.WithValues("residual", residual); err != nil {
		return nil, err
	}
	for i, p := range samples {
		comp, err := s.WithValues(fmt.Sprintf("seasonal_%d", p), seasonal[i])
		if err != nil {
			return nil, err
		}
		res.Seasonal = append(res.Seasonal, comp)
	}
	return res, nil
}

// periodSamples validates periods against s and returns them as distinct
// ascending sample counts.
func periodSamples(s *timeseries.TimeSeries, periods []time.Duration) ([]int, error) {
	seen := make(map[int]bool, len(periods))
	samples := make([]int, 0, len(periods))
	for _, p := range periods {
		k, err := timeseries.PeriodSamples(p, s.Step)
		if err != nil {
			return nil, err
		}
		if 2*k > s.Len() {
			return nil, errors.Wrapf(timeseries.ErrInvalidPeriod, "period %s needs %d samples, series has %d", p, 2*k, s.Len())
		}
		if !seen[k] {
			seen[k] = true
			samples = append(samples, k)
		}
	}
	sort.Ints(samples)
	return samples, nil
}

// stl carries the spans of one STL configuration.
type stl struct {
	period                   int
	seasonal, trend, lowPass int
	seasonalJump, trendJump  int
	lowPassJump              int
	inner, outer             int
}

func newSTL(period int, opts STLOptions) (*stl, error) {
	f := &stl{period: period, seasonal: opts.Seasonal, trend: opts.Trend, lowPass: opts.LowPass}
	if f.seasonal == 0 {
		f.seasonal = 7
	}
	if f.lowPass == 0 {
		f.lowPass = period + 1
		if f.lowPass%2 == 0 {
			f.lowPass++
		}
	}
	if f.trend == 0 {
		f.trend = int(math.Ceil(1.5 * float64(period) / (1 - 1.5/float64(f.seasonal))))
		if f.trend%2 == 0 {
			f.trend++
		}
	}
	for name, w := range map[string]int{"seasonal": f.seasonal, "trend": f.trend, "low-pass": f.lowPass} {
		if w < 3 || w%2 == 0 {
			return nil, errors.Errorf("stl %s window %d must be odd and at least 3", name, w)
		}
	}
	f.seasonalJump = jump(f.seasonal)
	f.trendJump = jump(f.trend)
	f.lowPassJump = jump(f.lowPass)

	f.inner, f.outer = 2, 0
	if opts.Robust {
		f.inner, f.outer = 1, 15
	}
	return f, nil
}

func jump(window int) int {
	return int(math.Ceil(float64(window) / 10))
}

// run fits y and returns trend, seasonal and robustness weights.
func (f *stl) run(y []float64) (trend, seasonal, weights []float64) {
	n := len(y)
	trend = make([]float64, n)
	seasonal = make([]float64, n)
	weights = make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	useWeights := false
	for pass := 0; ; pass++ {
		f.innerLoop(y, trend, seasonal, weights, useWeights)
		if pass >= f.outer {
			break
		}
		robustnessWeights(y, trend, seasonal, weights)
		useWeights = true
	}
	return trend, seasonal, weights
}

func (f *stl) innerLoop(y, trend, seasonal, weights []float64, useWeights bool) {
	n := len(y)
	np := f.period
	detrended := make([]float64, n)
	deseason := make([]float64, n)

	for it := 0; it < f.inner; it++ {
		for i := range y {
			detrended[i] = y[i] - trend[i]
		}
		cycle := f.cycleSubseries(detrended, weights, useWeights)

		low := movingAverage(movingAverage(movingAverage(cycle, np), np), 3)
		low = loessSmooth(low, f.lowPass, f.lowPassJump, nil)

		for i := range y {
			seasonal[i] = cycle[np+i] - low[i]
			deseason[i] = y[i] - seasonal[i]
		}

		var w []float64
		if useWeights {
			w = weights
		}
		copy(trend, loessSmooth(deseason, f.trend, f.trendJump, w))
	}
}

// cycleSubseries smooths each cycle subseries of x and extends it by one
// cycle on both ends, returning len(x)+2*period values.
func (f *stl) cycleSubseries(x, weights []float64, useWeights bool) []float64 {
	n := len(x)
	np := f.period
	out := make([]float64, n+2*np)

	for j := 0; j < np; j++ {
		k := (n-j-1)/np + 1
		sub := make([]float64, k)
		var subW []float64
		if useWeights {
			subW = make([]float64, k)
		}
		for i := 0; i < k; i++ {
			sub[i] = x[i*np+j]
			if useWeights {
				subW[i] = weights[i*np+j]
			}
		}

		smoothed := loessSmooth(sub, f.seasonal, f.seasonalJump, subW)
		ext := make([]float64, k+2)
		copy(ext[1:], smoothed)

		right := min(f.seasonal, k) - 1
		if v, ok := loessAt(sub, f.seasonal, -1, 0, right, subW); ok {
			ext[0] = v
		} else {
			ext[0] = ext[1]
		}
		left := max(0, k-f.seasonal)
		if v, ok := loessAt(sub, f.seasonal, float64(k), left, k-1, subW); ok {
			ext[k+1] = v
		} else {
			ext[k+1] = ext[k]
		}

		for m := 0; m < k+2; m++ {
			out[m*np+j] = ext[m]
		}
	}
	return out
}

// loessSmooth fits a local linear loess of span window at every jump-th
// sample and interpolates linearly in between. weights may be nil.
func loessSmooth(y []float64, window, jump int, weights []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		copy(out, y)
		return out
	}
	jump = min(jump, n-1)

	at := func(i, left, right int) {
		if v, ok := loessAt(y, window, float64(i), left, right, weights); ok {
			out[i] = v
		} else {
			out[i] = y[i]
		}
	}

	half := (window + 1) / 2
	switch {
	case window >= n:
		for i := 0; i < n; i += jump {
			at(i, 0, n-1)
		}
	case jump == 1:
		left, right := 0, window-1
		for i := 0; i < n; i++ {
			if i+1 > half && right != n-1 {
				left++
				right++
			}
			at(i, left, right)
		}
	default:
		for i := 0; i < n; i += jump {
			switch {
			case i < half-1:
				at(i, 0, window-1)
			case i >= n-half:
				at(i, n-window, n-1)
			default:
				at(i, i-half+1, window+i-half)
			}
		}
	}

	if jump == 1 {
		return out
	}
	for i := 0; i+jump <= n-1; i += jump {
		delta := (out[i+jump] - out[i]) / float64(jump)
		for j := i + 1; j < i+jump; j++ {
			out[j] = out[i] + delta*float64(j-i)
		}
	}
	last := ((n - 1) / jump) * jump
	if last != n-1 {
		left := 0
		if window < n {
			left = n - window
		}
		at(n-1, left, n-1)
		if last != n-2 {
			delta := (out[n-1] - out[last]) / float64(n-1-last)
			for j := last + 1; j < n-1; j++ {
				out[j] = out[last] + delta*float64(j-last)
			}
		}
	}
	return out
}

// loessAt evaluates a local linear fit of y[left..right] at position xs with
// tricube weights, widening the bandwidth when the span exceeds len(y).
// It reports false when every neighbour has zero weight.
func loessAt(y []float64, window int, xs float64, left, right int, weights []float64) (float64, bool) {
	n := len(y)
	h := math.Max(xs-float64(left), float64(right)-xs)
	if window > n {
		h += float64((window - n) / 2)
	}
	hi, lo := 0.999*h, 0.001*h

	w := make([]float64, right-left+1)
	total := 0.0
	for j := left; j <= right; j++ {
		r := math.Abs(float64(j) - xs)
		if r > hi {
			continue
		}
		wj := 1.0
		if r > lo {
			u := r / h
			u = 1 - u*u*u
			wj = u * u * u
		}
		if weights != nil {
			wj *= weights[j]
		}
		w[j-left] = wj
		total += wj
	}
	if total <= 0 {
		return 0, false
	}
	floats.Scale(1/total, w)

	if h > 0 {
		center := 0.0
		for j := left; j <= right; j++ {
			center += w[j-left] * float64(j)
		}
		spread := 0.0
		for j := left; j <= right; j++ {
			d := float64(j) - center
			spread += w[j-left] * d * d
		}
		if math.Sqrt(spread) > 0.001*float64(n-1) {
			b := (xs - center) / spread
			for j := left; j <= right; j++ {
				w[j-left] *= b*(float64(j)-center) + 1
			}
		}
	}
	return floats.Dot(w, y[left:right+1]), true
}

// movingAverage returns the len(x)-window+1 trailing means of x.
func movingAverage(x []float64, window int) []float64 {
	n := len(x) - window + 1
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	sum := floats.Sum(x[:window])
	out[0] = sum / float64(window)
	for i := 1; i < n; i++ {
		sum += x[i+window-1] - x[i-1]
		out[i] = sum / float64(window)
	}
	return out
}

// robustnessWeights sets bisquare weights from the residuals of the current
// fit, scaled by six times their median absolute value.
func robustnessWeights(y, trend, seasonal, weights []float64) {
	n := len(y)
	abs := make([]float64, n)
	for i := range y {
		abs[i] = math.Abs(y[i] - trend[i] - seasonal[i])
	}
	scale := 6 * median(abs)
	hi, lo := 0.999*scale, 0.001*scale
	for i, r := range abs {
		switch {
		case r <= lo:
			weights[i] = 1
		case r <= hi:
			u := r / scale
			u = 1 - u*u
			weights[i] = u * u
		default:
			weights[i] = 0
		}
	}
}

// median returns the median of data without modifying it.
func median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

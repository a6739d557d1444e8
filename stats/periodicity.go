package stats

import (
	"math"
	"math/cmplx"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/rrdiag/timeseries"
)

// Period is a candidate seasonal cycle found in the frequency domain.
type Period struct {
	Duration  time.Duration
	Frequency float64 // cycles per second
	Amplitude float64 // magnitude of the DFT coefficient
	Bin       int     // DFT bin index the candidate was selected from
}

// DetectorOptions tune DetectPeriodsWithOptions. The zero value is the plain
// spectrum peak search.
type DetectorOptions struct {
	// Detrend removes the least-squares line before the transform so a trend
	// does not leak into the low-frequency bins.
	Detrend bool
	// Refine replaces the bin frequency of each selected candidate with the
	// frequency of the best least-squares sinusoid within one bin of it.
	Refine bool
}

// DetectPeriods returns the top periods of s ranked by DFT amplitude.
// See DetectPeriodsWithOptions.
func DetectPeriods(s *timeseries.TimeSeries, top int) ([]Period, error) {
	return DetectPeriodsWithOptions(s, top, DetectorOptions{})
}

// DetectPeriodsWithOptions computes the DFT of s and returns the top positive
// frequencies by amplitude, highest first; equal amplitudes keep the lower
// frequency first. The zero-frequency bin is discarded, as is the Nyquist bin
// of an even-length series. Each frequency is converted to a period using the
// series step as the sample spacing.
//
// Missing samples must be filled beforehand. Fewer than two samples fails with
// ErrInsufficientData. The result has fewer than top entries when the series
// has fewer distinct positive frequencies.
func DetectPeriodsWithOptions(s *timeseries.TimeSeries, top int, opts DetectorOptions) ([]Period, error) {
	n := s.Len()
	if n < 2 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "periodicity needs at least 2 samples, got %d", n)
	}
	if s.Missing() > 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "series %q has %d missing samples", s.Name, s.Missing())
	}
	if top < 1 {
		return []Period{}, nil
	}

	x := make([]float64, n)
	copy(x, s.Values)
	if opts.Detrend {
		detrend(x)
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	type bin struct {
		index int
		amp   float64
	}
	bins := make([]bin, 0, len(coeffs))
	for i := 1; i < len(coeffs); i++ {
		if 2*i == n {
			continue
		}
		bins = append(bins, bin{index: i, amp: cmplx.Abs(coeffs[i])})
	}

	sort.SliceStable(bins, func(a, b int) bool {
		if bins[a].amp != bins[b].amp {
			return bins[a].amp > bins[b].amp
		}
		return bins[a].index < bins[b].index
	})
	if len(bins) > top {
		bins = bins[:top]
	}

	stepSeconds := s.Step.Seconds()
	periods := make([]Period, len(bins))
	for k, b := range bins {
		cycles := float64(b.index)
		if opts.Refine {
			cycles = refineFrequency(s.Values, b.index)
		}
		periods[k] = Period{
			Duration:  time.Duration(float64(s.Step) * float64(n) / cycles),
			Frequency: cycles / (float64(n) * stepSeconds),
			Amplitude: b.amp,
			Bin:       b.index,
		}
	}
	return periods, nil
}

// detrend subtracts the least-squares line from x in place.
func detrend(x []float64) {
	t := make([]float64, len(x))
	for i := range t {
		t[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(t, x, nil, false)
	for i := range x {
		x[i] -= alpha + beta*t[i]
	}
}

// refineFrequency searches (bin-1, bin+1) for the frequency, in cycles per
// series length, whose sinusoid explains the most variance of y alongside a
// constant and a linear trend.
func refineFrequency(y []float64, bin int) float64 {
	n := len(y)
	lo := math.Max(0.5, float64(bin)-1)
	hi := math.Min(float64(n)/2, float64(bin)+1)

	const gridSteps = 40
	width := (hi - lo) / gridSteps
	best, bestScore := float64(bin), sinusoidFit(y, float64(bin))
	for k := 0; k <= gridSteps; k++ {
		f := lo + float64(k)*width
		if score := sinusoidFit(y, f); score > bestScore {
			best, bestScore = f, score
		}
	}

	// Golden-section search inside the best grid cell.
	a, b := math.Max(lo, best-width), math.Min(hi, best+width)
	const invPhi = 0.6180339887498949
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := sinusoidFit(y, c), sinusoidFit(y, d)
	for i := 0; i < 60 && b-a > 1e-9; i++ {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = sinusoidFit(y, c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = sinusoidFit(y, d)
		}
	}

	if refined := (a + b) / 2; sinusoidFit(y, refined) >= bestScore {
		return refined
	}
	return best
}

// sinusoidFit regresses y on [1, t, cos(wt), sin(wt)] with w = 2*pi*cycles/n
// and returns the explained sum of squares.
func sinusoidFit(y []float64, cycles float64) float64 {
	n := len(y)
	w := 2 * math.Pi * cycles / float64(n)

	var sums [4][4]float64
	var proj [4]float64
	var row [4]float64
	for t := 0; t < n; t++ {
		sin, cos := math.Sincos(w * float64(t))
		row[0], row[1], row[2], row[3] = 1, float64(t)/float64(n), cos, sin
		for i := 0; i < 4; i++ {
			proj[i] += row[i] * y[t]
			for j := i; j < 4; j++ {
				sums[i][j] += row[i] * row[j]
			}
		}
	}

	xtx := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			xtx.SetSym(i, j, sums[i][j])
		}
	}
	xty := mat.NewVecDense(4, proj[:])

	var chol mat.Cholesky
	if !chol.Factorize(xtx) {
		return math.Inf(-1)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, xty); err != nil {
		return math.Inf(-1)
	}
	return mat.Dot(xty, &beta)
}

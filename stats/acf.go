package stats

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/rrdiag/timeseries"
)

// ACF returns the sample autocorrelation of s at lags 0..maxLag. maxLag is
// capped at n-1. A constant series has no defined autocorrelation and fails
// with ErrInsufficientData.
func ACF(s *timeseries.TimeSeries, maxLag int) ([]float64, error) {
	n := s.Len()
	if n < 2 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "acf needs at least 2 samples, got %d", n)
	}
	if s.Missing() > 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "acf: series %q has %d missing samples", s.Name, s.Missing())
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		maxLag = 0
	}

	mean := stat.Mean(s.Values, nil)
	centered := make([]float64, n)
	variance := 0.0
	for i, v := range s.Values {
		centered[i] = v - mean
		variance += centered[i] * centered[i]
	}
	if variance == 0 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "acf: series %q is constant", s.Name)
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += centered[i] * centered[i-k]
		}
		acf[k] = sum / variance
	}
	return acf, nil
}

// PACF returns the partial autocorrelation of s at lags 0..maxLag using the
// Durbin-Levinson recursion. Lag 0 is 1 by convention.
func PACF(s *timeseries.TimeSeries, maxLag int) ([]float64, error) {
	if maxLag >= s.Len() {
		maxLag = s.Len() - 1
	}
	if maxLag < 1 {
		return nil, errors.Wrapf(timeseries.ErrInsufficientData, "pacf needs a lag of at least 1, got %d", maxLag)
	}

	acf, err := ACF(s, maxLag)
	if err != nil {
		return nil, err
	}

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1
	pacf[1] = acf[1]

	prev := make([]float64, maxLag+1)
	cur := make([]float64, maxLag+1)
	prev[1] = acf[1]
	for k := 2; k <= maxLag; k++ {
		num, den := acf[k], 1.0
		for j := 1; j < k; j++ {
			num -= prev[j] * acf[k-j]
			den -= prev[j] * acf[j]
		}
		if den == 0 {
			break
		}
		cur[k] = num / den
		for j := 1; j < k; j++ {
			cur[j] = prev[j] - cur[k]*prev[k-j]
		}
		pacf[k] = cur[k]
		prev, cur = cur, prev
	}
	return pacf, nil
}

// Correlogram is an ACF or PACF with its approximate 95% confidence bound
// ±1.96/√n under a white-noise null.
type Correlogram struct {
	Lags       []int
	Values     []float64
	ConfBounds float64
}

// Significant returns the lags above zero whose value exceeds the bound.
func (c *Correlogram) Significant() []int {
	return SignificantLags(c.Values, c.ConfBounds)
}

// ACFWithConfidence returns the ACF of s with its confidence bound.
func ACFWithConfidence(s *timeseries.TimeSeries, maxLag int) (*Correlogram, error) {
	acf, err := ACF(s, maxLag)
	if err != nil {
		return nil, err
	}
	return newCorrelogram(acf, s.Len()), nil
}

// PACFWithConfidence returns the PACF of s with its confidence bound.
func PACFWithConfidence(s *timeseries.TimeSeries, maxLag int) (*Correlogram, error) {
	pacf, err := PACF(s, maxLag)
	if err != nil {
		return nil, err
	}
	return newCorrelogram(pacf, s.Len()), nil
}

func newCorrelogram(values []float64, n int) *Correlogram {
	lags := make([]int, len(values))
	for i := range lags {
		lags[i] = i
	}
	return &Correlogram{
		Lags:       lags,
		Values:     values,
		ConfBounds: 1.96 / math.Sqrt(float64(n)),
	}
}

// SignificantLags returns the lags, skipping lag 0, where |values| exceeds
// confBound.
func SignificantLags(values []float64, confBound float64) []int {
	var significant []int
	for i := 1; i < len(values); i++ {
		if math.Abs(values[i]) > confBound {
			significant = append(significant, i)
		}
	}
	return significant
}

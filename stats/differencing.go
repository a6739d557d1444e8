package stats

import (
	"github.com/pkg/errors"

	"github.com/sartorproj/rrdiag/timeseries"
)

// DifferencingSpec describes the differencing applied before testing or
// modeling a series. SeasonalLag is in samples and only matters when
// SeasonalD > 0.
type DifferencingSpec struct {
	D           int
	SeasonalD   int
	SeasonalLag int
}

// IsZero reports whether the spec leaves the series unchanged.
func (s DifferencingSpec) IsZero() bool {
	return s.D == 0 && s.SeasonalD == 0
}

// Removed returns the number of leading samples differencing drops.
func (s DifferencingSpec) Removed() int {
	return s.SeasonalD*s.SeasonalLag + s.D
}

// Validate checks the spec against a series of n samples.
func (s DifferencingSpec) Validate(n int) error {
	switch {
	case s.D < 0 || s.SeasonalD < 0:
		return errors.Wrapf(timeseries.ErrInvalidOrder, "negative order d=%d D=%d", s.D, s.SeasonalD)
	case s.SeasonalD > 0 && s.SeasonalLag < 2:
		return errors.Wrapf(timeseries.ErrInvalidOrder, "seasonal lag %d must be at least 2", s.SeasonalLag)
	case s.IsZero():
		return nil
	case n-s.Removed() <= 0:
		return errors.Wrapf(timeseries.ErrInvalidOrder, "d=%d D=%d lag=%d leaves nothing of %d samples", s.D, s.SeasonalD, s.SeasonalLag, n)
	}
	return nil
}

// Difference applies SeasonalD seasonal differences at SeasonalLag, then D
// ordinary differences. The zero spec returns an independent copy of s.
// The result starts Removed() steps after s.
func Difference(s *timeseries.TimeSeries, spec DifferencingSpec) (*timeseries.TimeSeries, error) {
	if err := spec.Validate(s.Len()); err != nil {
		return nil, err
	}

	out := s.Copy()
	for i := 0; i < spec.SeasonalD; i++ {
		out = out.SeasonalDiff(spec.SeasonalLag)
	}
	for i := 0; i < spec.D; i++ {
		out = out.Diff()
	}
	return out, nil
}

// Undifference inverts Difference for values that continue a differenced
// series. history is the undifferenced series the differences were taken
// from; its tail seeds the integration. The result has len(values) samples.
func Undifference(history []float64, values []float64, spec DifferencingSpec) []float64 {
	// Rebuild each intermediate level so every pass can be inverted in
	// reverse order of application.
	levels := make([][]float64, 0, spec.SeasonalD+spec.D+1)
	levels = append(levels, history)
	current := history
	lags := make([]int, 0, spec.SeasonalD+spec.D)
	for i := 0; i < spec.SeasonalD; i++ {
		current = diffValues(current, spec.SeasonalLag)
		levels = append(levels, current)
		lags = append(lags, spec.SeasonalLag)
	}
	for i := 0; i < spec.D; i++ {
		current = diffValues(current, 1)
		levels = append(levels, current)
		lags = append(lags, 1)
	}

	out := append([]float64(nil), values...)
	for k := len(lags) - 1; k >= 0; k-- {
		base := levels[k]
		lag := lags[k]
		ext := make([]float64, len(base)+len(out))
		copy(ext, base)
		for i, v := range out {
			j := len(base) + i
			if j-lag >= 0 {
				ext[j] = v + ext[j-lag]
			} else {
				ext[j] = v
			}
		}
		out = ext[len(base):]
	}
	return out
}

func diffValues(x []float64, lag int) []float64 {
	if len(x) <= lag {
		return []float64{}
	}
	out := make([]float64, len(x)-lag)
	for i := lag; i < len(x); i++ {
		out[i-lag] = x[i] - x[i-lag]
	}
	return out
}

package timeseries

import (
	"math"

	"github.com/pkg/errors"
)

// Interpolate fills missing samples by linear interpolation between the
// nearest observations. On a uniform grid this is the same as interpolating in
// time. A leading gap takes the first observation and a trailing gap the last.
// The receiver is left untouched.
func (s *TimeSeries) Interpolate() (*TimeSeries, error) {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)

	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				values[j] = v
			}
		case i-prev > 1:
			left := values[prev]
			slope := (v - left) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = left + slope*float64(j-prev)
			}
		}
		prev = i
	}

	if prev < 0 {
		if len(values) == 0 {
			return s.derive(s.Name, s.Start, values), nil
		}
		return nil, errors.Wrapf(ErrInsufficientData, "series %q has no observations", s.Name)
	}
	for j := prev + 1; j < len(values); j++ {
		values[j] = values[prev]
	}

	return s.derive(s.Name, s.Start, values), nil
}

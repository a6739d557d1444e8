// Package timeseries provides the uniform-step series and data set types shared
// by every stage of the diagnostic pipeline.
package timeseries

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// TimeSeries is an ordered run of samples on a uniform step. Sample i is
// observed at Start + i*Step. Missing samples are NaN.
//
// A TimeSeries is never mutated after construction: every transformation
// returns a new series with its own values slice.
type TimeSeries struct {
	Name   string
	Start  time.Time
	Step   time.Duration
	Values []float64
}

// New creates a series, copying values so the caller's buffer is not retained.
func New(name string, start time.Time, step time.Duration, values []float64) (*TimeSeries, error) {
	if step <= 0 {
		return nil, errors.Wrapf(ErrInvalidStep, "step %s", step)
	}
	v := make([]float64, len(values))
	copy(v, values)
	return &TimeSeries{Name: name, Start: start, Step: step, Values: v}, nil
}

// derive builds a series sharing the receiver's step. values is owned by the
// result and must not be aliased by the caller.
func (s *TimeSeries) derive(name string, start time.Time, values []float64) *TimeSeries {
	return &TimeSeries{Name: name, Start: start, Step: s.Step, Values: values}
}

// Len returns the number of samples.
func (s *TimeSeries) Len() int {
	return len(s.Values)
}

// End returns the exclusive end of the series.
func (s *TimeSeries) End() time.Time {
	return s.Start.Add(time.Duration(len(s.Values)) * s.Step)
}

// Timestamp returns the time of sample i.
func (s *TimeSeries) Timestamp(i int) time.Time {
	return s.Start.Add(time.Duration(i) * s.Step)
}

// Timestamps returns the full time index.
func (s *TimeSeries) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Values))
	for i := range ts {
		ts[i] = s.Timestamp(i)
	}
	return ts
}

// Missing returns the number of NaN samples.
func (s *TimeSeries) Missing() int {
	n := 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Copy returns a deep copy of the series.
func (s *TimeSeries) Copy() *TimeSeries {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return s.derive(s.Name, s.Start, values)
}

// Mean returns the arithmetic mean, ignoring missing samples.
func (s *TimeSeries) Mean() float64 {
	valid := s.observed()
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// Variance returns the sample variance, ignoring missing samples.
func (s *TimeSeries) Variance() float64 {
	valid := s.observed()
	if len(valid) < 2 {
		return 0
	}
	return stat.Variance(valid, nil)
}

// Std returns the sample standard deviation.
func (s *TimeSeries) Std() float64 {
	return math.Sqrt(s.Variance())
}

func (s *TimeSeries) observed() []float64 {
	valid := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	return valid
}

// Diff returns the first difference x[t] - x[t-1].
func (s *TimeSeries) Diff() *TimeSeries {
	return s.SeasonalDiff(1)
}

// SeasonalDiff returns x[t] - x[t-lag]. The first lag samples are dropped and
// Start moves forward accordingly. A lag that leaves nothing yields an empty
// series; callers that need validation use stats.Difference.
func (s *TimeSeries) SeasonalDiff(lag int) *TimeSeries {
	if lag <= 0 || len(s.Values) <= lag {
		return s.derive(s.Name, s.End(), []float64{})
	}

	result := make([]float64, len(s.Values)-lag)
	for i := lag; i < len(s.Values); i++ {
		result[i-lag] = s.Values[i] - s.Values[i-lag]
	}
	return s.derive(s.Name, s.Timestamp(lag), result)
}

// Slice returns samples [start, end) as a new series.
func (s *TimeSeries) Slice(start, end int) *TimeSeries {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return s.derive(s.Name, s.Timestamp(start), []float64{})
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])
	return s.derive(s.Name, s.Timestamp(start), values)
}

// WithValues returns a series on the receiver's index carrying values, which
// must have the receiver's length.
func (s *TimeSeries) WithValues(name string, values []float64) (*TimeSeries, error) {
	if len(values) != len(s.Values) {
		return nil, errors.Errorf("length mismatch: %d values for an index of %d", len(values), len(s.Values))
	}
	v := make([]float64, len(values))
	copy(v, values)
	return s.derive(name, s.Start, v), nil
}

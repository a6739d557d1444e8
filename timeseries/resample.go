package timeseries

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// DataSet holds one series per source, all on the same time grid.
type DataSet struct {
	Start   time.Time
	End     time.Time
	Step    time.Duration
	Sources []string
	Series  map[string]*TimeSeries
}

// Get returns the series for a source, or nil.
func (d *DataSet) Get(source string) *TimeSeries {
	return d.Series[source]
}

// NewDataSet builds the canonical grid from raw archive output. Each raw
// sequence starts at start and is spaced by native. When target is non-zero the
// data is aggregated onto target buckets and the data set's range is taken
// from the first and last bucket; otherwise native becomes the canonical step.
// The raw buffers are copied and not retained.
func NewDataSet(start time.Time, native time.Duration, sources []string, raw map[string][]float64, target time.Duration) (*DataSet, error) {
	if native <= 0 {
		return nil, errors.Wrapf(ErrInvalidStep, "native step %s", native)
	}
	if target != 0 && target < native {
		return nil, errors.Wrapf(ErrInvalidResample, "cannot downsample from %s to %s", native, target)
	}

	step := native
	if target != 0 {
		step = target
	}

	ds := &DataSet{
		Start:   start,
		End:     start,
		Step:    step,
		Sources: make([]string, 0, len(sources)),
		Series:  make(map[string]*TimeSeries, len(sources)),
	}

	count := -1
	for _, name := range sources {
		values, ok := raw[name]
		if !ok {
			return nil, errors.Errorf("source %q has no samples", name)
		}
		if count >= 0 && len(values) != count {
			return nil, errors.Errorf("source %q has %d samples, expected %d", name, len(values), count)
		}
		count = len(values)

		series, err := New(name, start, native, values)
		if err != nil {
			return nil, err
		}
		if target != 0 {
			series, err = series.Resample(target)
			if err != nil {
				return nil, errors.Wrapf(err, "source %q", name)
			}
		}

		ds.Sources = append(ds.Sources, name)
		ds.Series[name] = series
		ds.Start = series.Start
		ds.End = series.End()
	}

	if count < 0 {
		ds.End = start
	}
	return ds, nil
}

// Resample aggregates the series onto buckets of width target by arithmetic
// mean. Bucket boundaries are multiples of target counted from 00:00 UTC of the
// first sample's UTC day, never local midnight, so a 1d target yields UTC days
// whatever the location of Start. Missing samples are ignored and a bucket with
// no observation stays missing. Requesting a step finer than the series' own
// fails with ErrInvalidResample.
func (s *TimeSeries) Resample(target time.Duration) (*TimeSeries, error) {
	if target <= 0 {
		return nil, errors.Wrapf(ErrInvalidStep, "target step %s", target)
	}
	if target < s.Step {
		return nil, errors.Wrapf(ErrInvalidResample, "cannot downsample from %s to %s", s.Step, target)
	}
	if len(s.Values) == 0 {
		return &TimeSeries{Name: s.Name, Start: s.Start, Step: target, Values: []float64{}}, nil
	}

	origin := s.Start.UTC().Truncate(24 * time.Hour)
	bucket := func(i int) int64 {
		return int64(floorDiv(s.Timestamp(i).Sub(origin), target))
	}

	first := bucket(0)
	last := bucket(len(s.Values) - 1)
	n := int(last-first) + 1

	sums := make([]float64, n)
	counts := make([]int, n)
	for i, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		b := bucket(i) - first
		sums[b] += v
		counts[b]++
	}

	values := make([]float64, n)
	for b := range values {
		if counts[b] == 0 {
			values[b] = math.NaN()
			continue
		}
		values[b] = sums[b] / float64(counts[b])
	}

	return &TimeSeries{
		Name:   s.Name,
		Start:  origin.Add(time.Duration(first) * target).In(s.Start.Location()),
		Step:   target,
		Values: values,
	}, nil
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(d, unit time.Duration) time.Duration {
	q := d / unit
	if d%unit != 0 && d < 0 {
		q--
	}
	return q
}

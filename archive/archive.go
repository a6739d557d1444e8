// Package archive reads fixed-step samples from round-robin archives and
// places them on the canonical time grid.
package archive

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sartorproj/rrdiag/timeseries"
)

// Raw is the output of an archive read: one sample slice per source, all
// starting at Start and spaced by Step. Missing samples are NaN.
type Raw struct {
	Start   time.Time
	Step    time.Duration
	Sources []string
	Data    map[string][]float64
}

// Len returns the number of rows in the read.
func (r *Raw) Len() int {
	if len(r.Sources) == 0 {
		return 0
	}
	return len(r.Data[r.Sources[0]])
}

// End returns the exclusive end of the read.
func (r *Raw) End() time.Time {
	return r.Start.Add(time.Duration(r.Len()) * r.Step)
}

// Reader is the archive read primitive. Implementations own their retry and
// timeout policy.
type Reader interface {
	// Bounds returns the times of the first and last observation in filename.
	Bounds(ctx context.Context, filename string) (first, last time.Time, err error)
	// Read returns the samples observed between start and end inclusive,
	// adjusted to the archive grid.
	Read(ctx context.Context, filename string, start, end time.Time) (*Raw, error)
}

// FetchRequest describes a read of one archive file.
type FetchRequest struct {
	Filename string
	// Start and End are time markers, see ResolveRange.
	Start string
	End   string
	// Step is the preferred step; zero keeps the native step.
	Step time.Duration
}

// Fetch resolves the request's markers, reads the archive and builds the
// canonical data set.
func Fetch(ctx context.Context, r Reader, req FetchRequest) (*timeseries.DataSet, error) {
	first, last, err := r.Bounds(ctx, req.Filename)
	if err != nil {
		return nil, errors.Wrapf(err, "bounds of %s", req.Filename)
	}

	start, end, err := ResolveRange(req.Start, req.End, Anchors{First: first, Last: last, Now: time.Now()})
	if err != nil {
		return nil, err
	}

	raw, err := r.Read(ctx, req.Filename, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", req.Filename)
	}

	return timeseries.NewDataSet(raw.Start, raw.Step, raw.Sources, raw.Data, req.Step)
}

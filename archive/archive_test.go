package archive

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/rrdiag/timeseries"
)

const sample = `timestamp,in,out
1699920000,1,10
1699920060,2,U
1699920120,3,30
1699920240,5,50
1699920300,6,60
`

func memArchive(files map[string]string) *CSVArchive {
	return &CSVArchive{Open: func(name string) (io.ReadCloser, error) {
		body, ok := files[name]
		if !ok {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(strings.NewReader(body)), nil
	}}
}

func TestCSVArchiveBounds(t *testing.T) {
	a := memArchive(map[string]string{"x.csv": sample})

	first, last, err := a.Bounds(context.Background(), "x.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(1699920000), first.Unix())
	assert.Equal(t, int64(1699920300), last.Unix())
}

func TestCSVArchiveReadFillsGaps(t *testing.T) {
	a := memArchive(map[string]string{"x.csv": sample})

	raw, err := a.Read(context.Background(), "x.csv", time.Unix(1699920000, 0), time.Unix(1699920300, 0))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, raw.Step)
	assert.Equal(t, []string{"in", "out"}, raw.Sources)
	require.Equal(t, 6, raw.Len())
	assert.Equal(t, 4.0, raw.Data["in"][4])
	assert.True(t, math.IsNaN(raw.Data["in"][3]), "skipped step is missing")
	assert.True(t, math.IsNaN(raw.Data["out"][1]), "U is missing")
	assert.Equal(t, int64(1699920360), raw.End().Unix())
}

func TestCSVArchiveReadRange(t *testing.T) {
	a := memArchive(map[string]string{"x.csv": sample})

	raw, err := a.Read(context.Background(), "x.csv", time.Unix(1699920030, 0), time.Unix(1699920130, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1699920060), raw.Start.Unix())
	assert.Equal(t, []float64{3}, raw.Data["in"][1:])
	assert.Equal(t, 2, raw.Len())

	raw, err = a.Read(context.Background(), "x.csv", time.Unix(1800000000, 0), time.Unix(1800000100, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, raw.Len())
}

func TestCSVArchiveErrors(t *testing.T) {
	a := memArchive(map[string]string{
		"offgrid.csv": "timestamp,a\n0,1\n60,2\n90,3\n",
		"single.csv":  "timestamp,a\n0,1\n",
		"bad.csv":     "timestamp,a\n0,x\n",
		"short.csv":   "timestamp\n",
	})
	ctx := context.Background()

	for _, name := range []string{"offgrid.csv", "single.csv", "bad.csv", "short.csv", "missing.csv"} {
		_, _, err := a.Bounds(ctx, name)
		assert.Error(t, err, name)
	}
}

func TestCSVArchiveFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	_, last, err := NewCSVArchive().Bounds(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(1699920300), last.Unix())
}

func TestCSVArchiveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memArchive(map[string]string{"x.csv": sample}).Read(ctx, "x.csv", time.Time{}, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch(t *testing.T) {
	a := memArchive(map[string]string{"x.csv": sample})

	ds, err := Fetch(context.Background(), a, FetchRequest{Filename: "x.csv", Start: "first", End: "last"})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ds.Step)
	assert.Equal(t, 6, ds.Get("in").Len())
	assert.Equal(t, ds.End, ds.Get("out").End())

	ds, err = Fetch(context.Background(), a, FetchRequest{Filename: "x.csv", Start: "first", End: "last", Step: 2 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, ds.Step)
	assert.Equal(t, 3, ds.Get("in").Len())

	_, err = Fetch(context.Background(), a, FetchRequest{Filename: "x.csv", Start: "first", End: "last", Step: time.Second})
	assert.ErrorIs(t, err, timeseries.ErrInvalidResample)

	_, err = Fetch(context.Background(), a, FetchRequest{Filename: "x.csv", Start: "yesterday", End: "last"})
	assert.ErrorIs(t, err, ErrInvalidMarker)
}

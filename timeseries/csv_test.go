package timeseries

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWriter(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	a, err := New("in", start, time.Minute, []float64{1.5, 2})
	require.NoError(t, err)
	b, err := New("out", start, time.Minute, []float64{math.NaN()})
	require.NoError(t, err)

	var sb strings.Builder
	rw := NewRecordWriter(&sb, HeaderSource)
	require.NoError(t, rw.Write(a))
	require.NoError(t, rw.Write(b))
	require.NoError(t, rw.Flush())

	want := "source,timestamp,value\n" +
		"in,1700000000,1.5\n" +
		"in,1700000060,2\n" +
		"out,1700000000,NaN\n"
	assert.Equal(t, want, sb.String())
}

func TestRecordWriterDefaultHeader(t *testing.T) {
	var sb strings.Builder
	rw := NewRecordWriter(&sb, "")
	require.NoError(t, rw.Flush())
	assert.Equal(t, "ds,timestamp,value\n", sb.String())
}

func TestSaveRecords(t *testing.T) {
	s, err := New("load", time.Unix(0, 0), time.Hour, []float64{1, 2, 3})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, SaveRecords(path, HeaderDS, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ds,timestamp,value", lines[0])
	assert.Equal(t, "load,7200,3", lines[3])
}

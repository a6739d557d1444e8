package timeseries

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Header names accepted for the first column of a record file.
const (
	HeaderDS     = "ds"
	HeaderSource = "source"
)

// RecordWriter serializes series as "<key>,timestamp,value" lines, one per
// sample, with unix-second timestamps.
type RecordWriter struct {
	w           *csv.Writer
	header      string
	wroteHeader bool
}

// NewRecordWriter returns a writer whose header row is "<key>,timestamp,value".
// An empty key defaults to HeaderDS.
func NewRecordWriter(w io.Writer, key string) *RecordWriter {
	if key == "" {
		key = HeaderDS
	}
	return &RecordWriter{w: csv.NewWriter(w), header: key}
}

// Write appends every sample of series under its name. The header is written
// before the first record even when series is empty.
func (rw *RecordWriter) Write(series *TimeSeries) error {
	if !rw.wroteHeader {
		if err := rw.w.Write([]string{rw.header, "timestamp", "value"}); err != nil {
			return errors.Wrap(err, "write header")
		}
		rw.wroteHeader = true
	}

	for i, v := range series.Values {
		record := []string{
			series.Name,
			strconv.FormatInt(series.Timestamp(i).Unix(), 10),
			strconv.FormatFloat(v, 'f', -1, 64),
		}
		if err := rw.w.Write(record); err != nil {
			return errors.Wrapf(err, "write %s", series.Name)
		}
	}
	return nil
}

// Flush flushes buffered records and reports any write error.
func (rw *RecordWriter) Flush() error {
	if !rw.wroteHeader {
		if err := rw.w.Write([]string{rw.header, "timestamp", "value"}); err != nil {
			return errors.Wrap(err, "write header")
		}
		rw.wroteHeader = true
	}
	rw.w.Flush()
	return rw.w.Error()
}

// SaveRecords writes all series to filename, replacing it.
func SaveRecords(filename, key string, series ...*TimeSeries) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create record file")
	}
	defer file.Close()

	rw := NewRecordWriter(file, key)
	for _, s := range series {
		if err := rw.Write(s); err != nil {
			return err
		}
	}
	if err := rw.Flush(); err != nil {
		return err
	}
	return file.Close()
}

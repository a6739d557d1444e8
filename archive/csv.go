package archive

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sartorproj/rrdiag/timeseries"
)

// CSVArchive reads archives exported as CSV: a header "timestamp,<source>..."
// followed by one row per step with unix-second timestamps. Empty cells and
// the markers NaN, nan, -nan and U are missing samples. Skipped steps are read
// as missing rows.
type CSVArchive struct {
	// Open opens an archive file. Defaults to os.Open.
	Open func(name string) (io.ReadCloser, error)
}

// NewCSVArchive returns a CSVArchive reading from the local filesystem.
func NewCSVArchive() *CSVArchive {
	return &CSVArchive{}
}

type csvTable struct {
	sources []string
	start   time.Time
	step    time.Duration
	rows    [][]float64
}

// Bounds implements Reader.
func (a *CSVArchive) Bounds(ctx context.Context, filename string) (first, last time.Time, err error) {
	table, err := a.load(ctx, filename)
	if err != nil {
		return first, last, err
	}
	if len(table.rows) == 0 {
		return first, last, errors.Wrapf(timeseries.ErrInsufficientData, "%s has no rows", filename)
	}
	return table.start, table.start.Add(time.Duration(len(table.rows)-1) * table.step), nil
}

// Read implements Reader.
func (a *CSVArchive) Read(ctx context.Context, filename string, start, end time.Time) (*Raw, error) {
	table, err := a.load(ctx, filename)
	if err != nil {
		return nil, err
	}

	from := 0
	if start.After(table.start) {
		from = int((start.Sub(table.start) + table.step - 1) / table.step)
	}
	to := len(table.rows) - 1
	if end.Before(table.start.Add(time.Duration(to) * table.step)) {
		to = int(end.Sub(table.start) / table.step)
		if end.Before(table.start) {
			to = -1
		}
	}
	if to < from {
		to = from - 1
	}

	raw := &Raw{
		Start:   table.start.Add(time.Duration(from) * table.step),
		Step:    table.step,
		Sources: append([]string(nil), table.sources...),
		Data:    make(map[string][]float64, len(table.sources)),
	}
	for j, name := range table.sources {
		values := make([]float64, 0, to-from+1)
		for i := from; i <= to; i++ {
			values = append(values, table.rows[i][j])
		}
		raw.Data[name] = values
	}
	return raw, nil
}

func (a *CSVArchive) load(ctx context.Context, filename string) (*csvTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	open := a.Open
	if open == nil {
		open = func(name string) (io.ReadCloser, error) { return os.Open(name) }
	}
	f, err := open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer f.Close()

	return parseTable(f)
}

func parseTable(r io.Reader) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if len(header) < 2 {
		return nil, errors.New("archive needs a timestamp column and at least one source")
	}

	table := &csvTable{sources: make([]string, len(header)-1)}
	for i, h := range header[1:] {
		table.sources[i] = strings.TrimSpace(h)
	}

	var prev int64
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if len(record) != len(header) {
			return nil, errors.Errorf("line %d: %d fields, expected %d", line, len(record), len(header))
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: timestamp", line)
		}

		row := make([]float64, len(table.sources))
		for j, cell := range record[1:] {
			row[j], err = parseSample(cell)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: source %s", line, table.sources[j])
			}
		}

		switch {
		case len(table.rows) == 0:
			table.start = time.Unix(ts, 0).UTC()
		case table.step == 0:
			if ts <= prev {
				return nil, errors.Errorf("line %d: timestamps must increase", line)
			}
			table.step = time.Duration(ts-prev) * time.Second
		default:
			gap := time.Duration(ts-prev) * time.Second
			if gap <= 0 || gap%table.step != 0 {
				return nil, errors.Errorf("line %d: timestamp %d is off the %s grid", line, ts, table.step)
			}
			for k := 1; k < int(gap/table.step); k++ {
				table.rows = append(table.rows, missingRow(len(table.sources)))
			}
		}
		table.rows = append(table.rows, row)
		prev = ts
	}

	if table.step == 0 {
		if len(table.rows) > 0 {
			return nil, errors.Wrap(timeseries.ErrInsufficientData, "cannot infer step from a single row")
		}
		table.step = time.Second
	}
	return table, nil
}

func parseSample(cell string) (float64, error) {
	switch strings.TrimSpace(cell) {
	case "", "U", "NaN", "nan", "-nan", "NA":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(cell), 64)
}

func missingRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}

// Package tableio reads and writes the aggregate CSV files shared by the aggregation
// and analysis stages.
package tableio

import (
	"DDoSpectra/internal/model"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// Time column names. t_start is accepted for files written by older tooling.
const (
	ColWindowStart = "window_start"
	ColTStart      = "t_start"
	coveredSuffix  = "_covered"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteSeries writes one series as window_start followed by the window columns.
func WriteSeries(w io.Writer, s model.AggregateSeries, extended bool) error {
	cols := model.WindowColumns(extended)
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{ColWindowStart}, cols...)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, len(cols)+1)
	for _, win := range s.Windows {
		row[0] = formatFloat(win.WindowStart)
		for i, c := range cols {
			v, _ := win.Value(c)
			row[i+1] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write window %d: %w", win.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes the joined table. With coverage set, a <source>_covered column of
// 0/1 follows each source's columns.
func WriteTable(w io.Writer, t *model.MultivariateTable, coverage bool) error {
	header := []string{ColWindowStart}
	type column struct {
		values  []float64
		covered []bool
	}
	var cols []column
	for _, name := range t.Columns {
		header = append(header, name)
		cols = append(cols, column{values: t.Values[name]})
	}
	if coverage {
		for _, src := range t.Sources {
			header = append(header, src+coveredSuffix)
			cols = append(cols, column{covered: t.Coverage[src]})
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := make([]string, len(header))
	for r := 0; r < t.Rows(); r++ {
		row[0] = formatFloat(t.WindowStart[r])
		for i, c := range cols {
			switch {
			case c.values != nil:
				row[i+1] = formatFloat(c.values[r])
			case c.covered != nil && c.covered[r]:
				row[i+1] = "1"
			default:
				row[i+1] = "0"
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadTable reads an aggregate or joined CSV file.
func LoadTable(path string) (*model.MultivariateTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &model.ConfigurationError{Param: "csv_path", Reason: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		var schemaErr *model.SchemaError
		if errors.As(err, &schemaErr) {
			schemaErr.Path = path
		}
		return nil, err
	}
	return t, nil
}

// ReadTable parses a CSV table with a window_start (or t_start) column. Empty and
// non-numeric cells read as 0, the same zero-fill the merger applies. Columns named
// <source>_covered are read into Coverage rather than Values.
func ReadTable(r io.Reader) (*model.MultivariateTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &model.SchemaError{Column: ColWindowStart}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	timeCol := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if timeCol < 0 && (h == ColWindowStart || h == ColTStart) {
			timeCol = i
		}
	}
	if timeCol < 0 {
		return nil, &model.SchemaError{Column: ColWindowStart}
	}

	t := &model.MultivariateTable{
		Values:   make(map[string][]float64),
		Coverage: make(map[string][]bool),
	}
	for i, h := range header {
		if i == timeCol || h == "" {
			continue
		}
		if src, ok := strings.CutSuffix(h, coveredSuffix); ok {
			t.Sources = append(t.Sources, src)
			continue
		}
		t.Columns = append(t.Columns, h)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		ts, ok := cell(rec, timeCol)
		if !ok {
			return nil, &model.ParseError{Row: line - 1, Field: header[timeCol], Value: strings.Join(rec, ","), Reason: "missing window start"}
		}
		t.WindowStart = append(t.WindowStart, ts)
		for i, h := range header {
			if i == timeCol || h == "" {
				continue
			}
			v, _ := cell(rec, i)
			if src, ok := strings.CutSuffix(h, coveredSuffix); ok {
				t.Coverage[src] = append(t.Coverage[src], v != 0)
				continue
			}
			t.Values[h] = append(t.Values[h], v)
		}
	}

	t.Delta = InferDelta(t.WindowStart)
	t.Index = make([]int64, len(t.WindowStart))
	for i, ws := range t.WindowStart {
		if t.Delta > 0 {
			t.Index[i] = int64(math.Round(ws / t.Delta))
		} else {
			t.Index[i] = int64(i)
		}
	}
	return t, nil
}

func cell(rec []string, i int) (float64, bool) {
	if i >= len(rec) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// InferDelta returns the median spacing of the window starts, or 0 with fewer than two
// rows.
func InferDelta(windowStart []float64) float64 {
	if len(windowStart) < 2 {
		return 0
	}
	diffs := make([]float64, 0, len(windowStart)-1)
	for i := 1; i < len(windowStart); i++ {
		if d := windowStart[i] - windowStart[i-1]; d > 0 {
			diffs = append(diffs, d)
		}
	}
	m, err := stats.Median(diffs)
	if err != nil {
		return 0
	}
	return m
}

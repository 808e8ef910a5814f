// Package merger outer-joins per-source aggregate series on the window index.
package merger

import (
	"DDoSpectra/internal/model"
	"fmt"
	"math"
)

// deltaTolerance is the relative difference below which two window widths are equal.
const deltaTolerance = 1e-9

// Options controls the columns of the joined table.
type Options struct {
	// Extended adds the protocol-mix and entropy columns of every source.
	Extended bool
}

// Merge joins the series with the base columns only.
func Merge(series ...model.AggregateSeries) (*model.MultivariateTable, error) {
	return MergeWith(Options{}, series...)
}

// MergeWith joins the series over the full index range of all non-empty inputs.
// Windows a source does not have are zero-filled and marked uncovered.
func MergeWith(opts Options, series ...model.AggregateSeries) (*model.MultivariateTable, error) {
	if len(series) == 0 {
		return nil, &model.ConfigurationError{Param: "input_sources", Reason: "no series to merge"}
	}
	delta := series[0].Delta
	seen := make(map[string]bool, len(series))
	var (
		lo, hi   int64
		hasRange bool
	)
	for _, s := range series {
		if s.Source == "" || seen[s.Source] {
			return nil, &model.ConfigurationError{Param: "source", Reason: fmt.Sprintf("duplicate or empty source name %q", s.Source)}
		}
		seen[s.Source] = true
		if !sameDelta(s.Delta, delta) {
			return nil, &model.IncompatibleWindowError{Source: s.Source, Delta: s.Delta, Expected: delta}
		}
		first, last, ok := s.IndexRange()
		if !ok {
			continue
		}
		if !hasRange || first < lo {
			lo = first
		}
		if !hasRange || last > hi {
			hi = last
		}
		hasRange = true
	}

	features := model.WindowColumns(opts.Extended)
	rows := 0
	if hasRange {
		rows = int(hi - lo + 1)
	}
	table := &model.MultivariateTable{
		Delta:       delta,
		Index:       make([]int64, rows),
		WindowStart: make([]float64, rows),
		Values:      make(map[string][]float64, len(series)*len(features)),
		Coverage:    make(map[string][]bool, len(series)),
	}
	for r := 0; r < rows; r++ {
		table.Index[r] = lo + int64(r)
		table.WindowStart[r] = float64(lo+int64(r)) * delta
	}

	for _, s := range series {
		table.Sources = append(table.Sources, s.Source)
		covered := make([]bool, rows)
		cols := make([][]float64, len(features))
		for i, f := range features {
			name := model.ColumnName(s.Source, f)
			cols[i] = make([]float64, rows)
			table.Columns = append(table.Columns, name)
			table.Values[name] = cols[i]
		}
		for _, w := range s.Windows {
			r := int(w.Index - lo)
			covered[r] = true
			for i, f := range features {
				cols[i][r], _ = w.Value(f)
			}
		}
		table.Coverage[s.Source] = covered
	}
	return table, nil
}

func sameDelta(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= deltaTolerance*math.Max(math.Abs(a), math.Abs(b))
}

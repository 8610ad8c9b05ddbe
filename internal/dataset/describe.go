package dataset

import (
	"strings"

	"github.com/montanaflynn/stats"
)

// ColumnStats summarize one column of a dataset. Min, Max, Mean and
// Std are only populated for numeric columns with at least one value.
type ColumnStats struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	NonNull int     `json:"non_null"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
}

// Stats describe a loaded dataset column by column.
type Stats struct {
	Rows    int           `json:"rows"`
	Columns []ColumnStats `json:"columns"`
}

// Describe computes basic per-column statistics, skipping missing
// values. Columns with no values keep zero statistics.
func Describe(ds *Dataset) Stats {
	out := Stats{Rows: ds.Len()}

	for _, name := range ds.ColumnNames() {
		kind, _ := ds.Kind(name)
		cs := ColumnStats{Name: name, Kind: kind.String()}

		switch kind {
		case KindFloat:
			vals, _ := ds.Floats(name)
			clean := make([]float64, 0, len(vals))
			for _, v := range vals {
				if !IsMissing(v) {
					clean = append(clean, v)
				}
			}
			cs.NonNull = len(clean)
			if len(clean) > 0 {
				cs.Min, _ = stats.Min(clean)
				cs.Max, _ = stats.Max(clean)
				cs.Mean, _ = stats.Mean(clean)
				cs.Std, _ = stats.StandardDeviation(clean)
			}
		case KindString:
			ss, _ := ds.Strings(name)
			for _, v := range ss {
				if strings.TrimSpace(v) != "" {
					cs.NonNull++
				}
			}
		case KindBool:
			bs, _ := ds.Bools(name)
			cs.NonNull = len(bs)
		}

		out.Columns = append(out.Columns, cs)
	}

	return out
}

// Package dataset provides the column-oriented survey table that all
// analysis packages operate on, together with schema binding and file
// loading. Records are ordered by row index; analysis never deletes or
// reorders rows, it only adds columns.
package dataset

import (
	"fmt"
	"math"
)

// ColumnKind identifies the storage type of a column.
type ColumnKind int

const (
	// KindFloat holds float64 values with NaN marking missing cells
	KindFloat ColumnKind = iota
	// KindString holds raw text values
	KindString
	// KindBool holds boolean flags produced by analysis
	KindBool
)

// String returns the string representation of the column kind
func (k ColumnKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

type column struct {
	kind    ColumnKind
	floats  []float64
	strings []string
	bools   []bool
}

// Dataset is an ordered table of survey records. Columns are stored by
// name; row identity is the index. Accessors return the underlying
// slices, which callers must treat as read-only; use Augment to derive
// a dataset that can be extended without touching the receiver.
type Dataset struct {
	n     int
	order []string
	cols  map[string]column
}

// New creates an empty dataset expecting n rows per column.
func New(n int) *Dataset {
	return &Dataset{
		n:    n,
		cols: make(map[string]column),
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return d.n
}

// ColumnNames returns the column names in insertion order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// Has reports whether a column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.cols[name]
	return ok
}

// Kind returns the kind of the named column.
func (d *Dataset) Kind(name string) (ColumnKind, bool) {
	c, ok := d.cols[name]
	return c.kind, ok
}

// Floats returns the float values of the named column.
func (d *Dataset) Floats(name string) ([]float64, bool) {
	c, ok := d.cols[name]
	if !ok || c.kind != KindFloat {
		return nil, false
	}
	return c.floats, true
}

// Strings returns the text values of the named column.
func (d *Dataset) Strings(name string) ([]string, bool) {
	c, ok := d.cols[name]
	if !ok || c.kind != KindString {
		return nil, false
	}
	return c.strings, true
}

// Bools returns the flag values of the named column.
func (d *Dataset) Bools(name string) ([]bool, bool) {
	c, ok := d.cols[name]
	if !ok || c.kind != KindBool {
		return nil, false
	}
	return c.bools, true
}

// SetFloats adds or replaces a float column.
func (d *Dataset) SetFloats(name string, values []float64) error {
	if len(values) != d.n {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), d.n)
	}
	d.set(name, column{kind: KindFloat, floats: values})
	return nil
}

// SetStrings adds or replaces a text column.
func (d *Dataset) SetStrings(name string, values []string) error {
	if len(values) != d.n {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), d.n)
	}
	d.set(name, column{kind: KindString, strings: values})
	return nil
}

// SetBools adds or replaces a flag column.
func (d *Dataset) SetBools(name string, values []bool) error {
	if len(values) != d.n {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), d.n)
	}
	d.set(name, column{kind: KindBool, bools: values})
	return nil
}

func (d *Dataset) set(name string, c column) {
	if _, exists := d.cols[name]; !exists {
		d.order = append(d.order, name)
	}
	d.cols[name] = c
}

// Augment returns a copy sharing column storage with the receiver.
// Setting a column on the copy, including replacing an existing one,
// never alters the receiver, which keeps input snapshots immutable
// while analysis layers add their output columns.
func (d *Dataset) Augment() *Dataset {
	cols := make(map[string]column, len(d.cols)+8)
	for name, c := range d.cols {
		cols[name] = c
	}
	order := make([]string, len(d.order), len(d.order)+8)
	copy(order, d.order)
	return &Dataset{n: d.n, order: order, cols: cols}
}

// Missing returns the float value used for absent cells.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a cell value marks a missing measurement.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

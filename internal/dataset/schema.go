package dataset

import "fmt"

// Schema declares which dataset columns carry which survey quantities.
// Only Depth is required; every other field is optional and, when blank
// or absent from the data, simply disables the analysis features that
// depend on it.
type Schema struct {
	Depth      string `json:"depth" validate:"required"`
	KP         string `json:"kp,omitempty"`
	Position   string `json:"position,omitempty"`
	Latitude   string `json:"latitude,omitempty"`
	Longitude  string `json:"longitude,omitempty"`
	Easting    string `json:"easting,omitempty"`
	Northing   string `json:"northing,omitempty"`
	CrossTrack string `json:"cross_track,omitempty"`
}

// CoordinateKind identifies which coordinate pair a binding resolved.
type CoordinateKind int

const (
	// CoordinateNone means no usable coordinate pair was bound
	CoordinateNone CoordinateKind = iota
	// CoordinateGeographic means latitude/longitude in degrees
	CoordinateGeographic
	// CoordinateProjected means easting/northing in meters
	CoordinateProjected
)

// String returns the string representation of the coordinate kind
func (k CoordinateKind) String() string {
	switch k {
	case CoordinateGeographic:
		return "geographic"
	case CoordinateProjected:
		return "projected"
	default:
		return "none"
	}
}

// BindingError reports why a schema could not be bound to a dataset.
type BindingError struct {
	Column string
	Reason string
}

// Error implements the error interface
func (e *BindingError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema binding: %s", e.Reason)
	}
	return fmt.Sprintf("schema binding: column %q %s", e.Column, e.Reason)
}

// Binding is the resolved, validated handle an analyzer works against.
// It is produced once per dataset by Bind; analyzers index columns
// through it instead of re-checking column existence at every step.
type Binding struct {
	Depth      string
	KP         string
	Position   string
	CrossTrack string

	// CoordX/CoordY hold easting/northing or longitude/latitude
	// depending on Coordinates.
	CoordX      string
	CoordY      string
	Coordinates CoordinateKind
}

// HasKP reports whether an along-track KP column is bound.
func (b Binding) HasKP() bool { return b.KP != "" }

// HasPosition reports whether a generic position column is bound.
func (b Binding) HasPosition() bool { return b.Position != "" }

// HasCrossTrack reports whether a cross-track deviation column is bound.
func (b Binding) HasCrossTrack() bool { return b.CrossTrack != "" }

// HasCoordinates reports whether a coordinate pair is bound.
func (b Binding) HasCoordinates() bool { return b.Coordinates != CoordinateNone }

// Bind resolves a schema against a dataset. The depth column must exist
// and be numeric or binding fails with a *BindingError. Optional columns
// are validated independently: a declared column that is missing or
// non-numeric is dropped from the binding rather than failing the call,
// and coordinate columns only bind as a complete pair. Easting/northing
// is preferred over latitude/longitude when both pairs resolve.
func Bind(d *Dataset, s Schema) (Binding, error) {
	if d.Len() == 0 {
		return Binding{}, &BindingError{Reason: "dataset is empty"}
	}
	if s.Depth == "" {
		return Binding{}, &BindingError{Reason: "no depth column declared"}
	}
	if !d.Has(s.Depth) {
		return Binding{}, &BindingError{Column: s.Depth, Reason: "not found"}
	}
	if _, ok := d.Floats(s.Depth); !ok {
		return Binding{}, &BindingError{Column: s.Depth, Reason: "is not numeric"}
	}

	b := Binding{
		Depth:      s.Depth,
		KP:         bindOptional(d, s.KP),
		Position:   bindOptional(d, s.Position),
		CrossTrack: bindOptional(d, s.CrossTrack),
	}

	if east, north := bindOptional(d, s.Easting), bindOptional(d, s.Northing); east != "" && north != "" {
		b.CoordX, b.CoordY = east, north
		b.Coordinates = CoordinateProjected
	} else if lat, lon := bindOptional(d, s.Latitude), bindOptional(d, s.Longitude); lat != "" && lon != "" {
		b.CoordX, b.CoordY = lon, lat
		b.Coordinates = CoordinateGeographic
	}

	return b, nil
}

func bindOptional(d *Dataset, name string) string {
	if name == "" {
		return ""
	}
	if _, ok := d.Floats(name); !ok {
		return ""
	}
	return name
}

// PositionKind identifies which reference supplied reported positions.
type PositionKind int

const (
	// PositionIndex means positions are plain row indexes
	PositionIndex PositionKind = iota
	// PositionKP means positions come from the KP column (kilometers)
	PositionKP
	// PositionColumn means positions come from a generic position column (meters)
	PositionColumn
)

// String returns the string representation of the position kind
func (k PositionKind) String() string {
	switch k {
	case PositionKP:
		return "kp"
	case PositionColumn:
		return "position"
	default:
		return "index"
	}
}

// PositionAxis resolves the reporting position reference for a bound
// dataset: KP when bound, then a generic position column, then row
// index. Downstream length units depend on which reference was used,
// so the kind is carried alongside every section and range summary.
type PositionAxis struct {
	Kind   PositionKind
	values []float64
}

// ResolvePositionAxis picks the preferred position reference.
func ResolvePositionAxis(d *Dataset, b Binding) PositionAxis {
	if b.HasKP() {
		if vals, ok := d.Floats(b.KP); ok {
			return PositionAxis{Kind: PositionKP, values: vals}
		}
	}
	if b.HasPosition() {
		if vals, ok := d.Floats(b.Position); ok {
			return PositionAxis{Kind: PositionColumn, values: vals}
		}
	}
	return PositionAxis{Kind: PositionIndex}
}

// Value returns the position of row i in the axis' native unit.
func (a PositionAxis) Value(i int) float64 {
	if a.Kind == PositionIndex || i < 0 || i >= len(a.values) {
		return float64(i)
	}
	return a.values[i]
}

// SpanMeters returns the length of the inclusive row span [start, end]
// in meters: KP spans scale by 1000, a position column is taken as
// meters directly, and index spans fall back to the point count.
func (a PositionAxis) SpanMeters(start, end int) float64 {
	switch a.Kind {
	case PositionKP:
		return (a.Value(end) - a.Value(start)) * 1000.0
	case PositionColumn:
		return a.Value(end) - a.Value(start)
	default:
		return float64(end - start + 1)
	}
}

package ranges

import "fmt"

// Range types emitted by Recommend.
const (
	TypeFull      = "full"
	TypeDeficit   = "deficit"
	TypeVariation = "variation"
)

// Candidate generation inside Recommend uses a looser section size and a
// stricter variation threshold than the standalone finders.
const (
	recommendSectionSize  = 3
	recommendMinDeficit   = 0.1
	recommendWindowSize   = 20
	recommendStdThreshold = 0.3
)

// Params configure viewing-range selection.
type Params struct {
	TargetDepth    float64 `json:"target_depth" yaml:"target_depth"`
	MinSectionSize int     `json:"min_section_size" yaml:"min_section_size"` // shortest reportable deficit run
	MinDeficit     float64 `json:"min_deficit" yaml:"min_deficit"`           // metres below target before a point counts
	WindowSize     int     `json:"window_size" yaml:"window_size"`           // rolling std window
	StdThreshold   float64 `json:"std_threshold" yaml:"std_threshold"`       // rolling std cutoff for variation
	MaxRanges      int     `json:"max_ranges" yaml:"max_ranges"`
}

// DefaultParams returns the standard range selection parameters.
func DefaultParams() Params {
	return Params{
		TargetDepth:    1.5,
		MinSectionSize: 5,
		MinDeficit:     0.1,
		WindowSize:     20,
		StdThreshold:   0.2,
		MaxRanges:      5,
	}
}

// Validate checks parameter sanity before any selection runs.
func (p Params) Validate() error {
	if p.TargetDepth <= 0 {
		return fmt.Errorf("target depth must be positive, got %v", p.TargetDepth)
	}
	if p.MinSectionSize < 1 {
		return fmt.Errorf("min section size must be at least 1, got %d", p.MinSectionSize)
	}
	if p.MinDeficit < 0 {
		return fmt.Errorf("min deficit cannot be negative, got %v", p.MinDeficit)
	}
	if p.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", p.WindowSize)
	}
	if p.StdThreshold <= 0 {
		return fmt.Errorf("std threshold must be positive, got %v", p.StdThreshold)
	}
	if p.MaxRanges < 1 {
		return fmt.Errorf("max ranges must be at least 1, got %d", p.MaxRanges)
	}
	return nil
}

// Section is a contiguous run of depths below target minus the deficit
// margin, ranked by maximum deficit times length.
type Section struct {
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	StartPos   float64 `json:"start_position"`
	EndPos     float64 `json:"end_position"`
	Size       int     `json:"size"`
	MinDepth   float64 `json:"min_depth"`
	MaxDeficit float64 `json:"max_deficit"`
	Importance float64 `json:"importance"`
}

// Zone is a stretch of elevated depth variation, expanded by half the
// rolling window on each side for context.
type Zone struct {
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	StartPos   float64 `json:"start_position"`
	EndPos     float64 `json:"end_position"`
	Size       int     `json:"size"`
	StdDev     float64 `json:"std_dev"`
	DepthRange float64 `json:"depth_range"`
	Importance float64 `json:"importance"`
}

// Range is one recommended viewing window. Selection drives what the
// visualization renders by default; it never filters the data itself.
type Range struct {
	StartIndex  int     `json:"start_index"`
	EndIndex    int     `json:"end_index"`
	StartPos    float64 `json:"start_position"`
	EndPos      float64 `json:"end_position"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
}

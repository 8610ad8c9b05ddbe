package depth

import (
	"fmt"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// Column names written onto the augmented dataset. Reports and charts
// address analysis output through these.
const (
	ColIsAnomaly       = "Is_Anomaly"
	ColAnomalyType     = "Anomaly_Type"
	ColAnomalySeverity = "Anomaly_Severity"
	ColExceedsMaxDepth = "Exceeds_Max_Depth"
	ColBelowMinDepth   = "Below_Min_Depth"
	ColDepthChange     = "Depth_Change"
	ColIsSpike         = "Is_Spike"
	ColRollingMean     = "Rolling_Mean"
	ColRollingStd      = "Rolling_Std"
	ColZScore          = "Z_Score"
	ColIsOutlier       = "Is_Outlier"
	ColMeetsTarget     = "Meets_Target"
	ColDepthDeficit    = "Depth_Deficit"
	ColTargetPct       = "Target_Percentage"
	ColSectionID       = "Section_ID"
)

// Anomaly classification reasons. Spike and outlier reasons carry the
// measured change or z-score.
const (
	ReasonExceedsMax    = "Exceeds maximum trenching depth"
	ReasonBelowMin      = "Invalid depth (below minimum)"
	ReasonSpikeFormat   = "Sudden depth change (%.2fm)"
	ReasonOutlierFormat = "Statistical outlier (z-score: %.2f)"
	ReasonUnknown       = "Unknown anomaly"
)

// zScoreEpsilon replaces a zero or undefined rolling standard deviation
// so flat windows never divide by zero.
const zScoreEpsilon = 0.001

// Params configure depth analysis. All depths are meters.
type Params struct {
	TargetDepth    float64 `json:"target_depth" yaml:"target_depth"`       // required burial depth
	MaxDepth       float64 `json:"max_depth" yaml:"max_depth"`             // plausible trenching limit
	MinDepth       float64 `json:"min_depth" yaml:"min_depth"`             // lower physical bound
	SpikeThreshold float64 `json:"spike_threshold" yaml:"spike_threshold"` // point-to-point change limit
	WindowSize     int     `json:"window_size" yaml:"window_size"`         // rolling window length
	StdThreshold   float64 `json:"std_threshold" yaml:"std_threshold"`     // z-score outlier cutoff
	// IgnoreAnomalies excludes anomalous records from aggregate
	// compliance percentages. Section detection always runs over the
	// full ordered sequence.
	IgnoreAnomalies bool `json:"ignore_anomalies" yaml:"ignore_anomalies"`
}

// DefaultParams returns the standard burial assessment parameters.
func DefaultParams() Params {
	return Params{
		TargetDepth:    1.5,
		MaxDepth:       3.0,
		MinDepth:       0.0,
		SpikeThreshold: 0.5,
		WindowSize:     5,
		StdThreshold:   3.0,
	}
}

// Validate checks parameter sanity before any analysis runs.
func (p Params) Validate() error {
	if p.TargetDepth <= 0 {
		return fmt.Errorf("target depth must be positive, got %v", p.TargetDepth)
	}
	if p.MaxDepth <= p.MinDepth {
		return fmt.Errorf("max depth %v must exceed min depth %v", p.MaxDepth, p.MinDepth)
	}
	if p.SpikeThreshold <= 0 {
		return fmt.Errorf("spike threshold must be positive, got %v", p.SpikeThreshold)
	}
	if p.WindowSize < 2 {
		return fmt.Errorf("window size must be at least 2, got %d", p.WindowSize)
	}
	if p.StdThreshold <= 0 {
		return fmt.Errorf("std threshold must be positive, got %v", p.StdThreshold)
	}
	return nil
}

// Anomaly is one flagged depth record.
type Anomaly struct {
	Index    int     `json:"index"`    // row index in the dataset
	Position float64 `json:"position"` // KP, position column value or row index
	Depth    float64 `json:"depth"`
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
}

// Section is a contiguous run of records below the target depth.
// Positions and lengths follow the dataset's position axis: KP
// kilometers and meter lengths when KP is bound, raw position values
// otherwise, row indexes and point counts as the last resort.
type Section struct {
	ID             int     `json:"id"`
	StartIndex     int     `json:"start_index"`
	EndIndex       int     `json:"end_index"`
	StartPos       float64 `json:"start_position"`
	EndPos         float64 `json:"end_position"`
	Length         float64 `json:"length"`
	PointCount     int     `json:"point_count"`
	MinDepth       float64 `json:"min_depth"`
	MaxDepth       float64 `json:"max_depth"`
	AvgDepth       float64 `json:"avg_depth"`
	MaxDeficit     float64 `json:"max_deficit"`
	TargetPct      float64 `json:"target_percentage"` // achieved share of target at the worst point
	Severity       string  `json:"severity"`
	Recommendation string  `json:"recommendation"`
}

// Summary aggregates one depth analysis run.
type Summary struct {
	TotalPoints        int            `json:"total_points"`
	AnomalyCount       int            `json:"anomaly_count"`
	AnomalyPercentage  float64        `json:"anomaly_percentage"`
	SeverityCounts     map[string]int `json:"severity_counts"`
	CompliancePct      float64        `json:"compliance_percentage"`
	SectionCount       int            `json:"problem_section_count"`
	TotalProblemLength float64        `json:"total_problem_length"`
}

// Result is the immutable outcome of one analysis call. Data is an
// augmented copy of the input dataset; the input itself is never
// modified.
type Result struct {
	Data      *dataset.Dataset     `json:"-"`
	Axis      dataset.PositionAxis `json:"-"`
	Anomalies []Anomaly            `json:"anomalies"`
	Sections  []Section            `json:"sections"`
	Summary   Summary              `json:"summary"`
}

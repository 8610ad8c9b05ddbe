package position

import (
	"fmt"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// Column names written onto the augmented dataset.
const (
	ColKPDiff          = "KP_Diff"
	ColIsJump          = "Is_KP_Jump"
	ColIsReversal      = "Is_KP_Reversal"
	ColIsDuplicate     = "Is_KP_Duplicate"
	ColContinuityScore = "KP_Continuity_Score"
	ColSignificantDev  = "Is_Significant_Deviation"
	ColCrossTrackScore = "Cross_Track_Score"
	ColCoordScore      = "Coord_Consistency_Score"
	ColQualityScore    = "Position_Quality_Score"
	ColQuality         = "Position_Quality"
)

// Quality categories assigned from the composite score.
const (
	QualityGood    = "Good"
	QualitySuspect = "Suspect"
	QualityPoor    = "Poor"
)

// Category breakpoints: Poor at or below PoorScoreMax, Good above
// SuspectScoreMax, Suspect in between. Exported so charts can draw the
// category boundaries alongside the score.
const (
	PoorScoreMax    = 0.3
	SuspectScoreMax = 0.7
)

// Params configure position analysis. KP values are kilometers,
// cross-track deviations meters.
type Params struct {
	JumpThreshold       float64 `json:"jump_threshold" yaml:"jump_threshold"`               // allowed excess over the median KP increment
	ReversalThreshold   float64 `json:"reversal_threshold" yaml:"reversal_threshold"`       // backward movement tolerance
	CrossTrackThreshold float64 `json:"cross_track_threshold" yaml:"cross_track_threshold"` // significant deviation cutoff
	MinSegmentLength    int     `json:"min_segment_length" yaml:"min_segment_length"`       // shortest reportable poor run
	// KPDistanceRatio is the rough coordinate movement expected per KP
	// kilometer for geographic coordinates, in degrees. Deliberately a
	// flat heuristic, not a geodesic computation.
	KPDistanceRatio float64 `json:"kp_distance_ratio" yaml:"kp_distance_ratio"`
}

// DefaultParams returns the standard position quality parameters.
func DefaultParams() Params {
	return Params{
		JumpThreshold:       0.1,
		ReversalThreshold:   0.0001,
		CrossTrackThreshold: 5.0,
		MinSegmentLength:    5,
		KPDistanceRatio:     0.01,
	}
}

// Validate checks parameter sanity before any analysis runs.
func (p Params) Validate() error {
	if p.JumpThreshold <= 0 {
		return fmt.Errorf("jump threshold must be positive, got %v", p.JumpThreshold)
	}
	if p.ReversalThreshold <= 0 {
		return fmt.Errorf("reversal threshold must be positive, got %v", p.ReversalThreshold)
	}
	if p.CrossTrackThreshold <= 0 {
		return fmt.Errorf("cross-track threshold must be positive, got %v", p.CrossTrackThreshold)
	}
	if p.MinSegmentLength < 1 {
		return fmt.Errorf("min segment length must be at least 1, got %d", p.MinSegmentLength)
	}
	if p.KPDistanceRatio <= 0 {
		return fmt.Errorf("kp distance ratio must be positive, got %v", p.KPDistanceRatio)
	}
	return nil
}

// Segment is a sustained run of poor position quality.
type Segment struct {
	ID           int     `json:"id"`
	StartIndex   int     `json:"start_index"`
	EndIndex     int     `json:"end_index"`
	StartKP      float64 `json:"start_kp"`
	EndKP        float64 `json:"end_kp"`
	LengthKP     float64 `json:"length_kp"`
	PointCount   int     `json:"point_count"`
	AvgScore     float64 `json:"avg_quality_score"`
	HasJumps     bool    `json:"has_kp_jumps"`
	HasReversals bool    `json:"has_kp_reversals"`
	MaxDCC       float64 `json:"max_dcc"` // largest absolute cross-track deviation
	AvgDCC       float64 `json:"avg_dcc"`
	Severity     string  `json:"severity"`
}

// DCCStats summarize absolute cross-track deviations across a run.
type DCCStats struct {
	Max              float64 `json:"max"`
	Mean             float64 `json:"mean"`
	P95              float64 `json:"p95"`
	SignificantCount int     `json:"significant_count"`
}

// Summary aggregates one position analysis run.
type Summary struct {
	TotalPoints   int            `json:"total_points"`
	KPStart       float64        `json:"kp_start"`
	KPEnd         float64        `json:"kp_end"`
	KPLength      float64        `json:"kp_length"`
	QualityCounts map[string]int `json:"quality_counts"`
	Jumps         int            `json:"kp_jumps"`
	Reversals     int            `json:"kp_reversals"`
	Duplicates    int            `json:"kp_duplicates"`
	AvgScore      float64        `json:"avg_quality_score"`
	SegmentCount  int            `json:"segment_count"`
	DCC           *DCCStats      `json:"dcc_statistics,omitempty"`
}

// Result is the immutable outcome of one analysis call.
type Result struct {
	Data     *dataset.Dataset `json:"-"`
	Segments []Segment        `json:"segments"`
	Summary  Summary          `json:"summary"`
}

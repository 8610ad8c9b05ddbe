package position

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
)

// reversalSeriesKP walks forward at 1m increments, slides backwards for
// six records, then recovers. The median increment stays at 0.001.
func reversalSeriesKP() []float64 {
	return []float64{
		0.000, 0.001, 0.002, 0.003, 0.004,
		0.0035, 0.003, 0.0025, 0.002, 0.0015, 0.001,
		0.002, 0.003, 0.004, 0.005,
	}
}

// TestSegmentDetection tests that poor-quality runs become segments and
// that reversal severity takes precedence over jump severity.
func TestSegmentDetection(t *testing.T) {
	kp := append(reversalSeriesKP(),
		// Five consecutive 501m jumps, then steady again.
		0.506, 1.007, 1.508, 2.009, 2.510, 2.511, 2.512)
	ds, b := bindKP(t, kp)

	a := testAnalyzer(t, DefaultParams())
	res, err := a.Analyze(context.Background(), ds, b)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Summary.Reversals)
	assert.Equal(t, 5, res.Summary.Jumps)
	assert.Equal(t, 0, res.Summary.Duplicates)
	assert.Equal(t, 11, res.Summary.QualityCounts[QualityPoor])
	assert.Equal(t, 11, res.Summary.QualityCounts[QualityGood])
	assert.Equal(t, 2, res.Summary.SegmentCount)
	assert.InDelta(t, 2.512, res.Summary.KPLength, 1e-9)

	require.Len(t, res.Segments, 2)

	rev := res.Segments[0]
	assert.Equal(t, 1, rev.ID)
	assert.Equal(t, 5, rev.StartIndex)
	assert.Equal(t, 10, rev.EndIndex)
	assert.Equal(t, 6, rev.PointCount)
	assert.InDelta(t, 0.0035, rev.StartKP, 1e-9)
	assert.InDelta(t, 0.001, rev.EndKP, 1e-9)
	assert.True(t, rev.HasReversals)
	assert.Equal(t, analysis.SeverityHigh, rev.Severity)
	assert.Equal(t, 0.0, rev.AvgScore)

	jump := res.Segments[1]
	assert.Equal(t, 2, jump.ID)
	assert.Equal(t, 15, jump.StartIndex)
	assert.Equal(t, 19, jump.EndIndex)
	assert.Equal(t, 5, jump.PointCount)
	assert.True(t, jump.HasJumps)
	assert.False(t, jump.HasReversals)
	assert.Equal(t, analysis.SeverityMedium, jump.Severity,
		"jump severity applies even with a zero average score")
}

func TestShortPoorRunsDiscarded(t *testing.T) {
	// Four consecutive reversals: poor quality, but below the default
	// minimum segment length of five.
	kp := []float64{
		0.000, 0.001, 0.002,
		0.0015, 0.001, 0.0005, 0.000,
		0.001, 0.002, 0.003,
	}
	ds, b := bindKP(t, kp)

	a := testAnalyzer(t, DefaultParams())
	res, err := a.Analyze(context.Background(), ds, b)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Equal(t, 4, res.Summary.Reversals, "reversals still counted")

	params := DefaultParams()
	params.MinSegmentLength = 3
	short := testAnalyzer(t, params)
	res, err = short.Analyze(context.Background(), ds, b)
	require.NoError(t, err)
	require.Len(t, res.Segments, 1)
	assert.Equal(t, 3, res.Segments[0].StartIndex)
	assert.Equal(t, 6, res.Segments[0].EndIndex)
	assert.Equal(t, analysis.SeverityHigh, res.Segments[0].Severity)
}

// TestSegmentSeverityFromScores tests the score-based severity rules on
// runs that have neither jumps nor reversals, just drifting increments.
func TestSegmentSeverityFromScores(t *testing.T) {
	tests := []struct {
		name     string
		kp       []float64
		avgScore float64
		severity string
	}{
		{
			// Five increments at a quarter of the median.
			name: "medium below half score",
			kp: []float64{
				0.000, 0.001, 0.002,
				0.00225, 0.0025, 0.00275, 0.003, 0.00325,
				0.00425, 0.00525, 0.00625, 0.00725, 0.00825, 0.00925,
			},
			avgScore: 0.2227,
			severity: analysis.SeverityMedium,
		},
		{
			// Five increments at a fifth of the median.
			name: "high below fifth score",
			kp: []float64{
				0.000, 0.001, 0.002,
				0.0022, 0.0024, 0.0026, 0.0028, 0.003,
				0.004, 0.005, 0.006, 0.007, 0.008, 0.009,
			},
			avgScore: 0.1824,
			severity: analysis.SeverityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, b := bindKP(t, tt.kp)
			a := testAnalyzer(t, DefaultParams())
			res, err := a.Analyze(context.Background(), ds, b)
			require.NoError(t, err)

			require.Len(t, res.Segments, 1)
			seg := res.Segments[0]
			assert.Equal(t, 3, seg.StartIndex)
			assert.Equal(t, 7, seg.EndIndex)
			assert.False(t, seg.HasJumps)
			assert.False(t, seg.HasReversals)
			assert.InDelta(t, tt.avgScore, seg.AvgScore, 1e-3)
			assert.Equal(t, tt.severity, seg.Severity)
		})
	}
}

func TestSegmentDCCStats(t *testing.T) {
	kp := reversalSeriesKP()
	dcc := make([]float64, len(kp))
	for i := range dcc {
		dcc[i] = 2.0
	}
	dcc[6], dcc[7], dcc[8] = 8.0, 8.0, 8.0

	ds, _ := bindKP(t, kp)
	require.NoError(t, ds.SetFloats("DCC", dcc))
	b, err := dataset.Bind(ds, dataset.Schema{Depth: "DOB", KP: "KP", CrossTrack: "DCC"})
	require.NoError(t, err)

	a := testAnalyzer(t, DefaultParams())
	res, err := a.Analyze(context.Background(), ds, b)
	require.NoError(t, err)

	require.Len(t, res.Segments, 1)
	seg := res.Segments[0]
	assert.InDelta(t, 8.0, seg.MaxDCC, 1e-9)
	assert.InDelta(t, 5.0, seg.AvgDCC, 1e-9)

	require.NotNil(t, res.Summary.DCC)
	assert.InDelta(t, 8.0, res.Summary.DCC.Max, 1e-9)
	assert.InDelta(t, 3.2, res.Summary.DCC.Mean, 1e-9)
	assert.Equal(t, 3, res.Summary.DCC.SignificantCount)
}

func TestGranularOperations(t *testing.T) {
	ds, b := bindKP(t, reversalSeriesKP())
	a := testAnalyzer(t, DefaultParams())

	quality, err := a.AnalyzeQuality(context.Background(), ds, b)
	require.NoError(t, err)
	assert.Empty(t, quality.Segments, "quality pass does not segment")
	assert.Equal(t, 0, quality.Summary.SegmentCount)
	assert.Equal(t, 6, quality.Summary.Reversals)
	assert.True(t, quality.Data.Has(ColQualityScore))

	segments, err := a.DetectSegments(context.Background(), ds, b)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 5, segments[0].StartIndex)
}

func TestStandardizedEnvelope(t *testing.T) {
	kp := append(reversalSeriesKP(),
		0.506, 1.007, 1.508, 2.009, 2.510, 2.511, 2.512)
	ds, b := bindKP(t, kp)

	a := testAnalyzer(t, DefaultParams())
	res, err := a.Analyze(context.Background(), ds, b)
	require.NoError(t, err)

	std := res.Standardized()
	assert.Equal(t, 2, std.ProblemSections.Total)
	assert.Equal(t, 1, std.ProblemSections.SeverityBreakdown["high"].Count)
	assert.Equal(t, 1, std.ProblemSections.SeverityBreakdown["medium"].Count)

	require.Len(t, std.ProblemSections.Details, 2)
	assert.Equal(t, "KP reversals present", std.ProblemSections.Details[0].Detail)
	assert.Equal(t, "KP jumps present", std.ProblemSections.Details[1].Detail)
	assert.InDelta(t, 2004.0, std.ProblemSections.Details[1].Length, 1e-6,
		"segment lengths are reported in metres")

	assert.Equal(t, 5, std.Anomalies["kp_jumps"])
	assert.Equal(t, 6, std.Anomalies["kp_reversals"])
	assert.Equal(t, 0, std.Anomalies["kp_duplicates"])

	assert.InDelta(t, 22.0, std.Metrics["total_points"], 1e-9)
	assert.InDelta(t, 2.512, std.Metrics["kp_length"], 1e-9)
	assert.InDelta(t, 11.0, std.Metrics["poor_points"], 1e-9)

	assert.Equal(t, []string{
		"Review position data sequence and direction",
		"Investigate KP continuity issues",
		"Review position data quality in these sections",
	}, std.Recommendations)
}

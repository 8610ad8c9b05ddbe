package depth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
)

// TestComplianceColumns tests the per-record target comparison output.
func TestComplianceColumns(t *testing.T) {
	a := testAnalyzer(t, DefaultParams())
	ds, b := bindDepths(t, []float64{2.0, 1.5, 1.0, 0.5, 1.8})

	res, err := a.AnalyzeCompliance(context.Background(), ds, b)
	require.NoError(t, err)

	meets, _ := res.Data.Bools(ColMeetsTarget)
	assert.Equal(t, []bool{true, true, false, false, true}, meets, "exactly on target counts as compliant")

	deficits, _ := res.Data.Floats(ColDepthDeficit)
	assert.InDelta(t, 0.0, deficits[0], 1e-9)
	assert.InDelta(t, 0.5, deficits[2], 1e-9)
	assert.InDelta(t, 1.0, deficits[3], 1e-9)

	for i := range deficits {
		if dataset.IsMissing(deficits[i]) {
			continue
		}
		assert.GreaterOrEqual(t, deficits[i], 0.0)
		assert.Equal(t, meets[i], deficits[i] == 0, "record %d: compliant exactly when deficit is zero", i)
	}

	pct, _ := res.Data.Floats(ColTargetPct)
	assert.InDelta(t, 133.3, pct[0], 1e-9)
	assert.InDelta(t, 100.0, pct[1], 1e-9)
	assert.InDelta(t, 66.7, pct[2], 1e-9)
	assert.InDelta(t, 33.3, pct[3], 1e-9)

	ids, _ := res.Data.Floats(ColSectionID)
	assert.True(t, dataset.IsMissing(ids[0]))
	assert.InDelta(t, 1.0, ids[2], 1e-9)
	assert.InDelta(t, 1.0, ids[3], 1e-9)
	assert.True(t, dataset.IsMissing(ids[4]))

	require.Len(t, res.Sections, 1)
	s := res.Sections[0]
	assert.InDelta(t, 0.5, s.MinDepth, 1e-9)
	assert.InDelta(t, 1.0, s.MaxDepth, 1e-9)
	assert.InDelta(t, 0.75, s.AvgDepth, 1e-9)
	assert.InDelta(t, 1.0, s.MaxDeficit, 1e-9)
	assert.Equal(t, analysis.SeverityHigh, s.Severity)
}

func TestMissingDepthIsNonCompliant(t *testing.T) {
	a := testAnalyzer(t, DefaultParams())
	ds, b := bindDepths(t, []float64{1.6, dataset.Missing(), 1.6})

	res, err := a.Analyze(context.Background(), ds, b)
	require.NoError(t, err)

	assert.Empty(t, res.Anomalies, "a gap is not an anomaly")

	meets, _ := res.Data.Bools(ColMeetsTarget)
	assert.Equal(t, []bool{true, false, true}, meets)

	deficits, _ := res.Data.Floats(ColDepthDeficit)
	assert.True(t, dataset.IsMissing(deficits[1]))

	require.Len(t, res.Sections, 1)
	s := res.Sections[0]
	assert.Equal(t, 1, s.StartIndex)
	assert.Equal(t, 1, s.EndIndex)
	assert.Equal(t, analysis.SeverityLow, s.Severity, "no measured depth, no measurable deficit")
}

// TestSectionsSortedByUrgency tests the section ordering contract:
// severity High before Medium before Low, ties by descending deficit,
// positional ids preserved.
func TestSectionsSortedByUrgency(t *testing.T) {
	a := testAnalyzer(t, DefaultParams())
	ds, b := bindDepths(t, []float64{0.2, 1.6, 1.1, 1.6, 0.7, 0.6, 1.6, 1.45})

	res, err := a.AnalyzeCompliance(context.Background(), ds, b)
	require.NoError(t, err)

	require.Len(t, res.Sections, 4)

	var ids []int
	var sevs []string
	for _, s := range res.Sections {
		ids = append(ids, s.ID)
		sevs = append(sevs, s.Severity)
	}
	assert.Equal(t, []int{1, 3, 2, 4}, ids)
	assert.Equal(t, []string{
		analysis.SeverityHigh,
		analysis.SeverityHigh,
		analysis.SeverityMedium,
		analysis.SeverityLow,
	}, sevs)

	assert.Greater(t, res.Sections[0].MaxDeficit, res.Sections[1].MaxDeficit,
		"within a severity, worst deficit first")
}

func TestSectionBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		depths   []float64
		expected [][2]int // start and end index per section, positional order
	}{
		{
			name:     "starts non-compliant",
			depths:   []float64{0.5, 0.5, 1.6, 1.6, 1.6},
			expected: [][2]int{{0, 1}},
		},
		{
			name:     "ends non-compliant",
			depths:   []float64{1.6, 1.6, 1.6, 0.5, 0.5},
			expected: [][2]int{{3, 4}},
		},
		{
			name:     "fully compliant",
			depths:   []float64{1.6, 1.7, 1.8, 1.9, 2.0},
			expected: nil,
		},
		{
			name:     "fully non-compliant",
			depths:   []float64{0.5, 0.6, 0.5, 0.6, 0.5},
			expected: [][2]int{{0, 4}},
		},
		{
			name:     "adjacent runs split by one compliant record",
			depths:   []float64{0.5, 1.6, 0.5, 1.6, 0.5},
			expected: [][2]int{{0, 0}, {2, 2}, {4, 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAnalyzer(t, DefaultParams())
			ds, b := bindDepths(t, tt.depths)

			res, err := a.AnalyzeCompliance(context.Background(), ds, b)
			require.NoError(t, err)
			require.Len(t, res.Sections, len(tt.expected))

			got := make([][2]int, 0, len(res.Sections))
			for _, s := range res.Sections {
				got = append(got, [2]int{s.StartIndex, s.EndIndex})
			}
			// Sections come back urgency-sorted; compare as sets keyed
			// by their positional id.
			for _, s := range res.Sections {
				assert.Equal(t, tt.expected[s.ID-1], [2]int{s.StartIndex, s.EndIndex})
			}
			assert.Len(t, got, len(tt.expected))
		})
	}
}

func TestEmptyResultsAreNotErrors(t *testing.T) {
	a := testAnalyzer(t, DefaultParams())
	ds, b := bindDepths(t, []float64{1.6, 1.7, 1.8, 1.9, 2.0})

	res, err := a.Analyze(context.Background(), ds, b)
	require.NoError(t, err)

	assert.Empty(t, res.Anomalies)
	assert.Empty(t, res.Sections)
	assert.InDelta(t, 100.0, res.Summary.CompliancePct, 1e-9)

	std := res.Standardized()
	assert.Equal(t, 0, std.ProblemSections.Total)
	assert.Empty(t, std.Recommendations)
}

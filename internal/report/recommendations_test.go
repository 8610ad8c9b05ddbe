package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
)

func TestBuildRecommendations(t *testing.T) {
	depthRes := &depth.Result{
		Sections: []depth.Section{
			{ID: 1, Severity: analysis.SeverityHigh},
			{ID: 2, Severity: analysis.SeverityHigh},
			{ID: 3, Severity: analysis.SeverityLow},
		},
	}
	posRes := &position.Result{
		Segments: []position.Segment{
			{ID: 1, Severity: analysis.SeverityMedium},
		},
		Summary: position.Summary{Jumps: 3, Reversals: 2},
	}

	recs := BuildRecommendations(depthRes, posRes)
	require.Len(t, recs, 5)

	// Most urgent first.
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t,
			analysis.SeverityRank(recs[i-1].Severity),
			analysis.SeverityRank(recs[i].Severity))
	}

	assert.Equal(t, Recommendation{
		Category:    CategoryDepth,
		Severity:    analysis.SeverityHigh,
		Description: "Found 2 high severity burial depth issues",
		Action:      "Remedial burial required for these sections",
	}, recs[0])
	assert.Equal(t, Recommendation{
		Category:    CategoryPosition,
		Severity:    analysis.SeverityHigh,
		Description: "Found 2 KP reversals",
		Action:      "Review position data sequence and direction",
	}, recs[1])

	assert.Contains(t, recs, Recommendation{
		Category:    CategoryPosition,
		Severity:    analysis.SeverityMedium,
		Description: "Found 1 medium severity position issues",
		Action:      "Review position data quality in these sections",
	})
	assert.Contains(t, recs, Recommendation{
		Category:    CategoryPosition,
		Severity:    analysis.SeverityMedium,
		Description: "Found 3 KP jumps",
		Action:      "Investigate KP continuity issues",
	})
	assert.Contains(t, recs, Recommendation{
		Category:    CategoryDepth,
		Severity:    analysis.SeverityLow,
		Description: "Found 3 low severity burial depth issues",
		Action:      "Monitor these sections during maintenance",
	})
}

func TestBuildRecommendationsDepthOnly(t *testing.T) {
	depthRes := &depth.Result{
		Sections: []depth.Section{{ID: 1, Severity: analysis.SeverityMedium}},
	}

	recs := BuildRecommendations(depthRes, nil)
	require.Len(t, recs, 1)
	assert.Equal(t, "Found 1 medium severity burial depth issues", recs[0].Description)
	assert.Equal(t, "Consider additional protection for these sections", recs[0].Action)
}

func TestBuildRecommendationsEmpty(t *testing.T) {
	assert.Empty(t, BuildRecommendations(nil, nil))
	assert.Empty(t, BuildRecommendations(&depth.Result{}, &position.Result{}))
}

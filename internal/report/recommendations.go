package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
)

// Recommendation is one actionable finding derived from the analysis
// results.
type Recommendation struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// Recommendation categories.
const (
	CategoryDepth    = "Depth"
	CategoryPosition = "Position"
)

// BuildRecommendations derives report recommendations from the analysis
// results. Either result may be nil when that analysis did not run. The
// list is ordered by severity, most urgent first, with depth findings
// before position findings within a grade.
func BuildRecommendations(depthRes *depth.Result, posRes *position.Result) []Recommendation {
	var recs []Recommendation

	if depthRes != nil {
		counts := severityCounts(len(depthRes.Sections), func(i int) string { return depthRes.Sections[i].Severity })
		if n := counts[analysis.SeverityHigh]; n > 0 {
			recs = append(recs, Recommendation{
				Category:    CategoryDepth,
				Severity:    analysis.SeverityHigh,
				Description: fmt.Sprintf("Found %d high severity burial depth issues", n),
				Action:      "Remedial burial required for these sections",
			})
		}
		if n := counts[analysis.SeverityMedium]; n > 0 {
			recs = append(recs, Recommendation{
				Category:    CategoryDepth,
				Severity:    analysis.SeverityMedium,
				Description: fmt.Sprintf("Found %d medium severity burial depth issues", n),
				Action:      "Consider additional protection for these sections",
			})
		}
		if n := counts[analysis.SeverityLow]; n > 0 {
			recs = append(recs, Recommendation{
				Category:    CategoryDepth,
				Severity:    analysis.SeverityLow,
				Description: fmt.Sprintf("Found %d low severity burial depth issues", n),
				Action:      "Monitor these sections during maintenance",
			})
		}
	}

	if posRes != nil {
		counts := severityCounts(len(posRes.Segments), func(i int) string { return posRes.Segments[i].Severity })
		for _, severity := range []string{analysis.SeverityHigh, analysis.SeverityMedium, analysis.SeverityLow} {
			n := counts[severity]
			if n == 0 {
				continue
			}
			recs = append(recs, Recommendation{
				Category:    CategoryPosition,
				Severity:    severity,
				Description: fmt.Sprintf("Found %d %s severity position issues", n, strings.ToLower(severity)),
				Action:      "Review position data quality in these sections",
			})
		}

		if n := posRes.Summary.Jumps; n > 0 {
			recs = append(recs, Recommendation{
				Category:    CategoryPosition,
				Severity:    analysis.SeverityMedium,
				Description: fmt.Sprintf("Found %d KP jumps", n),
				Action:      "Investigate KP continuity issues",
			})
		}
		if n := posRes.Summary.Reversals; n > 0 {
			recs = append(recs, Recommendation{
				Category:    CategoryPosition,
				Severity:    analysis.SeverityHigh,
				Description: fmt.Sprintf("Found %d KP reversals", n),
				Action:      "Review position data sequence and direction",
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return analysis.SeverityRank(recs[i].Severity) < analysis.SeverityRank(recs[j].Severity)
	})
	return recs
}

func severityCounts(n int, severityAt func(int) string) map[string]int {
	counts := make(map[string]int, 3)
	for i := 0; i < n; i++ {
		counts[severityAt(i)]++
	}
	return counts
}

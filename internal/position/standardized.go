package position

import (
	"github.com/tomdowns/cbatool/internal/analysis"
)

// Standardized reduces the result to the envelope shared by all
// analyzers. Segment lengths are reported in meters to match the depth
// analyzer's sections.
func (r *Result) Standardized() analysis.Standardized {
	details := make([]analysis.SectionDetail, 0, len(r.Segments))
	for _, s := range r.Segments {
		details = append(details, analysis.SectionDetail{
			ID:         s.ID,
			StartPos:   s.StartKP,
			EndPos:     s.EndKP,
			Length:     s.LengthKP * 1000,
			PointCount: s.PointCount,
			Severity:   s.Severity,
			Detail:     s.issue(),
		})
	}

	anomalies := map[string]int{
		"kp_jumps":      r.Summary.Jumps,
		"kp_reversals":  r.Summary.Reversals,
		"kp_duplicates": r.Summary.Duplicates,
	}

	metrics := map[string]float64{
		"total_points":      float64(r.Summary.TotalPoints),
		"kp_length":         r.Summary.KPLength,
		"avg_quality_score": r.Summary.AvgScore,
		"good_points":       float64(r.Summary.QualityCounts[QualityGood]),
		"suspect_points":    float64(r.Summary.QualityCounts[QualitySuspect]),
		"poor_points":       float64(r.Summary.QualityCounts[QualityPoor]),
	}

	return analysis.Standardized{
		ProblemSections: analysis.Summarize(details),
		Anomalies:       anomalies,
		Metrics:         metrics,
		Recommendations: r.recommendations(),
	}
}

func (s Segment) issue() string {
	switch {
	case s.HasReversals:
		return "KP reversals present"
	case s.HasJumps:
		return "KP jumps present"
	default:
		return "Low position quality scores"
	}
}

// recommendations derives report advice, most urgent first.
func (r *Result) recommendations() []string {
	var recs []string
	if r.Summary.Reversals > 0 {
		recs = append(recs, "Review position data sequence and direction")
	}
	if r.Summary.Jumps > 0 {
		recs = append(recs, "Investigate KP continuity issues")
	}
	if len(r.Segments) > 0 {
		recs = append(recs, "Review position data quality in these sections")
	}
	return recs
}

package depth

import (
	"github.com/tomdowns/cbatool/internal/analysis"
)

// Standardized reduces the result to the envelope shared by all
// analyzers.
func (r *Result) Standardized() analysis.Standardized {
	details := make([]analysis.SectionDetail, 0, len(r.Sections))
	for _, s := range r.Sections {
		details = append(details, analysis.SectionDetail{
			ID:         s.ID,
			StartPos:   s.StartPos,
			EndPos:     s.EndPos,
			Length:     s.Length,
			PointCount: s.PointCount,
			Severity:   s.Severity,
			Detail:     s.Recommendation,
		})
	}

	anomalies := map[string]int{
		"total":  r.Summary.AnomalyCount,
		"high":   r.Summary.SeverityCounts[analysis.SeverityHigh],
		"medium": r.Summary.SeverityCounts[analysis.SeverityMedium],
		"low":    r.Summary.SeverityCounts[analysis.SeverityLow],
	}

	metrics := map[string]float64{
		"total_points":          float64(r.Summary.TotalPoints),
		"anomaly_percentage":    r.Summary.AnomalyPercentage,
		"compliance_percentage": r.Summary.CompliancePct,
		"problem_section_count": float64(r.Summary.SectionCount),
		"total_problem_length":  r.Summary.TotalProblemLength,
	}

	return analysis.Standardized{
		ProblemSections: analysis.Summarize(details),
		Anomalies:       anomalies,
		Metrics:         metrics,
		Recommendations: r.recommendations(),
	}
}

// recommendations derives report advice from the severities present,
// most urgent first.
func (r *Result) recommendations() []string {
	present := make(map[string]bool, 3)
	for _, s := range r.Sections {
		present[s.Severity] = true
	}

	var recs []string
	if present[analysis.SeverityHigh] {
		recs = append(recs, "Remedial burial required for these sections")
	}
	if present[analysis.SeverityMedium] {
		recs = append(recs, "Consider additional protection for these sections")
	}
	if present[analysis.SeverityLow] {
		recs = append(recs, "Monitor these sections during maintenance")
	}
	return recs
}

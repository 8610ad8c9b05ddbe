// Package analysis holds the result vocabulary shared by the depth and
// position analyzers: severity grading and the standardized result
// envelope that reporting, the HTTP API and the CLI consume uniformly.
package analysis

import "strings"

// Severity grades for anomalies, problem sections and segments.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// SeverityRank orders severities with the most urgent first. Unknown
// severities sort last.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// SeverityDescription returns the reporting description of a severity
// grade.
func SeverityDescription(severity string) string {
	switch severity {
	case SeverityHigh:
		return "Critical issue requiring immediate attention"
	case SeverityMedium:
		return "Significant issue that should be addressed"
	case SeverityLow:
		return "Minor issue that may require monitoring"
	default:
		return "Unclassified issue"
	}
}

// SeverityBucket aggregates problem sections of one severity.
type SeverityBucket struct {
	Count       int     `json:"count"`
	TotalLength float64 `json:"total_length"`
}

// SectionDetail is one problem section or segment in analyzer-neutral
// form. Positions are KP kilometers when a KP column was bound, raw
// position-column values otherwise, row indexes as the last resort.
type SectionDetail struct {
	ID         int     `json:"id"`
	StartPos   float64 `json:"start_position"`
	EndPos     float64 `json:"end_position"`
	Length     float64 `json:"length"`
	PointCount int     `json:"point_count"`
	Severity   string  `json:"severity"`
	Detail     string  `json:"detail,omitempty"`
}

// ProblemSections summarizes the flagged sections of one analyzer run.
type ProblemSections struct {
	Total             int                       `json:"total"`
	SeverityBreakdown map[string]SeverityBucket `json:"severity_breakdown"`
	Details           []SectionDetail           `json:"details"`
}

// Standardized is the envelope every analyzer reduces its result to.
// The shape is fixed so consumers never need to know which analyzer
// produced it.
type Standardized struct {
	ProblemSections ProblemSections    `json:"problem_sections"`
	Anomalies       map[string]int     `json:"anomalies"`
	Metrics         map[string]float64 `json:"metrics"`
	Recommendations []string           `json:"recommendations"`
}

// Summarize builds the ProblemSections block from neutral details. The
// high/medium/low buckets are always present so the JSON shape stays
// stable even when a run finds nothing.
func Summarize(details []SectionDetail) ProblemSections {
	ps := ProblemSections{
		Total: len(details),
		SeverityBreakdown: map[string]SeverityBucket{
			"high":   {},
			"medium": {},
			"low":    {},
		},
		Details: details,
	}
	for _, d := range details {
		key := strings.ToLower(d.Severity)
		b := ps.SeverityBreakdown[key]
		b.Count++
		b.TotalLength += d.Length
		ps.SeverityBreakdown[key] = b
	}
	return ps
}

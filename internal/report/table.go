package report

import (
	"fmt"
	"strconv"

	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
)

// Table is one report table, shared by the CSV and Excel writers. Cells
// hold native values so Excel keeps numeric columns sortable; nil marks
// a missing measurement.
type Table struct {
	Headers []string
	Records [][]any
	// SeverityCol is the column whose cells are color graded by
	// severity in Excel output, -1 when the table has none.
	SeverityCol int
}

// Empty reports whether the table has no records.
func (t Table) Empty() bool { return len(t.Records) == 0 }

// AnomalyTable lists every flagged depth record.
func AnomalyTable(anomalies []depth.Anomaly) Table {
	t := Table{
		Headers:     []string{"Index", "Position", "Depth (m)", "Anomaly Type", "Severity"},
		Records:     make([][]any, 0, len(anomalies)),
		SeverityCol: 4,
	}
	for _, a := range anomalies {
		t.Records = append(t.Records, []any{a.Index, a.Position, a.Depth, a.Type, a.Severity})
	}
	return t
}

// DepthSectionTable lists the non-compliant burial sections. Positions
// and lengths are in the axis units the analysis ran with.
func DepthSectionTable(sections []depth.Section) Table {
	t := Table{
		Headers: []string{
			"Section ID", "Start Position", "End Position", "Length", "Points",
			"Min Depth (m)", "Max Depth (m)", "Avg Depth (m)", "Max Deficit (m)",
			"Target Achieved (%)", "Severity", "Recommendation",
		},
		Records:     make([][]any, 0, len(sections)),
		SeverityCol: 10,
	}
	for _, s := range sections {
		t.Records = append(t.Records, []any{
			s.ID, s.StartPos, s.EndPos, s.Length, s.PointCount,
			s.MinDepth, s.MaxDepth, s.AvgDepth, s.MaxDeficit,
			s.TargetPct, s.Severity, s.Recommendation,
		})
	}
	return t
}

// PositionSegmentTable lists the sustained poor position quality runs.
func PositionSegmentTable(segments []position.Segment) Table {
	t := Table{
		Headers: []string{
			"Segment ID", "Start KP", "End KP", "Length (km)", "Points",
			"Avg Quality Score", "KP Jumps", "KP Reversals",
			"Max DCC (m)", "Avg DCC (m)", "Severity",
		},
		Records:     make([][]any, 0, len(segments)),
		SeverityCol: 10,
	}
	for _, s := range segments {
		t.Records = append(t.Records, []any{
			s.ID, s.StartKP, s.EndKP, s.LengthKP, s.PointCount,
			s.AvgScore, yesNo(s.HasJumps), yesNo(s.HasReversals),
			s.MaxDCC, s.AvgDCC, s.Severity,
		})
	}
	return t
}

// RecommendationTable lists report recommendations, most urgent first.
func RecommendationTable(recs []Recommendation) Table {
	t := Table{
		Headers:     []string{"Category", "Severity", "Description", "Action"},
		Records:     make([][]any, 0, len(recs)),
		SeverityCol: 1,
	}
	for _, r := range recs {
		t.Records = append(t.Records, []any{r.Category, r.Severity, r.Description, r.Action})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// formatCell renders one table cell for CSV output. Missing floats
// become empty fields.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if dataset.IsMissing(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(v)
	}
}

// csvRecords renders a table's records for the CSV writer.
func csvRecords(t Table) [][]string {
	records := make([][]string, 0, len(t.Records))
	for _, row := range t.Records {
		rec := make([]string, len(row))
		for i, cell := range row {
			rec[i] = formatCell(cell)
		}
		records = append(records, rec)
	}
	return records
}

package report

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/position"
)

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

func TestWriteTableWorkbook(t *testing.T) {
	w := NewExcelWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "anomaly_report.xlsx")

	tbl := AnomalyTable([]depth.Anomaly{
		{Index: 3, Position: 0.15, Depth: 0.4, Type: depth.ReasonBelowMin, Severity: analysis.SeverityHigh},
		{Index: 9, Position: 0.45, Depth: 1.2, Type: "Sudden depth change (0.75m)", Severity: analysis.SeverityLow},
	})
	require.NoError(t, w.WriteTableWorkbook(path, "Anomalies", tbl))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{"Anomalies"}, f.GetSheetList())
	assert.Equal(t, "Index", cellValue(t, f, "Anomalies", "A1"))
	assert.Equal(t, "Severity", cellValue(t, f, "Anomalies", "E1"))
	assert.Equal(t, "3", cellValue(t, f, "Anomalies", "A2"))
	assert.Equal(t, depth.ReasonBelowMin, cellValue(t, f, "Anomalies", "D2"))
	assert.Equal(t, analysis.SeverityHigh, cellValue(t, f, "Anomalies", "E2"))
	assert.Equal(t, analysis.SeverityLow, cellValue(t, f, "Anomalies", "E3"))

	// Type column sized to its longest value plus padding.
	width, err := f.GetColWidth("Anomalies", "D")
	require.NoError(t, err)
	assert.InDelta(t, float64(len(depth.ReasonBelowMin)+2), width, 0.01)
}

func TestWriteTableWorkbookCapsColumnWidth(t *testing.T) {
	w := NewExcelWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "problem_sections_report.xlsx")

	tbl := DepthSectionTable([]depth.Section{{
		ID:             1,
		Severity:       analysis.SeverityHigh,
		Recommendation: strings.Repeat("remediate ", 8),
	}})
	require.NoError(t, w.WriteTableWorkbook(path, "Problem Sections", tbl))

	f := openWorkbook(t, path)
	width, err := f.GetColWidth("Problem Sections", "L")
	require.NoError(t, err)
	assert.InDelta(t, maxColumnWidth, width, 0.01)
}

func TestWriteTableWorkbookTrimsSheetName(t *testing.T) {
	w := NewExcelWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "out.xlsx")

	long := strings.Repeat("Position Quality ", 3)
	require.NoError(t, w.WriteTableWorkbook(path, long, PositionSegmentTable(nil)))

	f := openWorkbook(t, path)
	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	assert.Len(t, sheets[0], maxSheetNameLen)
}

func summaryFixture() SummaryWorkbook {
	return SummaryWorkbook{
		Project: ProjectInfo{Name: "North Sea Export"},
		SummaryRows: [][2]any{
			{"Cable", "CAB-001"},
			{"Total Survey Points", 100},
		},
		DepthSections: DepthSectionTable([]depth.Section{
			{ID: 1, Severity: analysis.SeverityHigh, Recommendation: "Requires remedial burial"},
		}),
		Anomalies: AnomalyTable([]depth.Anomaly{
			{Index: 3, Depth: 0.4, Type: depth.ReasonBelowMin, Severity: analysis.SeverityHigh},
		}),
		Segments: PositionSegmentTable([]position.Segment{
			{ID: 1, StartKP: 1.2, EndKP: 1.3, Severity: analysis.SeverityMedium},
		}),
		Recommendations: RecommendationTable([]Recommendation{
			{Category: CategoryDepth, Severity: analysis.SeverityHigh, Description: "Found 1 high severity burial depth issues", Action: "Remedial burial required for these sections"},
		}),
	}
}

func TestWriteSummaryWorkbook(t *testing.T) {
	w := NewExcelWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "analysis_summary.xlsx")

	require.NoError(t, w.WriteSummaryWorkbook(path, summaryFixture()))

	f := openWorkbook(t, path)
	assert.Equal(t, []string{
		"Summary", "Depth Sections", "Anomalies",
		"Position Segments", "Recommendations", "Project Information",
	}, f.GetSheetList())

	assert.Equal(t, "Metric", cellValue(t, f, "Summary", "A1"))
	assert.Equal(t, "Cable", cellValue(t, f, "Summary", "A2"))
	assert.Equal(t, "CAB-001", cellValue(t, f, "Summary", "B2"))
	assert.Equal(t, "100", cellValue(t, f, "Summary", "B3"))

	assert.Equal(t, analysis.SeverityHigh, cellValue(t, f, "Depth Sections", "K2"))
	assert.Equal(t, depth.ReasonBelowMin, cellValue(t, f, "Anomalies", "D2"))
	assert.Equal(t, analysis.SeverityMedium, cellValue(t, f, "Position Segments", "K2"))
	assert.Equal(t, CategoryDepth, cellValue(t, f, "Recommendations", "A2"))

	assert.Equal(t, "Project Name", cellValue(t, f, "Project Information", "A2"))
	assert.Equal(t, "North Sea Export", cellValue(t, f, "Project Information", "B2"))
	assert.Equal(t, "N/A", cellValue(t, f, "Project Information", "B3"))

	generated := cellValue(t, f, "Project Information", "B5")
	_, err := time.Parse("2006-01-02 15:04", generated)
	assert.NoError(t, err, "Report Generated timestamp: %q", generated)
}

func TestWriteSummaryWorkbookEmbedsSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "cable_burial_analysis.png")
	writeTestPNG(t, snapshot)

	wb := summaryFixture()
	wb.SnapshotPath = snapshot

	w := NewExcelWriter(discardLogger())
	path := filepath.Join(dir, "analysis_summary.xlsx")
	require.NoError(t, w.WriteSummaryWorkbook(path, wb))

	// Anchored below the two summary rows.
	f := openWorkbook(t, path)
	pics, err := f.GetPictures("Summary", "A5")
	require.NoError(t, err)
	assert.Len(t, pics, 1)
}

func TestWriteSummaryWorkbookMissingSnapshot(t *testing.T) {
	wb := summaryFixture()
	wb.SnapshotPath = filepath.Join(t.TempDir(), "missing.png")

	// A missing capture degrades to a workbook without the picture.
	w := NewExcelWriter(discardLogger())
	path := filepath.Join(t.TempDir(), "analysis_summary.xlsx")
	require.NoError(t, w.WriteSummaryWorkbook(path, wb))

	f := openWorkbook(t, path)
	pics, err := f.GetPictures("Summary", "A5")
	require.NoError(t, err)
	assert.Empty(t, pics)
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, image.NewRGBA(image.Rect(0, 0, 4, 2))))
	require.NoError(t, out.Close())
}

package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// Cell fill colors, ARGB without the alpha byte.
const (
	headerFill         = "DDDDDD"
	highSeverityFill   = "FFCCCC"
	mediumSeverityFill = "FFEECC"
	lowSeverityFill    = "EEFFCC"
)

// maxColumnWidth caps auto-sized columns so long recommendation text
// does not stretch the sheet.
const maxColumnWidth = 40

// maxSheetNameLen is the Excel limit on worksheet names.
const maxSheetNameLen = 31

// ExcelWriter writes report tables and the consolidated summary as
// Excel workbooks.
type ExcelWriter struct {
	logger *slog.Logger
}

// NewExcelWriter creates a new Excel writer. A nil logger falls back to
// the application logger.
func NewExcelWriter(logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &ExcelWriter{logger: infrastructure.WithComponent(logger, "report.excel")}
}

// WriteTableWorkbook writes a single-sheet workbook holding one report
// table.
func (w *ExcelWriter) WriteTableWorkbook(path, sheet string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet %q: %w", sheet, err)
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		return err
	}
	if err := writeTable(f, sheet, t, styles); err != nil {
		return err
	}

	if err := save(f, path); err != nil {
		return err
	}

	w.logger.Info("workbook written",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("records", len(t.Records)))
	return nil
}

// SummaryWorkbook collects everything the consolidated report includes.
// Table fields left empty produce empty sheets with headers only, so
// the workbook shape stays stable across runs.
type SummaryWorkbook struct {
	Project         ProjectInfo
	SummaryRows     [][2]any // metric name, value
	DepthSections   Table
	Anomalies       Table
	Segments        Table
	Recommendations Table
	// SnapshotPath is a depth profile PNG embedded into the Summary
	// sheet when non-empty.
	SnapshotPath string
}

// WriteSummaryWorkbook writes the consolidated analysis workbook with
// the Summary, Depth Sections, Anomalies, Position Segments,
// Recommendations and Project Information sheets.
func (w *ExcelWriter) WriteSummaryWorkbook(path string, wb SummaryWorkbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), "Summary"); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		return err
	}

	if err := writePairs(f, "Summary", "Metric", "Value", wb.SummaryRows, styles); err != nil {
		return err
	}
	if wb.SnapshotPath != "" {
		if err := embedSnapshot(f, "Summary", len(wb.SummaryRows)+3, wb.SnapshotPath); err != nil {
			w.logger.Warn("snapshot not embedded",
				slog.String("path", wb.SnapshotPath),
				slog.String("error", err.Error()))
		}
	}

	sheets := []struct {
		name  string
		table Table
	}{
		{"Depth Sections", wb.DepthSections},
		{"Anomalies", wb.Anomalies},
		{"Position Segments", wb.Segments},
		{"Recommendations", wb.Recommendations},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", s.name, err)
		}
		if err := writeTable(f, s.name, s.table, styles); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Project Information"); err != nil {
		return fmt.Errorf("failed to create project sheet: %w", err)
	}
	if err := writePairs(f, "Project Information", "Field", "Value", wb.Project.rows(), styles); err != nil {
		return err
	}

	idx, err := f.GetSheetIndex("Summary")
	if err == nil {
		f.SetActiveSheet(idx)
	}

	if err := save(f, path); err != nil {
		return err
	}

	w.logger.Info("summary workbook written",
		slog.String("path", path),
		slog.Bool("snapshot_embedded", wb.SnapshotPath != ""))
	return nil
}

// ProjectInfo carries the survey metadata written to the Project
// Information sheet.
type ProjectInfo struct {
	Name       string `json:"project_name,omitempty"`
	Client     string `json:"client_name,omitempty"`
	Company    string `json:"company_name,omitempty"`
	Regulatory string `json:"regulatory_requirements,omitempty"`
}

func (p ProjectInfo) rows() [][2]any {
	return [][2]any{
		{"Project Name", orNA(p.Name)},
		{"Client Name", orNA(p.Client)},
		{"Company Name", orNA(p.Company)},
		{"Report Generated", time.Now().Format("2006-01-02 15:04")},
		{"Regulatory Requirements", orNA(p.Regulatory)},
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// sheetStyles caches the style IDs a workbook reuses across sheets.
type sheetStyles struct {
	header   int
	severity map[string]int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	})
	if err != nil {
		return sheetStyles{}, fmt.Errorf("failed to create header style: %w", err)
	}

	fills := map[string]string{
		analysis.SeverityHigh:   highSeverityFill,
		analysis.SeverityMedium: mediumSeverityFill,
		analysis.SeverityLow:    lowSeverityFill,
	}
	severity := make(map[string]int, len(fills))
	for grade, color := range fills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return sheetStyles{}, fmt.Errorf("failed to create severity style: %w", err)
		}
		severity[grade] = id
	}

	return sheetStyles{header: header, severity: severity}, nil
}

// writeTable writes one table onto a sheet: styled header row, records
// beneath, severity-graded cells and auto-sized columns.
func writeTable(f *excelize.File, sheet string, t Table, styles sheetStyles) error {
	widths := make([]int, len(t.Headers))

	for col, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
		widths[col] = len(h)
	}
	if len(t.Headers) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err := f.SetCellStyle(sheet, first, last, styles.header); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
	}

	for row, record := range t.Records {
		for col, value := range record {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("sheet %q: %w", sheet, err)
			}
			if value == nil {
				continue
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("sheet %q: %w", sheet, err)
			}
			if col < len(widths) {
				if n := len(formatCell(value)); n > widths[col] {
					widths[col] = n
				}
			}
			if col == t.SeverityCol {
				if id, ok := styles.severity[fmt.Sprint(value)]; ok {
					if err := f.SetCellStyle(sheet, cell, cell, id); err != nil {
						return fmt.Errorf("sheet %q: %w", sheet, err)
					}
				}
			}
		}
	}

	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
		w := width + 2
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, name, name, float64(w)); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
	}

	return nil
}

// writePairs writes a two-column name/value sheet.
func writePairs(f *excelize.File, sheet, nameHeader, valueHeader string, rows [][2]any, styles sheetStyles) error {
	t := Table{
		Headers:     []string{nameHeader, valueHeader},
		Records:     make([][]any, 0, len(rows)),
		SeverityCol: -1,
	}
	for _, r := range rows {
		t.Records = append(t.Records, []any{r[0], r[1]})
	}
	return writeTable(f, sheet, t, styles)
}

// embedSnapshot anchors the depth profile PNG below the summary rows.
// The capture is 1600x900, so half scale keeps it readable without
// dominating the sheet.
func embedSnapshot(f *excelize.File, sheet string, row int, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot missing: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.AddPicture(sheet, cell, path, &excelize.GraphicOptions{
		ScaleX: 0.5,
		ScaleY: 0.5,
	})
}

// sheetName trims a worksheet name to the Excel limit.
func sheetName(name string) string {
	if len(name) > maxSheetNameLen {
		return name[:maxSheetNameLen]
	}
	return name
}

func save(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

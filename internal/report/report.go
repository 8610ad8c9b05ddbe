// Package report turns analysis results into the deliverable files of a
// survey review: CSV tables for downstream tooling, Excel workbooks for
// engineers, and the consolidated analysis summary workbook that binds
// problem sections, anomalies, position segments, recommendations and
// project metadata into one document.
package report

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/position"
)

// Format selects which report families a run produces.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatBoth  Format = "both"
)

// ParseFormat validates a report format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatExcel:
		return FormatExcel, nil
	case FormatBoth:
		return FormatBoth, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want csv, xlsx or both)", s)
	}
}

func (f Format) includesCSV() bool   { return f == FormatCSV || f == FormatBoth }
func (f Format) includesExcel() bool { return f == FormatExcel || f == FormatBoth }

// Inputs collects everything one report run draws from. Depth and
// Position may each be nil when that analysis did not run; Data is the
// augmented dataset for the record-level export, nil to skip it.
type Inputs struct {
	Cable   string
	Project ProjectInfo
	Data    *dataset.Dataset

	Depth    *depth.Result
	Position *position.Result

	// SnapshotPath is the depth profile PNG embedded into the summary
	// workbook, empty when no capture is available.
	SnapshotPath string
}

// Generator writes the full report set for an analysis run.
type Generator struct {
	logger *slog.Logger
	csv    *CSVWriter
	excel  *ExcelWriter
}

// NewGenerator creates a report generator. A nil logger falls back to
// the application logger.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Generator{
		logger: infrastructure.WithComponent(logger, "report"),
		csv:    NewCSVWriter(logger),
		excel:  NewExcelWriter(logger),
	}
}

// WriteAll writes every report the inputs and format call for into dir
// and returns the paths written. File names are fixed so downstream
// consumers can address outputs without a manifest.
func (g *Generator) WriteAll(dir string, in Inputs, format Format) ([]string, error) {
	if in.Depth == nil && in.Position == nil {
		return nil, fmt.Errorf("report: no analysis results to write")
	}

	var written []string
	emit := func(path string, err error) error {
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	var (
		anomalies = AnomalyTable(nil)
		sections  = DepthSectionTable(nil)
		segments  = PositionSegmentTable(nil)
	)
	if in.Depth != nil {
		anomalies = AnomalyTable(in.Depth.Anomalies)
		sections = DepthSectionTable(in.Depth.Sections)
	}
	if in.Position != nil {
		segments = PositionSegmentTable(in.Position.Segments)
	}
	recommendations := BuildRecommendations(in.Depth, in.Position)

	if format.includesCSV() {
		if in.Depth != nil {
			path := filepath.Join(dir, csvName(config.AnomalyReportFile))
			if err := emit(path, g.csv.WriteTable(path, anomalies)); err != nil {
				return written, err
			}
			path = filepath.Join(dir, csvName(config.ProblemSectionsFile))
			if err := emit(path, g.csv.WriteTable(path, sections)); err != nil {
				return written, err
			}
		}
		if in.Position != nil {
			path := filepath.Join(dir, csvName(config.PositionReportFile))
			if err := emit(path, g.csv.WriteTable(path, segments)); err != nil {
				return written, err
			}
		}
		if in.Data != nil {
			path := filepath.Join(dir, config.AugmentedDataFile)
			if err := emit(path, g.csv.WriteDataset(path, in.Data)); err != nil {
				return written, err
			}
		}
	}

	if format.includesExcel() {
		if in.Depth != nil {
			path := filepath.Join(dir, config.ProblemSectionsFile)
			if err := emit(path, g.excel.WriteTableWorkbook(path, "Problem Sections", sections)); err != nil {
				return written, err
			}
			path = filepath.Join(dir, config.AnomalyReportFile)
			if err := emit(path, g.excel.WriteTableWorkbook(path, "Anomalies", anomalies)); err != nil {
				return written, err
			}
		}
		if in.Position != nil {
			path := filepath.Join(dir, config.PositionReportFile)
			if err := emit(path, g.excel.WriteTableWorkbook(path, "Position Segments", segments)); err != nil {
				return written, err
			}
		}

		path := filepath.Join(dir, config.SummaryWorkbookFile)
		wb := SummaryWorkbook{
			Project:         in.Project,
			SummaryRows:     summaryRows(in),
			DepthSections:   sections,
			Anomalies:       anomalies,
			Segments:        segments,
			Recommendations: RecommendationTable(recommendations),
			SnapshotPath:    in.SnapshotPath,
		}
		if err := emit(path, g.excel.WriteSummaryWorkbook(path, wb)); err != nil {
			return written, err
		}
	}

	g.logger.Info("reports generated",
		slog.String("dir", dir),
		slog.String("format", string(format)),
		slog.Int("files", len(written)))
	return written, nil
}

// summaryRows flattens the analysis summaries into the Metric/Value
// rows of the Summary sheet.
func summaryRows(in Inputs) [][2]any {
	var rows [][2]any
	add := func(metric string, value any) {
		rows = append(rows, [2]any{metric, value})
	}

	if in.Cable != "" {
		add("Cable", in.Cable)
	}

	if in.Depth != nil {
		s := in.Depth.Summary
		add("Total Survey Points", s.TotalPoints)
		add("Anomaly Count", s.AnomalyCount)
		add("Anomaly Percentage (%)", s.AnomalyPercentage)
		add("Compliance Percentage (%)", s.CompliancePct)
		add("Problem Section Count", s.SectionCount)
		if in.Depth.Axis.Kind == dataset.PositionIndex {
			add("Total Problem Extent (points)", s.TotalProblemLength)
		} else {
			add("Total Problem Length (m)", s.TotalProblemLength)
		}
	}

	if in.Position != nil {
		s := in.Position.Summary
		add("KP Start", s.KPStart)
		add("KP End", s.KPEnd)
		add("KP Length (km)", s.KPLength)
		add("KP Jumps", s.Jumps)
		add("KP Reversals", s.Reversals)
		add("KP Duplicates", s.Duplicates)
		add("Average Quality Score", s.AvgScore)
		add("Good Points", s.QualityCounts[position.QualityGood])
		add("Suspect Points", s.QualityCounts[position.QualitySuspect])
		add("Poor Points", s.QualityCounts[position.QualityPoor])
		add("Poor Quality Segments", s.SegmentCount)
		if s.DCC != nil {
			add("Max Cross-Track Deviation (m)", s.DCC.Max)
			add("Mean Cross-Track Deviation (m)", s.DCC.Mean)
			add("Significant Deviations", s.DCC.SignificantCount)
		}
	}

	return rows
}

// csvName maps an Excel report file name onto its CSV counterpart.
func csvName(xlsxName string) string {
	return strings.TrimSuffix(xlsxName, filepath.Ext(xlsxName)) + ".csv"
}

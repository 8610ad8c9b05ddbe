package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/files"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/operations"
	"github.com/tomdowns/cbatool/internal/report"
	"github.com/tomdowns/cbatool/internal/validation"
	"github.com/tomdowns/cbatool/internal/viz"
)

func main() {
	file := flag.String("file", "", "survey file to analyze (.csv or .xlsx)")
	sheet := flag.String("sheet", "", "Excel sheet name (defaults to automatic selection)")
	depthCol := flag.String("depth-col", "", "depth of burial column (defaults to automatic detection)")
	kpCol := flag.String("kp-col", "", "kilometer point column")
	positionCol := flag.String("position-col", "", "position column")
	latCol := flag.String("lat-col", "", "latitude column")
	lonCol := flag.String("lon-col", "", "longitude column")
	eastingCol := flag.String("easting-col", "", "easting column")
	northingCol := flag.String("northing-col", "", "northing column")
	dccCol := flag.String("dcc-col", "", "distance cross course column")
	target := flag.Float64("target", 0, "target burial depth in meters (defaults to the configured value)")
	out := flag.String("out", "", "output directory for reports and charts (defaults to the configured value)")
	configPath := flag.String("config", "", "path to a YAML config file")
	profile := flag.String("profile", "", "analysis profile name or path (builtins are written to the profiles directory)")
	cable := flag.String("cable", "", "cable identifier recorded in reports")
	generate := flag.Int("generate", 0, "generate a synthetic survey with n points and analyze it")
	latest := flag.Bool("latest", false, "analyze the most recent survey file in the data directory")
	format := flag.String("format", "", "report format: csv, xlsx or both (defaults to both)")
	charts := flag.Bool("charts", true, "generate HTML charts")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Interactive runs log human-readable text to the console.
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stdout"
	if *verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	if err := config.WriteBuiltinProfiles(cfg.GetProfilesDir()); err != nil {
		logger.Warn("Failed to write builtin analysis profiles", "error", err)
	}
	if *profile != "" {
		// Profiles overlay the configured parameters, so they must be
		// applied before the request is seeded from the config.
		p, err := config.LoadProfile(resolveProfilePath(cfg, *profile))
		if err != nil {
			logger.Error("Failed to load analysis profile", "error", err)
			os.Exit(1)
		}
		cfg.ApplyProfile(*p)
	}

	req := operations.NewRequest(cfg)
	req.Cable = *cable
	req.Sheet = *sheet
	req.Schema = dataset.Schema{
		Depth:      *depthCol,
		KP:         *kpCol,
		Position:   *positionCol,
		Latitude:   *latCol,
		Longitude:  *lonCol,
		Easting:    *eastingCol,
		Northing:   *northingCol,
		CrossTrack: *dccCol,
	}
	if *target > 0 {
		req.Depth.TargetDepth = *target
		// Viewing ranges measure deficits against the overridden target.
		req.Ranges.TargetDepth = *target
	}
	if *out != "" {
		req.OutputDir = *out
	}
	if *format != "" {
		f, err := report.ParseFormat(*format)
		if err != nil {
			logger.Error("Invalid report format", "error", err)
			os.Exit(1)
		}
		req.Format = f
	}
	req.Charts = *charts

	if countSources(*file != "", *generate > 0, *latest) > 1 {
		logger.Error("use only one of -file, -generate or -latest")
		os.Exit(1)
	}

	switch {
	case *generate > 0:
		path, err := writeSyntheticSurvey(logger, req.OutputDir, *generate, req.Depth.TargetDepth)
		if err != nil {
			logger.Error("Failed to generate synthetic survey", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Generated synthetic survey: %s (%d points)\n", path, *generate)
		req.File = path
	case *latest:
		info, err := files.NewDiscovery(cfg.GetDataDir()).FindLatestSurveyFile("")
		if err != nil {
			logger.Error("No survey file to analyze", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Latest survey: %s (modified %s)\n", info.Name, info.ModTime.Format("2006-01-02 15:04:05"))
		req.File = info.Path
	case *file != "":
		req.File = *file
	default:
		fmt.Fprintln(os.Stderr, "cba-analyze: -file, -latest or -generate is required")
		flag.Usage()
		os.Exit(2)
	}

	if *generate == 0 {
		validator := validation.NewFileValidator(logger)
		if err := validator.ValidateSurveyFile(req.File); err != nil {
			logger.Error("Survey file rejected", "error", err)
			os.Exit(1)
		}
	}

	manager := operations.NewManager(logger,
		operations.WithPublisher(operations.NewLogPublisher(logger)),
		operations.WithTimeout(cfg.Server.OperationTimeout),
		operations.WithSnapshotter(viz.NewSnapshotter(logger)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Analyzing %s ...\n", req.File)
	st, err := manager.Execute(ctx, req)
	if err != nil {
		logger.Error("Analysis setup failed", "error", err)
		os.Exit(1)
	}

	// Run failures are reported in the summary; only setup errors change
	// the exit code.
	printSummary(st.Snapshot(), st.Results(), req.Depth.TargetDepth)
}

// countSources reports how many of the input selectors were set.
func countSources(selected ...bool) int {
	n := 0
	for _, s := range selected {
		if s {
			n++
		}
	}
	return n
}

// resolveProfilePath turns a bare profile name into a path under the
// profiles directory. Anything containing a separator is taken as-is.
func resolveProfilePath(cfg *config.Config, name string) string {
	if strings.ContainsAny(name, `/\`) {
		return name
	}
	return filepath.Join(cfg.GetProfilesDir(), name)
}

// writeSyntheticSurvey generates a survey with planted defects and writes
// it to dir as a CSV the loader can read back.
func writeSyntheticSurvey(logger *slog.Logger, dir string, points int, target float64) (string, error) {
	ds := dataset.Generate(dataset.GenerateOptions{Points: points, TargetDepth: target})

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, "synthetic_survey.csv")
	if err := report.NewCSVWriter(logger).WriteDataset(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

func printSummary(snap *operations.Snapshot, results *operations.Results, targetDepth float64) {
	fmt.Printf("\n=== ANALYSIS %s ===\n", strings.ToUpper(string(snap.Status)))
	fmt.Printf("File:     %s\n", snap.File)
	if snap.Cable != "" {
		fmt.Printf("Cable:    %s\n", snap.Cable)
	}
	fmt.Printf("Duration: %.2fs\n", snap.Duration)
	if snap.Error != "" {
		fmt.Printf("Error:    %s\n", snap.Error)
	}

	fmt.Println("\n=== PIPELINE STEPS ===")
	for _, step := range snap.Steps {
		marker := " "
		switch step.Status {
		case operations.StepStatusCompleted:
			marker = "ok"
		case operations.StepStatusFailed:
			marker = "FAIL"
		case operations.StepStatusSkipped:
			marker = "skip"
		}
		line := fmt.Sprintf("%-18s | %-4s | %6.2fs", step.Name, marker, step.Duration)
		if step.Error != "" {
			line += " | " + step.Error
		}
		fmt.Println(line)
	}

	if results == nil {
		return
	}

	if results.Depth != nil {
		printDepthSummary(results.Depth, targetDepth)
	}
	if results.Position != nil {
		printPositionSummary(results.Position)
	}
	printOutputs(results)
}

func printDepthSummary(depth *analysis.Standardized, targetDepth float64) {
	fmt.Println("\n=== BURIAL COMPLIANCE ===")
	fmt.Printf("Target depth:   %.2f m\n", targetDepth)
	fmt.Printf("Points:         %.0f\n", depth.Metrics["total_points"])
	fmt.Printf("Compliance:     %.1f%%\n", depth.Metrics["compliance_percentage"])
	fmt.Printf("Anomalies:      %d total | %d high | %d medium | %d low\n",
		depth.Anomalies["total"], depth.Anomalies["high"],
		depth.Anomalies["medium"], depth.Anomalies["low"])

	sections := depth.ProblemSections
	if sections.Total == 0 {
		fmt.Println("Problem sections: none")
		return
	}
	fmt.Printf("Problem sections: %d (%.1f m flagged)\n",
		sections.Total, totalLength(sections))

	top := topSections(sections.Details, 5)
	fmt.Println("\n=== TOP PROBLEM SECTIONS ===")
	fmt.Println("ID | From      | To        | Length (m) | Points | Severity")
	fmt.Println("---|-----------|-----------|------------|--------|---------")
	for _, s := range top {
		fmt.Printf("%2d | %9.3f | %9.3f | %10.1f | %6d | %s\n",
			s.ID, s.StartPos, s.EndPos, s.Length, s.PointCount, s.Severity)
	}
}

func printPositionSummary(position *analysis.Standardized) {
	total := position.Metrics["total_points"]
	if total <= 0 {
		return
	}
	good := position.Metrics["good_points"]
	suspect := position.Metrics["suspect_points"]
	poor := position.Metrics["poor_points"]

	fmt.Println("\n=== POSITION QUALITY ===")
	fmt.Printf("Average score:  %.2f\n", position.Metrics["avg_quality_score"])
	fmt.Printf("Good: %.0f (%.1f%%) | Suspect: %.0f (%.1f%%) | Poor: %.0f (%.1f%%)\n",
		good, 100*good/total, suspect, 100*suspect/total, poor, 100*poor/total)
	fmt.Printf("KP jumps: %d | reversals: %d | duplicates: %d\n",
		position.Anomalies["kp_jumps"], position.Anomalies["kp_reversals"],
		position.Anomalies["kp_duplicates"])
	if position.ProblemSections.Total > 0 {
		fmt.Printf("Poor-quality segments: %d\n", position.ProblemSections.Total)
	}
}

func printOutputs(results *operations.Results) {
	if len(results.Reports) == 0 && len(results.Charts) == 0 {
		return
	}
	fmt.Println("\n=== OUTPUTS ===")
	for _, path := range results.Reports {
		fmt.Printf("report: %s\n", path)
	}
	for _, path := range results.Charts {
		fmt.Printf("chart:  %s\n", path)
	}
	if results.SnapshotPath != "" {
		fmt.Printf("image:  %s\n", results.SnapshotPath)
	}
	for i, r := range results.Ranges {
		fmt.Printf("range %d: %s [%.3f - %.3f] %s\n", i+1, r.Name, r.StartPos, r.EndPos, r.Description)
	}
}

func totalLength(ps analysis.ProblemSections) float64 {
	var sum float64
	for _, b := range ps.SeverityBreakdown {
		sum += b.TotalLength
	}
	return sum
}

// topSections orders by severity then flagged length and keeps the first n.
func topSections(details []analysis.SectionDetail, n int) []analysis.SectionDetail {
	sorted := make([]analysis.SectionDetail, len(details))
	copy(sorted, details)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := analysis.SeverityRank(sorted[i].Severity), analysis.SeverityRank(sorted[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Length > sorted[j].Length
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

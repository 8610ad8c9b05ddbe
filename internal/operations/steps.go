package operations

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/infrastructure"
	"github.com/tomdowns/cbatool/internal/position"
	"github.com/tomdowns/cbatool/internal/ranges"
	"github.com/tomdowns/cbatool/internal/report"
	"github.com/tomdowns/cbatool/internal/viz"
)

// loadStep reads the survey file into a dataset.
type loadStep struct {
	loader  *dataset.Loader
	metrics *infrastructure.BusinessMetrics
}

func newLoadStep(loader *dataset.Loader, metrics *infrastructure.BusinessMetrics) *loadStep {
	return &loadStep{loader: loader, metrics: metrics}
}

func (s *loadStep) ID() string   { return StepLoad }
func (s *loadStep) Name() string { return "Load survey data" }

func (s *loadStep) Validate(req Request) error {
	if req.File == "" {
		return NewValidationError(StepLoad, "no survey file given")
	}
	return nil
}

func (s *loadStep) Execute(ctx context.Context, st *State) error {
	req := st.Request()
	ds, info, err := s.loader.Load(ctx, req.File, dataset.LoadOptions{
		Sheet:   req.Sheet,
		MaxRows: req.MaxRows,
	})
	if err != nil {
		return NewExecutionError(StepLoad, err)
	}
	st.SetDataset(ds, info)
	if s.metrics != nil {
		s.metrics.DatasetsLoaded.Add(ctx, 1)
		s.metrics.RowsProcessed.Add(ctx, int64(ds.Len()))
	}
	return nil
}

// bindStep resolves the declared schema against the loaded dataset.
// Schema fields the request left blank are filled from the loader's
// suggestions, so a bare request analyzes a conventional survey file
// without any column mapping.
type bindStep struct{}

func newBindStep() *bindStep { return &bindStep{} }

func (s *bindStep) ID() string   { return StepBind }
func (s *bindStep) Name() string { return "Bind survey schema" }

func (s *bindStep) Validate(req Request) error { return nil }

func (s *bindStep) Execute(ctx context.Context, st *State) error {
	ds := st.Data()
	if ds == nil {
		return &SkipError{Reason: "no dataset loaded"}
	}
	schema := st.Request().Schema
	if info := st.FileInfo(); info != nil {
		if schema.Depth == "" {
			schema.Depth = info.Suggested.Depth
		}
		if schema.KP == "" {
			schema.KP = info.Suggested.KP
		}
		if schema.Position == "" {
			schema.Position = info.Suggested.Position
		}
	}
	b, err := dataset.Bind(ds, schema)
	if err != nil {
		return NewExecutionError(StepBind, err)
	}
	st.SetBinding(b, dataset.ResolvePositionAxis(ds, b))
	return nil
}

// depthStep runs the burial depth analysis.
type depthStep struct {
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

func newDepthStep(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *depthStep {
	return &depthStep{logger: logger, metrics: metrics}
}

func (s *depthStep) ID() string   { return StepDepth }
func (s *depthStep) Name() string { return "Analyze burial depth" }

func (s *depthStep) Validate(req Request) error {
	if err := req.Depth.Validate(); err != nil {
		return NewValidationError(StepDepth, err.Error())
	}
	return nil
}

func (s *depthStep) Execute(ctx context.Context, st *State) error {
	b, _, ok := st.Bound()
	if !ok {
		return &SkipError{Reason: "schema not bound"}
	}
	analyzer, err := depth.NewAnalyzer(st.Request().Depth, s.logger)
	if err != nil {
		return NewExecutionError(StepDepth, err)
	}
	res, err := analyzer.Analyze(ctx, st.Data(), b)
	if err != nil {
		return NewExecutionError(StepDepth, err)
	}
	st.SetDepthResult(res)
	if s.metrics != nil {
		infrastructure.RecordSeverityCounts(ctx, s.metrics.AnomaliesDetected,
			severityTally(len(res.Anomalies), func(i int) string { return res.Anomalies[i].Severity }))
		infrastructure.RecordSeverityCounts(ctx, s.metrics.ProblemSections,
			severityTally(len(res.Sections), func(i int) string { return res.Sections[i].Severity }))
	}
	return nil
}

// positionStep runs the position quality analysis. It needs an
// along-track KP column; surveys without one skip it.
type positionStep struct {
	logger *slog.Logger
}

func newPositionStep(logger *slog.Logger) *positionStep {
	return &positionStep{logger: logger}
}

func (s *positionStep) ID() string   { return StepPosition }
func (s *positionStep) Name() string { return "Analyze position quality" }

func (s *positionStep) Validate(req Request) error {
	if err := req.Position.Validate(); err != nil {
		return NewValidationError(StepPosition, err.Error())
	}
	return nil
}

func (s *positionStep) Execute(ctx context.Context, st *State) error {
	b, _, ok := st.Bound()
	if !ok {
		return &SkipError{Reason: "schema not bound"}
	}
	if !b.HasKP() {
		return &SkipError{Reason: "no KP column bound"}
	}
	analyzer, err := position.NewAnalyzer(st.Request().Position, s.logger)
	if err != nil {
		return NewExecutionError(StepPosition, err)
	}
	res, err := analyzer.Analyze(ctx, st.Data(), b)
	if err != nil {
		return NewExecutionError(StepPosition, err)
	}
	st.SetPositionResult(res)
	return nil
}

// rangesStep recommends viewing ranges from the depth results.
type rangesStep struct {
	logger *slog.Logger
}

func newRangesStep(logger *slog.Logger) *rangesStep {
	return &rangesStep{logger: logger}
}

func (s *rangesStep) ID() string   { return StepRanges }
func (s *rangesStep) Name() string { return "Recommend viewing ranges" }

func (s *rangesStep) Validate(req Request) error {
	if err := req.Ranges.Validate(); err != nil {
		return NewValidationError(StepRanges, err.Error())
	}
	return nil
}

func (s *rangesStep) Execute(ctx context.Context, st *State) error {
	res := st.DepthResult()
	if res == nil {
		return &SkipError{Reason: "depth analysis unavailable"}
	}
	b, _, _ := st.Bound()
	selector, err := ranges.NewSelector(st.Request().Ranges, s.logger)
	if err != nil {
		return NewExecutionError(StepRanges, err)
	}
	rs, err := selector.Recommend(ctx, res.Data, b)
	if err != nil {
		return NewExecutionError(StepRanges, err)
	}
	st.SetRanges(rs)
	return nil
}

// chartsStep renders the interactive charts and, when asked, captures
// a PNG snapshot of the depth profile for the summary workbook.
type chartsStep struct {
	logger      *slog.Logger
	renderer    *viz.Renderer
	snapshotter *viz.Snapshotter
	metrics     *infrastructure.BusinessMetrics
}

func newChartsStep(logger *slog.Logger, renderer *viz.Renderer, snapshotter *viz.Snapshotter, metrics *infrastructure.BusinessMetrics) *chartsStep {
	return &chartsStep{logger: logger, renderer: renderer, snapshotter: snapshotter, metrics: metrics}
}

func (s *chartsStep) ID() string   { return StepCharts }
func (s *chartsStep) Name() string { return "Render charts" }

func (s *chartsStep) Validate(req Request) error { return nil }

func (s *chartsStep) Execute(ctx context.Context, st *State) error {
	req := st.Request()
	if !req.Charts {
		return &SkipError{Reason: "charts disabled"}
	}
	depthRes := st.DepthResult()
	posRes := st.PositionResult()
	if depthRes == nil && posRes == nil {
		return &SkipError{Reason: "no analysis results to chart"}
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return NewExecutionError(StepCharts, fmt.Errorf("create output dir: %w", err))
	}
	b, _, _ := st.Bound()

	var paths []string
	if depthRes != nil {
		c := viz.DepthChart{
			Data:        depthRes.Data,
			Binding:     b,
			TargetDepth: req.Depth.TargetDepth,
			Sections:    depthRes.Sections,
			Ranges:      st.Ranges(),
		}
		if req.IncludeAnomalies {
			c.Anomalies = depthRes.Anomalies
		}
		path := filepath.Join(req.OutputDir, config.DepthChartFile)
		if err := s.renderer.WriteDepthChart(path, c); err != nil {
			return NewExecutionError(StepCharts, err)
		}
		paths = append(paths, path)
	}
	if posRes != nil {
		c := viz.PositionChart{
			Data:    posRes.Data,
			Binding: b,
		}
		if req.SegmentOverlays {
			c.Segments = posRes.Segments
		}
		path := filepath.Join(req.OutputDir, config.PositionChartFile)
		if err := s.renderer.WritePositionChart(path, c); err != nil {
			return NewExecutionError(StepCharts, err)
		}
		paths = append(paths, path)
	}
	if s.metrics != nil {
		s.metrics.ChartsRendered.Add(ctx, int64(len(paths)))
	}

	snapshot := ""
	if req.Snapshots && len(paths) > 0 {
		if ss := st.Step(StepCharts); ss != nil {
			ss.UpdateProgress(75, "capturing chart snapshot")
		}
		// The depth chart is always first when present.
		png, err := s.snapshotter.Snapshot(ctx, paths[0])
		if err != nil {
			// A failed capture leaves the summary workbook without an
			// embedded image; the operation continues.
			s.logger.WarnContext(ctx, "chart snapshot failed",
				slog.String("chart", paths[0]),
				slog.String("error", err.Error()),
			)
			if s.metrics != nil {
				s.metrics.SnapshotFailures.Add(ctx, 1)
			}
		} else {
			snapshot = png
		}
	}
	st.SetCharts(paths, snapshot)
	return nil
}

// reportsStep writes the CSV and Excel deliverables.
type reportsStep struct {
	generator *report.Generator
	metrics   *infrastructure.BusinessMetrics
}

func newReportsStep(generator *report.Generator, metrics *infrastructure.BusinessMetrics) *reportsStep {
	return &reportsStep{generator: generator, metrics: metrics}
}

func (s *reportsStep) ID() string   { return StepReports }
func (s *reportsStep) Name() string { return "Generate reports" }

func (s *reportsStep) Validate(req Request) error {
	if req.OutputDir == "" {
		return NewValidationError(StepReports, "no output directory given")
	}
	if _, err := report.ParseFormat(string(req.Format)); err != nil {
		return NewValidationError(StepReports, err.Error())
	}
	return nil
}

func (s *reportsStep) Execute(ctx context.Context, st *State) error {
	req := st.Request()
	depthRes := st.DepthResult()
	posRes := st.PositionResult()
	if depthRes == nil && posRes == nil {
		return &SkipError{Reason: "no analysis results to report"}
	}
	_, snapshot := st.Charts()
	in := report.Inputs{
		Cable:        req.Cable,
		Project:      req.Project,
		Data:         exportData(st),
		Depth:        depthRes,
		Position:     posRes,
		SnapshotPath: snapshot,
	}
	paths, err := s.generator.WriteAll(req.OutputDir, in, req.Format)
	if err != nil {
		return NewExecutionError(StepReports, err)
	}
	st.SetReports(paths)
	if s.metrics != nil {
		s.metrics.ReportsGenerated.Add(ctx, int64(len(paths)))
	}
	return nil
}

// exportData picks the most complete dataset view for the data
// export: the depth-augmented copy merged with any position quality
// columns. Both analyzers augment the same source rows, so the row
// counts always line up.
func exportData(st *State) *dataset.Dataset {
	data := st.Data()
	if r := st.DepthResult(); r != nil && r.Data != nil {
		data = r.Data
	}
	if r := st.PositionResult(); r != nil && r.Data != nil {
		data = mergeColumns(data, r.Data)
	}
	return data
}

// mergeColumns copies columns present in src but missing from dst
// into a shallow copy of dst. Mismatched row counts return dst
// unchanged.
func mergeColumns(dst, src *dataset.Dataset) *dataset.Dataset {
	if dst == nil {
		return src
	}
	if src == nil || src.Len() != dst.Len() {
		return dst
	}
	merged := dst.Augment()
	for _, name := range src.ColumnNames() {
		if merged.Has(name) {
			continue
		}
		kind, _ := src.Kind(name)
		switch kind {
		case dataset.KindFloat:
			if vals, ok := src.Floats(name); ok {
				_ = merged.SetFloats(name, vals)
			}
		case dataset.KindString:
			if vals, ok := src.Strings(name); ok {
				_ = merged.SetStrings(name, vals)
			}
		case dataset.KindBool:
			if vals, ok := src.Bools(name); ok {
				_ = merged.SetBools(name, vals)
			}
		}
	}
	return merged
}

func severityTally(n int, severityAt func(int) string) map[string]int {
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		counts[severityAt(i)]++
	}
	return counts
}

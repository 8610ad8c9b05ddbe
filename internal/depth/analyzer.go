package depth

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/tomdowns/cbatool/internal/dataset"
)

// Analyzer runs depth checks over a bound dataset. It holds immutable
// parameters and a logger only, so a single value can serve concurrent
// analyses.
type Analyzer struct {
	params Params
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer after validating the parameters.
func NewAnalyzer(params Params, logger *slog.Logger) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("depth analyzer: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{params: params, logger: logger}, nil
}

// Params returns the analyzer's configuration.
func (a *Analyzer) Params() Params {
	return a.params
}

// Analyze runs anomaly detection, compliance assessment and section
// summarization in one pass. The result is backed by an augmented copy
// of ds; re-running on that copy reproduces the same outcome because
// output columns are simply replaced.
func (a *Analyzer) Analyze(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) (*Result, error) {
	depths, ok := ds.Floats(b.Depth)
	if !ok {
		return nil, fmt.Errorf("depth analyzer: column %q is not bound to numeric data", b.Depth)
	}

	a.logger.InfoContext(ctx, "starting depth analysis",
		"records", len(depths),
		"target_depth", a.params.TargetDepth,
		"window_size", a.params.WindowSize,
	)

	aug := ds.Augment()
	axis := dataset.ResolvePositionAxis(ds, b)

	anomalies, anomFlags := a.detectAnomalies(aug, depths, axis)
	meets := a.applyCompliance(aug, depths)
	sections := a.buildSections(meets, depths, axis)
	summary := a.summarize(meets, anomFlags, anomalies, sections)

	a.logger.InfoContext(ctx, "depth analysis complete",
		"anomalies", summary.AnomalyCount,
		"compliance_pct", summary.CompliancePct,
		"problem_sections", summary.SectionCount,
	)

	return &Result{
		Data:      aug,
		Axis:      axis,
		Anomalies: anomalies,
		Sections:  sections,
		Summary:   summary,
	}, nil
}

// DetectAnomalies runs only the anomaly pass.
func (a *Analyzer) DetectAnomalies(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) (*Result, error) {
	depths, ok := ds.Floats(b.Depth)
	if !ok {
		return nil, fmt.Errorf("depth analyzer: column %q is not bound to numeric data", b.Depth)
	}

	aug := ds.Augment()
	axis := dataset.ResolvePositionAxis(ds, b)
	anomalies, _ := a.detectAnomalies(aug, depths, axis)

	a.logger.DebugContext(ctx, "anomaly detection complete", "anomalies", len(anomalies))

	return &Result{Data: aug, Axis: axis, Anomalies: anomalies}, nil
}

// AnalyzeCompliance runs only the compliance and section passes.
func (a *Analyzer) AnalyzeCompliance(ctx context.Context, ds *dataset.Dataset, b dataset.Binding) (*Result, error) {
	depths, ok := ds.Floats(b.Depth)
	if !ok {
		return nil, fmt.Errorf("depth analyzer: column %q is not bound to numeric data", b.Depth)
	}

	aug := ds.Augment()
	axis := dataset.ResolvePositionAxis(ds, b)
	meets := a.applyCompliance(aug, depths)
	sections := a.buildSections(meets, depths, axis)

	a.logger.DebugContext(ctx, "compliance analysis complete", "problem_sections", len(sections))

	return &Result{Data: aug, Axis: axis, Sections: sections}, nil
}

// summarize reduces one run to scalar aggregates. With IgnoreAnomalies
// set, anomalous records drop out of the compliance denominator; they
// still participate in section detection.
func (a *Analyzer) summarize(meets, anomFlags []bool, anomalies []Anomaly, sections []Section) Summary {
	n := len(meets)
	s := Summary{
		TotalPoints:    n,
		AnomalyCount:   len(anomalies),
		SeverityCounts: make(map[string]int),
		SectionCount:   len(sections),
	}
	for _, an := range anomalies {
		s.SeverityCounts[an.Severity]++
	}
	if n > 0 {
		s.AnomalyPercentage = round2(float64(len(anomalies)) / float64(n) * 100)
	}

	meetsCount, denom := 0, 0
	for i, m := range meets {
		if a.params.IgnoreAnomalies && anomFlags[i] {
			continue
		}
		denom++
		if m {
			meetsCount++
		}
	}
	if denom > 0 {
		s.CompliancePct = round2(float64(meetsCount) / float64(denom) * 100)
	}

	for _, sec := range sections {
		s.TotalProblemLength += sec.Length
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

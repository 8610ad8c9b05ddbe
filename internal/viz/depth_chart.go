package viz

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/ranges"
)

// DepthChart describes one burial depth profile render. Positions in
// Anomalies, Sections and Ranges must share the dataset's position
// axis, which is how the analyzers emit them.
type DepthChart struct {
	Data        *dataset.Dataset
	Binding     dataset.Binding
	TargetDepth float64
	Anomalies   []depth.Anomaly
	Sections    []depth.Section
	Ranges      []ranges.Range
}

// RenderDepthChart writes the depth profile as standalone HTML. The
// profile plots on an inverted Y axis so deeper burial draws lower,
// with the target depth as a dashed line, anomalies as per-class
// markers and problem sections as severity-colored bands.
func (r *Renderer) RenderDepthChart(w io.Writer, c DepthChart) error {
	line, err := r.buildDepthChart(c)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render depth chart: %w", err)
	}
	return nil
}

// WriteDepthChart renders the depth profile to an HTML file.
func (r *Renderer) WriteDepthChart(path string, c DepthChart) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create depth chart: %w", err)
	}
	if err := r.RenderDepthChart(f, c); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write depth chart: %w", err)
	}
	r.logger.Info("depth chart written",
		slog.String("path", path),
		slog.Int("points", c.Data.Len()),
		slog.Int("anomalies", len(c.Anomalies)),
		slog.Int("sections", len(c.Sections)))
	return nil
}

func (r *Renderer) buildDepthChart(c DepthChart) (*charts.Line, error) {
	if c.Data == nil || c.Data.Len() == 0 {
		return nil, fmt.Errorf("depth chart: no data to plot")
	}
	depths, ok := c.Data.Floats(c.Binding.Depth)
	if !ok {
		return nil, fmt.Errorf("depth chart: depth column %q is not numeric", c.Binding.Depth)
	}
	axis := dataset.ResolvePositionAxis(c.Data, c.Binding)

	profile := make([]opts.LineData, 0, len(depths))
	maxDepth := 0.0
	for i, v := range depths {
		if dataset.IsMissing(v) {
			continue
		}
		profile = append(profile, opts.LineData{Value: []interface{}{axis.Value(i), v}})
		if v > maxDepth {
			maxDepth = v
		}
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("depth chart: depth column %q has no usable values", c.Binding.Depth)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Cable Burial Depth Analysis",
			Width:      chartWidth,
			Height:     chartHeight,
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cable Burial Depth Analysis",
			Subtitle: depthSubtitle(len(c.Anomalies), c.Sections, axis, c.Ranges),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:         axisLabel(c.Binding, axis),
			NameLocation: "middle",
			NameGap:      30,
			Scale:        opts.Bool(true),
		}),
		// Inverted so deeper burial plots lower, matching how survey
		// engineers read a profile.
		charts.WithYAxisOpts(opts.YAxis{Name: "Depth (m)", Inverse: opts.Bool(true)}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider", Start: 0, End: 100},
			opts.DataZoom{Type: "inside", Start: 0, End: 100},
		),
	)

	line.AddSeries("Burial Depth", profile,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "brown", Width: 1}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "brown"}),
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
			Name:  fmt.Sprintf("Target Depth (%gm)", c.TargetDepth),
			YAxis: c.TargetDepth,
		}),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol:    []string{"none", "none"},
			LineStyle: &opts.LineStyle{Color: "green", Type: "dashed", Width: 1},
			Label:     &opts.Label{Show: opts.Bool(true), Formatter: "{b}"},
		}),
	)

	for _, sc := range severityAreas(c.Sections, maxDepth) {
		line.Overlap(sc)
	}
	for _, sc := range anomalyMarkers(c.Anomalies) {
		line.Overlap(sc)
	}
	return line, nil
}

// severityAreas builds one legend entry and band set per severity so
// High, Medium and Low sections keep distinct fills. Bands run from
// the surface down past the deepest reading.
func severityAreas(sections []depth.Section, maxDepth float64) []*charts.Scatter {
	if len(sections) == 0 {
		return nil
	}
	yBottom := maxDepth * 1.05
	if yBottom <= 0 {
		yBottom = 1
	}

	bySeverity := make(map[string][]span)
	for _, s := range sections {
		bySeverity[s.Severity] = append(bySeverity[s.Severity], span{
			name:  fmt.Sprintf("Section %d", s.ID),
			start: s.StartPos,
			end:   s.EndPos,
		})
	}

	var out []*charts.Scatter
	for _, severity := range []string{analysis.SeverityHigh, analysis.SeverityMedium, analysis.SeverityLow} {
		spans, ok := bySeverity[severity]
		if !ok {
			continue
		}
		band, chip := severityAreaColor(severity)
		sc := charts.NewScatter()
		sc.AddSeries(severity+" Severity Area", []opts.ScatterData{},
			charts.WithItemStyleOpts(opts.ItemStyle{Color: chip}),
			charts.WithMarkAreaNameCoordItemOpts(areaItems(spans, 0, yBottom)...),
			charts.WithMarkAreaStyleOpts(opts.MarkAreaStyle{
				ItemStyle: &opts.ItemStyle{Color: band},
			}),
		)
		out = append(out, sc)
	}
	return out
}

// anomalyMarkers groups flagged points by classification so each class
// keeps its own marker shape and legend entry. Group order follows
// first appearance, which the analyzer emits sorted by row.
func anomalyMarkers(anomalies []depth.Anomaly) []*charts.Scatter {
	if len(anomalies) == 0 {
		return nil
	}
	groups := make(map[string][]opts.ScatterData)
	styles := make(map[string]markerStyle)
	var order []string
	for _, a := range anomalies {
		m := markerFor(a.Type)
		if _, seen := styles[m.label]; !seen {
			styles[m.label] = m
			order = append(order, m.label)
		}
		groups[m.label] = append(groups[m.label], opts.ScatterData{
			Name:       a.Type,
			Value:      []interface{}{a.Position, a.Depth},
			Symbol:     m.symbol,
			SymbolSize: m.size,
		})
	}

	out := make([]*charts.Scatter, 0, len(order))
	for _, label := range order {
		sc := charts.NewScatter()
		sc.AddSeries(label, groups[label],
			charts.WithItemStyleOpts(opts.ItemStyle{Color: styles[label].color}),
		)
		out = append(out, sc)
	}
	return out
}

func depthSubtitle(anomalyCount int, sections []depth.Section, axis dataset.PositionAxis, views []ranges.Range) string {
	var parts []string
	if anomalyCount > 0 {
		parts = append(parts, fmt.Sprintf("%d anomalous data points detected", anomalyCount))
	}
	if len(sections) > 0 {
		total := 0.0
		for _, s := range sections {
			total += s.Length
		}
		if axis.Kind == dataset.PositionIndex {
			parts = append(parts, fmt.Sprintf("%d non-compliant sections (total: %.0f points)", len(sections), total))
		} else {
			parts = append(parts, fmt.Sprintf("%d non-compliant sections (total: %.1fm)", len(sections), total))
		}
	}
	if names := viewNames(views); names != "" {
		parts = append(parts, "suggested views: "+names)
	}
	return strings.Join(parts, "; ")
}

// viewNames lists up to three recommended viewing ranges. The full-data
// range is implied by the zoom slider and skipped.
func viewNames(views []ranges.Range) string {
	var names []string
	for _, v := range views {
		if v.Type == ranges.TypeFull {
			continue
		}
		names = append(names, fmt.Sprintf("%s (%.2f-%.2f)", v.Name, v.StartPos, v.EndPos))
		if len(names) == 3 {
			break
		}
	}
	return strings.Join(names, ", ")
}

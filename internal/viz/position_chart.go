package viz

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/position"
)

// Quality scores run 0 to 1; the axis leaves headroom so markers at
// 1.0 stay visible.
const scoreAxisMax = 1.05

// PositionChart describes one position quality dashboard render. Data
// must be the augmented dataset a position analysis produced, since
// the panels read the quality score and flag columns it writes.
type PositionChart struct {
	Data     *dataset.Dataset
	Binding  dataset.Binding
	Segments []position.Segment
}

// RenderPositionChart writes the position quality dashboard as
// standalone HTML: KP progression with jump and reversal markers, the
// cross-track deviation colored by quality when a DCC column is bound,
// and the composite score against its category thresholds.
func (r *Renderer) RenderPositionChart(w io.Writer, c PositionChart) error {
	charters, err := r.buildPositionCharts(c)
	if err != nil {
		return err
	}
	page := components.NewPage()
	page.SetAssetsHost(assetsHost)
	page.AddCharts(charters...)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render position charts: %w", err)
	}
	return nil
}

// WritePositionChart renders the position dashboard to an HTML file.
func (r *Renderer) WritePositionChart(path string, c PositionChart) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create position chart: %w", err)
	}
	if err := r.RenderPositionChart(f, c); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write position chart: %w", err)
	}
	r.logger.Info("position chart written",
		slog.String("path", path),
		slog.Int("points", c.Data.Len()),
		slog.Int("segments", len(c.Segments)))
	return nil
}

func (r *Renderer) buildPositionCharts(c PositionChart) ([]components.Charter, error) {
	if c.Data == nil || c.Data.Len() == 0 {
		return nil, fmt.Errorf("position chart: no data to plot")
	}
	if !c.Binding.HasKP() {
		return nil, fmt.Errorf("position chart: requires a bound KP column")
	}
	kps, ok := c.Data.Floats(c.Binding.KP)
	if !ok {
		return nil, fmt.Errorf("position chart: KP column %q is not numeric", c.Binding.KP)
	}
	scores, ok := c.Data.Floats(position.ColQualityScore)
	if !ok {
		return nil, fmt.Errorf("position chart: dataset has no quality scores; run position analysis first")
	}

	jumps, _ := c.Data.Bools(position.ColIsJump)
	reversals, _ := c.Data.Bools(position.ColIsReversal)

	charters := []components.Charter{r.kpProgressionChart(kps, jumps, reversals)}
	if c.Binding.HasCrossTrack() {
		if dcc, ok := c.Data.Floats(c.Binding.CrossTrack); ok {
			charters = append(charters, r.crossTrackChart(kps, dcc, scores))
		}
	}
	charters = append(charters, r.qualityScoreChart(kps, scores, jumps, reversals, c.Segments))
	return charters, nil
}

// kpProgressionChart plots reported KP against record order. A clean
// survey draws a monotonic line; jumps and reversals stand out as
// marked breaks.
func (r *Renderer) kpProgressionChart(kps []float64, jumps, reversals []bool) *charts.Line {
	progression := make([]opts.LineData, 0, len(kps))
	for i, kp := range kps {
		if dataset.IsMissing(kp) {
			continue
		}
		progression = append(progression, opts.LineData{Value: []interface{}{float64(i), kp}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Position Quality Analysis",
			Width:      chartWidth,
			Height:     panelHeight,
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Position Quality Analysis", Subtitle: "KP Progression"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Point Index", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "KP Value", Scale: opts.Bool(true)}),
	)
	line.AddSeries("KP Progression", progression,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "blue", Width: 1}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "blue"}),
	)

	indexOf := func(i int) float64 { return float64(i) }
	for _, sc := range flagMarkers(kps, jumps, reversals, indexOf) {
		line.Overlap(sc)
	}
	return line
}

// crossTrackChart plots cross-track deviation against KP, colored by
// the composite quality score so poor stretches read red.
func (r *Renderer) crossTrackChart(kps, dcc, scores []float64) *charts.Scatter {
	points := make([]opts.ScatterData, 0, len(kps))
	for i := range kps {
		if dataset.IsMissing(kps[i]) || dataset.IsMissing(dcc[i]) {
			continue
		}
		points = append(points, opts.ScatterData{
			Value:      []interface{}{kps[i], dcc[i], scores[i]},
			SymbolSize: 6,
		})
	}

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:      chartWidth,
			Height:     panelHeight,
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Cross-Track Deviation"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "KP", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cross-Track Deviation (m)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#d73027", "#fee08b", "#1a9850"}},
		}),
	)
	sc.AddSeries("Cross-Track Deviation", points,
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "Planned Route", YAxis: 0}),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol:    []string{"none", "none"},
			LineStyle: &opts.LineStyle{Color: "black", Type: "dashed", Width: 1},
			Label:     &opts.Label{Show: opts.Bool(true), Formatter: "{b}"},
		}),
	)
	return sc
}

// qualityScoreChart plots the composite score against KP with the
// category thresholds, flagged records and poor segments marked.
func (r *Renderer) qualityScoreChart(kps, scores []float64, jumps, reversals []bool, segments []position.Segment) *charts.Line {
	trace := make([]opts.LineData, 0, len(kps))
	for i := range kps {
		if dataset.IsMissing(kps[i]) || dataset.IsMissing(scores[i]) {
			continue
		}
		trace = append(trace, opts.LineData{Value: []interface{}{kps[i], scores[i]}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:      chartWidth,
			Height:     panelHeight,
			AssetsHost: assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Position Quality"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "KP", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Quality Score", Min: 0, Max: scoreAxisMax}),
	)
	line.AddSeries("Quality Score", trace,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: "#1f77b4", Width: 1}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#1f77b4"}),
		charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{
				Name:  fmt.Sprintf("Poor Threshold (%.1f)", position.PoorScoreMax),
				YAxis: position.PoorScoreMax,
			},
			opts.MarkLineNameYAxisItem{
				Name:  fmt.Sprintf("Good Threshold (%.1f)", position.SuspectScoreMax),
				YAxis: position.SuspectScoreMax,
			},
		),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol:    []string{"none", "none"},
			LineStyle: &opts.LineStyle{Color: "gray", Type: "dashed", Width: 1},
			Label:     &opts.Label{Show: opts.Bool(true), Formatter: "{b}"},
		}),
	)

	kpOf := func(i int) float64 { return kps[i] }
	for _, sc := range flagMarkers(scores, jumps, reversals, kpOf) {
		line.Overlap(sc)
	}
	for _, sc := range segmentAreas(segments) {
		line.Overlap(sc)
	}
	return line
}

// flagMarkers builds the jump and reversal overlays shared by the
// progression and score panels. xOf maps a row index onto the panel's
// x axis, ys supplies the marker height.
func flagMarkers(ys []float64, jumps, reversals []bool, xOf func(int) float64) []*charts.Scatter {
	type flagged struct {
		name   string
		symbol string
		color  string
		rows   []bool
	}
	var out []*charts.Scatter
	for _, f := range []flagged{
		{name: "KP Jumps", symbol: "triangle", color: "orange", rows: jumps},
		{name: "KP Reversals", symbol: "diamond", color: "red", rows: reversals},
	} {
		if f.rows == nil {
			continue
		}
		var points []opts.ScatterData
		for i, hit := range f.rows {
			if !hit || i >= len(ys) || dataset.IsMissing(ys[i]) {
				continue
			}
			points = append(points, opts.ScatterData{
				Value:      []interface{}{xOf(i), ys[i]},
				Symbol:     f.symbol,
				SymbolSize: 8,
			})
		}
		if len(points) == 0 {
			continue
		}
		sc := charts.NewScatter()
		sc.AddSeries(f.name, points,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: f.color}),
		)
		out = append(out, sc)
	}
	return out
}

// segmentAreas shades sustained poor-quality stretches on the score
// panel, colored by segment severity.
func segmentAreas(segments []position.Segment) []*charts.Scatter {
	if len(segments) == 0 {
		return nil
	}
	bySeverity := make(map[string][]span)
	var order []string
	for _, s := range segments {
		if _, seen := bySeverity[s.Severity]; !seen {
			order = append(order, s.Severity)
		}
		bySeverity[s.Severity] = append(bySeverity[s.Severity], span{
			name:  fmt.Sprintf("Segment %d", s.ID),
			start: s.StartKP,
			end:   s.EndKP,
		})
	}

	out := make([]*charts.Scatter, 0, len(order))
	for _, severity := range order {
		band, chip := severityAreaColor(severity)
		sc := charts.NewScatter()
		sc.AddSeries(severity+" Severity Segment", []opts.ScatterData{},
			charts.WithItemStyleOpts(opts.ItemStyle{Color: chip}),
			charts.WithMarkAreaNameCoordItemOpts(areaItems(bySeverity[severity], 0, scoreAxisMax)...),
			charts.WithMarkAreaStyleOpts(opts.MarkAreaStyle{
				ItemStyle: &opts.ItemStyle{Color: band},
			}),
		)
		out = append(out, sc)
	}
	return out
}

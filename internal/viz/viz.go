// Package viz renders interactive survey charts with go-echarts and
// captures static PNG snapshots of them through a headless browser.
//
// Two charts are produced per analysis run: the burial depth profile
// (depth against cable position with the target line, anomaly markers
// and problem-section highlighting) and the position quality dashboard
// (KP progression, cross-track deviation and the composite quality
// score). Charts render to standalone HTML files that open without a
// server; Snapshotter turns a rendered HTML file into a PNG suitable
// for embedding in Excel reports.
package viz

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/tomdowns/cbatool/internal/analysis"
	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/infrastructure"
)

// assetsHost serves the echarts runtime referenced by the standalone
// HTML output. The server's content security policy allows this host.
const assetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const (
	chartWidth  = "1400px"
	chartHeight = "600px"
	panelHeight = "420px"
)

// Renderer builds the analysis charts. Safe for concurrent use.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer returns a chart renderer. A nil logger falls back to the
// application logger.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Renderer{logger: infrastructure.WithComponent(logger, "viz")}
}

// markerStyle is the scatter styling for one anomaly classification.
type markerStyle struct {
	label  string
	symbol string
	size   int
	color  string
}

// Reason prefixes strip the measured value a classification carries,
// so "Sudden depth change (0.75m)" and "(1.20m)" group together.
var (
	spikePrefix   = strings.SplitN(depth.ReasonSpikeFormat, " (", 2)[0]
	outlierPrefix = strings.SplitN(depth.ReasonOutlierFormat, " (", 2)[0]
)

// markerFor maps an anomaly classification onto its marker style.
// Depth-limit violations get the heaviest marker.
func markerFor(anomalyType string) markerStyle {
	switch {
	case anomalyType == depth.ReasonExceedsMax:
		return markerStyle{label: depth.ReasonExceedsMax, symbol: "diamond", size: 12, color: "red"}
	case anomalyType == depth.ReasonBelowMin:
		return markerStyle{label: depth.ReasonBelowMin, symbol: "diamond", size: 12, color: "red"}
	case strings.HasPrefix(anomalyType, spikePrefix):
		return markerStyle{label: spikePrefix, symbol: "triangle", size: 10, color: "orange"}
	case strings.HasPrefix(anomalyType, outlierPrefix):
		return markerStyle{label: outlierPrefix, symbol: "circle", size: 8, color: "gold"}
	default:
		return markerStyle{label: depth.ReasonUnknown, symbol: "circle", size: 8, color: "gray"}
	}
}

// severityAreaColor returns the translucent band fill and the solid
// legend color for a severity grade.
func severityAreaColor(severity string) (band, chip string) {
	switch severity {
	case analysis.SeverityHigh:
		return "rgba(255, 0, 0, 0.3)", "red"
	case analysis.SeverityMedium:
		return "rgba(255, 165, 0, 0.2)", "orange"
	case analysis.SeverityLow:
		return "rgba(255, 255, 0, 0.15)", "yellow"
	default:
		return "rgba(128, 128, 128, 0.2)", "gray"
	}
}

// axisLabel names the x axis after the bound position reference.
func axisLabel(b dataset.Binding, axis dataset.PositionAxis) string {
	switch axis.Kind {
	case dataset.PositionKP:
		return "Cable Position (KP)"
	case dataset.PositionColumn:
		return fmt.Sprintf("Cable Position (%s)", b.Position)
	default:
		return "Cable Position (Index)"
	}
}

// span is one highlighted stretch along the position axis.
type span struct {
	name  string
	start float64
	end   float64
}

// areaItems builds one full-height band per flagged span. yTop and
// yBottom bound the band in axis units; on the inverted depth axis
// yTop is the surface.
func areaItems(spans []span, yTop, yBottom float64) []opts.MarkAreaNameCoordItem {
	items := make([]opts.MarkAreaNameCoordItem, 0, len(spans))
	for _, s := range spans {
		items = append(items, opts.MarkAreaNameCoordItem{
			Name:        s.name,
			Coordinate0: []interface{}{s.start, yTop},
			Coordinate1: []interface{}{s.end, yBottom},
		})
	}
	return items
}

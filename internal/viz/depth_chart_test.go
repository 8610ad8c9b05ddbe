package viz

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomdowns/cbatool/internal/dataset"
	"github.com/tomdowns/cbatool/internal/depth"
	"github.com/tomdowns/cbatool/internal/ranges"
	"github.com/tomdowns/cbatool/internal/shared/testutil"
)

func testRenderer() *Renderer {
	return NewRenderer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func depthChartDataset(t *testing.T) (*dataset.Dataset, dataset.Binding) {
	t.Helper()
	ds := dataset.New(6)
	require.NoError(t, ds.SetFloats("DOB", []float64{1.6, 1.7, 0.4, 0.5, 1.6, 1.8}))
	require.NoError(t, ds.SetFloats("KP", []float64{0.00, 0.01, 0.02, 0.03, 0.04, 0.05}))
	b, err := dataset.Bind(ds, dataset.Schema{Depth: "DOB", KP: "KP"})
	require.NoError(t, err)
	return ds, b
}

func renderDepth(t *testing.T, c DepthChart) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, testRenderer().RenderDepthChart(&buf, c))
	return buf.String()
}

func TestRenderDepthChart(t *testing.T) {
	ds, b := depthChartDataset(t)
	html := renderDepth(t, DepthChart{
		Data:        ds,
		Binding:     b,
		TargetDepth: 1.5,
		Anomalies: []depth.Anomaly{
			{Index: 2, Position: 0.02, Depth: 0.4, Type: "Sudden depth change (1.30m)", Severity: "High"},
			{Index: 4, Position: 0.04, Depth: 1.6, Type: "Statistical outlier (z-score: 3.20)", Severity: "Low"},
		},
		Sections: []depth.Section{
			{ID: 1, StartPos: 0.02, EndPos: 0.03, Length: 10, Severity: "High"},
			{ID: 2, StartPos: 0.05, EndPos: 0.05, Length: 0, Severity: "Low"},
		},
		Ranges: []ranges.Range{
			{Name: "Full Data", Type: ranges.TypeFull, StartPos: 0, EndPos: 0.05},
			{Name: "Problem Area 1", Type: ranges.TypeDeficit, StartPos: 0.02, EndPos: 0.03},
		},
	})

	assert.Contains(t, html, "Cable Burial Depth Analysis")
	assert.Contains(t, html, "Burial Depth")
	assert.Contains(t, html, "Target Depth (1.5m)")
	assert.Contains(t, html, "Cable Position (KP)")
	assert.Contains(t, html, "Depth (m)")
	assert.Contains(t, html, "inverse")
	assert.Contains(t, html, "dataZoom")
	assert.Contains(t, html, "go-echarts.github.io")

	// Anomaly classes get their own series.
	assert.Contains(t, html, "Sudden depth change")
	assert.Contains(t, html, "Statistical outlier")

	// Problem sections shade by severity.
	assert.Contains(t, html, "High Severity Area")
	assert.Contains(t, html, "Low Severity Area")
	assert.NotContains(t, html, "Medium Severity Area")
	assert.Contains(t, html, "markArea")

	// The subtitle carries the run summary and suggested views.
	assert.Contains(t, html, "2 anomalous data points detected")
	assert.Contains(t, html, "2 non-compliant sections (total: 10.0m)")
	assert.Contains(t, html, "Problem Area 1")
	assert.NotContains(t, html, "Full Data")
}

func TestRenderDepthChartMinimal(t *testing.T) {
	ds, b := depthChartDataset(t)
	html := renderDepth(t, DepthChart{Data: ds, Binding: b, TargetDepth: 1.5})

	assert.Contains(t, html, "Burial Depth")
	assert.NotContains(t, html, "anomalous data points")
	assert.NotContains(t, html, "Severity Area")
}

func TestRenderDepthChartSkipsMissingDepths(t *testing.T) {
	ds := dataset.New(3)
	require.NoError(t, ds.SetFloats("DOB", []float64{1.6, dataset.Missing(), 1.7}))
	b, err := dataset.Bind(ds, dataset.Schema{Depth: "DOB"})
	require.NoError(t, err)

	html := renderDepth(t, DepthChart{Data: ds, Binding: b, TargetDepth: 1.5})
	assert.Contains(t, html, "Burial Depth")
}

func TestRenderDepthChartAxisFallbacks(t *testing.T) {
	t.Run("position column", func(t *testing.T) {
		ds := dataset.New(3)
		require.NoError(t, ds.SetFloats("DOB", []float64{1.6, 1.7, 1.8}))
		require.NoError(t, ds.SetFloats("Dist", []float64{0, 10, 20}))
		b, err := dataset.Bind(ds, dataset.Schema{Depth: "DOB", Position: "Dist"})
		require.NoError(t, err)

		html := renderDepth(t, DepthChart{Data: ds, Binding: b, TargetDepth: 1.5})
		assert.Contains(t, html, "Cable Position (Dist)")
	})

	t.Run("row index", func(t *testing.T) {
		ds := dataset.New(3)
		require.NoError(t, ds.SetFloats("DOB", []float64{1.6, 0.2, 1.8}))
		b, err := dataset.Bind(ds, dataset.Schema{Depth: "DOB"})
		require.NoError(t, err)

		html := renderDepth(t, DepthChart{
			Data: ds, Binding: b, TargetDepth: 1.5,
			Sections: []depth.Section{{ID: 1, StartPos: 1, EndPos: 1, Length: 1, Severity: "High"}},
		})
		assert.Contains(t, html, "Cable Position (Index)")
		assert.Contains(t, html, "total: 1 points")
	})
}

func TestRenderDepthChartErrors(t *testing.T) {
	r := testRenderer()
	var buf bytes.Buffer

	err := r.RenderDepthChart(&buf, DepthChart{})
	assert.ErrorContains(t, err, "no data to plot")

	ds := dataset.New(2)
	require.NoError(t, ds.SetFloats("DOB", []float64{dataset.Missing(), dataset.Missing()}))
	b, bindErr := dataset.Bind(ds, dataset.Schema{Depth: "DOB"})
	require.NoError(t, bindErr)
	err = r.RenderDepthChart(&buf, DepthChart{Data: ds, Binding: b, TargetDepth: 1.5})
	assert.ErrorContains(t, err, "no usable values")
}

func TestWriteDepthChart(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	ds, b := depthChartDataset(t)
	path := filepath.Join(t.TempDir(), "cable_burial_analysis.html")

	r := NewRenderer(logger)
	require.NoError(t, r.WriteDepthChart(path, DepthChart{Data: ds, Binding: b, TargetDepth: 1.5}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Burial Depth")
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "depth chart written")
}

func TestMarkerFor(t *testing.T) {
	tests := []struct {
		name        string
		anomalyType string
		wantLabel   string
		wantSymbol  string
		wantColor   string
	}{
		{"exceeds max", depth.ReasonExceedsMax, depth.ReasonExceedsMax, "diamond", "red"},
		{"below min", depth.ReasonBelowMin, depth.ReasonBelowMin, "diamond", "red"},
		{"spike", "Sudden depth change (0.75m)", "Sudden depth change", "triangle", "orange"},
		{"outlier", "Statistical outlier (z-score: 3.10)", "Statistical outlier", "circle", "gold"},
		{"unknown", "something else entirely", depth.ReasonUnknown, "circle", "gray"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := markerFor(tt.anomalyType)
			assert.Equal(t, tt.wantLabel, m.label)
			assert.Equal(t, tt.wantSymbol, m.symbol)
			assert.Equal(t, tt.wantColor, m.color)
		})
	}
}

func TestViewNames(t *testing.T) {
	views := []ranges.Range{
		{Name: "Full Data", Type: ranges.TypeFull},
		{Name: "Problem Area 1", Type: ranges.TypeDeficit, StartPos: 1.2, EndPos: 1.45},
		{Name: "Problem Area 2", Type: ranges.TypeDeficit, StartPos: 2, EndPos: 2.1},
		{Name: "High Variation 1", Type: ranges.TypeVariation, StartPos: 3, EndPos: 3.2},
		{Name: "High Variation 2", Type: ranges.TypeVariation, StartPos: 4, EndPos: 4.2},
	}

	got := viewNames(views)
	assert.Equal(t, "Problem Area 1 (1.20-1.45), Problem Area 2 (2.00-2.10), High Variation 1 (3.00-3.20)", got)
	assert.Empty(t, viewNames(nil))
	assert.Empty(t, viewNames(views[:1]))
}
